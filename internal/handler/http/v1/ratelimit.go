package v1

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	rateLimitPrefix = "issue_limit"
	rateLimitWindow = 24 * time.Hour
)

// Инкремент и TTL выполняются одной командой. Окно не сдвигается,
// а ключ, оставшийся без TTL, получает его при следующем запросе.
var rateLimitScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// IssueRateLimiter ограничивает число созданных обращений на пользователя за сутки.
// nil-клиент или limit <= 0 отключают ограничение.
func IssueRateLimiter(client *redis.Client, limit int, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || limit <= 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := fmt.Sprintf("%s:%s", rateLimitPrefix, callerID(c))

		count, err := rateLimitScript.Run(ctx, client, []string{key}, rateLimitWindow.Milliseconds()).Int64()
		if err != nil {
			log.WithError(err).Error("Failed to increment rate limit counter")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		if count > int64(limit) {
			retryAfter, _ := client.TTL(ctx, key).Result()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter.Seconds(),
			})
			return
		}
		c.Next()
	}
}
