package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shenikar/civic_reporting_system/internal/models"
	"github.com/shenikar/civic_reporting_system/internal/service"
)

const QueueKey = "push_notifications"

// Job - задание на доставку в очереди Redis
type Job struct {
	Message    Message   `json:"message"`
	IssueID    string    `json:"issue_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// RedisQueue ставит push-уведомления в очередь; доставку выполняет Worker
type RedisQueue struct {
	redisClient *redis.Client
}

var _ service.Notifier = (*RedisQueue)(nil)

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{
		redisClient: client,
	}
}

// Notify кладет уведомление в левую часть списка. Пустой токен - не ошибка.
func (q *RedisQueue) Notify(ctx context.Context, pushToken string, kind models.NotificationType, issue *models.Issue) error {
	if pushToken == "" {
		return nil
	}

	msg, err := BuildMessage(pushToken, kind, issue)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(Job{
		Message:    msg,
		IssueID:    issue.ID.String(),
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal push job: %w", err)
	}

	if err := q.redisClient.LPush(ctx, QueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue push notification to Redis: %w", err)
	}
	return nil
}
