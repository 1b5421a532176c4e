package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/civic_reporting_system/internal/models"
	"github.com/shenikar/civic_reporting_system/internal/service"
)

// Карточка хранится в хэше: поле data - JSON, поле version - версия записи.
// После инвалидации остается только version, и запись более старой версии
// в этот ключ уже не попадет.
const (
	fieldData    = "data"
	fieldVersion = "version"
)

// KEYS[1] - карточка, KEYS[2] - индекс автора (может быть пустым); ARGV: data, version, ttl(ms)
var setIssueScript = redis.NewScript(`
local cur = tonumber(redis.call('HGET', KEYS[1], 'version') or '0')
if cur > tonumber(ARGV[2]) then
	return 0
end
local ttl = tonumber(ARGV[3])
redis.call('HSET', KEYS[1], 'data', ARGV[1], 'version', ARGV[2])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
end
if KEYS[2] ~= '' then
	redis.call('SADD', KEYS[2], KEYS[1])
	if ttl > 0 then
		redis.call('PEXPIRE', KEYS[2], ttl)
	end
end
return 1
`)

// KEYS[1] - карточка; ARGV: version, ttl(ms)
var invalidateIssueScript = redis.NewScript(`
local cur = tonumber(redis.call('HGET', KEYS[1], 'version') or '0')
redis.call('HDEL', KEYS[1], 'data')
if tonumber(ARGV[1]) > cur then
	redis.call('HSET', KEYS[1], 'version', ARGV[1])
end
if tonumber(ARGV[2]) > 0 and redis.call('EXISTS', KEYS[1]) == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

// KEYS[1] - индекс автора
var invalidateReporterScript = redis.NewScript(`
local keys = redis.call('SMEMBERS', KEYS[1])
for _, k in ipairs(keys) do
	redis.call('HDEL', k, 'data')
end
redis.call('DEL', KEYS[1])
return #keys
`)

// cachedIssue повторяет Issue вместе с полями автора, скрытыми в JSON ответа
type cachedIssue struct {
	*models.Issue
	PushToken     string `json:"pushToken,omitempty"`
	StatusChanges bool   `json:"statusChanges,omitempty"`
}

type IssueCache struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewIssueCache(redisClient *redis.Client, ttl time.Duration) service.IssueCache {
	return &IssueCache{
		redisClient: redisClient,
		ttl:         ttl,
	}
}

func issueKey(id uuid.UUID) string {
	return fmt.Sprintf("issue:%s", id.String())
}

func reporterKey(userID uuid.UUID) string {
	return fmt.Sprintf("issue_reporter:%s", userID.String())
}

// GetIssue пытается получить обращение из Redis. Промах возвращает nil, nil.
func (c *IssueCache) GetIssue(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	val, err := c.redisClient.HGet(ctx, issueKey(id), fieldData).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get issue from cache: %w", err)
	}

	entry := cachedIssue{Issue: &models.Issue{}}
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal issue from cache: %w", err)
	}
	if entry.Reporter != nil {
		entry.Reporter.PushToken = entry.PushToken
		entry.Reporter.StatusChanges = entry.StatusChanges
	}
	return entry.Issue, nil
}

// SetIssue сохраняет карточку на ttl, если в кэше нет более новой версии.
// Отказ из-за версии ошибкой не считается.
func (c *IssueCache) SetIssue(ctx context.Context, issue *models.Issue) error {
	entry := cachedIssue{Issue: issue}
	if issue.Reporter != nil {
		entry.PushToken = issue.Reporter.PushToken
		entry.StatusChanges = issue.Reporter.StatusChanges
	}
	val, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal issue for cache: %w", err)
	}

	index := ""
	if issue.UserID != uuid.Nil {
		index = reporterKey(issue.UserID)
	}
	keys := []string{issueKey(issue.ID), index}
	if err := setIssueScript.Run(ctx, c.redisClient, keys, val, issue.Version, c.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("failed to set issue in cache: %w", err)
	}
	return nil
}

// InvalidateIssue убирает карточку и запоминает версию, ниже которой запись запрещена
func (c *IssueCache) InvalidateIssue(ctx context.Context, id uuid.UUID, version int64) error {
	keys := []string{issueKey(id)}
	if err := invalidateIssueScript.Run(ctx, c.redisClient, keys, version, c.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("failed to invalidate issue cache: %w", err)
	}
	return nil
}

// InvalidateReporter убирает все карточки обращений автора
func (c *IssueCache) InvalidateReporter(ctx context.Context, userID uuid.UUID) error {
	keys := []string{reporterKey(userID)}
	if err := invalidateReporterScript.Run(ctx, c.redisClient, keys).Err(); err != nil {
		return fmt.Errorf("failed to invalidate reporter issues cache: %w", err)
	}
	return nil
}
