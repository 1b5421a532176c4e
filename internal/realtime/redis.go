package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shenikar/civic_reporting_system/internal/models"
	"github.com/shenikar/civic_reporting_system/internal/service"
	"github.com/sirupsen/logrus"
)

// RedisSink публикует события в канал Redis, чтобы их получили хабы всех экземпляров
type RedisSink struct {
	redisClient *redis.Client
	channel     string
}

var _ service.EventSink = (*RedisSink)(nil)

func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	return &RedisSink{
		redisClient: client,
		channel:     channel,
	}
}

func (s *RedisSink) Emit(ctx context.Context, event models.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := s.redisClient.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event to Redis: %w", err)
	}
	return nil
}

// Relay передает сообщения из канала Redis в локальный хаб
type Relay struct {
	redisClient *redis.Client
	channel     string
	hub         *Hub
	logger      *logrus.Logger
}

func NewRelay(client *redis.Client, channel string, hub *Hub, logger *logrus.Logger) *Relay {
	return &Relay{
		redisClient: client,
		channel:     channel,
		hub:         hub,
		logger:      logger,
	}
}

// Run подписывается на канал и возвращает управление после подтверждения подписки.
// Пересылка идет в фоне до отмены контекста; возвращенный канал закрывается по ее завершении.
func (r *Relay) Run(ctx context.Context) (<-chan struct{}, error) {
	pubsub := r.redisClient.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	log := r.logger.WithField("channel", r.channel)
	log.Info("Starting broadcast relay...")

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				log.Info("Stopping broadcast relay.")
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := r.hub.Deliver([]byte(msg.Payload)); err != nil {
					log.WithError(err).Warn("Dropped relayed event")
				}
			}
		}
	}()
	return done, nil
}
