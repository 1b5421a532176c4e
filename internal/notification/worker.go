package notification

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shenikar/civic_reporting_system/internal/config"
	"github.com/sirupsen/logrus"
)

// popTimeout ограничивает BRPOP, чтобы воркер замечал отмену контекста
const popTimeout = 5 * time.Second

// Worker - структура для извлечения и доставки push-уведомлений
type Worker struct {
	redisClient *redis.Client
	sender      Sender
	logger      *logrus.Logger
	cfg         *config.Config
	sleep       func(ctx context.Context, d time.Duration) bool
}

// NewWorker создает новый Worker
func NewWorker(redisClient *redis.Client, sender Sender, logger *logrus.Logger, cfg *config.Config) *Worker {
	return &Worker{
		redisClient: redisClient,
		sender:      sender,
		logger:      logger,
		cfg:         cfg,
		sleep:       sleepCtx,
	}
}

// Start запускает горутину для обработки очереди уведомлений
func (w *Worker) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	w.logger.Info("Starting push notification worker...")
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	return done
}

// Run обрабатывает очередь до отмены контекста
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping push notification worker.")
			return
		default:
		}

		// BRPOP - блокирующее извлечение из правой части списка (очереди)
		result, err := w.redisClient.BRPop(ctx, popTimeout, QueueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue // Очередь пуста или контекст отменен
			}
			w.logger.WithError(err).Error("Failed to pop push job from Redis")
			w.sleep(ctx, w.cfg.PushBaseDelay) // Ждем перед повторной попыткой
			continue
		}

		// result[0] - ключ, result[1] - значение
		var job Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			w.logger.WithError(err).Error("Failed to unmarshal push job from Redis")
			continue
		}

		w.process(ctx, job)
	}
}

// process доставляет сообщение с экспоненциальной задержкой между попытками.
// После последней неудачи задание отбрасывается.
func (w *Worker) process(ctx context.Context, job Job) bool {
	log := w.logger.WithFields(logrus.Fields{
		"issue_id":          job.IssueID,
		"notification_type": job.Message.Data["type"],
	})
	log.Debug("Processing push job...")

	maxRetries := w.cfg.PushMaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	delay := w.cfg.PushBaseDelay

	for i := 0; i < maxRetries; i++ {
		err := w.sender.Send(ctx, job.Message)
		if err == nil {
			log.Info("Push notification delivered successfully.")
			return true
		}
		if errors.Is(err, ErrPermanent) {
			log.WithError(err).Warn("Push notification rejected by provider, dropping.")
			return false
		}

		left := maxRetries - 1 - i
		if left == 0 {
			break
		}
		log.WithError(err).Warnf("Failed to deliver push notification. Retrying in %v. Retries left: %d", delay, left)
		if !w.sleep(ctx, delay) {
			log.Warn("Worker stopped before push notification was delivered.")
			return false
		}
		delay *= 2 // Экспоненциальная задержка
	}

	log.Errorf("Failed to deliver push notification after %d attempts.", maxRetries)
	return false
}

// sleepCtx ждет d или отмены контекста; false означает отмену
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
