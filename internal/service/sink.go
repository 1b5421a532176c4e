package service

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/shenikar/civic_reporting_system/internal/models"
)

// EventSink - получатель событий об изменениях обращений (рассылка в реальном времени).
// Реализация не должна блокировать вызывающего.
type EventSink interface {
	Emit(ctx context.Context, event models.Event) error
}

// Notifier - диспетчер push-уведомлений автору обращения.
// Пустой токен - не ошибка, уведомление просто не отправляется.
type Notifier interface {
	Notify(ctx context.Context, pushToken string, kind models.NotificationType, issue *models.Issue) error
}

// IssueCache - кэш карточек обращений.
// SetIssue не перезаписывает более новую версию, в том числе уже инвалидированную.
type IssueCache interface {
	GetIssue(ctx context.Context, id uuid.UUID) (*models.Issue, error)
	SetIssue(ctx context.Context, issue *models.Issue) error
	// InvalidateIssue сбрасывает карточку; version - версия, записанная в хранилище
	InvalidateIssue(ctx context.Context, id uuid.UUID, version int64) error
	// InvalidateReporter сбрасывает карточки всех обращений автора
	InvalidateReporter(ctx context.Context, userID uuid.UUID) error
}

// ImageStore сохраняет изображение и возвращает непрозрачный URL
type ImageStore interface {
	Upload(ctx context.Context, userID uuid.UUID, fileName, contentType string, body io.Reader, size int64) (string, error)
}

// Analyzer классифицирует текст нового обращения
type Analyzer interface {
	Analyze(ctx context.Context, title, description string) (*models.AIAnalysis, error)
}
