package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/civic_reporting_system/internal/config"
	"github.com/shenikar/civic_reporting_system/internal/models"
	"github.com/sirupsen/logrus"
)

// IssueRepository определяет контракт хранилища обращений
type IssueRepository interface {
	Create(ctx context.Context, issue *models.Issue) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Issue, error)
	List(ctx context.Context, filter models.IssueFilter) ([]*models.Issue, error)
	// ApplyTransition атомарно добавляет запись журнала и меняет статус.
	// Возвращает ErrConflict, если версия обращения не совпала с ожидаемой.
	ApplyTransition(ctx context.Context, t *models.Transition) (*models.Issue, error)
	UpdateDetails(ctx context.Context, id uuid.UUID, title, description string, expectedVersion int64) (*models.Issue, error)
}

// IssueService определяет контракт бизнес-логики обращений
type IssueService interface {
	CreateIssue(ctx context.Context, issue *models.Issue) (*models.Issue, error)
	GetIssue(ctx context.Context, id uuid.UUID) (*models.Issue, error)
	ListIssues(ctx context.Context, filter models.IssueFilter) ([]*models.Issue, error)
	EditIssue(ctx context.Context, id uuid.UUID, title, description string) (*models.Issue, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, target models.IssueStatus, notes string, adminID uuid.UUID) (*models.Issue, error)
	VerifyIssue(ctx context.Context, id uuid.UUID, isVerified bool, notes string, adminID uuid.UUID) (*models.Issue, error)
}

type issueService struct {
	repo     IssueRepository
	cache    IssueCache
	events   EventSink
	notifier Notifier
	analyzer Analyzer
	logger   *logrus.Logger
	cfg      *config.Config
	now      func() time.Time
	locks    issueLocks
}

// issueLocks - фиксированный набор мьютексов, обращение берет свой по id
type issueLocks [64]sync.Mutex

func (l *issueLocks) of(id uuid.UUID) *sync.Mutex {
	return &l[int(id[len(id)-1])%len(l)]
}

// NewIssueService собирает сервис обращений. cache и analyzer могут быть nil.
func NewIssueService(repo IssueRepository, cache IssueCache, events EventSink, notifier Notifier, analyzer Analyzer, logger *logrus.Logger, cfg *config.Config) IssueService {
	return &issueService{
		repo:     repo,
		cache:    cache,
		events:   events,
		notifier: notifier,
		analyzer: analyzer,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// CreateIssue регистрирует новое обращение в статусе pending_verification
func (s *issueService) CreateIssue(ctx context.Context, issue *models.Issue) (*models.Issue, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "issue",
		"method":  "CreateIssue",
		"user_id": issue.UserID,
	})
	log.Info("Attempting to create a new issue")

	if err := validateNewIssue(issue); err != nil {
		log.WithError(err).Warn("Issue validation failed")
		return nil, err
	}

	issue.ID = uuid.New()
	issue.Status = models.StatusPendingVerification
	issue.IsVerified = false
	issue.VerificationNotes = nil
	issue.Updates = []models.Update{}
	issue.AIAnalysis = s.analyze(ctx, log, issue)

	if err := s.repo.Create(ctx, issue); err != nil {
		log.WithError(err).Error("Failed to create issue in repository")
		return nil, fmt.Errorf("service: could not create issue: %w", err)
	}
	log = log.WithField("issue_id", issue.ID)

	// для события нужен автор с именем, поэтому перечитываем
	created, err := s.repo.GetByID(ctx, issue.ID)
	if err != nil {
		log.WithError(err).Warn("Failed to reload created issue, broadcasting raw record")
		created = issue
	}

	s.publish(ctx, log, models.NewIssueCreatedEvent(created))
	log.Info("Issue created successfully")
	return created, nil
}

// GetIssue получает обращение с полной историей
func (s *issueService) GetIssue(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "issue",
		"method":   "GetIssue",
		"issue_id": id,
	})
	log.Info("Fetching issue by ID")

	if s.cache != nil {
		cached, err := s.cache.GetIssue(ctx, id)
		if err != nil {
			log.WithError(err).Warn("Failed to read issue from cache")
		} else if cached != nil {
			log.Debug("Issue served from cache")
			return cached, nil
		}
	}

	issue, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to get issue in repository")
		return nil, fmt.Errorf("service: could not get issue: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetIssue(ctx, issue); err != nil {
			log.WithError(err).Warn("Failed to put issue into cache")
		}
	}

	log.Info("Issue fetched successfully")
	return issue, nil
}

// ListIssues возвращает обращения, начиная с самых новых
func (s *issueService) ListIssues(ctx context.Context, filter models.IssueFilter) ([]*models.Issue, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "issue",
		"method":  "ListIssues",
		"mine":    filter.UserID != nil,
	})
	log.Info("Listing issues")

	issues, err := s.repo.List(ctx, filter)
	if err != nil {
		log.WithError(err).Error("Failed to list issues from repository")
		return nil, fmt.Errorf("service: could not list issues: %w", err)
	}

	log.WithField("count", len(issues)).Info("Issues listed successfully")
	return issues, nil
}

// EditIssue меняет заголовок и описание без смены статуса
func (s *issueService) EditIssue(ctx context.Context, id uuid.UUID, title, description string) (*models.Issue, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "issue",
		"method":   "EditIssue",
		"issue_id": id,
	})
	log.Info("Attempting to edit issue")

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Attempted to edit a non-existent issue")
		return nil, fmt.Errorf("service: issue with id %s not found for edit: %w", id, err)
	}

	description = strings.TrimSpace(description)
	mu := s.locks.of(id)
	mu.Lock()
	updated, err := s.repo.UpdateDetails(ctx, id, title, description, existing.Version)
	switch {
	case errors.Is(err, ErrNotReloaded):
		log.WithError(err).Warn("Issue edited but not reloaded, responding with local copy")
		updated = existing.Clone()
		updated.Title, updated.Description = title, description
		updated.Version = existing.Version + 1
		updated.UpdatedAt = s.now().UTC()
	case err != nil:
		mu.Unlock()
		log.WithError(err).Error("Failed to edit issue in repository")
		return nil, fmt.Errorf("service: could not edit issue: %w", err)
	}
	s.publish(ctx, log, models.NewIssueEditedEvent(updated))
	mu.Unlock()

	s.invalidate(ctx, log, id, updated.Version)
	log.Info("Issue edited successfully")
	return updated, nil
}

// analyze запрашивает классификацию текста. Сбой не мешает созданию обращения.
func (s *issueService) analyze(ctx context.Context, log *logrus.Entry, issue *models.Issue) *models.AIAnalysis {
	if s.analyzer == nil {
		return nil
	}
	analysis, err := s.analyzer.Analyze(ctx, issue.Title, issue.Description)
	if err != nil {
		log.WithError(err).Warn("AI analysis failed, creating issue without it")
		return nil
	}
	return analysis
}

// invalidate сбрасывает карточку обращения в кэше. version - записанная версия:
// читатель, успевший загрузить более старую, уже не вернет ее в кэш.
func (s *issueService) invalidate(ctx context.Context, log *logrus.Entry, id uuid.UUID, version int64) {
	if s.cache == nil {
		return
	}
	sideCtx, cancel := s.sideEffectContext(ctx)
	defer cancel()

	if err := s.cache.InvalidateIssue(sideCtx, id, version); err != nil {
		log.WithError(err).Warn("Failed to invalidate issue cache")
	}
}

// publish отправляет событие подписчикам. Ошибка только логируется.
func (s *issueService) publish(ctx context.Context, log *logrus.Entry, event models.Event) {
	sideCtx, cancel := s.sideEffectContext(ctx)
	defer cancel()

	if err := s.events.Emit(sideCtx, event); err != nil {
		log.WithError(err).WithField("event_type", event.Type).Warn("Failed to broadcast issue event")
	}
}

// notify ставит push-уведомление автору в очередь. Ошибка только логируется.
func (s *issueService) notify(ctx context.Context, log *logrus.Entry, issue *models.Issue) {
	reporter := issue.Reporter
	if reporter == nil {
		log.Warn("Issue has no resolved reporter, skipping notification")
		return
	}
	if !reporter.StatusChanges {
		log.Debug("Reporter disabled status change notifications")
		return
	}

	sideCtx, cancel := s.sideEffectContext(ctx)
	defer cancel()

	kind := models.NotificationForStatus(issue.Status)
	if err := s.notifier.Notify(sideCtx, reporter.PushToken, kind, issue); err != nil {
		log.WithError(err).WithField("notification_type", kind).Warn("Failed to dispatch push notification")
	}
}

// sideEffectContext не наследует отмену запроса и ограничен по времени
func (s *issueService) sideEffectContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if s.cfg == nil || s.cfg.NotifyEnqueueTimeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, s.cfg.NotifyEnqueueTimeout)
}

func validateNewIssue(issue *models.Issue) error {
	issue.Title = strings.TrimSpace(issue.Title)
	issue.Description = strings.TrimSpace(issue.Description)

	var missing []string
	if issue.Title == "" {
		missing = append(missing, "title")
	}
	if issue.Description == "" {
		missing = append(missing, "description")
	}
	switch issue.Priority {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
	default:
		missing = append(missing, "priority")
	}
	if issue.Location.Latitude == 0 || issue.Location.Latitude < -90 || issue.Location.Latitude > 90 {
		missing = append(missing, "latitude")
	}
	if issue.Location.Longitude == 0 || issue.Location.Longitude < -180 || issue.Location.Longitude > 180 {
		missing = append(missing, "longitude")
	}
	if issue.UserID == uuid.Nil {
		missing = append(missing, "user")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing or invalid fields: %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}
