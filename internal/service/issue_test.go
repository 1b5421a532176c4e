package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/civic_reporting_system/internal/config"
	"github.com/shenikar/civic_reporting_system/internal/models"
	"github.com/shenikar/civic_reporting_system/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type issueServiceMocks struct {
	repo     *mocks.MockIssueRepository
	cache    *mocks.MockIssueCache
	events   *mocks.MockEventSink
	notifier *mocks.MockNotifier
	analyzer *mocks.MockAnalyzer
}

// newTestIssueService - вспомогательная функция для создания инстанса сервиса с моками.
func newTestIssueService(t *testing.T) (*issueService, issueServiceMocks) {
	ctrl := gomock.NewController(t)
	m := issueServiceMocks{
		repo:     mocks.NewMockIssueRepository(ctrl),
		cache:    mocks.NewMockIssueCache(ctrl),
		events:   mocks.NewMockEventSink(ctrl),
		notifier: mocks.NewMockNotifier(ctrl),
		analyzer: mocks.NewMockAnalyzer(ctrl),
	}

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{NotifyEnqueueTimeout: time.Second}

	svc := NewIssueService(m.repo, m.cache, m.events, m.notifier, m.analyzer, logger, cfg).(*issueService)
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc, m
}

func verifiedIssue(id uuid.UUID) *models.Issue {
	return &models.Issue{
		ID:         id,
		Title:      "Pothole on Main St",
		Status:     models.StatusVerified,
		IsVerified: true,
		Version:    2,
		Updates:    []models.Update{{Message: "looks real", Status: models.StatusVerified}},
		Reporter:   &models.Reporter{FullName: "Jane", PushToken: "ExponentPushToken[abc]", StatusChanges: true},
	}
}

func TestCreateIssue_Success(t *testing.T) {
	// Подготовка
	svc, m := newTestIssueService(t)
	ctx := context.Background()
	userID := uuid.New()
	input := &models.Issue{
		UserID:      userID,
		Title:       "  Broken streetlight ",
		Description: "Dark at night",
		Priority:    models.PriorityHigh,
		Location:    models.Location{Latitude: 52.52, Longitude: 13.40},
		Status:      models.StatusResolved, // клиент не может задать статус
		IsVerified:  true,
	}
	analysis := &models.AIAnalysis{
		IncidentType: "infrastructure",
		Confidence:   87.5,
		TextAnalysis: models.TextAnalysis{IssueType: "infrastructure", Severity: "high", Confidence: 87.5},
	}

	// Ожидания
	m.analyzer.EXPECT().Analyze(ctx, "Broken streetlight", "Dark at night").Return(analysis, nil).Times(1)
	m.repo.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, issue *models.Issue) error {
			assert.Equal(t, models.StatusPendingVerification, issue.Status)
			assert.False(t, issue.IsVerified)
			assert.Equal(t, analysis, issue.AIAnalysis)
			assert.Equal(t, "Broken streetlight", issue.Title)
			assert.NotEqual(t, uuid.Nil, issue.ID)
			issue.Version = 1
			return nil
		}).Times(1)
	m.repo.EXPECT().
		GetByID(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, id uuid.UUID) (*models.Issue, error) {
			populated := input.Clone()
			populated.Reporter = &models.Reporter{ID: userID, FullName: "Jane"}
			return populated, nil
		}).Times(1)
	m.events.EXPECT().
		Emit(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, event models.Event) {
			assert.Equal(t, models.EventNewIssue, event.Type)
			assert.Equal(t, "Jane", event.Issue.Reporter.FullName)
		}).Return(nil).Times(1)
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	// Действие
	created, err := svc.CreateIssue(ctx, input)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingVerification, created.Status)
	assert.Equal(t, "Jane", created.Reporter.FullName)
}

func TestCreateIssue_ValidationError(t *testing.T) {
	svc, m := newTestIssueService(t)

	m.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0) // Хранилище не должно вызываться
	m.events.EXPECT().Emit(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.CreateIssue(context.Background(), &models.Issue{
		UserID:   uuid.New(),
		Title:    "Garbage",
		Priority: "Urgent",
		Location: models.Location{Latitude: 10},
	})

	require.ErrorIs(t, err, ErrValidation)
	assert.ErrorContains(t, err, "description, priority, longitude")
}

func TestCreateIssue_RepositoryError(t *testing.T) {
	svc, m := newTestIssueService(t)
	input := &models.Issue{
		UserID:      uuid.New(),
		Title:       "Garbage",
		Description: "Overflowing bins",
		Priority:    models.PriorityLow,
		Location:    models.Location{Latitude: 1, Longitude: 1},
	}

	m.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).Times(1)
	m.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("db down")).Times(1)
	m.events.EXPECT().Emit(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.CreateIssue(context.Background(), input)

	require.Error(t, err)
	assert.ErrorContains(t, err, "could not create issue")
}

func TestCreateIssue_AnalyzerFailureIsTolerated(t *testing.T) {
	svc, m := newTestIssueService(t)
	input := &models.Issue{
		UserID:      uuid.New(),
		Title:       "Graffiti",
		Description: "On the school wall",
		Priority:    models.PriorityMedium,
		Location:    models.Location{Latitude: 40.7, Longitude: -74},
	}

	m.analyzer.EXPECT().Analyze(gomock.Any(), "Graffiti", "On the school wall").Return(nil, errors.New("ai server timeout")).Times(1)
	m.repo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, issue *models.Issue) error {
			assert.Nil(t, issue.AIAnalysis)
			return nil
		}).Times(1)
	m.repo.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(nil, errors.New("replica lag")).Times(1)
	m.events.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	created, err := svc.CreateIssue(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingVerification, created.Status)
	assert.Nil(t, created.AIAnalysis)
}

func TestGetIssue_Success_FromCache(t *testing.T) {
	svc, m := newTestIssueService(t)
	ctx := context.Background()
	id := uuid.New()
	expected := &models.Issue{ID: id, Title: "Из кеша"}

	m.cache.EXPECT().GetIssue(ctx, id).Return(expected, nil).Times(1)

	issue, err := svc.GetIssue(ctx, id)

	require.NoError(t, err)
	assert.Equal(t, expected, issue)
}

func TestGetIssue_Success_FromDB(t *testing.T) {
	svc, m := newTestIssueService(t)
	ctx := context.Background()
	id := uuid.New()
	expected := &models.Issue{ID: id, Title: "Из БД"}

	// 1. Промах кеша
	m.cache.EXPECT().GetIssue(ctx, id).Return(nil, nil).Times(1)
	// 2. Попадание в БД
	m.repo.EXPECT().GetByID(ctx, id).Return(expected, nil).Times(1)
	// 3. Запись в кеш
	m.cache.EXPECT().SetIssue(ctx, expected).Return(nil).Times(1)

	issue, err := svc.GetIssue(ctx, id)

	require.NoError(t, err)
	assert.Equal(t, expected, issue)
}

func TestGetIssue_CacheErrorFallsBackToDB(t *testing.T) {
	svc, m := newTestIssueService(t)
	ctx := context.Background()
	id := uuid.New()
	expected := &models.Issue{ID: id}

	m.cache.EXPECT().GetIssue(ctx, id).Return(nil, errors.New("redis timeout")).Times(1)
	m.repo.EXPECT().GetByID(ctx, id).Return(expected, nil).Times(1)
	m.cache.EXPECT().SetIssue(ctx, expected).Return(errors.New("redis timeout")).Times(1)

	issue, err := svc.GetIssue(ctx, id)

	require.NoError(t, err)
	assert.Equal(t, expected, issue)
}

func TestGetIssue_NotFound(t *testing.T) {
	svc, m := newTestIssueService(t)
	ctx := context.Background()
	id := uuid.New()

	m.cache.EXPECT().GetIssue(ctx, id).Return(nil, nil).Times(1)
	m.repo.EXPECT().GetByID(ctx, id).Return(nil, fmt.Errorf("issue: %w", ErrNotFound)).Times(1)

	issue, err := svc.GetIssue(ctx, id)

	require.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, issue)
}

func TestListIssues_Mine(t *testing.T) {
	svc, m := newTestIssueService(t)
	ctx := context.Background()
	userID := uuid.New()
	filter := models.IssueFilter{UserID: &userID}
	expected := []*models.Issue{{ID: uuid.New()}, {ID: uuid.New()}}

	m.repo.EXPECT().List(ctx, filter).Return(expected, nil).Times(1)

	issues, err := svc.ListIssues(ctx, filter)

	require.NoError(t, err)
	assert.Equal(t, expected, issues)
}

func TestUpdateStatus_Success(t *testing.T) {
	svc, m := newTestIssueService(t)
	ctx := context.Background()
	id, adminID := uuid.New(), uuid.New()
	current := verifiedIssue(id)

	updated := current.Clone()
	updated.Status = models.StatusInProgress
	updated.Version = 3

	m.repo.EXPECT().GetByID(ctx, id).Return(current, nil).Times(1)
	m.repo.EXPECT().
		ApplyTransition(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, tr *models.Transition) (*models.Issue, error) {
			assert.Equal(t, int64(2), tr.ExpectedVersion)
			assert.Equal(t, models.StatusVerified, tr.From)
			assert.Equal(t, models.StatusInProgress, tr.To)
			assert.Equal(t, "crew dispatched", tr.Update.Message)
			assert.Equal(t, adminID, tr.Update.UpdatedBy)
			assert.Equal(t, models.StatusInProgress, tr.Update.Status)
			assert.Nil(t, tr.Verification)
			return updated, nil
		}).Times(1)
	m.cache.EXPECT().InvalidateIssue(gomock.Any(), id, int64(3)).Return(nil).Times(1)
	m.notifier.EXPECT().
		Notify(gomock.Any(), "ExponentPushToken[abc]", models.NotificationStatusUpdate, updated).
		Return(nil).Times(1)
	m.events.EXPECT().
		Emit(gomock.Any(), models.Event{Type: models.EventStatusUpdate, Issue: updated}).
		Return(nil).Times(1)

	issue, err := svc.UpdateStatus(ctx, id, models.StatusInProgress, "  crew dispatched ", adminID)

	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, issue.Status)
}

func TestUpdateStatus_BlankNotes(t *testing.T) {
	svc, m := newTestIssueService(t)

	m.repo.EXPECT().GetByID(gomock.Any(), gomock.Any()).Times(0) // До хранилища не доходим

	_, err := svc.UpdateStatus(context.Background(), uuid.New(), models.StatusInProgress, "   ", uuid.New())

	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateStatus_UnknownTarget(t *testing.T) {
	svc, m := newTestIssueService(t)

	m.repo.EXPECT().GetByID(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.UpdateStatus(context.Background(), uuid.New(), "closed", "done", uuid.New())

	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	svc, m := newTestIssueService(t)
	id := uuid.New()

	m.repo.EXPECT().GetByID(gomock.Any(), id).Return(nil, fmt.Errorf("issue: %w", ErrNotFound)).Times(1)
	m.repo.EXPECT().ApplyTransition(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.UpdateStatus(context.Background(), id, models.StatusInProgress, "go", uuid.New())

	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus_IllegalTransitionHasNoSideEffects(t *testing.T) {
	svc, m := newTestIssueService(t)
	id := uuid.New()

	m.repo.EXPECT().GetByID(gomock.Any(), id).Return(verifiedIssue(id), nil).Times(1)
	m.repo.EXPECT().ApplyTransition(gomock.Any(), gomock.Any()).Times(0)
	m.cache.EXPECT().InvalidateIssue(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	m.events.EXPECT().Emit(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.UpdateStatus(context.Background(), id, models.StatusResolved, "skip ahead", uuid.New())

	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateStatus_ConflictHasNoSideEffects(t *testing.T) {
	svc, m := newTestIssueService(t)
	id := uuid.New()

	m.repo.EXPECT().GetByID(gomock.Any(), id).Return(verifiedIssue(id), nil).Times(1)
	m.repo.EXPECT().ApplyTransition(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("version: %w", ErrConflict)).Times(1)
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	m.events.EXPECT().Emit(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.UpdateStatus(context.Background(), id, models.StatusInProgress, "go", uuid.New())

	require.ErrorIs(t, err, ErrConflict)
}

func TestUpdateStatus_CommittedButNotReloadedStillRunsSideEffects(t *testing.T) {
	svc, m := newTestIssueService(t)
	ctx, cancel := context.WithCancel(context.Background())
	id, adminID := uuid.New(), uuid.New()
	current := verifiedIssue(id)

	m.repo.EXPECT().GetByID(ctx, id).Return(current, nil).Times(1)
	m.repo.EXPECT().
		ApplyTransition(ctx, gomock.Any()).
		DoAndReturn(func(context.Context, *models.Transition) (*models.Issue, error) {
			// клиент отключился сразу после фиксации
			cancel()
			return nil, fmt.Errorf("issue %s: context canceled: %w", id, ErrNotReloaded)
		}).Times(1)
	m.cache.EXPECT().
		InvalidateIssue(gomock.Any(), id, int64(3)).
		DoAndReturn(func(sideCtx context.Context, _ uuid.UUID, _ int64) error {
			assert.NoError(t, sideCtx.Err())
			return nil
		}).Times(1)
	m.notifier.EXPECT().
		Notify(gomock.Any(), "ExponentPushToken[abc]", models.NotificationStatusUpdate, gomock.Any()).
		Return(nil).Times(1)
	m.events.EXPECT().
		Emit(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, event models.Event) {
			assert.Equal(t, models.EventStatusUpdate, event.Type)
			assert.Equal(t, models.StatusInProgress, event.Issue.Status)
			assert.Equal(t, int64(3), event.Issue.Version)
		}).Return(nil).Times(1)

	issue, err := svc.UpdateStatus(ctx, id, models.StatusInProgress, "crew dispatched", adminID)

	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, issue.Status)
	assert.Equal(t, int64(3), issue.Version)
	require.Len(t, issue.Updates, 2)
	assert.Equal(t, "crew dispatched", issue.LastUpdate().Message)
	assert.Equal(t, adminID, issue.LastUpdate().UpdatedBy)
	// исходная запись не изменилась
	assert.Equal(t, models.StatusVerified, current.Status)
}

func TestVerifyIssue_CommittedButNotReloadedKeepsVerification(t *testing.T) {
	svc, m := newTestIssueService(t)
	id := uuid.New()
	current := &models.Issue{
		ID:       id,
		Status:   models.StatusPendingVerification,
		Version:  1,
		Reporter: &models.Reporter{PushToken: "tok", StatusChanges: true},
	}

	m.repo.EXPECT().GetByID(gomock.Any(), id).Return(current, nil).Times(1)
	m.repo.EXPECT().ApplyTransition(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("reload: %w", ErrNotReloaded)).Times(1)
	m.cache.EXPECT().InvalidateIssue(gomock.Any(), id, int64(2)).Return(nil).Times(1)
	m.notifier.EXPECT().Notify(gomock.Any(), "tok", models.NotificationIssueRejected, gomock.Any()).Return(nil).Times(1)
	m.events.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	issue, err := svc.VerifyIssue(context.Background(), id, false, "duplicate report", uuid.New())

	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, issue.Status)
	assert.False(t, issue.IsVerified)
	require.NotNil(t, issue.VerificationNotes)
	assert.Equal(t, "duplicate report", *issue.VerificationNotes)
}

func TestUpdateStatus_SideEffectFailuresAreIsolated(t *testing.T) {
	svc, m := newTestIssueService(t)
	id := uuid.New()
	updated := verifiedIssue(id)
	updated.Status = models.StatusInProgress

	m.repo.EXPECT().GetByID(gomock.Any(), id).Return(verifiedIssue(id), nil).Times(1)
	m.repo.EXPECT().ApplyTransition(gomock.Any(), gomock.Any()).Return(updated, nil).Times(1)
	m.cache.EXPECT().InvalidateIssue(gomock.Any(), id, gomock.Any()).Return(errors.New("redis down")).Times(1)
	// Ошибка уведомления не мешает рассылке события
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("queue down")).Times(1)
	m.events.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("hub full")).Times(1)

	issue, err := svc.UpdateStatus(context.Background(), id, models.StatusInProgress, "go", uuid.New())

	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, issue.Status)
}

func TestUpdateStatus_ResolvedSendsResolvedNotification(t *testing.T) {
	svc, m := newTestIssueService(t)
	id := uuid.New()
	current := verifiedIssue(id)
	current.Status = models.StatusInProgress
	updated := current.Clone()
	updated.Status = models.StatusResolved

	m.repo.EXPECT().GetByID(gomock.Any(), id).Return(current, nil).Times(1)
	m.repo.EXPECT().ApplyTransition(gomock.Any(), gomock.Any()).Return(updated, nil).Times(1)
	m.cache.EXPECT().InvalidateIssue(gomock.Any(), id, gomock.Any()).Return(nil).Times(1)
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), models.NotificationIssueResolved, updated).Return(nil).Times(1)
	m.events.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	_, err := svc.UpdateStatus(context.Background(), id, models.StatusResolved, "fixed", uuid.New())

	require.NoError(t, err)
}

func TestUpdateStatus_ReporterOptedOut(t *testing.T) {
	svc, m := newTestIssueService(t)
	id := uuid.New()
	updated := verifiedIssue(id)
	updated.Status = models.StatusInProgress
	updated.Reporter.StatusChanges = false

	m.repo.EXPECT().GetByID(gomock.Any(), id).Return(verifiedIssue(id), nil).Times(1)
	m.repo.EXPECT().ApplyTransition(gomock.Any(), gomock.Any()).Return(updated, nil).Times(1)
	m.cache.EXPECT().InvalidateIssue(gomock.Any(), id, gomock.Any()).Return(nil).Times(1)
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	m.events.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	_, err := svc.UpdateStatus(context.Background(), id, models.StatusInProgress, "go", uuid.New())

	require.NoError(t, err)
}

func TestVerifyIssue_Verified(t *testing.T) {
	svc, m := newTestIssueService(t)
	ctx := context.Background()
	id, adminID := uuid.New(), uuid.New()
	current := &models.Issue{
		ID:       id,
		Status:   models.StatusPendingVerification,
		Version:  1,
		Reporter: &models.Reporter{PushToken: "tok", StatusChanges: true},
	}
	notes := "looks real"
	updated := current.Clone()
	updated.Status = models.StatusVerified
	updated.IsVerified = true
	updated.VerificationNotes = &notes

	m.repo.EXPECT().GetByID(ctx, id).Return(current, nil).Times(1)
	m.repo.EXPECT().
		ApplyTransition(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, tr *models.Transition) (*models.Issue, error) {
			require.NotNil(t, tr.Verification)
			assert.True(t, tr.Verification.IsVerified)
			assert.Equal(t, notes, tr.Verification.Notes)
			assert.Equal(t, models.StatusVerified, tr.To)
			return updated, nil
		}).Times(1)
	m.cache.EXPECT().InvalidateIssue(gomock.Any(), id, updated.Version).Return(nil).Times(1)
	m.notifier.EXPECT().Notify(gomock.Any(), "tok", models.NotificationIssueVerified, updated).Return(nil).Times(1)
	m.events.EXPECT().Emit(gomock.Any(), models.Event{Type: models.EventIssueVerified, Issue: updated}).Return(nil).Times(1)

	issue, err := svc.VerifyIssue(ctx, id, true, notes, adminID)

	require.NoError(t, err)
	assert.True(t, issue.IsVerified)
}

func TestVerifyIssue_RejectAlreadyVerified(t *testing.T) {
	svc, m := newTestIssueService(t)
	id := uuid.New()

	m.repo.EXPECT().GetByID(gomock.Any(), id).Return(verifiedIssue(id), nil).Times(1)
	m.repo.EXPECT().ApplyTransition(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.VerifyIssue(context.Background(), id, false, "changed my mind", uuid.New())

	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestVerifyIssue_RequiresAdmin(t *testing.T) {
	svc, m := newTestIssueService(t)

	m.repo.EXPECT().GetByID(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.VerifyIssue(context.Background(), uuid.New(), true, "", uuid.Nil)

	require.ErrorIs(t, err, ErrValidation)
}

func TestEditIssue_Success(t *testing.T) {
	svc, m := newTestIssueService(t)
	ctx := context.Background()
	id := uuid.New()
	existing := &models.Issue{ID: id, Title: "Old", Version: 4}
	updated := &models.Issue{ID: id, Title: "New", Description: "More detail", Version: 5}

	m.repo.EXPECT().GetByID(ctx, id).Return(existing, nil).Times(1)
	m.repo.EXPECT().UpdateDetails(ctx, id, "New", "More detail", int64(4)).Return(updated, nil).Times(1)
	m.cache.EXPECT().InvalidateIssue(gomock.Any(), id, int64(5)).Return(nil).Times(1)
	m.events.EXPECT().Emit(gomock.Any(), models.Event{Type: models.EventIssueEdit, Issue: updated}).Return(nil).Times(1)
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	issue, err := svc.EditIssue(ctx, id, " New ", "More detail")

	require.NoError(t, err)
	assert.Equal(t, "New", issue.Title)
}

func TestEditIssue_NotFound(t *testing.T) {
	svc, m := newTestIssueService(t)
	id := uuid.New()

	m.repo.EXPECT().GetByID(gomock.Any(), id).Return(nil, fmt.Errorf("issue: %w", ErrNotFound)).Times(1)

	_, err := svc.EditIssue(context.Background(), id, "New", "")

	require.ErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "not found for edit")
}

func TestEditIssue_CommittedButNotReloaded(t *testing.T) {
	svc, m := newTestIssueService(t)
	id := uuid.New()
	existing := &models.Issue{ID: id, Title: "Old", Description: "Old text", Version: 4}

	m.repo.EXPECT().GetByID(gomock.Any(), id).Return(existing, nil).Times(1)
	m.repo.EXPECT().UpdateDetails(gomock.Any(), id, "New", "More detail", int64(4)).Return(nil, fmt.Errorf("reload: %w", ErrNotReloaded)).Times(1)
	m.cache.EXPECT().InvalidateIssue(gomock.Any(), id, int64(5)).Return(nil).Times(1)
	m.events.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	issue, err := svc.EditIssue(context.Background(), id, "New", " More detail ")

	require.NoError(t, err)
	assert.Equal(t, "New", issue.Title)
	assert.Equal(t, "More detail", issue.Description)
	assert.Equal(t, int64(5), issue.Version)
}
