package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/civic_reporting_system/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, *IssueCache) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewIssueCache(client, time.Minute).(*IssueCache)
}

func TestIssueCache_RoundTripKeepsReporterDelivery(t *testing.T) {
	mr, cache := newTestCache(t)
	ctx := context.Background()
	issue := &models.Issue{
		ID:      uuid.New(),
		UserID:  uuid.New(),
		Version: 2,
		Title:   "Pothole",
		Status:  models.StatusVerified,
		Reporter: &models.Reporter{
			FullName:      "Jane",
			PushToken:     "ExponentPushToken[x]",
			StatusChanges: true,
		},
		Updates: []models.Update{{Message: "ok", Status: models.StatusVerified}},
	}

	require.NoError(t, cache.SetIssue(ctx, issue))
	assert.Equal(t, time.Minute, mr.TTL("issue:"+issue.ID.String()))

	got, err := cache.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Pothole", got.Title)
	assert.Equal(t, "ExponentPushToken[x]", got.Reporter.PushToken)
	assert.True(t, got.Reporter.StatusChanges)
	assert.Len(t, got.Updates, 1)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, time.Minute, mr.TTL("issue_reporter:"+issue.UserID.String()))
}

func TestIssueCache_MissAndInvalidate(t *testing.T) {
	mr, cache := newTestCache(t)
	ctx := context.Background()
	issue := &models.Issue{ID: uuid.New(), Version: 1}
	key := "issue:" + issue.ID.String()

	got, err := cache.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.SetIssue(ctx, issue))
	require.NoError(t, cache.InvalidateIssue(ctx, issue.ID, 2))

	got, err = cache.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, "2", mr.HGet(key, fieldVersion))
	assert.Equal(t, time.Minute, mr.TTL(key))
}

func TestIssueCache_RefusesOlderVersion(t *testing.T) {
	_, cache := newTestCache(t)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, cache.SetIssue(ctx, &models.Issue{ID: id, Status: models.StatusInProgress, Version: 3}))
	require.NoError(t, cache.SetIssue(ctx, &models.Issue{ID: id, Status: models.StatusVerified, Version: 2}))

	got, err := cache.GetIssue(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.Equal(t, int64(3), got.Version)
}

func TestIssueCache_InvalidatedVersionBlocksStaleWrite(t *testing.T) {
	_, cache := newTestCache(t)
	ctx := context.Background()
	id := uuid.New()

	// Переход записал версию 3, пока читатель держал версию 2
	require.NoError(t, cache.InvalidateIssue(ctx, id, 3))
	require.NoError(t, cache.SetIssue(ctx, &models.Issue{ID: id, Status: models.StatusVerified, Version: 2}))

	got, err := cache.GetIssue(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Свежая версия проходит
	require.NoError(t, cache.SetIssue(ctx, &models.Issue{ID: id, Status: models.StatusInProgress, Version: 3}))
	got, err = cache.GetIssue(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StatusInProgress, got.Status)
}

func TestIssueCache_InvalidateKeepsHigherFloor(t *testing.T) {
	mr, cache := newTestCache(t)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, cache.SetIssue(ctx, &models.Issue{ID: id, Version: 5}))
	require.NoError(t, cache.InvalidateIssue(ctx, id, 4))

	assert.Equal(t, "5", mr.HGet("issue:"+id.String(), fieldVersion))
}

func TestIssueCache_InvalidateReporter(t *testing.T) {
	mr, cache := newTestCache(t)
	ctx := context.Background()
	userID, otherID := uuid.New(), uuid.New()
	first := &models.Issue{ID: uuid.New(), UserID: userID, Version: 1}
	second := &models.Issue{ID: uuid.New(), UserID: userID, Version: 4}
	foreign := &models.Issue{ID: uuid.New(), UserID: otherID, Version: 1}
	for _, issue := range []*models.Issue{first, second, foreign} {
		require.NoError(t, cache.SetIssue(ctx, issue))
	}

	require.NoError(t, cache.InvalidateReporter(ctx, userID))

	for _, id := range []uuid.UUID{first.ID, second.ID} {
		got, err := cache.GetIssue(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	got, err := cache.GetIssue(ctx, foreign.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.False(t, mr.Exists("issue_reporter:"+userID.String()))
	// Версия остается, устаревшая запись по-прежнему отклоняется
	assert.Equal(t, "4", mr.HGet("issue:"+second.ID.String(), fieldVersion))
}

func TestIssueCache_Expired(t *testing.T) {
	mr, cache := newTestCache(t)
	ctx := context.Background()
	issue := &models.Issue{ID: uuid.New(), Version: 1}

	require.NoError(t, cache.SetIssue(ctx, issue))
	mr.FastForward(2 * time.Minute)

	got, err := cache.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
