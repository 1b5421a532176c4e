package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shenikar/civic_reporting_system/internal/models"
	"github.com/shenikar/civic_reporting_system/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"
)

func newTestUserService(t *testing.T) (UserService, *mocks.MockUserRepository) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	return NewUserService(repo, nil, logger), repo
}

func newTestUserServiceWithCache(t *testing.T) (UserService, *mocks.MockUserRepository, *mocks.MockIssueCache) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	cache := mocks.NewMockIssueCache(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	return NewUserService(repo, cache, logger), repo, cache
}

func TestRegisterUser_Success(t *testing.T) {
	svc, repo := newTestUserService(t)

	repo.EXPECT().
		CreateUser(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u *models.User) error {
			assert.Equal(t, "jane@example.com", u.Email)
			assert.True(t, u.IsActive)
			assert.True(t, u.NotificationPreferences.StatusChanges)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret1")))
			return nil
		}).Times(1)

	user, err := svc.RegisterUser(context.Background(), "Jane Doe", " Jane@Example.com ", "secret1")

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
}

func TestRegisterUser_ShortPassword(t *testing.T) {
	svc, repo := newTestUserService(t)

	repo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.RegisterUser(context.Background(), "Jane", "jane@example.com", "123")

	require.ErrorIs(t, err, ErrValidation)
}

func TestRegisterUser_DuplicateEmail(t *testing.T) {
	svc, repo := newTestUserService(t)

	repo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Return(fmt.Errorf("email: %w", ErrConflict)).Times(1)

	_, err := svc.RegisterUser(context.Background(), "Jane", "jane@example.com", "secret1")

	require.ErrorIs(t, err, ErrConflict)
}

func TestGetStats(t *testing.T) {
	svc, repo := newTestUserService(t)
	ctx := context.Background()
	id := uuid.New()

	repo.EXPECT().GetByID(ctx, id).Return(&models.User{ID: id, FullName: "Jane", Email: "j@e.com"}, nil).Times(1)
	repo.EXPECT().CountIssuesByStatus(ctx, id).Return(map[models.IssueStatus]int{
		models.StatusPendingVerification: 2,
		models.StatusInProgress:          1,
		models.StatusResolved:            3,
	}, nil).Times(1)

	stats, err := svc.GetStats(ctx, id)

	require.NoError(t, err)
	assert.Equal(t, &models.UserStats{Total: 6, Resolved: 3, Pending: 2, ProfileCompletion: 67}, stats)
}

func TestGetStats_CountError(t *testing.T) {
	svc, repo := newTestUserService(t)
	id := uuid.New()

	repo.EXPECT().GetByID(gomock.Any(), id).Return(&models.User{ID: id}, nil).Times(1)
	repo.EXPECT().CountIssuesByStatus(gomock.Any(), id).Return(nil, errors.New("db down")).Times(1)

	_, err := svc.GetStats(context.Background(), id)

	require.Error(t, err)
	assert.ErrorContains(t, err, "could not count issues")
}

func TestUpdateProfile_BlankName(t *testing.T) {
	svc, repo := newTestUserService(t)
	blank := "  "

	repo.EXPECT().UpdateProfile(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.UpdateProfile(context.Background(), uuid.New(), &blank, nil)

	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdatePushToken_EmptyClearsToken(t *testing.T) {
	svc, repo := newTestUserService(t)
	id := uuid.New()

	repo.EXPECT().UpdatePushToken(gomock.Any(), id, nil).Return(nil).Times(1)

	require.NoError(t, svc.UpdatePushToken(context.Background(), id, "   "))
}

func TestUpdatePushToken_Set(t *testing.T) {
	svc, repo := newTestUserService(t)
	id := uuid.New()

	repo.EXPECT().
		UpdatePushToken(gomock.Any(), id, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, token *string) error {
			require.NotNil(t, token)
			assert.Equal(t, "ExponentPushToken[x]", *token)
			return nil
		}).Times(1)

	require.NoError(t, svc.UpdatePushToken(context.Background(), id, "ExponentPushToken[x]"))
}

func TestUpdateProfile_InvalidatesReporterIssues(t *testing.T) {
	svc, repo, cache := newTestUserServiceWithCache(t)
	id := uuid.New()
	name := "Jane Smith"

	repo.EXPECT().UpdateProfile(gomock.Any(), id, &name, nil).Return(&models.User{ID: id, FullName: name}, nil).Times(1)
	cache.EXPECT().InvalidateReporter(gomock.Any(), id).Return(nil).Times(1)

	user, err := svc.UpdateProfile(context.Background(), id, &name, nil)

	require.NoError(t, err)
	assert.Equal(t, name, user.FullName)
}

func TestUpdatePushToken_CacheFailureIsIgnored(t *testing.T) {
	svc, repo, cache := newTestUserServiceWithCache(t)
	id := uuid.New()

	repo.EXPECT().UpdatePushToken(gomock.Any(), id, gomock.Any()).Return(nil).Times(1)
	cache.EXPECT().InvalidateReporter(gomock.Any(), id).Return(errors.New("redis down")).Times(1)

	require.NoError(t, svc.UpdatePushToken(context.Background(), id, "ExponentPushToken[y]"))
}

func TestUpdatePushToken_RepositoryErrorSkipsCache(t *testing.T) {
	svc, repo, cache := newTestUserServiceWithCache(t)
	id := uuid.New()

	repo.EXPECT().UpdatePushToken(gomock.Any(), id, gomock.Any()).Return(fmt.Errorf("user: %w", ErrNotFound)).Times(1)
	cache.EXPECT().InvalidateReporter(gomock.Any(), gomock.Any()).Times(0)

	err := svc.UpdatePushToken(context.Background(), id, "ExponentPushToken[y]")

	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateAdmin(t *testing.T) {
	svc, repo := newTestUserService(t)

	repo.EXPECT().CreateAdmin(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	admin, err := svc.CreateAdmin(context.Background(), "Root", "ROOT@city.gov", "changeme")

	require.NoError(t, err)
	assert.Equal(t, "root@city.gov", admin.Email)
	assert.NotEmpty(t, admin.PasswordHash)
}
