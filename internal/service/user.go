package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shenikar/civic_reporting_system/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository определяет контракт хранилища пользователей и администраторов
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// ListWithReportCounts вычисляет число обращений на каждый вызов
	ListWithReportCounts(ctx context.Context) ([]*models.UserSummary, error)
	CountIssuesByStatus(ctx context.Context, userID uuid.UUID) (map[models.IssueStatus]int, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, fullName, profilePic *string) (*models.User, error)
	UpdatePushToken(ctx context.Context, id uuid.UUID, token *string) error
	CreateAdmin(ctx context.Context, admin *models.Admin) error
}

// UserService определяет контракт работы с пользователями
type UserService interface {
	RegisterUser(ctx context.Context, fullName, email, password string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.UserSummary, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, fullName, profilePic *string) (*models.User, error)
	GetStats(ctx context.Context, id uuid.UUID) (*models.UserStats, error)
	UpdatePushToken(ctx context.Context, id uuid.UUID, token string) error
	CreateAdmin(ctx context.Context, name, email, password string) (*models.Admin, error)
}

const minPasswordLength = 6

type userService struct {
	repo   UserRepository
	cache  IssueCache
	logger *logrus.Logger
}

// NewUserService собирает сервис пользователей. cache может быть nil.
func NewUserService(repo UserRepository, cache IssueCache, logger *logrus.Logger) UserService {
	return &userService{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// RegisterUser заводит пользователя с хешированным паролем
func (s *userService) RegisterUser(ctx context.Context, fullName, email, password string) (*models.User, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "user",
		"method":  "RegisterUser",
		"email":   email,
	})
	log.Info("Attempting to register user")

	fullName, email = strings.TrimSpace(fullName), normalizeEmail(email)
	if fullName == "" || email == "" {
		return nil, fmt.Errorf("%w: full name and email are required", ErrValidation)
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:                      uuid.New(),
		FullName:                fullName,
		Email:                   email,
		PasswordHash:            hash,
		NotificationPreferences: models.DefaultNotificationPreferences(),
		IsActive:                true,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		log.WithError(err).Error("Failed to create user in repository")
		return nil, fmt.Errorf("service: could not register user: %w", err)
	}

	log.WithField("user_id", user.ID).Info("User registered successfully")
	return user, nil
}

// ListUsers возвращает пользователей с числом их обращений
func (s *userService) ListUsers(ctx context.Context) ([]*models.UserSummary, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "user",
		"method":  "ListUsers",
	})
	log.Info("Listing users with report counts")

	users, err := s.repo.ListWithReportCounts(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list users from repository")
		return nil, fmt.Errorf("service: could not list users: %w", err)
	}

	log.WithField("count", len(users)).Info("Users listed successfully")
	return users, nil
}

func (s *userService) GetProfile(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", id).Warn("Failed to get user profile")
		return nil, fmt.Errorf("service: could not get user: %w", err)
	}
	return user, nil
}

// UpdateProfile меняет только переданные поля
func (s *userService) UpdateProfile(ctx context.Context, id uuid.UUID, fullName, profilePic *string) (*models.User, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "user",
		"method":  "UpdateProfile",
		"user_id": id,
	})

	if fullName != nil {
		trimmed := strings.TrimSpace(*fullName)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: full name cannot be blank", ErrValidation)
		}
		fullName = &trimmed
	}

	user, err := s.repo.UpdateProfile(ctx, id, fullName, profilePic)
	if err != nil {
		log.WithError(err).Warn("Failed to update profile")
		return nil, fmt.Errorf("service: could not update profile: %w", err)
	}

	s.invalidateReporter(ctx, log, id)
	log.Info("Profile updated successfully")
	return user, nil
}

// GetStats считает обращения пользователя и заполненность профиля
func (s *userService) GetStats(ctx context.Context, id uuid.UUID) (*models.UserStats, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "user",
		"method":  "GetStats",
		"user_id": id,
	})

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to get user for stats")
		return nil, fmt.Errorf("service: could not get user: %w", err)
	}

	counts, err := s.repo.CountIssuesByStatus(ctx, id)
	if err != nil {
		log.WithError(err).Error("Failed to count user issues")
		return nil, fmt.Errorf("service: could not count issues: %w", err)
	}

	stats := &models.UserStats{
		Resolved:          counts[models.StatusResolved],
		Pending:           counts[models.StatusPendingVerification],
		ProfileCompletion: user.ProfileCompletion(),
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

// UpdatePushToken сохраняет токен push-уведомлений; пустой токен отключает уведомления
func (s *userService) UpdatePushToken(ctx context.Context, id uuid.UUID, token string) error {
	log := s.logger.WithFields(logrus.Fields{
		"service": "user",
		"method":  "UpdatePushToken",
		"user_id": id,
	})

	var value *string
	if token = strings.TrimSpace(token); token != "" {
		value = &token
	}
	if err := s.repo.UpdatePushToken(ctx, id, value); err != nil {
		log.WithError(err).Warn("Failed to update push token")
		return fmt.Errorf("service: could not update push token: %w", err)
	}

	s.invalidateReporter(ctx, log, id)
	log.Info("Push token updated successfully")
	return nil
}

// invalidateReporter сбрасывает кэшированные карточки с данными автора
func (s *userService) invalidateReporter(ctx context.Context, log *logrus.Entry, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateReporter(context.WithoutCancel(ctx), id); err != nil {
		log.WithError(err).Warn("Failed to invalidate reporter issues cache")
	}
}

// CreateAdmin заводит администратора. Вызывается из CLI.
func (s *userService) CreateAdmin(ctx context.Context, name, email, password string) (*models.Admin, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "user",
		"method":  "CreateAdmin",
		"email":   email,
	})

	name, email = strings.TrimSpace(name), normalizeEmail(email)
	if name == "" || email == "" {
		return nil, fmt.Errorf("%w: name and email are required", ErrValidation)
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	admin := &models.Admin{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.repo.CreateAdmin(ctx, admin); err != nil {
		log.WithError(err).Error("Failed to create admin in repository")
		return nil, fmt.Errorf("service: could not create admin: %w", err)
	}

	log.WithField("admin_id", admin.ID).Info("Admin created successfully")
	return admin, nil
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("service: could not hash password: %w", err)
	}
	return string(hashed), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
