package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/civic_reporting_system/internal/models"
	"github.com/shenikar/civic_reporting_system/internal/service"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) service.UserRepository {
	return &UserRepository{db: db}
}

// CreateUser создает пользователя, дубликат email дает ErrConflict
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, full_name, email, password_hash, profile_pic, push_token,
			issue_updates, status_changes, admin_messages, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at;
	`
	prefs := user.NotificationPreferences
	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.FullName,
		user.Email,
		user.PasswordHash,
		user.ProfilePic,
		user.PushToken,
		prefs.IssueUpdates,
		prefs.StatusChanges,
		prefs.AdminMessages,
		user.IsActive,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user with email %s already exists: %w", user.Email, service.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, full_name, email, password_hash, profile_pic, push_token,
			issue_updates, status_changes, admin_messages, is_active, created_at, updated_at
		FROM users
		WHERE id = $1;
	`
	return r.scanUser(r.db.QueryRow(ctx, query, id), id)
}

// ListWithReportCounts считает обращения каждого пользователя одним запросом
func (r *UserRepository) ListWithReportCounts(ctx context.Context) ([]*models.UserSummary, error) {
	query := `
		SELECT u.id, u.full_name, u.email, u.profile_pic, u.is_active, u.created_at, COUNT(i.id)
		FROM users u
		LEFT JOIN issues i ON i.user_id = u.id
		GROUP BY u.id
		ORDER BY u.created_at DESC;
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.UserSummary, 0)
	for rows.Next() {
		s := &models.UserSummary{}
		if err := rows.Scan(&s.ID, &s.FullName, &s.Email, &s.ProfilePic, &s.IsActive, &s.CreatedAt, &s.ReportCount); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return users, nil
}

func (r *UserRepository) CountIssuesByStatus(ctx context.Context, userID uuid.UUID) (map[models.IssueStatus]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM issues WHERE user_id = $1 GROUP BY status;`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count issues by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.IssueStatus]int)
	for rows.Next() {
		var (
			status models.IssueStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error count iteration: %w", err)
	}
	return counts, nil
}

// UpdateProfile меняет только переданные поля
func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, fullName, profilePic *string) (*models.User, error) {
	query := `
		UPDATE users SET
			full_name = COALESCE($1, full_name),
			profile_pic = COALESCE($2, profile_pic),
			updated_at = NOW()
		WHERE id = $3
		RETURNING id, full_name, email, password_hash, profile_pic, push_token,
			issue_updates, status_changes, admin_messages, is_active, created_at, updated_at;
	`
	return r.scanUser(r.db.QueryRow(ctx, query, fullName, profilePic, id), id)
}

func (r *UserRepository) UpdatePushToken(ctx context.Context, id uuid.UUID, token *string) error {
	cmdTag, err := r.db.Exec(ctx, `UPDATE users SET push_token = $1, updated_at = NOW() WHERE id = $2;`, token, id)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("user with id %s: %w", id, service.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) CreateAdmin(ctx context.Context, admin *models.Admin) error {
	query := `
		INSERT INTO admins (id, name, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at;
	`
	err := r.db.QueryRow(ctx, query, admin.ID, admin.Name, admin.Email, admin.PasswordHash).Scan(&admin.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("admin with email %s already exists: %w", admin.Email, service.ErrConflict)
		}
		return fmt.Errorf("failed to create admin: %w", err)
	}
	return nil
}

func (r *UserRepository) scanUser(row pgx.Row, id uuid.UUID) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID,
		&u.FullName,
		&u.Email,
		&u.PasswordHash,
		&u.ProfilePic,
		&u.PushToken,
		&u.NotificationPreferences.IssueUpdates,
		&u.NotificationPreferences.StatusChanges,
		&u.NotificationPreferences.AdminMessages,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user with id %s: %w", id, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}
