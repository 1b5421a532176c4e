package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/civic_reporting_system/internal/models"
	"github.com/shenikar/civic_reporting_system/internal/service"
)

const pgUniqueViolation = "23505"

const issueColumns = `
	i.id,
	i.user_id,
	i.title,
	i.description,
	i.priority,
	i.image_url,
	i.latitude,
	i.longitude,
	i.status,
	i.is_verified,
	i.verification_notes,
	i.ai_analysis,
	i.version,
	i.created_at,
	i.updated_at,
	u.id,
	u.full_name,
	u.email,
	u.profile_pic,
	u.push_token,
	u.status_changes
`

type IssueRepository struct {
	db *pgxpool.Pool
}

func NewIssueRepository(db *pgxpool.Pool) service.IssueRepository {
	return &IssueRepository{db: db}
}

// Create создает новую запись об обращении в бд
func (r *IssueRepository) Create(ctx context.Context, issue *models.Issue) error {
	query := `
		INSERT INTO issues (id, user_id, title, description, priority, image_url, latitude, longitude, status, is_verified, ai_analysis)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING version, created_at, updated_at;
	`
	err := r.db.QueryRow(ctx, query,
		issue.ID,
		issue.UserID,
		issue.Title,
		issue.Description,
		issue.Priority,
		issue.ImageURL,
		issue.Location.Latitude,
		issue.Location.Longitude,
		issue.Status,
		issue.IsVerified,
		issue.AIAnalysis,
	).Scan(&issue.Version, &issue.CreatedAt, &issue.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("issue %s already exists: %w", issue.ID, service.ErrConflict)
		}
		return fmt.Errorf("failed to create issue: %w", err)
	}
	return nil
}

// GetByID возвращает обращение с автором и полной историей
func (r *IssueRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	query := `SELECT ` + issueColumns + `
		FROM issues i
		LEFT JOIN users u ON u.id = i.user_id
		WHERE i.id = $1;
	`
	issue, err := scanIssue(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("issue with id %s: %w", id, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get issue by id: %w", err)
	}

	issue.Updates, err = r.listUpdates(ctx, id)
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// List возвращает сводку обращений без истории, новые первыми
func (r *IssueRepository) List(ctx context.Context, filter models.IssueFilter) ([]*models.Issue, error) {
	query := `SELECT ` + issueColumns + `
		FROM issues i
		LEFT JOIN users u ON u.id = i.user_id
		WHERE ($1::uuid IS NULL OR i.user_id = $1)
		ORDER BY i.created_at DESC;
	`
	rows, err := r.db.Query(ctx, query, filter.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	issues := make([]*models.Issue, 0)
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issue row: %w", err)
		}
		// в списке аватар автора не нужен
		if issue.Reporter != nil {
			issue.Reporter.ProfilePic = ""
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return issues, nil
}

// ApplyTransition меняет статус и пишет запись журнала в одной транзакции.
// Условие WHERE по версии и статусу отсекает конкурентную запись.
func (r *IssueRepository) ApplyTransition(ctx context.Context, t *models.Transition) (*models.Issue, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transition: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var cmdTag pgconn.CommandTag
	if t.Verification != nil {
		cmdTag, err = tx.Exec(ctx, `
			UPDATE issues SET
				status = $1,
				is_verified = $2,
				verification_notes = $3,
				version = version + 1,
				updated_at = NOW()
			WHERE id = $4 AND version = $5 AND status = $6;
		`, t.To, t.Verification.IsVerified, notesPtr(t.Verification.Notes), t.IssueID, t.ExpectedVersion, t.From)
	} else {
		cmdTag, err = tx.Exec(ctx, `
			UPDATE issues SET
				status = $1,
				version = version + 1,
				updated_at = NOW()
			WHERE id = $2 AND version = $3 AND status = $4;
		`, t.To, t.IssueID, t.ExpectedVersion, t.From)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update issue status: %w", err)
	}

	// Ни одной строки: обращения нет либо его успели изменить
	if cmdTag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM issues WHERE id = $1)`, t.IssueID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check issue existence: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("issue with id %s: %w", t.IssueID, service.ErrNotFound)
		}
		return nil, fmt.Errorf("issue %s changed since version %d: %w", t.IssueID, t.ExpectedVersion, service.ErrConflict)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO issue_updates (issue_id, message, status, updated_by, created_at)
		VALUES ($1, $2, $3, $4, $5);
	`, t.IssueID, t.Update.Message, t.Update.Status, t.Update.UpdatedBy, t.Update.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to append issue update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}
	return r.reloadCommitted(ctx, t.IssueID)
}

// UpdateDetails меняет заголовок и описание с проверкой версии
func (r *IssueRepository) UpdateDetails(ctx context.Context, id uuid.UUID, title, description string, expectedVersion int64) (*models.Issue, error) {
	query := `
		UPDATE issues SET
			title = $1,
			description = $2,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $3 AND version = $4;
	`
	cmdTag, err := r.db.Exec(ctx, query, title, description, id, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to update issue: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("issue %s changed since version %d: %w", id, expectedVersion, service.ErrConflict)
	}
	return r.reloadCommitted(ctx, id)
}

// reloadCommitted перечитывает запись после фиксации без учета отмены запроса
func (r *IssueRepository) reloadCommitted(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	issue, err := r.GetByID(context.WithoutCancel(ctx), id)
	if err != nil {
		return nil, fmt.Errorf("issue %s: %v: %w", id, err, service.ErrNotReloaded)
	}
	return issue, nil
}

func (r *IssueRepository) listUpdates(ctx context.Context, issueID uuid.UUID) ([]models.Update, error) {
	query := `
		SELECT
			iu.message,
			iu.status,
			iu.updated_by,
			COALESCE(a.name, ''),
			iu.created_at
		FROM issue_updates iu
		LEFT JOIN admins a ON a.id = iu.updated_by
		WHERE iu.issue_id = $1
		ORDER BY iu.id ASC;
	`
	rows, err := r.db.Query(ctx, query, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list issue updates: %w", err)
	}
	defer rows.Close()

	updates := make([]models.Update, 0)
	for rows.Next() {
		var u models.Update
		if err := rows.Scan(&u.Message, &u.Status, &u.UpdatedBy, &u.UpdatedByName, &u.Date); err != nil {
			return nil, fmt.Errorf("failed to scan issue update row: %w", err)
		}
		updates = append(updates, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error updates iteration: %w", err)
	}
	return updates, nil
}

func scanIssue(row pgx.Row) (*models.Issue, error) {
	issue := &models.Issue{}
	var (
		reporterID    *uuid.UUID
		fullName      *string
		email         *string
		profilePic    *string
		pushToken     *string
		statusChanges *bool
	)
	err := row.Scan(
		&issue.ID,
		&issue.UserID,
		&issue.Title,
		&issue.Description,
		&issue.Priority,
		&issue.ImageURL,
		&issue.Location.Latitude,
		&issue.Location.Longitude,
		&issue.Status,
		&issue.IsVerified,
		&issue.VerificationNotes,
		&issue.AIAnalysis,
		&issue.Version,
		&issue.CreatedAt,
		&issue.UpdatedAt,
		&reporterID,
		&fullName,
		&email,
		&profilePic,
		&pushToken,
		&statusChanges,
	)
	if err != nil {
		return nil, err
	}
	if reporterID != nil {
		issue.Reporter = &models.Reporter{
			ID:            *reporterID,
			FullName:      deref(fullName),
			Email:         deref(email),
			ProfilePic:    deref(profilePic),
			PushToken:     deref(pushToken),
			StatusChanges: statusChanges != nil && *statusChanges,
		}
	}
	return issue, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
