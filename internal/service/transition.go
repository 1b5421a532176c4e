package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shenikar/civic_reporting_system/internal/lifecycle"
	"github.com/shenikar/civic_reporting_system/internal/models"
	"github.com/sirupsen/logrus"
)

// UpdateStatus переводит проверенное обращение по цепочке verified -> in_progress -> resolved.
// Заметка обязательна.
func (s *issueService) UpdateStatus(ctx context.Context, id uuid.UUID, target models.IssueStatus, notes string, adminID uuid.UUID) (*models.Issue, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "issue",
		"method":   "UpdateStatus",
		"issue_id": id,
		"target":   target,
		"admin_id": adminID,
	})
	log.Info("Attempting to update issue status")

	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, fmt.Errorf("%w: notes are required", ErrValidation)
	}
	if !lifecycle.Valid(target) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, target)
	}

	return s.transition(ctx, log, id, target, notes, adminID)
}

// VerifyIssue фиксирует решение администратора: verified или rejected.
// Заметка необязательна, но сохраняется в журнале.
func (s *issueService) VerifyIssue(ctx context.Context, id uuid.UUID, isVerified bool, notes string, adminID uuid.UUID) (*models.Issue, error) {
	target := models.StatusRejected
	if isVerified {
		target = models.StatusVerified
	}

	log := s.logger.WithFields(logrus.Fields{
		"service":     "issue",
		"method":      "VerifyIssue",
		"issue_id":    id,
		"is_verified": isVerified,
		"admin_id":    adminID,
	})
	log.Info("Attempting to verify issue")

	return s.transition(ctx, log, id, target, strings.TrimSpace(notes), adminID)
}

// transition - общий путь для обеих точек входа: чтение, проверка по таблице,
// условная запись по версии, затем побочные эффекты.
func (s *issueService) transition(ctx context.Context, log *logrus.Entry, id uuid.UUID, target models.IssueStatus, notes string, adminID uuid.UUID) (*models.Issue, error) {
	if adminID == uuid.Nil {
		return nil, fmt.Errorf("%w: acting admin is required", ErrValidation)
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.WithError(err).Warn("Attempted to transition a non-existent issue")
		} else {
			log.WithError(err).Error("Failed to load issue for transition")
		}
		return nil, fmt.Errorf("service: could not load issue %s: %w", id, err)
	}

	if err := lifecycle.Check(current.Status, current.IsVerified, target); err != nil {
		log.WithError(err).WithField("current", current.Status).Warn("Rejected illegal transition")
		return nil, fmt.Errorf("service: %w", err)
	}

	t := &models.Transition{
		IssueID:         id,
		ExpectedVersion: current.Version,
		From:            current.Status,
		To:              target,
		Update: models.Update{
			Message:   notes,
			Status:    target,
			UpdatedBy: adminID,
			Date:      s.now().UTC(),
		},
	}
	if lifecycle.IsVerification(target) {
		t.Verification = &models.Verification{
			IsVerified: target == models.StatusVerified,
			Notes:      notes,
		}
	}

	updated, err := s.commit(ctx, log, current, t)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, log, id, updated.Version)
	s.notify(ctx, log, updated)

	log.WithField("status", updated.Status).Info("Issue status updated successfully")
	return updated, nil
}

// commit записывает переход и сразу рассылает событие. Следующая запись того же
// обращения в этом процессе ждет рассылки, поэтому события идут в порядке фиксации.
func (s *issueService) commit(ctx context.Context, log *logrus.Entry, current *models.Issue, t *models.Transition) (*models.Issue, error) {
	mu := s.locks.of(t.IssueID)
	mu.Lock()
	defer mu.Unlock()

	updated, err := s.repo.ApplyTransition(ctx, t)
	switch {
	case errors.Is(err, ErrNotReloaded):
		// переход уже в хранилище, поэтому побочные эффекты обязательны
		log.WithError(err).Warn("Transition committed but not reloaded, using local copy")
		updated = t.ApplyTo(current)
	case errors.Is(err, ErrConflict):
		log.WithError(err).Warn("Issue changed concurrently, transition discarded")
		return nil, fmt.Errorf("service: could not apply transition: %w", err)
	case err != nil:
		log.WithError(err).Error("Failed to persist transition")
		return nil, fmt.Errorf("service: could not apply transition: %w", err)
	}

	s.publish(ctx, log, models.NewTransitionEvent(updated))
	return updated, nil
}
