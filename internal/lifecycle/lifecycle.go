// Package lifecycle описывает допустимые переходы между статусами обращения.
// Обе точки входа (проверка обращения и смена статуса) используют одну таблицу.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/shenikar/civic_reporting_system/internal/models"
)

// ErrInvalidTransition - переход запрещен таблицей или обращение еще не проверено
var ErrInvalidTransition = errors.New("invalid status transition")

// transitions - текущий статус -> допустимые целевые статусы
var transitions = map[models.IssueStatus][]models.IssueStatus{
	models.StatusPendingVerification: {models.StatusVerified, models.StatusRejected},
	models.StatusVerified:            {models.StatusInProgress},
	models.StatusInProgress:          {models.StatusResolved},
	models.StatusResolved:            {},
	models.StatusRejected:            {},
}

// Valid сообщает, является ли значение одним из пяти статусов
func Valid(status models.IssueStatus) bool {
	_, ok := transitions[status]
	return ok
}

// IsTerminal - из resolved и rejected переходов нет
func IsTerminal(status models.IssueStatus) bool {
	return status == models.StatusResolved || status == models.StatusRejected
}

// IsVerification - целевой статус относится к решению о проверке
func IsVerification(target models.IssueStatus) bool {
	return target == models.StatusVerified || target == models.StatusRejected
}

// AllowedTargets возвращает копию строки таблицы для статуса
func AllowedTargets(current models.IssueStatus) []models.IssueStatus {
	row := transitions[current]
	out := make([]models.IssueStatus, len(row))
	copy(out, row)
	return out
}

// IsTransitionLegal проверяет переход только по таблице
func IsTransitionLegal(current, target models.IssueStatus) bool {
	for _, allowed := range transitions[current] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Check проверяет переход с учетом признака проверки обращения.
// Непроверенное обращение может перейти только в verified или rejected.
func Check(current models.IssueStatus, isVerified bool, target models.IssueStatus) error {
	if !IsTransitionLegal(current, target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
	}
	if !isVerified && !IsVerification(target) {
		return fmt.Errorf("%w: issue is not verified", ErrInvalidTransition)
	}
	return nil
}
