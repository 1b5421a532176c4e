package lifecycle

import (
	"testing"

	"github.com/shenikar/civic_reporting_system/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []models.IssueStatus{
	models.StatusPendingVerification,
	models.StatusVerified,
	models.StatusRejected,
	models.StatusInProgress,
	models.StatusResolved,
}

func TestIsTransitionLegal_Table(t *testing.T) {
	legal := map[[2]models.IssueStatus]bool{
		{models.StatusPendingVerification, models.StatusVerified}: true,
		{models.StatusPendingVerification, models.StatusRejected}: true,
		{models.StatusVerified, models.StatusInProgress}:          true,
		{models.StatusInProgress, models.StatusResolved}:          true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			got := IsTransitionLegal(from, to)
			assert.Equal(t, legal[[2]models.IssueStatus{from, to}], got, "%s -> %s", from, to)
		}
	}
}

func TestIsTransitionLegal_UnknownStatus(t *testing.T) {
	assert.False(t, IsTransitionLegal("closed", models.StatusVerified))
	assert.False(t, IsTransitionLegal(models.StatusVerified, "closed"))
	assert.False(t, Valid("closed"))
	for _, s := range allStatuses {
		assert.True(t, Valid(s))
	}
}

func TestTerminalStatesAllowNothing(t *testing.T) {
	for _, terminal := range []models.IssueStatus{models.StatusResolved, models.StatusRejected} {
		assert.True(t, IsTerminal(terminal))
		assert.Empty(t, AllowedTargets(terminal))
		for _, to := range allStatuses {
			assert.ErrorIs(t, Check(terminal, true, to), ErrInvalidTransition)
			assert.ErrorIs(t, Check(terminal, false, to), ErrInvalidTransition)
		}
	}
}

func TestCheck_VerificationGate(t *testing.T) {
	// статус verified без флага isVerified не пропускает дальше
	err := Check(models.StatusVerified, false, models.StatusInProgress)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorContains(t, err, "not verified")

	assert.ErrorIs(t, Check(models.StatusInProgress, false, models.StatusResolved), ErrInvalidTransition)
	assert.NoError(t, Check(models.StatusPendingVerification, false, models.StatusVerified))
	assert.NoError(t, Check(models.StatusPendingVerification, false, models.StatusRejected))
	assert.NoError(t, Check(models.StatusVerified, true, models.StatusInProgress))
	assert.NoError(t, Check(models.StatusInProgress, true, models.StatusResolved))
}

func TestCheck_VerifiedCannotJumpToResolved(t *testing.T) {
	err := Check(models.StatusVerified, true, models.StatusResolved)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorContains(t, err, "verified -> resolved")
}

func TestAllowedTargets_ReturnsCopy(t *testing.T) {
	row := AllowedTargets(models.StatusPendingVerification)
	row[0] = models.StatusResolved
	assert.True(t, IsTransitionLegal(models.StatusPendingVerification, models.StatusVerified))
}
