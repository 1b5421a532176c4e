package main

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readMigrations возвращает up- и down-скрипты каждой версии по порядку
func readMigrations(t *testing.T) (versions []uint, up, down map[uint]string) {
	t.Helper()
	drv, err := source.Open("file://../migrations")
	require.NoError(t, err)
	t.Cleanup(func() { _ = drv.Close() })

	up, down = map[uint]string{}, map[uint]string{}
	read := func(r io.ReadCloser) string {
		defer r.Close()
		raw, err := io.ReadAll(r)
		require.NoError(t, err)
		return string(raw)
	}

	version, err := drv.First()
	for err == nil {
		versions = append(versions, version)

		r, _, upErr := drv.ReadUp(version)
		require.NoError(t, upErr, "version %d has no up migration", version)
		up[version] = read(r)

		r, _, downErr := drv.ReadDown(version)
		require.NoError(t, downErr, "version %d has no down migration", version)
		down[version] = read(r)

		version, err = drv.Next(version)
	}
	require.True(t, errors.Is(err, os.ErrNotExist), "unexpected error: %v", err)
	return versions, up, down
}

func TestMigrations_EveryVersionIsReversible(t *testing.T) {
	versions, up, down := readMigrations(t)

	require.NotEmpty(t, versions)
	for _, v := range versions {
		assert.NotEmpty(t, strings.TrimSpace(up[v]), "empty up migration %d", v)
		assert.NotEmpty(t, strings.TrimSpace(down[v]), "empty down migration %d", v)
	}
}

func TestMigrations_UpdateAuthorIsNotBoundToAdmins(t *testing.T) {
	versions, up, _ := readMigrations(t)

	var dropped bool
	for _, v := range versions {
		if strings.Contains(up[v], "DROP CONSTRAINT IF EXISTS issue_updates_updated_by_fkey") {
			dropped = true
		}
	}
	assert.True(t, dropped, "issue_updates.updated_by must not reference admins after all migrations")
}

func TestMigrations_IssueAIAnalysisColumn(t *testing.T) {
	versions, up, down := readMigrations(t)

	var found uint
	for _, v := range versions {
		if strings.Contains(up[v], "ADD COLUMN IF NOT EXISTS ai_analysis JSONB") {
			found = v
		}
	}
	require.NotZero(t, found)
	assert.Contains(t, down[found], "DROP COLUMN IF EXISTS ai_analysis")
}
