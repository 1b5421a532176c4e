package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTokenIssue_SignsClaims(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "cli-secret")
	id := uuid.New()

	out, err := execute(t, "token", "issue", "--id", id.String(), "--role", "admin")
	require.NoError(t, err)

	token, err := jwt.Parse(strings.TrimSpace(out), func(*jwt.Token) (interface{}, error) {
		return []byte("cli-secret"), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, id.String(), claims["id"])
	assert.Equal(t, "admin", claims["role"])
}

func TestTokenIssue_RejectsUnknownRole(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "cli-secret")

	_, err := execute(t, "token", "issue", "--id", uuid.NewString(), "--role", "mayor")

	require.Error(t, err)
}

func TestAdminCreate_RefusesMemoryStore(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "cli-secret")

	_, err := execute(t, "admin", "create", "--name", "Ops", "--email", "ops@city.gov", "--password", "secret1")

	require.ErrorContains(t, err, "in-memory store")
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "cli-secret")

	_, err := execute(t, "migrate", "up")

	require.ErrorContains(t, err, "postgres")
}
