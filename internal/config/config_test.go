package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("IDENTITY_SECRET", "secret")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, 65*time.Second, cfg.Game.QuestionTime)
	assert.Equal(t, 10, cfg.Game.QuestionCount)
	assert.Equal(t, 1000, cfg.Game.MaxPoints)
	assert.Equal(t, 60*time.Second, cfg.Matchmaking.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.FetchGuard.ReleaseGrace)
	assert.Equal(t, "opentdb", cfg.Questions.Provider)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 2*time.Minute, cfg.Game.OpponentGrace)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("IDENTITY_SECRET", "secret")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OPPONENT_GRACE", "30s")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Game.OpponentGrace)
}

func TestLoadRequiresIdentitySecret(t *testing.T) {
	t.Setenv("IDENTITY_SECRET", "")
	_, err := Load(context.Background())
	assert.Error(t, err)
}

func TestValidatePostgresBackend(t *testing.T) {
	t.Setenv("IDENTITY_SECRET", "secret")
	t.Setenv("BACKEND", "postgres")

	_, err := Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PG_USER")
	assert.Contains(t, err.Error(), "REDIS_ADDR")

	t.Setenv("PG_USER", "trivia")
	t.Setenv("PG_DATABASE", "trivia")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "postgres://trivia:@localhost:5432/trivia?sslmode=disable", cfg.Postgres.DSN())
}

func TestValidateUnknownBackend(t *testing.T) {
	t.Setenv("IDENTITY_SECRET", "secret")
	t.Setenv("BACKEND", "sqlite")
	_, err := Load(context.Background())
	assert.ErrorContains(t, err, "sqlite")
}
