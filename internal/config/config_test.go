package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/kilowulf/livdoc/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBHost)
	assert.Equal(t, 5432, cfg.DBPort)
	assert.Equal(t, 4, cfg.RetrievalTopK)
	assert.Equal(t, 6, cfg.HistoryWindow)
	assert.True(t, cfg.EnableAPI)
	assert.True(t, cfg.EnableIngestWorker)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("RETRIEVAL_TOP_K", "8")
	t.Setenv("ENABLE_INGEST_WORKER", "false")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.DBHost)
	assert.Equal(t, 8, cfg.RetrievalTopK)
	assert.False(t, cfg.EnableIngestWorker)
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := config.Load()
	assert.ErrorIs(t, err, config.ErrMissingRequired)
}

func TestValidate(t *testing.T) {
	cfg := &config.Config{DBHost: "h", DBUser: "u", DBName: "n"}
	assert.ErrorIs(t, cfg.Validate(), config.ErrMissingRequired)

	cfg.JWTSecret = "s"
	assert.NoError(t, cfg.Validate())
}
