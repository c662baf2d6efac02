package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFromDir(t *testing.T, dir string) *Config {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromDir(t, t.TempDir())

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "text-embedding-3-small", cfg.OpenAI.EmbeddingModel)
	assert.Equal(t, 1536, cfg.OpenAI.Dimension)
	assert.Equal(t, 0.3, cfg.Search.MatchThreshold)
	assert.Equal(t, 5, cfg.Search.MatchCount)
	assert.Equal(t, 3, cfg.Search.MaxAttempts)
	assert.Equal(t, 0.4, cfg.Search.MinSimilarity)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, 168, cfg.OpenAI.CacheTTLHours)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 9090
search:
  match_threshold: 0.5
  max_attempts: 2
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg := loadFromDir(t, dir)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 0.5, cfg.Search.MatchThreshold)
	assert.Equal(t, 2, cfg.Search.MaxAttempts)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, 5, cfg.Search.MatchCount)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ARKIB_SERVER_PORT", "7070")
	t.Setenv("ARKIB_ANTHROPIC_KEY", "sk-test")
	t.Setenv("ARKIB_SEARCH_MIN_SIMILARITY", "0.55")

	cfg := loadFromDir(t, t.TempDir())
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
	assert.Equal(t, 0.55, cfg.Search.MinSimilarity)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "json"}))
	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "console"}))
	assert.Error(t, InitLogger(LogConfig{Level: "nope", Format: "json"}))
}
