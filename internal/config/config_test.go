package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(old) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:8081"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 12*time.Hour, cfg.Server.CORSMaxAge)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, "gemini-1.5-flash", cfg.AI.GeminiModel)
	assert.Equal(t, "images", cfg.Images.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Categories)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("FORKFUL_SERVER_ADDR", ":9090")
	t.Setenv("FORKFUL_DATABASE_URL", "postgres://localhost/forkful_test")
	t.Setenv("FORKFUL_AI_PROVIDER", "local")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "postgres://localhost/forkful_test", cfg.Database.URL)
	assert.Equal(t, "local", cfg.AI.Provider)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  addr: ":7070"
log:
  format: json
categories:
  - category: Dairy
    pattern: milk
  - category: Other
    pattern: everything
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
	require.Len(t, cfg.Categories, 2)
	assert.Equal(t, "Dairy", cfg.Categories[0].Category)
	assert.Equal(t, "milk", cfg.Categories[0].Pattern)

	// Untouched keys keep their defaults.
	assert.Equal(t, "images", cfg.Images.Dir)
}

func TestLoad_BadConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [not: valid"), 0644))
	chdir(t, dir)

	_, err := Load()
	assert.Error(t, err)
}
