package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	// run in an empty dir so no project config file is picked up
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, 20, cfg.Queue.PageSize)
	assert.Equal(t, 2*time.Second, cfg.Analysis.PollInterval)
	assert.Equal(t, 15*time.Minute, cfg.Analysis.PollTimeout)
	assert.Equal(t, 30, cfg.Analysis.LookbackDays)
	assert.Equal(t, 3, cfg.Analysis.MinPatternSize)
	assert.Equal(t, 0.6, cfg.Analysis.SimilarityThreshold)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("REVIEWQ_SERVER_ADDR", ":9090")
	t.Setenv("REVIEWQ_DATABASE_URL", "postgres://localhost/reviewq")
	t.Setenv("REVIEWQ_ANALYSIS_POLL_INTERVAL", "500ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "postgres://localhost/reviewq", cfg.Database.URL)
	assert.Equal(t, 500*time.Millisecond, cfg.Analysis.PollInterval)
}

func TestLoadProjectFileOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())

	writeFile(t, dir+"/.reviewq.yaml", "queue:\n  page_size: 50\n")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Queue.PageSize)
	// untouched keys keep their defaults
	assert.Equal(t, ":8080", cfg.Server.Addr)
}
