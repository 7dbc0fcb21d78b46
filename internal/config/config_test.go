package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_PopulatesAllSections(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "http://localhost:8088", cfg.Strategos.BaseURL)
	assert.Equal(t, float64(2), cfg.Strategos.RequestsPerSecond)
	assert.Equal(t, 5, cfg.Concurrency.InvestigationBatchSize)
	assert.Equal(t, 2*time.Second, cfg.Concurrency.InvestigationBatchGap)
	assert.Equal(t, 3, cfg.Concurrency.ClassificationWorkersMin)
	assert.Equal(t, 5, cfg.Concurrency.ClassificationWorkersMax)
	assert.True(t, cfg.EventLog.Enabled)
	assert.False(t, cfg.Neo4jMirror.Enabled)
}

func TestLoad_MissingConfigFileFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "nonexistent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8088", cfg.Strategos.BaseURL)
}

func TestLoad_EnvOverridesTakePrecedenceOverDefaults(t *testing.T) {
	os.Setenv("STRATEGOS_BASE_URL", "https://strategos.example.com")
	os.Setenv("STRATEGOS_API_TOKEN", "test-token")
	os.Setenv("INVESTIGATION_BATCH_SIZE", "9")
	defer func() {
		os.Unsetenv("STRATEGOS_BASE_URL")
		os.Unsetenv("STRATEGOS_API_TOKEN")
		os.Unsetenv("INVESTIGATION_BATCH_SIZE")
	}()

	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "nonexistent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://strategos.example.com", cfg.Strategos.BaseURL)
	assert.Equal(t, "test-token", cfg.Strategos.APIToken)
	assert.Equal(t, 9, cfg.Concurrency.InvestigationBatchSize)
}

func TestLoad_ReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "strategos:\n  base_url: https://from-file.example.com\n  requests_per_second: 7\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://from-file.example.com", cfg.Strategos.BaseURL)
	assert.Equal(t, float64(7), cfg.Strategos.RequestsPerSecond)
}

func TestSave_RoundTripsThroughYAML(t *testing.T) {
	cfg := Default()
	cfg.Strategos.BaseURL = "https://saved.example.com"
	cfg.Concurrency.InvestigationBatchSize = 11

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")
	require.NoError(t, cfg.Save(path))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://saved.example.com", reloaded.Strategos.BaseURL)
	assert.Equal(t, 11, reloaded.Concurrency.InvestigationBatchSize)
}

func TestExpandPath_TildeExpandsToHomeDir(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "foo"), expandPath("~/foo"))
	assert.Equal(t, "/absolute/path", expandPath("/absolute/path"))
	assert.Equal(t, "", expandPath(""))
}
