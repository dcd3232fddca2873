package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, 3, cfg.PoolSize)
	assert.Equal(t, DefaultDownloadsDir, cfg.DownloadsDir)
	assert.Equal(t, DefaultArtifactsDir, cfg.ArtifactsDir)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.True(t, cfg.Headless)
	assert.Equal(t, DefaultNavTimeout, cfg.NavTimeout)
	assert.Equal(t, DefaultReportTimeout, cfg.ReportTimeout)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("POOL_SIZE", "5")
	t.Setenv("HEADLESS", "false")
	t.Setenv("NAV_TIMEOUT", "45s")

	cfg := FromEnv()

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 5, cfg.PoolSize)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 45*time.Second, cfg.NavTimeout)
}

func TestFromEnv_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("HEADLESS", "maybe")

	cfg := FromEnv()

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.True(t, cfg.Headless)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port":8081,"pool_size":2}`), 0o644))

	cfg := FromEnv()
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, 2, cfg.PoolSize)
	// Untouched fields keep env/default values.
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
}

func TestLoadFile_Errors(t *testing.T) {
	cfg := FromEnv()

	assert.Error(t, cfg.LoadFile(""))
	assert.Error(t, cfg.LoadFile(filepath.Join(t.TempDir(), "missing.json")))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	assert.Error(t, cfg.LoadFile(bad))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "zero port", mutate: func(c *Config) { c.Port = 0 }, wantErr: true},
		{name: "port too large", mutate: func(c *Config) { c.Port = 70000 }, wantErr: true},
		{name: "zero pool size", mutate: func(c *Config) { c.PoolSize = 0 }, wantErr: true},
		{name: "empty base url", mutate: func(c *Config) { c.BaseURL = "" }, wantErr: true},
		{name: "empty downloads dir", mutate: func(c *Config) { c.DownloadsDir = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := FromEnv()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	cfg := FromEnv()
	cfg.DownloadsDir = filepath.Join(dir, "downloads")
	cfg.ArtifactsDir = filepath.Join(dir, "artifacts")

	require.NoError(t, cfg.EnsureDirs())

	for _, d := range []string{cfg.DownloadsDir, cfg.ArtifactsDir} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
