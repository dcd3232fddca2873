// Package config provides configuration loading and validation for the
// report retriever.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all runtime settings. Values come from the environment with
// optional overrides from a JSON file; missing values use defaults.
type Config struct {
	// Server
	Port     int `json:"port,omitempty"`
	PoolSize int `json:"pool_size,omitempty"` // Max concurrent report retrievals

	// Storage
	DownloadsDir string `json:"downloads_dir,omitempty"` // Where finished reports land
	ArtifactsDir string `json:"artifacts_dir,omitempty"` // Failure screenshots and page dumps

	// Portal automation
	BaseURL       string        `json:"base_url,omitempty"`
	Headless      bool          `json:"headless,omitempty"`
	NavTimeout    time.Duration `json:"-"` // Per-navigation timeout
	ReportTimeout time.Duration `json:"-"` // Wait for the generated report link
}

// Default portal and timing values match the original deployment.
const (
	DefaultPort          = 5000
	DefaultBaseURL       = "https://intoview-radportal.medvet.com/#"
	DefaultDownloadsDir  = "downloads"
	DefaultArtifactsDir  = "artifacts"
	DefaultNavTimeout    = 20 * time.Second
	DefaultReportTimeout = 2 * time.Minute
)

// FromEnv builds a Config from environment variables, falling back to
// defaults. It never fails; malformed numeric values fall back silently the
// same way the rate limiter's env parsing does.
func FromEnv() *Config {
	return &Config{
		Port:          getEnvInt("PORT", DefaultPort),
		PoolSize:      getEnvInt("POOL_SIZE", 3),
		DownloadsDir:  getEnvString("DOWNLOADS_DIR", DefaultDownloadsDir),
		ArtifactsDir:  getEnvString("ARTIFACTS_DIR", DefaultArtifactsDir),
		BaseURL:       getEnvString("PORTAL_BASE_URL", DefaultBaseURL),
		Headless:      getEnvBool("HEADLESS", true),
		NavTimeout:    getEnvDuration("NAV_TIMEOUT", DefaultNavTimeout),
		ReportTimeout: getEnvDuration("REPORT_TIMEOUT", DefaultReportTimeout),
	}
}

// LoadFile reads a JSON config file and merges it over the receiver. Fields
// absent from the file keep their current values.
func (c *Config) LoadFile(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return nil
}

// Validate checks that the configuration has usable values.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be in 1-65535, got %d", c.Port)
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("config error: 'pool_size' must be positive, got %d", c.PoolSize)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("config error: 'base_url' is required")
	}
	if c.DownloadsDir == "" || c.ArtifactsDir == "" {
		return fmt.Errorf("config error: storage directories are required")
	}
	return nil
}

// EnsureDirs creates the downloads and artifacts directories if needed.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DownloadsDir, c.ArtifactsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func getEnvString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
