package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	// CalendarID is the destination calendar for imports.
	CalendarID string `yaml:"calendar_id"`

	// OAuthClientID / OAuthClientSecret identify the OAuth client used
	// for the calendar service. Usually supplied via environment.
	OAuthClientID     string `yaml:"oauth_client_id"`
	OAuthClientSecret string `yaml:"oauth_client_secret"`

	// TokenPath is where the bearer credential is persisted. Empty
	// selects ~/.icsimport/token.json.
	TokenPath string `yaml:"token_path"`

	// StagingSeconds is the length of the cancel window before staged
	// events are committed.
	StagingSeconds int `yaml:"staging_seconds"`

	// ResultSeconds is how long the result action ("View") stays
	// offered after a completed import.
	ResultSeconds int `yaml:"result_seconds"`

	// FetchTimeoutSeconds bounds the .ics download.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds"`

	// DirectoryRefresh is a cron-style schedule for rebuilding the
	// calendar directory (e.g. "*/30 * * * *"). Empty disables the
	// schedule; the directory is still rebuilt lazily on demand.
	DirectoryRefresh string `yaml:"directory_refresh"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		CalendarID:          "primary",
		StagingSeconds:      5,
		ResultSeconds:       15,
		FetchTimeoutSeconds: 15,
		DirectoryRefresh:    "*/30 * * * *",
	}
}

// Normalize fills in missing/zero values so partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if c.CalendarID == "" {
		c.CalendarID = "primary"
	}
	if c.StagingSeconds <= 0 {
		c.StagingSeconds = 5
	}
	if c.ResultSeconds <= 0 {
		c.ResultSeconds = 15
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = 15
	}
}

// ApplyEnv overrides credential settings from the environment, which
// wins over the file so secrets can stay out of it.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("ICSIMPORT_OAUTH_CLIENT_ID"); v != "" {
		c.OAuthClientID = v
	}
	if v := os.Getenv("ICSIMPORT_OAUTH_CLIENT_SECRET"); v != "" {
		c.OAuthClientSecret = v
	}
	if v := os.Getenv("ICSIMPORT_CALENDAR_ID"); v != "" {
		c.CalendarID = v
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".icsimport", "config.yaml"), nil
}

// Load loads configuration from the given YAML path. A missing file is
// created with defaults (0600) and the defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions; the parent directory is created as needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".icsimport-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
