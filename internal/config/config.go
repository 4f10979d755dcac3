package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DirName is the per-workspace directory holding config, database and logs.
	DirName = ".codelap"

	// FileName is the config file inside DirName.
	FileName = "config.yaml"

	// DefaultBaseURL is used when neither the file nor CODELAP_API_URL set one.
	DefaultBaseURL = "http://localhost:8000"

	// DriverMattn is the cgo SQLite driver name registered by github.com/mattn/go-sqlite3.
	DriverMattn = "sqlite3"
	// DriverModernc is the pure-Go SQLite driver name registered by modernc.org/sqlite.
	DriverModernc = "sqlite"
)

// Config holds all codelap configuration.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
	Progress ProgressConfig `yaml:"progress"`
	Logging  LoggingConfig  `yaml:"logging"`
	UI       UIConfig       `yaml:"ui"`
}

// APIConfig configures the backend client.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// StorageConfig configures the local key/value store.
type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite3 (cgo) or sqlite (pure Go)
	Path   string `yaml:"path"`   // relative paths resolve against the workspace
}

// ProgressConfig configures progress persistence.
type ProgressConfig struct {
	// ScopeKeys namespaces step keys by user and plan. Off keeps the bare
	// step_<n> keys shared across plans and users.
	ScopeKeys bool `yaml:"scope_keys"`
}

// UIConfig configures the terminal front end.
type UIConfig struct {
	Theme    string `yaml:"theme"` // auto, dark, light
	WordWrap int    `yaml:"word_wrap"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			Timeout: "60s",
		},
		Storage: StorageConfig{
			Driver: DriverMattn,
			Path:   filepath.Join(DirName, "codelap.db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Dir:        filepath.Join(DirName, "logs"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		UI: UIConfig{
			Theme:    "auto",
			WordWrap: 80,
		},
	}
}

// DefaultPath returns the config path for a workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, DirName, FileName)
}

// LoadDotEnv loads .env files from the workspace into the process environment.
// Variables already set in the environment win. Missing files are ignored.
func LoadDotEnv(workspace string) error {
	for _, name := range []string{".env.local", ".env"} {
		path := filepath.Join(workspace, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
	}
	return nil
}

// Load loads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if u := os.Getenv("CODELAP_API_URL"); u != "" {
		c.API.BaseURL = u
	}
	if path := os.Getenv("CODELAP_DB"); path != "" {
		c.Storage.Path = path
	}
	if driver := os.Getenv("CODELAP_STORAGE_DRIVER"); driver != "" {
		c.Storage.Driver = driver
	}
	if v := os.Getenv("CODELAP_DEBUG"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = on
		}
	}
	if theme := os.Getenv("CODELAP_THEME"); theme != "" {
		c.UI.Theme = theme
	}
}

// GetAPITimeout returns the per-request timeout as a duration.
func (c *Config) GetAPITimeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Config) BaseURL() string {
	return strings.TrimRight(c.API.BaseURL, "/")
}

// ResolvePath resolves a configured path against the workspace.
// ":memory:" and absolute paths are returned unchanged.
func ResolvePath(workspace, path string) string {
	if path == ":memory:" || filepath.IsAbs(path) || workspace == "" {
		return path
	}
	return filepath.Join(workspace, path)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Errorf("api.base_url scheme %q is not http or https", u.Scheme))
	}

	switch c.Storage.Driver {
	case DriverMattn, DriverModernc:
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not one of %s, %s", c.Storage.Driver, DriverMattn, DriverModernc))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}

	switch c.UI.Theme {
	case "", "auto", "dark", "light":
	default:
		errs = append(errs, fmt.Errorf("ui.theme %q is not one of auto, dark, light", c.UI.Theme))
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not text or json", c.Logging.Format))
	}

	return errors.Join(errs...)
}
