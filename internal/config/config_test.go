package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CODELAP_API_URL", "CODELAP_DB", "CODELAP_STORAGE_DRIVER", "CODELAP_DEBUG", "CODELAP_THEME"} {
		t.Setenv(key, "")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, DriverMattn, cfg.Storage.Driver)
	assert.False(t, cfg.Progress.ScopeKeys)
	assert.False(t, cfg.Logging.DebugMode)
	assert.Equal(t, 60*time.Second, cfg.GetAPITimeout())
	assert.NoError(t, cfg.Validate())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := DefaultPath(t.TempDir())

	cfg := DefaultConfig()
	cfg.API.BaseURL = "https://learn.example.com/"
	cfg.API.Timeout = "5s"
	cfg.Progress.ScopeKeys = true
	cfg.Logging.Categories = map[string]bool{"api": false}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://learn.example.com", loaded.BaseURL())
	assert.Equal(t, 5*time.Second, loaded.GetAPITimeout())
	assert.True(t, loaded.Progress.ScopeKeys)
	assert.Equal(t, map[string]bool{"api": false}, loaded.Logging.Categories)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("api: [unterminated"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestEnvOverrides(t *testing.T) {
	t.Run("CODELAP_API_URL replaces base url", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CODELAP_API_URL", "http://backend:9000")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "http://backend:9000", cfg.API.BaseURL)
	})

	t.Run("storage overrides", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CODELAP_DB", ":memory:")
		t.Setenv("CODELAP_STORAGE_DRIVER", DriverModernc)

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, ":memory:", cfg.Storage.Path)
		assert.Equal(t, DriverModernc, cfg.Storage.Driver)
	})

	t.Run("CODELAP_DEBUG ignores garbage", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CODELAP_DEBUG", "maybe")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.False(t, cfg.Logging.DebugMode)

		t.Setenv("CODELAP_DEBUG", "1")
		cfg.applyEnvOverrides()
		assert.True(t, cfg.Logging.DebugMode)
	})

	t.Run("env wins over file", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), FileName)
		require.NoError(t, os.WriteFile(path, []byte("ui:\n  theme: dark\n"), 0644))
		t.Setenv("CODELAP_THEME", "light")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "light", cfg.UI.Theme)
	})
}

func TestLoadDotEnv(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, ".env"), []byte("CODELAP_DOTENV_PROBE=from-file\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("CODELAP_DOTENV_PROBE") })

	require.NoError(t, LoadDotEnv(ws))
	assert.Equal(t, "from-file", os.Getenv("CODELAP_DOTENV_PROBE"))

	t.Setenv("CODELAP_DOTENV_PROBE", "from-process")
	require.NoError(t, LoadDotEnv(ws))
	assert.Equal(t, "from-process", os.Getenv("CODELAP_DOTENV_PROBE"))

	assert.NoError(t, LoadDotEnv(t.TempDir()))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"relative url", func(c *Config) { c.API.BaseURL = "localhost:8000" }, "api.base_url"},
		{"ftp url", func(c *Config) { c.API.BaseURL = "ftp://host" }, "scheme"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "postgres" }, "storage.driver"},
		{"empty path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"unknown theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
		{"unknown format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestTimeoutFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.Timeout = "soon"
	assert.Equal(t, 60*time.Second, cfg.GetAPITimeout())
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, ":memory:", ResolvePath("/ws", ":memory:"))
	assert.Equal(t, filepath.Join("/ws", ".codelap", "codelap.db"), ResolvePath("/ws", filepath.Join(".codelap", "codelap.db")))
	abs := filepath.Join(t.TempDir(), "x.db")
	assert.Equal(t, abs, ResolvePath("/ws", abs))
}

func TestIsCategoryEnabled(t *testing.T) {
	lc := LoggingConfig{}
	assert.False(t, lc.IsCategoryEnabled("api"))

	lc.DebugMode = true
	assert.True(t, lc.IsCategoryEnabled("api"))

	lc.Categories = map[string]bool{"api": false}
	assert.False(t, lc.IsCategoryEnabled("api"))
	assert.True(t, lc.IsCategoryEnabled("session"))
}
