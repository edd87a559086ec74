package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardkiosk/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
base_url: https://example.test/
boards:
  - id: abc
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.test", cfg.BaseURL)
	assert.Equal(t, "https://example.test/version", cfg.Probe.URL)
	assert.Equal(t, 2*time.Second, cfg.Probe.StartupDelay())
	assert.Equal(t, 5*time.Second, cfg.Probe.Interval())
	assert.Equal(t, 10*time.Second, cfg.Probe.ErrorDelay())
	assert.Equal(t, time.Second, cfg.Probe.ReloadGrace())
	assert.Equal(t, 4*time.Second, cfg.Probe.Timeout())
	assert.Equal(t, "Board 1", cfg.Boards[0].Name)
	assert.Equal(t, 3, cfg.AutoLogin.MaxAttempts)
	assert.Zero(t, cfg.RefreshInterval())
}

func TestLoadMissingFileRequiresBoards(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, ErrNoBoards)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "boards: [")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestValidate(t *testing.T) {
	base := DefaultConfig()
	base.Boards = []models.Board{{ID: "a", Name: "A"}}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"ok", func(*Config) {}, ""},
		{"too many boards", func(c *Config) {
			c.Boards = []models.Board{{ID: "a"}, {ID: "b"}, {ID: "c"}}
		}, "at most 2 boards"},
		{"duplicate board", func(c *Config) {
			c.Boards = []models.Board{{ID: "a"}, {ID: "a"}}
		}, "listed twice"},
		{"empty id", func(c *Config) {
			c.Boards = []models.Board{{Name: "x"}}
		}, "missing id"},
		{"bad view mode", func(c *Config) { c.ViewMode = "Fancy mode" }, "unknown view_mode"},
		{"autologin without credentials", func(c *Config) { c.AutoLogin.Enabled = true }, "username and password"},
		{"logo without source", func(c *Config) { c.Logo.Enabled = true }, "logo requires"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.Boards = append([]models.Board(nil), base.Boards...)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("BOARDKIOSK_BOARDS", "one, two")
	t.Setenv("BOARDKIOSK_PROBE_URL", "http://probe.test/ping")
	t.Setenv("BOARDKIOSK_HEADLESS", "true")
	t.Setenv("BOARDKIOSK_REFRESH_INTERVAL_MINUTES", "15")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Len(t, cfg.Boards, 2)
	assert.Equal(t, "two", cfg.Boards[1].ID)
	assert.Equal(t, "Board 2", cfg.Boards[1].Name)
	assert.Equal(t, "http://probe.test/ping", cfg.Probe.URL)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 15*time.Minute, cfg.RefreshInterval())
}

func TestProbeURLFollowsBaseURL(t *testing.T) {
	assert.Empty(t, DefaultConfig().Probe.URL)

	t.Setenv("BOARDKIOSK_BOARDS", "one")
	t.Setenv("BOARDKIOSK_BASE_URL", "https://darts.internal/")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://darts.internal/version", cfg.Probe.URL)
	assert.Equal(t, "https://darts.internal/boards/one/follow", cfg.Boards[0].FollowURL(cfg.BaseURL))
}

func TestDotEnvNextToConfig(t *testing.T) {
	const key = "BOARDKIOSK_USERNAME"
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	dir := t.TempDir()
	writeFile(t, dir, ".env", key+"=player@example.test\n")
	path := writeFile(t, dir, "config.yaml", `
boards:
  - id: abc
autologin:
  enabled: true
  password: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "player@example.test", cfg.AutoLogin.Username)
}
