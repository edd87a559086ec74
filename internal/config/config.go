package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"boardkiosk/internal/models"
)

const (
	envPrefix = "BOARDKIOSK_"
	maxBoards = 2
)

// ErrNoBoards is returned when the configuration does not name a board to follow.
var ErrNoBoards = errors.New("configuration must define at least one board")

// Config represents configuration data for the kiosk.
type Config struct {
	BaseURL                string          `yaml:"base_url"`
	ListenAddr             string          `yaml:"listen_addr"`
	DataDirectory          string          `yaml:"data_directory"`
	RefreshIntervalMinutes int             `yaml:"refresh_interval_minutes"`
	ViewMode               models.ViewMode `yaml:"view_mode"`
	Probe                  Probe           `yaml:"probe"`
	Browser                Browser         `yaml:"browser"`
	Style                  Style           `yaml:"style"`
	Logo                   Logo            `yaml:"logo"`
	AutoLogin              AutoLogin       `yaml:"autologin"`
	Boards                 []models.Board  `yaml:"boards"`
}

// Probe configures the connectivity supervisor.
type Probe struct {
	URL             string `yaml:"url"`
	StartupDelayMs  int    `yaml:"startup_delay_ms"`
	IntervalMs      int    `yaml:"interval_ms"`
	ErrorDelayMs    int    `yaml:"error_delay_ms"`
	ReloadGraceMs   int    `yaml:"reload_grace_ms"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	OverlayFile     string `yaml:"overlay_file"`
	OverlayPayload  string `yaml:"overlay_payload"`
	HistoryCapacity int    `yaml:"history_capacity"`
}

// Browser configures the Chrome instance the boards are shown in.
type Browser struct {
	Headless    bool    `yaml:"headless"`
	Kiosk       bool    `yaml:"kiosk"`
	UserDataDir string  `yaml:"user_data_dir"`
	ZoomFactor  float64 `yaml:"zoom_factor"`
	ExecPath    string  `yaml:"exec_path"`
}

// Style points at a custom stylesheet injected into every board page.
type Style struct {
	Enabled bool   `yaml:"enabled"`
	File    string `yaml:"file"`
}

// Logo overlays an image in the bottom right corner of the page.
type Logo struct {
	Enabled bool   `yaml:"enabled"`
	Source  string `yaml:"source"`
}

// AutoLogin fills and submits the login form when the page asks for it.
type AutoLogin struct {
	Enabled     bool   `yaml:"enabled"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "https://play.autodarts.io",
		ListenAddr:    ":5000",
		DataDirectory: filepath.Join(".dist", "data"),
		Probe: Probe{
			StartupDelayMs:  2000,
			IntervalMs:      5000,
			ErrorDelayMs:    10000,
			ReloadGraceMs:   1000,
			TimeoutSeconds:  4,
			HistoryCapacity: 2048,
		},
		Browser: Browser{
			Kiosk:       true,
			UserDataDir: "_cache",
			ZoomFactor:  1.0,
		},
		Style: Style{
			File: "style.css",
		},
		AutoLogin: AutoLogin{
			MaxAttempts: 3,
		},
	}
}

// Load reads configuration from yaml file. Missing files fall back to defaults.
// An optional .env next to the file and BOARDKIOSK_* variables override the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(content, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}

		envFile := filepath.Join(filepath.Dir(path), ".env")
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	}

	applyEnv(&cfg)
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields that cannot be defaulted.
func (c Config) Validate() error {
	if len(c.Boards) == 0 {
		return ErrNoBoards
	}
	if len(c.Boards) > maxBoards {
		return fmt.Errorf("at most %d boards are supported, got %d", maxBoards, len(c.Boards))
	}
	seen := make(map[string]struct{}, len(c.Boards))
	for i, b := range c.Boards {
		if b.ID == "" {
			return fmt.Errorf("board %d is missing id", i)
		}
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("board %s is listed twice", b.ID)
		}
		seen[b.ID] = struct{}{}
	}
	if !c.ViewMode.Valid() {
		return fmt.Errorf("unknown view_mode %q", c.ViewMode)
	}
	if c.AutoLogin.Enabled && (c.AutoLogin.Username == "" || c.AutoLogin.Password == "") {
		return errors.New("autologin requires username and password")
	}
	if c.Logo.Enabled && c.Logo.Source == "" {
		return errors.New("logo requires a source")
	}
	return nil
}

func (c *Config) normalize() {
	def := DefaultConfig()
	c.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.DataDirectory == "" {
		c.DataDirectory = def.DataDirectory
	}
	if c.RefreshIntervalMinutes < 0 {
		c.RefreshIntervalMinutes = 0
	}
	if c.Probe.URL == "" {
		c.Probe.URL = c.BaseURL + "/version"
	}
	if c.Probe.StartupDelayMs <= 0 {
		c.Probe.StartupDelayMs = def.Probe.StartupDelayMs
	}
	if c.Probe.IntervalMs <= 0 {
		c.Probe.IntervalMs = def.Probe.IntervalMs
	}
	if c.Probe.ErrorDelayMs <= 0 {
		c.Probe.ErrorDelayMs = def.Probe.ErrorDelayMs
	}
	if c.Probe.ReloadGraceMs <= 0 {
		c.Probe.ReloadGraceMs = def.Probe.ReloadGraceMs
	}
	if c.Probe.TimeoutSeconds <= 0 {
		c.Probe.TimeoutSeconds = def.Probe.TimeoutSeconds
	}
	if c.Probe.HistoryCapacity <= 0 {
		c.Probe.HistoryCapacity = def.Probe.HistoryCapacity
	}
	if c.Browser.ZoomFactor <= 0 {
		c.Browser.ZoomFactor = 1.0
	}
	if c.AutoLogin.MaxAttempts <= 0 {
		c.AutoLogin.MaxAttempts = def.AutoLogin.MaxAttempts
	}
	for i := range c.Boards {
		c.Boards[i].ID = strings.TrimSpace(c.Boards[i].ID)
		if c.Boards[i].Name == "" {
			c.Boards[i].Name = fmt.Sprintf("Board %d", i+1)
		}
	}
}

// StartupDelay is the wait before the first probe.
func (p Probe) StartupDelay() time.Duration { return ms(p.StartupDelayMs) }

// Interval is the nominal wait between probes.
func (p Probe) Interval() time.Duration { return ms(p.IntervalMs) }

// ErrorDelay is the wait after a probe whose orchestration failed.
func (p Probe) ErrorDelay() time.Duration { return ms(p.ErrorDelayMs) }

// ReloadGrace is the wait between hiding the overlay and reloading the page.
func (p Probe) ReloadGrace() time.Duration { return ms(p.ReloadGraceMs) }

// Timeout bounds a single probe request.
func (p Probe) Timeout() time.Duration { return time.Duration(p.TimeoutSeconds) * time.Second }

// RefreshInterval returns the periodic page refresh, zero when disabled.
func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMinutes) * time.Minute
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func applyEnv(cfg *Config) {
	cfg.BaseURL = getEnvString("BASE_URL", cfg.BaseURL)
	cfg.ListenAddr = getEnvString("LISTEN_ADDR", cfg.ListenAddr)
	cfg.DataDirectory = getEnvString("DATA_DIRECTORY", cfg.DataDirectory)
	cfg.Probe.URL = getEnvString("PROBE_URL", cfg.Probe.URL)
	cfg.Probe.OverlayPayload = getEnvString("OVERLAY_PAYLOAD", cfg.Probe.OverlayPayload)
	cfg.Browser.Headless = getEnvBool("HEADLESS", cfg.Browser.Headless)
	cfg.AutoLogin.Username = getEnvString("USERNAME", cfg.AutoLogin.Username)
	cfg.AutoLogin.Password = getEnvString("PASSWORD", cfg.AutoLogin.Password)
	cfg.RefreshIntervalMinutes = getEnvInt("REFRESH_INTERVAL_MINUTES", cfg.RefreshIntervalMinutes)

	if raw := getEnvString("BOARDS", ""); raw != "" {
		boards := make([]models.Board, 0, maxBoards)
		for _, id := range strings.Split(raw, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			boards = append(boards, models.Board{ID: id})
		}
		cfg.Boards = boards
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(envPrefix + key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(envPrefix + key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
