package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Timezones is the fixed set of display timezones offered to users. The
// first entry is the default.
var Timezones = []string{"Asia/Kolkata", "UTC", "US/Pacific", "US/Eastern", "Europe/London"}

// Modes are the supported breakdown prompt modes.
var Modes = []string{"standard", "research"}

const (
	defaultListen     = "127.0.0.1:8080"
	defaultModel      = "gemini-2.0-flash"
	defaultModelTO    = 60
	defaultSearchTO   = 15
	defaultOutputDir  = "./var/plans"
	maxRepeatDays     = 30
	envAPIKey         = "GEMINI_API_KEY"
	envListen         = "LIFEPILOT_LISTEN"
	configTempPattern = ".lifepilot-config-*.tmp"
)

// GeminiConfig configures the generative model client.
type GeminiConfig struct {
	// APIKey may be left empty here and supplied per request in the Web UI
	// or via the GEMINI_API_KEY environment variable.
	APIKey         string `yaml:"api_key" json:"-"`
	Model          string `yaml:"model" json:"model" validate:"required"`
	BaseURL        string `yaml:"base_url,omitempty" json:"base_url,omitempty" validate:"omitempty,url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds" validate:"gte=1,lte=600"`
}

// SearchConfig configures the video search client.
type SearchConfig struct {
	BaseURL        string `yaml:"base_url,omitempty" json:"base_url,omitempty" validate:"omitempty,url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds" validate:"gte=1,lte=120"`
}

// CalendarConfig controls the exported .ics file.
type CalendarConfig struct {
	// RepeatDays > 1 turns the exported block into a daily series.
	RepeatDays int `yaml:"repeat_days" json:"repeat_days" validate:"gte=0,lte=30"`
}

// DailyConfig enables an unattended run on a cron schedule.
type DailyConfig struct {
	// Cron is a standard 5-field cron spec evaluated in Timezone. Empty
	// disables the daily job.
	Cron      string `yaml:"cron" json:"cron"`
	Goal      string `yaml:"goal" json:"goal"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen" validate:"required,hostname_port"`

	// Timezone is the default display zone; must be one of Timezones.
	Timezone string `yaml:"timezone" json:"timezone" validate:"required,oneof=Asia/Kolkata UTC US/Pacific US/Eastern Europe/London"`

	// Mode is the default breakdown mode ("standard" or "research").
	Mode string `yaml:"mode" json:"mode" validate:"required,oneof=standard research"`

	// LogLevel is DEBUG, INFO or ERROR.
	LogLevel string `yaml:"log_level" json:"log_level" validate:"omitempty,oneof=DEBUG INFO ERROR debug info error"`

	Gemini   GeminiConfig   `yaml:"gemini" json:"gemini"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Daily    DailyConfig    `yaml:"daily" json:"daily"`

	// CORSOrigins lists origins allowed to call /api/*. Empty disables CORS.
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   defaultListen,
		Timezone: Timezones[0],
		Mode:     Modes[0],
		LogLevel: "INFO",
		Gemini: GeminiConfig{
			Model:          defaultModel,
			TimeoutSeconds: defaultModelTO,
		},
		Search: SearchConfig{
			TimeoutSeconds: defaultSearchTO,
		},
		Daily: DailyConfig{
			OutputDir: defaultOutputDir,
		},
		CORSOrigins: []string{},
		BasicAuth:   nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = Timezones[0]
	}
	switch c.Mode {
	case "standard", "research":
	default:
		// Unknown value; fall back to standard rather than refusing to start.
		c.Mode = Modes[0]
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = defaultModel
	}
	if c.Gemini.TimeoutSeconds <= 0 {
		c.Gemini.TimeoutSeconds = defaultModelTO
	}
	if c.Search.TimeoutSeconds <= 0 {
		c.Search.TimeoutSeconds = defaultSearchTO
	}
	if c.Calendar.RepeatDays < 0 {
		c.Calendar.RepeatDays = 0
	}
	if c.Calendar.RepeatDays > maxRepeatDays {
		c.Calendar.RepeatDays = maxRepeatDays
	}
	if c.Daily.OutputDir == "" {
		c.Daily.OutputDir = defaultOutputDir
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = []string{}
	}
}

// ApplyEnv overrides file values from the environment.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(envAPIKey)); v != "" {
		c.Gemini.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(envListen)); v != "" {
		c.Listen = v
	}
}

// Validate checks field constraints and the daily cron spec.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Daily.Cron != "" {
		if _, err := cron.ParseStandard(c.Daily.Cron); err != nil {
			return fmt.Errorf("config: daily.cron: %w", err)
		}
		if strings.TrimSpace(c.Daily.Goal) == "" {
			return errors.New("config: daily.goal is required when daily.cron is set")
		}
	}
	return nil
}

// Location resolves Timezone, falling back to UTC when the zone database
// lacks it.
func (c *Config) Location() *time.Location {
	return ResolveLocation(c.Timezone)
}

// ResolveLocation loads name if it is one of Timezones, else the default.
// Zone database failures fall back to UTC.
func ResolveLocation(name string) *time.Location {
	if !IsTimezone(name) {
		name = Timezones[0]
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsTimezone reports whether name is one of Timezones.
func IsTimezone(name string) bool {
	for _, tz := range Timezones {
		if tz == name {
			return true
		}
	}
	return false
}

// ModelTimeout is Gemini.TimeoutSeconds as a Duration.
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Gemini.TimeoutSeconds) * time.Second
}

// SearchTimeout is Search.TimeoutSeconds as a Duration.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutSeconds) * time.Second
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
//
// Environment overrides are applied last in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				cfg.ApplyEnv()
				return cfg, err
			}
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	cfg.ApplyEnv()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
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

	tmp, err := os.CreateTemp(dir, configTempPattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
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

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
