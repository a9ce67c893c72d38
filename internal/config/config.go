package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	appLog "feedcal/internal/log"
	"feedcal/internal/model"
)

const (
	defaultListen     = "127.0.0.1:8080"
	defaultRefresh    = "*/15 * * * *"
	defaultTimeoutMS  = 10000
	defaultMaxEntries = 20
	defaultEndOffset  = 7
)

// CalendarConfig describes a single ICS subscription source.
type CalendarConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// Name is the label events from this feed are tagged with.
	Name string `yaml:"name" json:"name"`
	// Color and Symbol are passed through to the renderer untouched.
	Color  string `yaml:"color,omitempty" json:"color,omitempty"`
	Symbol string `yaml:"symbol,omitempty" json:"symbol,omitempty"`
}

// WindowConfig selects which events are shown.
type WindowConfig struct {
	StartOffsetDays int `yaml:"start_offset_days" json:"start_offset_days"`
	EndOffsetDays   int `yaml:"end_offset_days" json:"end_offset_days"`
	MaxEntries      int `yaml:"max_entries" json:"max_entries"`

	// IncludeRecentPast keeps timed events that already started today.
	// RecentPastMinutes limits how far back; 0 means back to the window start.
	IncludeRecentPast bool `yaml:"include_recent_past" json:"include_recent_past"`
	RecentPastMinutes int  `yaml:"recent_past_minutes" json:"recent_past_minutes"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used for day boundaries (e.g. "Europe/Berlin").
	// Empty means the host's local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// TimeoutMS is the per-source fetch deadline in milliseconds.
	TimeoutMS int `yaml:"timeout_ms" json:"timeout_ms"`

	UserAgent string `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
	LogLevel  string `yaml:"log_level,omitempty" json:"log_level,omitempty"`

	Window WindowConfig `yaml:"window" json:"window"`

	// Calendars is the list of subscribed ICS sources.
	Calendars []CalendarConfig `yaml:"calendars" json:"calendars"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		RefreshCron: defaultRefresh,
		TimeoutMS:   defaultTimeoutMS,
		LogLevel:    "info",
		Window: WindowConfig{
			StartOffsetDays: 0,
			EndOffsetDays:   defaultEndOffset,
			MaxEntries:      defaultMaxEntries,
		},
		Calendars: []CalendarConfig{},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly. Window offsets are
// left alone: zero is a meaningful value there.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.TimeoutMS == 0 {
		c.TimeoutMS = defaultTimeoutMS
	}
	if c.Window.MaxEntries == 0 {
		c.Window.MaxEntries = defaultMaxEntries
	}
	if c.Calendars == nil {
		c.Calendars = []CalendarConfig{}
	}
}

// Validate reports settings that would make every run fail.
func (c *Config) Validate() error {
	var errs []error
	if c.TimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("timeout_ms must not be negative, got %d", c.TimeoutMS))
	}
	if c.Window.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("window.max_entries must not be negative, got %d", c.Window.MaxEntries))
	}
	if c.Window.RecentPastMinutes < 0 {
		errs = append(errs, fmt.Errorf("window.recent_past_minutes must not be negative, got %d", c.Window.RecentPastMinutes))
	}
	for i, cal := range c.Calendars {
		if cal.URL == "" {
			errs = append(errs, fmt.Errorf("calendars[%d] (%q): url is empty", i, cal.Name))
		}
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
		}
	}
	return errors.Join(errs...)
}

// Sources converts the calendar list into domain sources.
func (c *Config) Sources() []model.CalendarSource {
	out := make([]model.CalendarSource, 0, len(c.Calendars))
	for _, cal := range c.Calendars {
		out = append(out, model.CalendarSource{
			URL:    cal.URL,
			Name:   cal.Name,
			Color:  cal.Color,
			Symbol: cal.Symbol,
		})
	}
	return out
}

// Timeout returns the per-source deadline.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// Load reads the YAML file at path on top of DefaultConfig, so absent keys
// keep their defaults. A missing file is created with the defaults (0600)
// and the defaults are returned; a failed write still returns them together
// with the error.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, fmt.Errorf("write default config: %w", err)
			}
			appLog.Info("wrote default config", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg as YAML through a temp file in the same directory and
// renames it over path. The parent directory is created 0700 and the file
// ends up 0600.
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

	tmp, err := os.CreateTemp(dir, ".feedcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

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

// Save writes c to path; see the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
