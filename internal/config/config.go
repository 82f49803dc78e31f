package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultListen          = "127.0.0.1:8080"
	defaultTimezone        = "UTC"
	defaultAPIKeyEnv       = "GEMINI_API_KEY"
	defaultDurationMinutes = 30
	defaultHorizonDays     = 7
	defaultMaxBatchChars   = 12000
	defaultMaxEmails       = 5
	defaultBriefingCron    = "0 7 * * *"
)

// LLMConfig selects the text-generation model.
type LLMConfig struct {
	Model string `yaml:"model" json:"model"`
	// APIKeyEnv names the environment variable holding the API key. The key
	// itself never lives in the YAML file.
	APIKeyEnv   string  `yaml:"api_key_env" json:"api_key_env"`
	Temperature float32 `yaml:"temperature" json:"temperature"`
}

// SubscriptionConfig describes a read-only ICS subscription.
type SubscriptionConfig struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// CalendarConfig configures the event store.
type CalendarConfig struct {
	// Path is the local .ics file new events are written to.
	Path                   string               `yaml:"path" json:"path"`
	DefaultDurationMinutes int                  `yaml:"default_duration_minutes" json:"default_duration_minutes"`
	HorizonDays            int                  `yaml:"horizon_days" json:"horizon_days"`
	Subscriptions          []SubscriptionConfig `yaml:"subscriptions" json:"subscriptions"`
	CacheDir               string               `yaml:"cache_dir" json:"cache_dir"`
}

// MailConfig configures the message store.
type MailConfig struct {
	Maildir   string `yaml:"maildir" json:"maildir"`
	Outbox    string `yaml:"outbox" json:"outbox"`
	Address   string `yaml:"address" json:"address"`
	CacheSize int    `yaml:"cache_size" json:"cache_size"`
}

// SummarizeConfig controls batching of summarization requests.
type SummarizeConfig struct {
	MaxBatchChars int `yaml:"max_batch_chars" json:"max_batch_chars"`
	// SizeUnit is "chars" or "tokens".
	SizeUnit    string `yaml:"size_unit" json:"size_unit"`
	Parallelism int    `yaml:"parallelism" json:"parallelism"`
	MaxEmails   int    `yaml:"max_emails" json:"max_emails"`
}

// BriefingConfig schedules the agenda briefing.
type BriefingConfig struct {
	// Cron is a standard 5-field spec. Empty disables the briefing.
	Cron string `yaml:"cron" json:"cron"`
	Days int    `yaml:"days" json:"days"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone dates are resolved and displayed in.
	Timezone string `yaml:"timezone" json:"timezone"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	LLM       LLMConfig       `yaml:"llm" json:"llm"`
	Calendar  CalendarConfig  `yaml:"calendar" json:"calendar"`
	Mail      MailConfig      `yaml:"mail" json:"mail"`
	Summarize SummarizeConfig `yaml:"summarize" json:"summarize"`
	Briefing  BriefingConfig  `yaml:"briefing" json:"briefing"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultPath is ~/.config/assistant/config.yaml, or ./config.yaml when the
// user config directory is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "assistant", "config.yaml")
}

// DefaultConfig returns the configuration written on first run. Data paths
// sit next to the config file.
func DefaultConfig(dir string) *Config {
	return &Config{
		Listen:    defaultListen,
		Timezone:  defaultTimezone,
		LogLevel:  "info",
		LogFormat: "console",
		LLM: LLMConfig{
			Model:       "gemini-2.0-flash",
			APIKeyEnv:   defaultAPIKeyEnv,
			Temperature: 0.2,
		},
		Calendar: CalendarConfig{
			Path:                   filepath.Join(dir, "calendar.ics"),
			DefaultDurationMinutes: defaultDurationMinutes,
			HorizonDays:            defaultHorizonDays,
			Subscriptions:          []SubscriptionConfig{},
			CacheDir:               filepath.Join(dir, "ics-cache"),
		},
		Mail: MailConfig{
			Maildir:   filepath.Join(dir, "Maildir"),
			Outbox:    filepath.Join(dir, "Outbox"),
			CacheSize: 512,
		},
		Summarize: SummarizeConfig{
			MaxBatchChars: defaultMaxBatchChars,
			SizeUnit:      "chars",
			Parallelism:   1,
			MaxEmails:     defaultMaxEmails,
		},
		Briefing: BriefingConfig{
			Cron: defaultBriefingCron,
			Days: 1,
		},
	}
}

// Normalize fills zero values so partially written configs still work.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.LLM.APIKeyEnv == "" {
		c.LLM.APIKeyEnv = defaultAPIKeyEnv
	}
	if c.Calendar.DefaultDurationMinutes <= 0 {
		c.Calendar.DefaultDurationMinutes = defaultDurationMinutes
	}
	if c.Calendar.HorizonDays <= 0 {
		c.Calendar.HorizonDays = defaultHorizonDays
	}
	if c.Calendar.Subscriptions == nil {
		c.Calendar.Subscriptions = []SubscriptionConfig{}
	}
	for i := range c.Calendar.Subscriptions {
		if c.Calendar.Subscriptions[i].ID == "" {
			c.Calendar.Subscriptions[i].ID = fmt.Sprintf("sub%d", i+1)
		}
	}
	if c.Summarize.MaxBatchChars <= 0 {
		c.Summarize.MaxBatchChars = defaultMaxBatchChars
	}
	if c.Summarize.SizeUnit == "" {
		c.Summarize.SizeUnit = "chars"
	}
	if c.Summarize.Parallelism <= 0 {
		c.Summarize.Parallelism = 1
	}
	if c.Summarize.MaxEmails <= 0 {
		c.Summarize.MaxEmails = defaultMaxEmails
	}
	if c.Briefing.Days <= 0 {
		c.Briefing.Days = 1
	}
}

// Validate reports settings Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	switch c.Summarize.SizeUnit {
	case "chars", "tokens":
	default:
		errs = append(errs, fmt.Errorf("summarize.size_unit %q: want chars or tokens", c.Summarize.SizeUnit))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q: want console or json", c.LogFormat))
	}
	if c.Briefing.Cron != "" {
		if _, err := cron.ParseStandard(c.Briefing.Cron); err != nil {
			errs = append(errs, fmt.Errorf("briefing.cron %q: %w", c.Briefing.Cron, err))
		}
	}
	seen := map[string]bool{}
	for _, s := range c.Calendar.Subscriptions {
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("calendar subscription %q has no url", s.ID))
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("calendar subscription id %q is duplicated", s.ID))
		}
		seen[s.ID] = true
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		errs = append(errs, errors.New("basic_auth needs both username and password"))
	}
	return errors.Join(errs...)
}

// Location returns the configured zone, or UTC if it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// APIKey returns the model API key from the environment.
func (c *Config) APIKey() string {
	return strings.TrimSpace(os.Getenv(c.LLM.APIKeyEnv))
}

// LoadEnv loads KEY=VALUE pairs from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the YAML config at path. On first run it writes the default
// config (0600, parent dir 0700) and returns it. The result is normalized
// and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig(filepath.Dir(path))
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig(filepath.Dir(path))
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path atomically via a temp file and rename, with 0600
// permissions.
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

	tmp, err := os.CreateTemp(dir, ".assistant-config-*.tmp")
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

// Save is a convenience wrapper around the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
