// Package config loads studyctl settings from a YAML file and STUDYCTL_*
// environment variables. Provider credentials stay in the environment and
// are read by the llm package.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full studyctl configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
	Study  StudyConfig  `yaml:"study"`
	Costs  CostConfig   `yaml:"costs"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig configures `studyctl serve`.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
	// DBPath overrides the default database location.
	DBPath         string `yaml:"db_path"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	// SystemPrompt replaces the built-in assistant prompt when set.
	SystemPrompt string `yaml:"system_prompt"`
	// ExchangesPerMinute throttles each participant's messages.
	ExchangesPerMinute float64 `yaml:"exchanges_per_minute" validate:"gt=0"`
	ExchangeBurst      int     `yaml:"exchange_burst" validate:"gte=1"`
}

// ClientConfig configures the participant client.
type ClientConfig struct {
	ServerURL string        `yaml:"server_url" validate:"required,url"`
	Timeout   time.Duration `yaml:"timeout" validate:"gte=0"`
	// StatePath overrides the local state file location.
	StatePath string `yaml:"state_path"`
}

// StudyConfig holds study-design parameters.
type StudyConfig struct {
	InteractionMinutes  int `yaml:"interaction_minutes" validate:"gte=1,lte=240"`
	SyncIntervalSeconds int `yaml:"sync_interval_seconds" validate:"gte=1,lte=300"`
	// ContentPath is a file or directory of reading units.
	ContentPath string `yaml:"content_path"`
}

// CostConfig holds the conversational spending caps in USD.
type CostConfig struct {
	DailyLimit  float64 `yaml:"daily_limit" validate:"gt=0"`
	WeeklyLimit float64 `yaml:"weekly_limit" validate:"gt=0,gtefield=DailyLimit"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:               "127.0.0.1:8080",
			MetricsEnabled:     true,
			ExchangesPerMinute: 30,
			ExchangeBurst:      3,
		},
		Client: ClientConfig{
			ServerURL: "http://127.0.0.1:8080",
			Timeout:   30 * time.Second,
		},
		Study: StudyConfig{
			InteractionMinutes:  30,
			SyncIntervalSeconds: 10,
		},
		Costs: CostConfig{
			DailyLimit:  2.00,
			WeeklyLimit: 5.00,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// InteractionDuration is the interaction time budget.
func (c Config) InteractionDuration() time.Duration {
	return time.Duration(c.Study.InteractionMinutes) * time.Minute
}

// SyncInterval is the session time push interval.
func (c Config) SyncInterval() time.Duration {
	return time.Duration(c.Study.SyncIntervalSeconds) * time.Second
}

// DefaultPath returns STUDYCTL_CONFIG if set, otherwise
// $XDG_CONFIG_HOME/studyctl/config.yaml.
func DefaultPath() string {
	if p := os.Getenv("STUDYCTL_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "studyctl.yaml")
	}
	return filepath.Join(dir, "studyctl", "config.yaml")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the file at path over the defaults, applies environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and reports every violation.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// applyEnv overlays STUDYCTL_* variables.
func applyEnv(cfg *Config, getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setFloat := func(key string, dst *float64) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = f
		return nil
	}
	setInt := func(key string, dst *int) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	setString("STUDYCTL_SERVER_ADDR", &cfg.Server.Addr)
	setString("STUDYCTL_DB", &cfg.Server.DBPath)
	setString("STUDYCTL_SYSTEM_PROMPT", &cfg.Server.SystemPrompt)
	setString("STUDYCTL_SERVER_URL", &cfg.Client.ServerURL)
	setString("STUDYCTL_STATE", &cfg.Client.StatePath)
	setString("STUDYCTL_CONTENT", &cfg.Study.ContentPath)
	setString("STUDYCTL_LOG_LEVEL", &cfg.Log.Level)
	setString("STUDYCTL_LOG_FORMAT", &cfg.Log.Format)

	if err := setFloat("STUDYCTL_DAILY_LIMIT", &cfg.Costs.DailyLimit); err != nil {
		return err
	}
	if err := setFloat("STUDYCTL_WEEKLY_LIMIT", &cfg.Costs.WeeklyLimit); err != nil {
		return err
	}
	if err := setInt("STUDYCTL_INTERACTION_MINUTES", &cfg.Study.InteractionMinutes); err != nil {
		return err
	}
	if v := getenv("STUDYCTL_CLIENT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("STUDYCTL_CLIENT_TIMEOUT: %w", err)
		}
		cfg.Client.Timeout = d
	}
	return nil
}
