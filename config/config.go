// ABOUTME: Application configuration loaded from defaults, an optional .env file and the environment
// ABOUTME: Uses koanf for layering and validator for constraint checks
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
)

const (
	ModeMock = "mock"
	ModeLive = "live"
)

// Config is the full runtime configuration.
type Config struct {
	Env     string        `koanf:"env" validate:"required"`
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Queue   QueueConfig   `koanf:"queue"`
	Sync    SyncConfig    `koanf:"sync"`
	Log     LogConfig     `koanf:"log"`
	Pronote PronoteConfig `koanf:"pronote"`
	Google  GoogleConfig  `koanf:"google"`
}

type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	SyncRateLimit   int           `koanf:"sync_rate_limit" validate:"min=1"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// StorageConfig selects the backend: DatabaseURL wins, then SQLitePath, then in-memory.
type StorageConfig struct {
	DatabaseURL string `koanf:"database_url"`
	SQLitePath  string `koanf:"sqlite_path"`
}

// QueueConfig enables the durable job backend when URL is set.
type QueueConfig struct {
	URL   string `koanf:"url"`
	Topic string `koanf:"topic" validate:"required"`
}

type SyncConfig struct {
	CronSchedule        string `koanf:"cron_schedule" validate:"required"`
	RunInitialOnStartup bool   `koanf:"run_initial_on_startup"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal disabled silent"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
}

type PronoteConfig struct {
	Mode                   string        `koanf:"mode" validate:"oneof=mock live"`
	BaseURL                string        `koanf:"base_url" validate:"omitempty,url"`
	SchoolID               string        `koanf:"school_id" validate:"required"`
	StudentID              string        `koanf:"student_id" validate:"required"`
	ClientID               string        `koanf:"client_id" validate:"required"`
	ClientSecret           string        `koanf:"client_secret" validate:"required"`
	DefaultEstimateMinutes int           `koanf:"default_estimate_minutes" validate:"min=1"`
	RequestTimeout         time.Duration `koanf:"request_timeout"`
}

type GoogleConfig struct {
	ClientID     string   `koanf:"client_id"`
	ClientSecret string   `koanf:"client_secret"`
	RedirectURI  string   `koanf:"redirect_uri" validate:"omitempty,url"`
	Scopes       []string `koanf:"scopes" validate:"min=1"`
}

// ConfigError is returned when configuration prevents startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %s", e.Field, e.Reason)
}

// Default returns the configuration used when nothing is set in the environment.
func Default() *Config {
	return &Config{
		Env: "development",
		Server: ServerConfig{
			Port:            4000,
			CORSOrigins:     []string{"*"},
			SyncRateLimit:   10,
			ShutdownTimeout: 15 * time.Second,
		},
		Queue: QueueConfig{Topic: "pronote-sync"},
		Sync: SyncConfig{
			CronSchedule:        "0 * * * *",
			RunInitialOnStartup: true,
		},
		Log: LogConfig{Level: "info"},
		Pronote: PronoteConfig{
			Mode:                   ModeMock,
			SchoolID:               "demo-school",
			StudentID:              "demo-student",
			ClientID:               "demo-client",
			ClientSecret:           "demo-secret",
			DefaultEstimateMinutes: 45,
			RequestTimeout:         8 * time.Second,
		},
		Google: GoogleConfig{
			RedirectURI: "http://localhost:4000/auth/google/callback",
			Scopes: []string{
				"https://www.googleapis.com/auth/documents",
				"https://www.googleapis.com/auth/drive.readonly",
				"https://www.googleapis.com/auth/calendar.readonly",
			},
		},
	}
}

// envKeys maps environment variable names to config paths.
var envKeys = map[string]string{
	"APP_ENV":                               "env",
	"NODE_ENV":                              "env",
	"PORT":                                  "server.port",
	"CORS_ORIGINS":                          "server.cors_origins",
	"SYNC_RATE_LIMIT":                       "server.sync_rate_limit",
	"SHUTDOWN_TIMEOUT":                      "server.shutdown_timeout",
	"DATABASE_URL":                          "storage.database_url",
	"SQLITE_PATH":                           "storage.sqlite_path",
	"QUEUE_URL":                             "queue.url",
	"REDIS_URL":                             "queue.url",
	"NATS_URL":                              "queue.url",
	"QUEUE_TOPIC":                           "queue.topic",
	"SYNC_CRON_SCHEDULE":                    "sync.cron_schedule",
	"RUN_INITIAL_SYNC_ON_STARTUP":           "sync.run_initial_on_startup",
	"LOG_LEVEL":                             "log.level",
	"LOG_FORMAT":                            "log.format",
	"PRONOTE_API_MODE":                      "pronote.mode",
	"PRONOTE_BASE_URL":                      "pronote.base_url",
	"PRONOTE_SCHOOL_ID":                     "pronote.school_id",
	"PRONOTE_STUDENT_ID":                    "pronote.student_id",
	"PRONOTE_CLIENT_ID":                     "pronote.client_id",
	"PRONOTE_CLIENT_SECRET":                 "pronote.client_secret",
	"PRONOTE_DEFAULT_TIME_ESTIMATE_MINUTES": "pronote.default_estimate_minutes",
	"PRONOTE_REQUEST_TIMEOUT":               "pronote.request_timeout",
	"GOOGLE_CLIENT_ID":                      "google.client_id",
	"GOOGLE_CLIENT_SECRET":                  "google.client_secret",
	"GOOGLE_REDIRECT_URI":                   "google.redirect_uri",
	"GOOGLE_SCOPES":                         "google.scopes",
}

var sliceKeys = []string{"server.cors_origins", "google.scopes"}

// Load reads .env (if present) and the process environment on top of Default.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &ConfigError{Field: ".env", Reason: err.Error()}
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Unknown variables map to "" and are skipped by the provider.
	if err := k.Load(env.Provider("", ".", func(key string) string {
		return envKeys[key]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := splitSlices(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, &ConfigError{Field: "environment", Reason: err.Error()}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitSlices(k *koanf.Koanf) error {
	for _, path := range sliceKeys {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ConfigError{Field: verrs[0].Namespace(), Reason: "failed " + verrs[0].Tag() + " check"}
		}
		return &ConfigError{Field: "config", Reason: err.Error()}
	}

	if c.Pronote.Mode == ModeLive && c.Pronote.BaseURL == "" {
		return &ConfigError{Field: "PRONOTE_BASE_URL", Reason: "required when PRONOTE_API_MODE=live"}
	}

	if _, err := cron.ParseStandard(c.Sync.CronSchedule); err != nil {
		return &ConfigError{Field: "SYNC_CRON_SCHEDULE", Reason: err.Error()}
	}
	return nil
}

// IsProduction reports whether the app runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// LogFormat resolves the effective log format.
func (c *Config) LogFormat() string {
	if c.Log.Format != "" {
		return c.Log.Format
	}
	if c.IsProduction() {
		return "json"
	}
	return "console"
}

// QueueEnabled reports whether the durable job backend is configured.
func (c *Config) QueueEnabled() bool {
	return c.Queue.URL != ""
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
