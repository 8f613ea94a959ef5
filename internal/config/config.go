// Package config loads estate settings from defaults, an optional YAML file
// and ESTATE_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "ESTATE_"

type Config struct {
	Addr      string          `yaml:"addr" env:"ADDR"`
	Database  DatabaseConfig  `yaml:"database" envPrefix:"DB_"`
	Uploads   UploadsConfig   `yaml:"uploads" envPrefix:"UPLOAD_"`
	CORS      CORSConfig      `yaml:"cors" envPrefix:"CORS_"`
	Auth      AuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	Mail      MailConfig      `yaml:"mail" envPrefix:"MAIL_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envPrefix:"RATE_"`
	Carousel  CarouselConfig  `yaml:"carousel" envPrefix:"CAROUSEL_"`
}

type DatabaseConfig struct {
	Path        string        `yaml:"path" env:"PATH"`
	BusyTimeout time.Duration `yaml:"busy_timeout" env:"BUSY_TIMEOUT"`
	Synchronous string        `yaml:"synchronous" env:"SYNCHRONOUS"`
	CacheSize   int           `yaml:"cache_size" env:"CACHE_SIZE"`
}

type UploadsConfig struct {
	Dir     string `yaml:"dir" env:"DIR"`
	MaxSize int64  `yaml:"max_size" env:"MAX_SIZE"`
	// Watch invalidates the image existence cache on file system events.
	Watch bool `yaml:"watch" env:"WATCH"`
}

type CORSConfig struct {
	Origins []string `yaml:"origins" env:"ORIGINS" envSeparator:","`
}

type AuthConfig struct {
	RequireAuth bool          `yaml:"require_auth" env:"REQUIRE"`
	SessionTTL  time.Duration `yaml:"session_ttl" env:"SESSION_TTL"`
	AdminEmail  string        `yaml:"admin_email" env:"ADMIN_EMAIL"`
}

type MailConfig struct {
	ResendAPIKey string        `yaml:"resend_api_key" env:"RESEND_API_KEY"`
	Endpoint     string        `yaml:"endpoint" env:"ENDPOINT"`
	From         string        `yaml:"from" env:"FROM"`
	To           string        `yaml:"to" env:"TO"`
	Timeout      time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

type LogConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

type TelemetryConfig struct {
	// Endpoint is an OTLP/HTTP collector (host:port). Empty disables tracing.
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT"`
	Insecure    bool   `yaml:"insecure" env:"INSECURE"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

type RateLimitConfig struct {
	LoginInterval   time.Duration `yaml:"login_interval" env:"LOGIN_INTERVAL"`
	ContactInterval time.Duration `yaml:"contact_interval" env:"CONTACT_INTERVAL"`
}

type CarouselConfig struct {
	APIBase        string        `yaml:"api_base" env:"API_BASE"`
	SlideDuration  time.Duration `yaml:"slide_duration" env:"SLIDE_DURATION"`
	SwipeThreshold float64       `yaml:"swipe_threshold" env:"SWIPE_THRESHOLD"`
	Breakpoint     int           `yaml:"breakpoint" env:"BREAKPOINT"`
	TickInterval   time.Duration `yaml:"tick_interval" env:"TICK_INTERVAL"`
	ResizeDebounce time.Duration `yaml:"resize_debounce" env:"RESIZE_DEBOUNCE"`
	// CellWidth converts terminal columns into viewport pixels.
	CellWidth int `yaml:"cell_width" env:"CELL_WIDTH"`
}

func DefaultConfig() *Config {
	return &Config{
		Addr: ":3000",
		Database: DatabaseConfig{
			Path:        "./data/estate.db",
			BusyTimeout: 5 * time.Second,
			Synchronous: "NORMAL",
			CacheSize:   -20000,
		},
		Uploads: UploadsConfig{
			Dir:     "./uploads",
			MaxSize: 20 << 20,
			Watch:   true,
		},
		CORS: CORSConfig{Origins: []string{"*"}},
		Auth: AuthConfig{
			RequireAuth: true,
			SessionTTL:  24 * time.Hour,
			AdminEmail:  "admin@localhost",
		},
		Mail: MailConfig{
			Endpoint: "https://api.resend.com/emails",
			From:     "onboarding@resend.dev",
			Timeout:  10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{
			ServiceName: "estate",
		},
		RateLimit: RateLimitConfig{
			LoginInterval:   time.Second,
			ContactInterval: 30 * time.Second,
		},
		Carousel: CarouselConfig{
			APIBase:        "http://localhost:3000",
			SlideDuration:  5 * time.Second,
			SwipeThreshold: 50,
			Breakpoint:     768,
			TickInterval:   100 * time.Millisecond,
			CellWidth:      8,
		},
	}
}

// Load builds the configuration. A missing file at path is not an error;
// an empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseEnv applies ESTATE_* variables on top of cfg. RESEND_API_KEY is also
// honoured without the prefix.
func ParseEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if cfg.Mail.ResendAPIKey == "" {
		cfg.Mail.ResendAPIKey = os.Getenv("RESEND_API_KEY")
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path must not be empty"))
	}
	switch strings.ToUpper(c.Database.Synchronous) {
	case "", "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		errs = append(errs, fmt.Errorf("database.synchronous %q is not OFF, NORMAL, FULL or EXTRA", c.Database.Synchronous))
	}
	if c.Uploads.Dir == "" {
		errs = append(errs, errors.New("uploads.dir must not be empty"))
	}
	if c.Uploads.MaxSize <= 0 {
		errs = append(errs, errors.New("uploads.max_size must be positive"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("auth.session_ttl must be positive"))
	}
	if c.RateLimit.LoginInterval < 0 || c.RateLimit.ContactInterval < 0 {
		errs = append(errs, errors.New("rate_limit intervals must not be negative"))
	}
	if c.Carousel.SlideDuration <= 0 {
		errs = append(errs, errors.New("carousel.slide_duration must be positive"))
	}
	if c.Carousel.SwipeThreshold <= 0 {
		errs = append(errs, errors.New("carousel.swipe_threshold must be positive"))
	}
	if c.Carousel.Breakpoint <= 0 {
		errs = append(errs, errors.New("carousel.breakpoint must be positive"))
	}
	if c.Carousel.ResizeDebounce < 0 {
		errs = append(errs, errors.New("carousel.resize_debounce must not be negative"))
	}
	if u, err := url.Parse(c.Carousel.APIBase); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("carousel.api_base %q must be an http(s) URL", c.Carousel.APIBase))
	}
	return errors.Join(errs...)
}
