// Package config loads the application configuration.
//
// Values come from three layers, later ones winning: built-in defaults, an
// optional TOML file named by CONFIG_FILE, and environment variables (a .env
// file in the working directory is loaded into the environment first).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	_ "github.com/joho/godotenv/autoload"
)

// EnvConfigFile names the environment variable holding the TOML file path
const EnvConfigFile = "CONFIG_FILE"

// Remote describes the upstream catalogue and auth APIs
type Remote struct {
	APIBaseURL  string        `toml:"api_base_url"`  // e.g. http://localhost:8000/api, empty = offline
	AuthBaseURL string        `toml:"auth_base_url"` // e.g. http://localhost:5000/api/auth
	Timeout     time.Duration `toml:"timeout"`

	BreakerMaxRequests uint32        `toml:"breaker_max_requests"` // allowed in half-open state
	BreakerInterval    time.Duration `toml:"breaker_interval"`
	BreakerTimeout     time.Duration `toml:"breaker_timeout"`
	BreakerFailures    uint32        `toml:"breaker_failures"` // consecutive failures before opening
}

// Auth configures the offline authentication provider
type Auth struct {
	JWTSecret string        `toml:"jwt_secret"`
	JWTExpire time.Duration `toml:"jwt_expire"`
	RateLimit float64       `toml:"rate_limit"` // login/register requests per second
}

// Catalog configures the local catalogue behaviour
type Catalog struct {
	DatasetPath         string `toml:"dataset_path"` // empty = embedded dataset
	PageSize            int    `toml:"page_size"`
	RecommendationLimit int    `toml:"recommendation_limit"`
	MatchScore          string `toml:"match_score"` // genre or random
}

// Email configures the upload notifier
type Email struct {
	SMTPHost       string `toml:"smtp_host"`
	SMTPPort       int    `toml:"smtp_port"`
	SenderEmail    string `toml:"sender"`
	SenderPassword string `toml:"password"`
	RecipientEmail string `toml:"recipient"`
}

// Config is the root configuration
type Config struct {
	RunMode        string `toml:"run_mode"` // server or once
	DataPath       string `toml:"data_path"`
	ListenAddr     string `toml:"listen_addr"`
	FrontendURL    string `toml:"frontend_url"`
	LogLevel       string `toml:"log_level"`
	LogFormat      string `toml:"log_format"`
	RatingSyncSpec string `toml:"rating_sync_spec"` // cron spec with seconds, empty disables

	Remote  Remote  `toml:"remote"`
	Auth    Auth    `toml:"auth"`
	Catalog Catalog `toml:"catalog"`
	Email   Email   `toml:"email"`
}

// DefaultJWTSecret signs tokens when neither the file nor JWT_SECRET sets one
const DefaultJWTSecret = "change-me-movie-mate-secret"

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		RunMode:        "server",
		DataPath:       "./data",
		ListenAddr:     "127.0.0.1:5000",
		FrontendURL:    "http://localhost:5173",
		LogLevel:       "info",
		LogFormat:      "json",
		RatingSyncSpec: "0 */15 * * * *",
		Remote: Remote{
			Timeout:            5 * time.Second,
			BreakerMaxRequests: 1,
			BreakerInterval:    time.Minute,
			BreakerTimeout:     30 * time.Second,
			BreakerFailures:    5,
		},
		Auth: Auth{
			JWTSecret: DefaultJWTSecret,
			JWTExpire: 30 * 24 * time.Hour,
			RateLimit: 5,
		},
		Catalog: Catalog{
			PageSize:            30,
			RecommendationLimit: 10,
			MatchScore:          "genre",
		},
		Email: Email{
			SMTPPort: 587,
		},
	}
}

// Load builds the configuration from defaults, the TOML file and the environment
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UsingDefaultJWTSecret reports whether tokens are signed with the
// publicly known built-in secret
func (c *Config) UsingDefaultJWTSecret() bool {
	return c.Auth.JWTSecret == DefaultJWTSecret
}

// LoadFile decodes a TOML file over cfg. A missing file is not an error.
func LoadFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.RunMode, "RUN_MODE")
	setString(&cfg.DataPath, "DATA_PATH")
	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.FrontendURL, "FRONTEND_URL")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")
	if v, ok := os.LookupEnv("RATING_SYNC_SPEC"); ok {
		cfg.RatingSyncSpec = v
	}

	setString(&cfg.Remote.APIBaseURL, "API_BASE_URL")
	setString(&cfg.Remote.AuthBaseURL, "AUTH_BASE_URL")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Catalog.DatasetPath, "DATASET_PATH")
	setString(&cfg.Catalog.MatchScore, "MATCH_SCORE")

	setString(&cfg.Email.SMTPHost, "EMAIL_SMTP_HOST")
	setString(&cfg.Email.SenderEmail, "EMAIL_SENDER")
	setString(&cfg.Email.SenderPassword, "EMAIL_PASSWORD")
	setString(&cfg.Email.RecipientEmail, "EMAIL_RECIPIENT")

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&cfg.Remote.Timeout, "REMOTE_TIMEOUT"},
		{&cfg.Remote.BreakerInterval, "BREAKER_INTERVAL"},
		{&cfg.Remote.BreakerTimeout, "BREAKER_TIMEOUT"},
		{&cfg.Auth.JWTExpire, "JWT_EXPIRE"},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.key); err != nil {
			return err
		}
	}

	ints := []struct {
		dst *int
		key string
	}{
		{&cfg.Catalog.PageSize, "PAGE_SIZE"},
		{&cfg.Catalog.RecommendationLimit, "RECOMMENDATION_LIMIT"},
		{&cfg.Email.SMTPPort, "EMAIL_SMTP_PORT"},
	}
	for _, i := range ints {
		if err := setInt(i.dst, i.key); err != nil {
			return err
		}
	}

	var failures int
	if err := setInt(&failures, "BREAKER_FAILURES"); err != nil {
		return err
	}
	if failures > 0 {
		cfg.Remote.BreakerFailures = uint32(failures)
	}

	if v := os.Getenv("AUTH_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid AUTH_RATE_LIMIT %q: %w", v, err)
		}
		cfg.Auth.RateLimit = f
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// setDuration accepts Go duration strings and a day suffix such as "30d"
func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

// ParseDuration parses a time.Duration string or a whole number of days ("30d")
func ParseDuration(v string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(v)
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

// Offline reports whether no upstream catalogue API is configured
func (c *Config) Offline() bool {
	return c.Remote.APIBaseURL == ""
}
