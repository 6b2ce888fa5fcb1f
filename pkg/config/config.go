// Package config loads the admin console configuration.
//
// Sources, highest priority first:
//  1. command-line flags
//  2. environment variables with ADMIN_ prefix (e.g. ADMIN_API_TOKEN)
//  3. admin-console.toml
//  4. built-in defaults
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all console configuration.
type Config struct {
	API   APIConfig
	Redis RedisConfig
	Log   LogConfig
	Feed  FeedConfig
	HTTP  HTTPConfig

	// File is the config file that was read, empty if none.
	File string
}

// APIConfig holds record store connection settings.
type APIConfig struct {
	BaseURL     string
	Token       string
	AdminID     string
	UserAgent   string
	Timeout     time.Duration
	RateLimit   float64 // requests per second, 0 = unlimited
	Burst       int
	MaxAttempts int
}

// RedisConfig holds Redis settings for the response cache and quota state.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Pretty bool
}

// FeedConfig holds list synchronization settings.
type FeedConfig struct {
	PageSize          int
	FetchTimeout      time.Duration
	ExportConcurrency int
	ExportPageSize    int

	// ObserverTTL closes console proximity observers that have not reported
	// within this duration.
	ObserverTTL time.Duration
}

// HTTPConfig holds console server settings.
type HTTPConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"api-url":      "api.base_url",
	"api-token":    "api.token",
	"admin-id":     "api.admin_id",
	"rate-limit":   "api.rate_limit",
	"redis":        "redis.enabled",
	"redis-addr":   "redis.addr",
	"log-level":    "log.level",
	"log-pretty":   "log.pretty",
	"page-size":    "feed.page_size",
	"port":         "http.port",
	"max-attempts": "api.max_attempts",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.token", "")
	v.SetDefault("api.admin_id", "")
	v.SetDefault("api.user_agent", "shop-admin-client/1.0")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("api.rate_limit", 10.0)
	v.SetDefault("api.burst", 5)
	v.SetDefault("api.max_attempts", 3)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("feed.page_size", 7)
	v.SetDefault("feed.fetch_timeout", 15*time.Second)
	v.SetDefault("feed.export_concurrency", 4)
	v.SetDefault("feed.export_page_size", 50)
	v.SetDefault("feed.observer_ttl", 2*time.Minute)

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
}

// NewFlagSet returns the console flag set. Flags left unset do not override
// lower-priority sources.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringP("config", "c", "", "path to config file (default: ./admin-console.toml)")
	fs.String("api-url", "", "record store base URL")
	fs.String("api-token", "", "session token")
	fs.String("admin-id", "", "admin account id")
	fs.Float64("rate-limit", 10, "max requests per second to the store (0 = unlimited)")
	fs.Int("max-attempts", 3, "attempts per request including the first")
	fs.Bool("redis", false, "enable Redis-backed cache and quota tracking")
	fs.String("redis-addr", "localhost:6379", "Redis address")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.Bool("log-pretty", false, "human-readable log output")
	fs.Int("page-size", 7, "records per page")
	fs.StringP("port", "p", "8080", "console HTTP port")
	return fs
}

// Load parses args and merges all configuration sources.
// It returns pflag.ErrHelp when -h or --help was given.
func Load(args []string) (*Config, error) {
	fs := NewFlagSet("admin-console")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	configFile, _ := fs.GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("admin-console")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/shop-admin")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("ADMIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL:     v.GetString("api.base_url"),
			Token:       v.GetString("api.token"),
			AdminID:     v.GetString("api.admin_id"),
			UserAgent:   v.GetString("api.user_agent"),
			Timeout:     v.GetDuration("api.timeout"),
			RateLimit:   v.GetFloat64("api.rate_limit"),
			Burst:       v.GetInt("api.burst"),
			MaxAttempts: v.GetInt("api.max_attempts"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Pretty: v.GetBool("log.pretty"),
		},
		Feed: FeedConfig{
			PageSize:          v.GetInt("feed.page_size"),
			FetchTimeout:      v.GetDuration("feed.fetch_timeout"),
			ExportConcurrency: v.GetInt("feed.export_concurrency"),
			ExportPageSize:    v.GetInt("feed.export_page_size"),
			ObserverTTL:       v.GetDuration("feed.observer_ttl"),
		},
		HTTP: HTTPConfig{
			Port:            v.GetString("http.port"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
		File: v.ConfigFileUsed(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.API.BaseURL == "" {
		invalid("api.base_url is required")
	} else if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		invalid("api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if c.API.Token == "" {
		invalid("api.token is required")
	}
	if c.API.UserAgent == "" {
		invalid("api.user_agent is required")
	}
	if c.API.Timeout <= 0 {
		invalid("api.timeout must be positive")
	}
	if c.API.RateLimit < 0 {
		invalid("api.rate_limit must not be negative")
	}
	if c.API.RateLimit > 0 && c.API.Burst < 1 {
		invalid("api.burst must be at least 1")
	}
	if c.API.MaxAttempts < 1 {
		invalid("api.max_attempts must be at least 1")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		invalid("redis.addr is required when redis is enabled")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		invalid("log.level %q is unknown", c.Log.Level)
	}
	if c.Feed.PageSize < 1 {
		invalid("feed.page_size must be at least 1")
	}
	if c.Feed.ExportConcurrency < 1 {
		invalid("feed.export_concurrency must be at least 1")
	}
	if c.Feed.ObserverTTL <= 0 {
		invalid("feed.observer_ttl must be positive")
	}
	if c.HTTP.Port == "" {
		invalid("http.port is required")
	}

	return errors.Join(errs...)
}
