// Package config loads the service configuration.
//
// Sources, lowest priority first: built-in defaults, an optional YAML file
// (CONFIG_PATH, else config.yaml in the working directory), and environment
// variables. A .env file is read into the environment first if present.
//
// Environment variables use the ANIMA_ prefix with "__" between levels:
//
//	ANIMA_DATABASE__URL=postgres://...
//	ANIMA_AUTH__JWT_SECRET=...
//	ANIMA_SERVER__CORS_ORIGINS=https://a.example,https://b.example
//
// The unprefixed names of the legacy .env files (DATABASE_URL, JWT_SECRET,
// SPOTIFY_CLIENT_ID, ...) are also accepted.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // timezone names resolve in minimal containers

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/justestif/anima-analytics/internal/logging"
)

const (
	// PathEnvVar overrides the config file location.
	PathEnvVar = "CONFIG_PATH"

	defaultPath = "config.yaml"
	envPrefix   = "ANIMA_"

	// MemoryDatabaseURL selects the in-process store instead of PostgreSQL.
	MemoryDatabaseURL = "memory://"
)

var (
	// ErrMissingDatabaseURL is returned when database.url is not set.
	ErrMissingDatabaseURL = errors.New("missing database url: set ANIMA_DATABASE__URL or DATABASE_URL")

	// ErrMissingJWTSecret is returned when auth.jwt_secret is not set.
	ErrMissingJWTSecret = errors.New("missing jwt secret: set ANIMA_AUTH__JWT_SECRET or JWT_SECRET")
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Auth      AuthConfig      `koanf:"auth"`
	Analytics AnalyticsConfig `koanf:"analytics"`
	Spotify   SpotifyConfig   `koanf:"spotify"`
	Redis     RedisConfig     `koanf:"redis"`
	Log       LogConfig       `koanf:"log"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimit       int           `koanf:"rate_limit"` // requests per minute per IP, 0 disables
}

// DatabaseConfig configures persistence.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// InMemory reports whether the in-process store is selected.
func (c DatabaseConfig) InMemory() bool {
	return c.URL == MemoryDatabaseURL
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
	Issuer    string `koanf:"issuer"`
}

// AnalyticsConfig configures aggregation.
type AnalyticsConfig struct {
	Timezone    string        `koanf:"timezone"`
	DedupWindow time.Duration `koanf:"dedup_window"`
}

// Location returns the configured timezone.
func (c AnalyticsConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SpotifyConfig configures the Spotify OAuth2 client. Empty credentials
// disable the Spotify routes.
type SpotifyConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RedirectURL  string `koanf:"redirect_url"`
}

// Enabled reports whether Spotify credentials are configured.
func (c SpotifyConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// RedisConfig configures the token store. An empty Addr keeps tokens in
// process memory.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Logging converts to the logging package configuration.
func (c LogConfig) Logging() logging.Config {
	return logging.Config{Level: c.Level, Format: c.Format, Caller: c.Caller}
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit:       120,
		},
		Analytics: AnalyticsConfig{
			Timezone:    "UTC",
			DedupWindow: 30 * time.Second,
		},
		Spotify: SpotifyConfig{
			RedirectURL: "http://localhost:8080/v1/auth/spotify/callback",
		},
		Redis: RedisConfig{
			Prefix: "anima:",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// legacyEnv maps unprefixed variable names to config keys.
var legacyEnv = map[string]string{
	"DATABASE_URL":          "database.url",
	"JWT_SECRET":            "auth.jwt_secret",
	"JWT_ISSUER":            "auth.issuer",
	"SPOTIFY_CLIENT_ID":     "spotify.client_id",
	"SPOTIFY_CLIENT_SECRET": "spotify.client_secret",
	"SPOTIFY_REDIRECT_URI":  "spotify.redirect_url",
	"REDIS_ADDR":            "redis.addr",
	"REDIS_PASSWORD":        "redis.password",
	"LOG_LEVEL":             "log.level",
}

// sliceKeys may be given as comma-separated strings.
var sliceKeys = []string{"server.cors_origins"}

// Load reads the configuration and validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := configPath(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", legacyKey), nil); err != nil {
		return nil, fmt.Errorf("loading legacy environment: %w", err)
	}
	if err := k.Load(env.Provider(envPrefix, ".", prefixedKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if err := splitSlices(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return ErrMissingDatabaseURL
	}
	if c.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if _, err := c.Analytics.Location(); err != nil {
		return err
	}
	if c.Analytics.DedupWindow < 0 {
		return fmt.Errorf("analytics.dedup_window must not be negative, got %s", c.Analytics.DedupWindow)
	}
	return nil
}

func configPath() string {
	if path := os.Getenv(PathEnvVar); path != "" {
		return path
	}
	if _, err := os.Stat(defaultPath); err == nil {
		return defaultPath
	}
	return ""
}

// prefixedKey maps ANIMA_SERVER__CORS_ORIGINS to server.cors_origins.
func prefixedKey(name string) string {
	name = strings.TrimPrefix(name, envPrefix)
	return strings.ReplaceAll(strings.ToLower(name), "__", ".")
}

// legacyKey returns "" for variables that are not legacy names, which the
// env provider skips.
func legacyKey(name string) string {
	return legacyEnv[name]
}

func splitSlices(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		s, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(key, parts); err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
	}
	return nil
}
