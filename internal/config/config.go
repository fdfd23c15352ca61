package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is read, when present, before the process environment.
const DefaultEnvFile = "config/local.env"

// Provider names accepted in PROVIDERS.
const (
	ProviderFoursquare   = "foursquare"
	ProviderGooglePlaces = "google_places"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Providers ProvidersConfig
	Cache     CacheConfig
	Redis     RedisConfig
	Events    EventsConfig
	CORS      CORSConfig
	Logging   LoggingConfig

	// Timezone names the zone specials are evaluated in; empty means the
	// host's local zone.
	Timezone string

	// SeedOnStart loads the demo catalogue when serve starts against an
	// empty database.
	SeedOnStart bool
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// AuthConfig holds token settings
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// ProvidersConfig selects and tunes the external venue providers.
type ProvidersConfig struct {
	// Enabled lists provider names. When PROVIDERS is unset every provider
	// with a key is enabled.
	Enabled           []string
	FoursquareKey     string
	GooglePlacesKey   string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Key returns the API key configured for provider name.
func (p ProvidersConfig) Key(name string) string {
	switch name {
	case ProviderFoursquare:
		return p.FoursquareKey
	case ProviderGooglePlaces:
		return p.GooglePlacesKey
	default:
		return ""
	}
}

// CacheConfig holds the in-process provider response cache settings
type CacheConfig struct {
	TTL        time.Duration
	MaxEntries int
}

// RedisConfig enables the shared provider cache tier when URL is set.
type RedisConfig struct {
	URL    string
	Prefix string
}

// EventsConfig enables AMQP event publishing when URL is set.
type EventsConfig struct {
	URL   string
	Queue string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// Load reads DefaultEnvFile, if any, and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load(DefaultEnvFile)
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from getenv. Malformed values are
// reported; missing required values are left for Validate.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := env{get: getenv}
	cfg := &Config{}

	cfg.Server.Host = e.str("HOST", "0.0.0.0")
	cfg.Server.Port = e.integer("PORT", 8080)
	cfg.Server.ReadTimeout = e.duration("SERVER_READ_TIMEOUT", 10*time.Second)
	cfg.Server.WriteTimeout = e.duration("SERVER_WRITE_TIMEOUT", 30*time.Second)
	cfg.Server.ShutdownTimeout = e.duration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second)

	cfg.Database.URL = e.str("DATABASE_URL", "")

	cfg.Auth.JWTSecret = e.str("JWT_SECRET", "")
	cfg.Auth.TokenTTL = e.duration("JWT_TTL", 24*time.Hour)

	cfg.Providers.FoursquareKey = e.str("FOURSQUARE_API_KEY", "")
	cfg.Providers.GooglePlacesKey = e.str("GOOGLE_PLACES_API_KEY", "")
	cfg.Providers.Timeout = e.duration("PROVIDER_TIMEOUT", 5*time.Second)
	cfg.Providers.RequestsPerSecond = e.number("PROVIDER_RPS", 5)
	cfg.Providers.Burst = e.integer("PROVIDER_BURST", 5)
	if raw := e.get("PROVIDERS"); raw != "" {
		cfg.Providers.Enabled = splitList(raw)
	} else {
		for _, name := range []string{ProviderFoursquare, ProviderGooglePlaces} {
			if cfg.Providers.Key(name) != "" {
				cfg.Providers.Enabled = append(cfg.Providers.Enabled, name)
			}
		}
	}

	cfg.Cache.TTL = e.duration("PROVIDER_CACHE_TTL", time.Hour)
	cfg.Cache.MaxEntries = e.integer("PROVIDER_CACHE_ENTRIES", 1024)

	cfg.Redis.URL = e.str("REDIS_URL", "")
	cfg.Redis.Prefix = e.str("REDIS_PREFIX", "onthecheap:provider")

	cfg.Events.URL = e.str("RABBITMQ_URL", e.str("AMQP_URL", ""))
	cfg.Events.Queue = e.str("EVENTS_QUEUE", "onthecheap.events")

	cfg.CORS.AllowedOrigins = splitList(e.str("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"))

	cfg.Logging.Level = strings.ToLower(e.str("LOG_LEVEL", "info"))
	cfg.Logging.Format = strings.ToLower(e.str("LOG_FORMAT", "json"))

	cfg.Timezone = e.str("TIMEZONE", "")
	cfg.SeedOnStart = e.boolean("SEED_ON_START", false)

	if len(e.errs) > 0 {
		return nil, fmt.Errorf("parse config:\n  - %s", strings.Join(e.errs, "\n  - "))
	}
	return cfg, nil
}

// Validate checks that all required configuration is present and valid
func (c *Config) Validate() error {
	var problems []string

	if err := c.ValidateDatabase(); err != nil {
		problems = append(problems, err.Error())
	}

	if c.Auth.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	} else if len(c.Auth.JWTSecret) < 16 {
		problems = append(problems, "JWT_SECRET must be at least 16 characters")
	}
	if c.Auth.TokenTTL <= 0 {
		problems = append(problems, "JWT_TTL must be positive")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, "PORT must be between 1 and 65535")
	}

	problems = append(problems, c.providerProblems()...)

	if c.Cache.MaxEntries < 1 {
		problems = append(problems, "PROVIDER_CACHE_ENTRIES must be at least 1")
	}
	if c.Cache.TTL <= 0 {
		problems = append(problems, "PROVIDER_CACHE_TTL must be positive")
	}

	if _, err := c.Location(); err != nil {
		problems = append(problems, fmt.Sprintf("TIMEZONE: %v", err))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		problems = append(problems, "LOG_LEVEL must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		problems = append(problems, "LOG_FORMAT must be one of: json, text")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// ValidateDatabase checks only what the database-bound commands need.
func (c *Config) ValidateDatabase() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	return nil
}

func (c *Config) providerProblems() []string {
	var problems []string
	seen := map[string]bool{}
	for _, name := range c.Providers.Enabled {
		switch name {
		case ProviderFoursquare, ProviderGooglePlaces:
		default:
			problems = append(problems, fmt.Sprintf("PROVIDERS: unknown provider %q", name))
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		if c.Providers.Key(name) == "" {
			problems = append(problems, fmt.Sprintf("%s is enabled but %s is not set", name, keyVar(name)))
		}
	}
	if c.Providers.Timeout <= 0 {
		problems = append(problems, "PROVIDER_TIMEOUT must be positive")
	}
	if c.Providers.RequestsPerSecond < 0 {
		problems = append(problems, "PROVIDER_RPS must not be negative")
	}
	return problems
}

func keyVar(provider string) string {
	if provider == ProviderGooglePlaces {
		return "GOOGLE_PLACES_API_KEY"
	}
	return "FOURSQUARE_API_KEY"
}

// env reads typed values and collects parse errors instead of failing on
// the first one.
type env struct {
	get  func(string) string
	errs []string
}

func (e *env) str(key, fallback string) string {
	if value := strings.TrimSpace(e.get(key)); value != "" {
		return value
	}
	return fallback
}

func (e *env) integer(key string, fallback int) int {
	raw := strings.TrimSpace(e.get(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: invalid integer %q", key, raw))
		return fallback
	}
	return v
}

func (e *env) number(key string, fallback float64) float64 {
	raw := strings.TrimSpace(e.get(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: invalid number %q", key, raw))
		return fallback
	}
	return v
}

func (e *env) duration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(e.get(key))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: invalid duration %q", key, raw))
		return fallback
	}
	return v
}

func (e *env) boolean(key string, fallback bool) bool {
	raw := strings.TrimSpace(e.get(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: invalid boolean %q", key, raw))
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
