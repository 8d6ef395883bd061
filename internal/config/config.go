package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-api-wrapper/internal/weather"
)

var validate = validator.New()

type AppConfig struct {
	// Upstream provider. The location is appended to BaseURL.
	BaseURL         string        `validate:"required,url"`
	APIKey          string        `validate:"required"`
	UnitGroup       string        `validate:"required"`
	Lang            string        `validate:"omitempty,max=16"`
	UpstreamTimeout time.Duration `validate:"gt=0"`
	Coalesce        bool

	// Cache store.
	CacheBackend string              `validate:"oneof=redis memcache memory"`
	CacheTTL     time.Duration       `validate:"gte=1s,lte=720h"`
	CachePolicy  weather.CachePolicy `validate:"oneof=strict degraded"`

	RedisAddr     string `validate:"required_if=CacheBackend redis"`
	RedisPassword string
	RedisDB       int      `validate:"gte=0"`
	MemcacheAddrs []string `validate:"required_if=CacheBackend memcache,dive,hostname_port"`

	// HealthInterval controls how often the cache store is probed.
	HealthInterval time.Duration `validate:"gt=0"`

	Port     string `validate:"required,numeric"`
	LogLevel zerolog.Level
}

// Load reads configuration from the environment, after loading .env when
// present, with sensible defaults.
func Load() (*AppConfig, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv parses and validates configuration from the process environment.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.BaseURL = os.Getenv("BASEURL")
	cfg.APIKey = os.Getenv("APIKEY")
	cfg.UnitGroup = getenvDefault("UPSTREAM_UNIT_GROUP", "us")
	cfg.Lang = os.Getenv("UPSTREAM_LANG")
	cfg.Coalesce = getenvBool("UPSTREAM_COALESCE", false)

	if cfg.UpstreamTimeout, err = getenvDuration("UPSTREAM_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	cfg.CacheBackend = strings.ToLower(getenvDefault("CACHE_BACKEND", "redis"))
	cfg.CachePolicy = weather.CachePolicy(strings.ToLower(getenvDefault("CACHE_POLICY", string(weather.PolicyStrict))))

	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", "180s"); err != nil {
		return nil, err
	}

	cfg.RedisAddr = getenvDefault("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getenvInt("REDIS_DB", 0)
	cfg.MemcacheAddrs = splitList(getenvDefault("MEMCACHE_ADDR", "localhost:11211"))

	if cfg.HealthInterval, err = getenvDuration("HEALTH_INTERVAL", "30s"); err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "3000")

	cfg.LogLevel, err = zerolog.ParseLevel(strings.ToLower(getenvDefault("LOG_LEVEL", "info")))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

// getenvDuration accepts Go durations ("3m") or a bare number of seconds ("180").
func getenvDuration(key, def string) (time.Duration, error) {
	v := getenvDefault(key, def)
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
