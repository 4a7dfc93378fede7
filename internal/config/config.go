// Package config loads cache settings from the environment.
//
// Values are read from environment variables, optionally seeded from a
// .env file with LoadEnvFile. Unset variables fall back to defaults.
//
// Environment Variables:
//
//   - CACHE_ENABLED: Enable memoization (default: true)
//   - CACHE_TTL: Default TTL in seconds, at least 1 (default: 3600)
//   - CACHE_STRATEGY: "single" or "multi_level" (default: multi_level)
//   - CACHE_MEMORY_MAX_SIZE: In-process tier capacity (default: 1000)
//   - CACHE_EVICTION: "insertion" or "recency" (default: insertion)
//   - CACHE_DIR: Durable tier root directory (default: ./cache)
//   - CACHE_SERIALIZER: "json" or "msgpack" (default: json)
//   - CACHE_COMPRESSION: "none", "gzip" or "zstd" (default: none)
//   - REDIS_URL: Remote tier URL (default: redis://localhost:6379/0)
//   - CACHE_REDIS_TIMEOUT: Remote dial and command timeout (default: 5s)
//   - CACHE_OBJECT_URL: Optional s3:// or gs:// URL for an object tier
//   - LOG_LEVEL: debug, info, warn or error (default: info)
//
// An unknown CACHE_STRATEGY or LOG_LEVEL is logged and replaced by its
// default rather than rejected.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/thinktank/tieredcache/internal/backend/memory/cachestrategy/lru"
	"github.com/thinktank/tieredcache/internal/backend/object"
	"github.com/thinktank/tieredcache/internal/serializer"
)

// Strategy selects which tiers a namespace cache is built from.
type Strategy string

const (
	// StrategySingle builds an in-process tier only.
	StrategySingle Strategy = "single"
	// StrategyMultiLevel builds memory, remote and durable tiers.
	StrategyMultiLevel Strategy = "multi_level"
)

// Defaults.
const (
	DefaultTTL           = time.Hour
	DefaultMemoryMaxSize = 1000
	DefaultDir           = "./cache"
	DefaultRedisURL      = "redis://localhost:6379/0"
	DefaultRedisTimeout  = 5 * time.Second
	DefaultLogLevel      = "info"
)

// Settings holds the cache configuration.
type Settings struct {
	Enabled       bool
	TTL           time.Duration
	Strategy      Strategy
	MemoryMaxSize int
	Eviction      string
	Dir           string
	Serializer    string
	Compression   string
	RedisURL      string
	RedisTimeout  time.Duration
	ObjectURL     string
	LogLevel      string
}

// Default returns the default settings.
func Default() Settings {
	return Settings{
		Enabled:       true,
		TTL:           DefaultTTL,
		Strategy:      StrategyMultiLevel,
		MemoryMaxSize: DefaultMemoryMaxSize,
		Eviction:      lru.PolicyInsertion.String(),
		Dir:           DefaultDir,
		Serializer:    serializer.FormatJSON.String(),
		Compression:   "none",
		RedisURL:      DefaultRedisURL,
		RedisTimeout:  DefaultRedisTimeout,
		LogLevel:      DefaultLogLevel,
	}
}

// LoadEnvFile seeds the environment from a .env file. Variables already set
// in the environment win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads settings from the environment. Malformed numbers, booleans
// and durations are errors. Unknown strategy and log level names are
// logged to logger and replaced by their defaults.
func Load(logger *zap.Logger) (Settings, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := Default()
	var errs []error

	s.Enabled = getBool("CACHE_ENABLED", s.Enabled, &errs)
	if secs := getInt("CACHE_TTL", int(s.TTL/time.Second), &errs); secs > 0 {
		s.TTL = time.Duration(secs) * time.Second
	} else {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be at least 1 second, got %d", secs))
	}
	s.Strategy = NormalizeStrategy(getEnv("CACHE_STRATEGY", string(s.Strategy)), logger)
	s.MemoryMaxSize = getInt("CACHE_MEMORY_MAX_SIZE", s.MemoryMaxSize, &errs)
	s.Eviction = getEnv("CACHE_EVICTION", s.Eviction)
	s.Dir = getEnv("CACHE_DIR", s.Dir)
	s.Serializer = getEnv("CACHE_SERIALIZER", s.Serializer)
	s.Compression = getEnv("CACHE_COMPRESSION", s.Compression)
	s.RedisURL = getEnv("REDIS_URL", s.RedisURL)
	s.RedisTimeout = getDuration("CACHE_REDIS_TIMEOUT", s.RedisTimeout, &errs)
	s.ObjectURL = getEnv("CACHE_OBJECT_URL", s.ObjectURL)
	s.LogLevel = NormalizeLogLevel(getEnv("LOG_LEVEL", s.LogLevel), logger)

	if err := errors.Join(errs...); err != nil {
		return s, err
	}
	return s, s.Validate()
}

// Validate checks that every setting names something the cache can build.
func (s Settings) Validate() error {
	if s.TTL < time.Second {
		return fmt.Errorf("TTL must be at least 1s, got %s", s.TTL)
	}
	switch s.Strategy {
	case StrategySingle, StrategyMultiLevel:
	default:
		return fmt.Errorf("CACHE_STRATEGY must be %q or %q", StrategySingle, StrategyMultiLevel)
	}
	if s.MemoryMaxSize < 1 {
		return fmt.Errorf("CACHE_MEMORY_MAX_SIZE must be a positive number")
	}
	if _, err := lru.ParsePolicy(s.Eviction); err != nil {
		return fmt.Errorf("CACHE_EVICTION: %w", err)
	}
	if _, err := serializer.ParseFormat(s.Serializer); err != nil {
		return fmt.Errorf("CACHE_SERIALIZER: %w", err)
	}
	if _, err := serializer.Compression(s.Compression); err != nil {
		return fmt.Errorf("CACHE_COMPRESSION: %w", err)
	}
	if s.Dir == "" {
		return fmt.Errorf("CACHE_DIR must not be empty")
	}
	if s.RedisTimeout <= 0 {
		return fmt.Errorf("CACHE_REDIS_TIMEOUT must be positive")
	}
	if s.ObjectURL != "" {
		if _, err := object.ParseLocation(s.ObjectURL); err != nil {
			return fmt.Errorf("CACHE_OBJECT_URL: %w", err)
		}
	}
	return nil
}

// NormalizeStrategy lowercases name and maps unknown values to
// StrategyMultiLevel with a warning.
func NormalizeStrategy(name string, logger *zap.Logger) Strategy {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(name))); s {
	case StrategySingle, StrategyMultiLevel:
		return s
	default:
		logger.Warn("unknown cache strategy, defaulting to multi_level", zap.String("strategy", name))
		return StrategyMultiLevel
	}
}

// NormalizeLogLevel lowercases name and maps unknown values to "info" with
// a warning. "warning" is accepted as "warn".
func NormalizeLogLevel(name string, logger *zap.Logger) string {
	level := strings.ToLower(strings.TrimSpace(name))
	switch level {
	case "debug", "info", "warn", "error":
		return level
	case "warning":
		return "warn"
	default:
		logger.Warn("unknown log level, defaulting to info", zap.String("level", name))
		return DefaultLogLevel
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool, errs *[]error) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a boolean, got %q", key, value))
		return defaultValue
	}
	return parsed
}

func getInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a number, got %q", key, value))
		return defaultValue
	}
	return parsed
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a duration (e.g., '5s'), got %q", key, value))
		return defaultValue
	}
	return parsed
}
