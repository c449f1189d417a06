package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	SessionBackendMongo  = "mongo"
	SessionBackendMemory = "memory"
)

type Config struct {
	HTTPPort           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64

	SessionBackend    string
	SessionCookieName string
	SessionTTL        time.Duration

	MongoURI            string
	MongoDBName         string
	MongoMaxPoolSize    uint64
	MongoMinPoolSize    uint64
	MongoConnectTimeout time.Duration

	// RedisAddr empty disables the bag cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	CatalogDriver      string
	CatalogDSN         string
	CatalogMaxFailures int
	CatalogOpenTimeout time.Duration

	// KafkaBrokers empty disables the checkout consumer.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	LogLevel string
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)), // 1MB

		SessionBackend:    getEnv("SESSION_BACKEND", SessionBackendMongo),
		SessionCookieName: getEnv("SESSION_COOKIE_NAME", "bag_session"),
		SessionTTL:        getEnvDuration("SESSION_TTL", 14*24*time.Hour),

		MongoURI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:         getEnv("MONGO_DB_NAME", "bagdb"),
		MongoMaxPoolSize:    getEnvUint("MONGO_MAX_POOL_SIZE", 100),
		MongoMinPoolSize:    getEnvUint("MONGO_MIN_POOL_SIZE", 10),
		MongoConnectTimeout: getEnvDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),

		RedisAddr:     lookupEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 15*time.Minute),

		CatalogDriver:      getEnv("CATALOG_DRIVER", "sqlite"),
		CatalogDSN:         getEnv("CATALOG_DSN", "file:catalog.db?_pragma=busy_timeout(5000)"),
		CatalogMaxFailures: getEnvInt("CATALOG_MAX_FAILURES", 5),
		CatalogOpenTimeout: getEnvDuration("CATALOG_OPEN_TIMEOUT", 30*time.Second),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "checkout-outbox"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "bag-service-consumer"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.SessionBackend {
	case SessionBackendMongo, SessionBackendMemory:
	default:
		return fmt.Errorf("invalid SESSION_BACKEND %q: want %s or %s", c.SessionBackend, SessionBackendMongo, SessionBackendMemory)
	}
	switch c.CatalogDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid CATALOG_DRIVER %q: want sqlite or postgres", c.CatalogDriver)
	}
	if c.MongoMaxPoolSize > 0 && c.MongoMinPoolSize > c.MongoMaxPoolSize {
		return fmt.Errorf("MONGO_MIN_POOL_SIZE %d exceeds MONGO_MAX_POOL_SIZE %d", c.MongoMinPoolSize, c.MongoMaxPoolSize)
	}
	if c.SessionCookieName == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME must not be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// lookupEnv is getEnv except that a variable set to the empty string stays
// empty.
func lookupEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvUint(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if u, err := strconv.ParseUint(value, 10, 64); err == nil {
			return u
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
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
