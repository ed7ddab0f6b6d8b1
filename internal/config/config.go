package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBAutoMigrate     bool
	DBLogLevel        string
	DBSlowQueryMillis int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// CheckoutLockTTLSeconds bounds how long a checkout idempotency lock is held.
	CheckoutLockTTLSeconds int
	// CheckoutMaxAttempts is the number of tries for an order placement
	// transaction that fails on serialization or deadlock.
	CheckoutMaxAttempts int
	// CheckoutRatePerSecond and CheckoutBurst size the per-client token
	// bucket in front of checkout. Zero disables it.
	CheckoutRatePerSecond float64
	CheckoutBurst         int

	StoreConfigPath string

	SeedDemoCatalog bool
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:                getenv("APP_SERVICE", "storefront"),
		AppVersion:             getenv("APP_VERSION", "0.1.0"),
		Environment:            getenv("ENVIRONMENT", "development"),
		HTTPAddr:               getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:           getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:                 getenv("DATABASE_TYPE", "postgres"),
		DBHost:                 getenv("DATABASE_HOST", "localhost"),
		DBPort:                 getenv("DATABASE_PORT", "5432"),
		DBName:                 getenv("DATABASE_NAME", "storefront"),
		DBUser:                 getenv("DATABASE_USER", "postgres"),
		DBPassword:             getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:              getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:          getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:          getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime:      getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime:      getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),
		DBAutoMigrate:          getenvBool("DATABASE_AUTO_MIGRATE", true),
		DBLogLevel:             strings.ToLower(strings.TrimSpace(getenv("DATABASE_LOG_LEVEL", "warn"))),
		DBSlowQueryMillis:      getenvInt("DATABASE_SLOW_QUERY_MS", 200),
		RedisAddr:              strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:          getenv("REDIS_PASSWORD", ""),
		RedisDB:                getenvInt("REDIS_DB", 0),
		CheckoutLockTTLSeconds: getenvInt("CHECKOUT_LOCK_TTL_SECONDS", 30),
		CheckoutMaxAttempts:    getenvInt("CHECKOUT_MAX_ATTEMPTS", 3),
		CheckoutRatePerSecond:  getenvFloat("CHECKOUT_RATE_PER_SECOND", 2),
		CheckoutBurst:          getenvInt("CHECKOUT_BURST", 10),
		StoreConfigPath:        strings.TrimSpace(getenv("STORE_CONFIG_PATH", "")),
		SeedDemoCatalog:        getenvBool("SEED_DEMO_CATALOG", false),
	}

	return cfg
}

// IsProduction reports whether the service runs in a production environment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// RedisEnabled reports whether a Redis address was configured.
func (c Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
