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

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	HTTPPort       int           `env:"LEDGER_HTTP_PORT"`
	RequestTimeout time.Duration `env:"LEDGER_REQUEST_TIMEOUT"`
	StoreDriver    string        `env:"LEDGER_STORE_DRIVER"`
	MaxAttempts    int           `env:"LEDGER_MAX_ATTEMPTS"`

	DBConfig struct {
		Host            string        `env:"LEDGER_DB_HOST"`
		Port            int           `env:"LEDGER_DB_PORT"`
		User            string        `env:"LEDGER_DB_USER"`
		Password        string        `env:"LEDGER_DB_PASSWORD"`
		Name            string        `env:"LEDGER_DB_NAME"`
		SSLMode         string        `env:"LEDGER_DB_SSLMODE"`
		MaxOpenConns    int           `env:"LEDGER_DB_MAX_OPEN_CONNS"`
		MaxIdleConns    int           `env:"LEDGER_DB_MAX_IDLE_CONNS"`
		ConnMaxLifetime time.Duration `env:"LEDGER_DB_CONN_MAX_LIFETIME"`
	}
	MigrationsPath string `env:"LEDGER_MIGRATIONS_PATH"`

	KafkaBrokerURL         string `env:"KAFKA_BROKER_URL"`
	KafkaLedgerEventsTopic string `env:"KAFKA_LEDGER_EVENTS_TOPIC"`
	EventsEnabled          bool   `env:"LEDGER_EVENTS_ENABLED"`

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL"`
	OutboxPollTimeout  time.Duration `env:"OUTBOX_POLL_TIMEOUT"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE"`

	JWTSecret          string   `env:"JWT_SECRET"`
	JWTIssuer          string   `env:"JWT_ISSUER"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
	LogLevel           string   `env:"LOG_LEVEL"`
}

// LoadConfig reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := &Config{}

	cfg.HTTPPort = getEnvAsInt("LEDGER_HTTP_PORT", 8082)
	cfg.RequestTimeout = getEnvAsDuration("LEDGER_REQUEST_TIMEOUT", 30*time.Second)
	cfg.StoreDriver = getEnvOrDefault("LEDGER_STORE_DRIVER", StoreDriverPostgres)
	cfg.MaxAttempts = getEnvAsInt("LEDGER_MAX_ATTEMPTS", 3)

	cfg.DBConfig.Host = getEnvOrDefault("LEDGER_DB_HOST", "localhost")
	cfg.DBConfig.Port = getEnvAsInt("LEDGER_DB_PORT", 5432)
	cfg.DBConfig.User = getEnvOrDefault("LEDGER_DB_USER", "user")
	cfg.DBConfig.Password = getEnvOrDefault("LEDGER_DB_PASSWORD", "password")
	cfg.DBConfig.Name = getEnvOrDefault("LEDGER_DB_NAME", "ledger_db")
	cfg.DBConfig.SSLMode = getEnvOrDefault("LEDGER_DB_SSLMODE", "disable")
	cfg.DBConfig.MaxOpenConns = getEnvAsInt("LEDGER_DB_MAX_OPEN_CONNS", 50)
	cfg.DBConfig.MaxIdleConns = getEnvAsInt("LEDGER_DB_MAX_IDLE_CONNS", 10)
	cfg.DBConfig.ConnMaxLifetime = getEnvAsDuration("LEDGER_DB_CONN_MAX_LIFETIME", time.Hour)
	cfg.MigrationsPath = getEnvOrDefault("LEDGER_MIGRATIONS_PATH", "file://migrations")

	cfg.KafkaBrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaLedgerEventsTopic = getEnvOrDefault("KAFKA_LEDGER_EVENTS_TOPIC", "ledger_transactions")
	cfg.EventsEnabled = getEnvAsBool("LEDGER_EVENTS_ENABLED", true)

	cfg.OutboxPollInterval = getEnvAsDuration("OUTBOX_POLL_INTERVAL", 1*time.Second)
	cfg.OutboxPollTimeout = getEnvAsDuration("OUTBOX_POLL_TIMEOUT", 500*time.Millisecond)
	cfg.OutboxBatchSize = getEnvAsInt("OUTBOX_BATCH_SIZE", 50)

	cfg.JWTSecret = getEnvOrDefault("JWT_SECRET", "")
	cfg.JWTIssuer = getEnvOrDefault("JWT_ISSUER", "")
	cfg.CORSAllowedOrigins = splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"))
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q (want %s or %s)", c.StoreDriver, StoreDriverPostgres, StoreDriverMemory)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("LEDGER_MAX_ATTEMPTS must be positive, got %d", c.MaxAttempts)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.EventsEnabled && c.OutboxBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive, got %d", c.OutboxBatchSize)
	}
	return nil
}

func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.Name, c.DBConfig.SSLMode)
}

func (c *Config) GetKafkaBrokers() []string {
	return splitList(c.KafkaBrokerURL)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnvOrDefault(key, strconv.FormatBool(defaultValue))
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
