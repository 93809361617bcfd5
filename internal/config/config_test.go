package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8082, cfg.HTTPPort)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 50, cfg.DBConfig.MaxOpenConns)
	assert.Equal(t, time.Hour, cfg.DBConfig.ConnMaxLifetime)
	assert.Equal(t, "ledger_transactions", cfg.KafkaLedgerEventsTopic)
	assert.True(t, cfg.EventsEnabled)
	assert.Equal(t, 500*time.Millisecond, cfg.OutboxPollTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("LEDGER_STORE_DRIVER", "memory")
	t.Setenv("LEDGER_MAX_ATTEMPTS", "5")
	t.Setenv("KAFKA_BROKER_URL", "kafka-1:9092, kafka-2:9092")
	t.Setenv("LEDGER_EVENTS_ENABLED", "false")
	t.Setenv("LEDGER_REQUEST_TIMEOUT", "2s")
	t.Setenv("LEDGER_DB_PORT", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.GetKafkaBrokers())
	assert.False(t, cfg.EventsEnabled)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5432, cfg.DBConfig.Port)
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LEDGER_TEST_ONLY_KEY=from-file\n"), 0o600))
	t.Setenv("JWT_SECRET", "secret")
	t.Cleanup(func() { os.Unsetenv("LEDGER_TEST_ONLY_KEY") })

	_, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", os.Getenv("LEDGER_TEST_ONLY_KEY"))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{StoreDriver: StoreDriverMemory, MaxAttempts: 3, JWTSecret: "s", OutboxBatchSize: 10}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.StoreDriver = "sqlite" }, wantErr: "unknown store driver"},
		{name: "zero attempts", mutate: func(c *Config) { c.MaxAttempts = 0 }, wantErr: "LEDGER_MAX_ATTEMPTS"},
		{name: "missing secret", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: "JWT_SECRET"},
		{name: "bad batch size", mutate: func(c *Config) { c.EventsEnabled = true; c.OutboxBatchSize = 0 }, wantErr: "OUTBOX_BATCH_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMigrationConnectionString(t *testing.T) {
	cfg := &Config{}
	cfg.DBConfig.Host = "db"
	cfg.DBConfig.Port = 5432
	cfg.DBConfig.User = "u"
	cfg.DBConfig.Password = "p"
	cfg.DBConfig.Name = "ledger"
	cfg.DBConfig.SSLMode = "disable"

	assert.Equal(t, "postgres://u:p@db:5432/ledger?sslmode=disable", cfg.GetDBMigrationConnectionString())
}
