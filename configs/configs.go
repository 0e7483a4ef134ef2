// Package configs parses application configuration from the environment.
package configs

import (
	"time"

	"github.com/caarlos0/env/v6"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	// -- Server --

	Host                 string        `env:"ATTO_WALLET_HOST"`
	Port                 int           `env:"ATTO_WALLET_PORT" envDefault:"3000"`
	ServerRequestTimeout time.Duration `env:"ATTO_WALLET_SERVER_REQUEST_TIMEOUT" envDefault:"60s"`

	// -- Logging --

	LogLevel string `env:"ATTO_WALLET_LOG_LEVEL" envDefault:"info"`

	// -- Database --

	DatabaseDSN  string `env:"ATTO_WALLET_DATABASE_DSN" envDefault:"wallet.db"`
	DatabaseType string `env:"ATTO_WALLET_DATABASE_TYPE" envDefault:"sqlite"`

	// LedgerEngine selects the embedded store used for account entries and
	// work values: "gorm", "bun" or "memory".
	LedgerEngine string `env:"ATTO_WALLET_LEDGER_ENGINE" envDefault:"gorm"`
	// LedgerDatabaseDSN is the sqlite file used by the "bun" engine.
	LedgerDatabaseDSN string `env:"ATTO_WALLET_LEDGER_DATABASE_DSN" envDefault:"ledger.db"`

	// -- Secret storage --

	// SecretStoreType selects the secure storage backend: "file",
	// "database", "redis" or "memory".
	SecretStoreType string `env:"ATTO_WALLET_SECRET_STORE_TYPE" envDefault:"file"`
	SecretStoreDir  string `env:"ATTO_WALLET_SECRET_STORE_DIR" envDefault:".atto/secrets"`
	RedisURL        string `env:"ATTO_WALLET_REDIS_URL"`

	// EncryptionKey seals secrets at rest. For "local" it is a 32 byte AES
	// key, for "aws_kms" a key ARN and for "google_kms" a key resource name.
	EncryptionKey     string `env:"ATTO_WALLET_ENCRYPTION_KEY,required"`
	EncryptionKeyType string `env:"ATTO_WALLET_ENCRYPTION_KEY_TYPE" envDefault:"local"`

	// Maximum KMS requests per second.
	KMSMaxRequestRate int `env:"ATTO_WALLET_KMS_MAX_REQUEST_RATE" envDefault:"10"`

	// -- Idempotency middleware --

	// IdempotencyStoreType is "local", "shared" (database) or "redis".
	IdempotencyStoreType string        `env:"ATTO_WALLET_IDEMPOTENCY_STORE_TYPE" envDefault:"local"`
	IdempotencyExpiry    time.Duration `env:"ATTO_WALLET_IDEMPOTENCY_EXPIRY" envDefault:"1h"`

	// -- Tracing --

	// TracingProjectID enables request tracing to Google Cloud Trace when set.
	TracingProjectID   string  `env:"ATTO_WALLET_TRACING_PROJECT_ID"`
	TracingSampleRatio float64 `env:"ATTO_WALLET_TRACING_SAMPLE_RATIO" envDefault:"0.1"`

	// -- Workers --

	WorkerQueueCapacity uint `env:"ATTO_WALLET_WORKER_QUEUE_CAPACITY" envDefault:"1000"`
	WorkerCount         uint `env:"ATTO_WALLET_WORKER_COUNT" envDefault:"4"`
}

// Parse parses environment variables to a valid Config.
func Parse() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func ConfigureLogger(logLevel string) {
	lvl, err := log.ParseLevel(logLevel)
	if err != nil {
		log.WithFields(log.Fields{"level": logLevel}).Warn("Invalid log level, using info")
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.JSONFormatter{})
}
