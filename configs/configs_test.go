package configs

import (
	"os"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func TestParseConfig(t *testing.T) {
	t.Setenv("ATTO_WALLET_ENCRYPTION_KEY", "encryption-key")
	t.Setenv("ATTO_WALLET_ENCRYPTION_KEY_TYPE", "local")
	t.Setenv("ATTO_WALLET_SECRET_STORE_TYPE", "memory")
	t.Setenv("ATTO_WALLET_LEDGER_ENGINE", "bun")
	t.Setenv("ATTO_WALLET_WORKER_COUNT", "1")
	t.Setenv("ATTO_WALLET_SERVER_REQUEST_TIMEOUT", "5s")

	cfg, err := Parse()

	if err != nil {
		t.Fatal(err)
	}

	if cfg.EncryptionKey != "encryption-key" {
		t.Errorf(`expected "EncryptionKey" to equal "encryption-key", got "%s"`, cfg.EncryptionKey)
	}

	if cfg.WorkerCount != 1 {
		t.Errorf(`expected "WorkerCount" to equal 1, got %d`, cfg.WorkerCount)
	}

	if cfg.SecretStoreType != "memory" || cfg.LedgerEngine != "bun" {
		t.Errorf("unexpected backends: %s / %s", cfg.SecretStoreType, cfg.LedgerEngine)
	}

	if cfg.ServerRequestTimeout != 5*time.Second {
		t.Errorf(`expected "ServerRequestTimeout" to equal 5s, got %s`, cfg.ServerRequestTimeout)
	}

	if cfg.DatabaseType != "sqlite" || cfg.DatabaseDSN != "wallet.db" {
		t.Errorf("unexpected database defaults: %s %s", cfg.DatabaseType, cfg.DatabaseDSN)
	}
}

func TestParseConfigRequiresEncryptionKey(t *testing.T) {
	// Register for restore, then remove entirely.
	t.Setenv("ATTO_WALLET_ENCRYPTION_KEY", "placeholder")
	os.Unsetenv("ATTO_WALLET_ENCRYPTION_KEY")

	if _, err := Parse(); err == nil {
		t.Fatal("expected error for missing encryption key")
	}
}

func TestConfigureLogger(t *testing.T) {
	defer log.SetLevel(log.GetLevel())

	ConfigureLogger("debug")
	if log.GetLevel() != log.DebugLevel {
		t.Errorf("expected debug level, got %s", log.GetLevel())
	}

	ConfigureLogger("nonsense")
	if log.GetLevel() != log.InfoLevel {
		t.Errorf("expected fallback to info level, got %s", log.GetLevel())
	}
}
