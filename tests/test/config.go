package test

import (
	"path"
	"testing"

	"github.com/attocash/wallet-core/configs"
)

// Fixed 32 byte key for sealing secrets in tests.
const testEncryptionKey = "faae4ed1c30f4e4555ee3a71f1044a8e"

// LoadConfig parses the environment with test defaults.
//
// DatabaseType is always `sqlite` and the configured DSN points to a file in
// a tempdir created for the given test, cleaned up by t.Cleanup() in the end
// of the test run. Secrets are kept in a tempdir as well.
func LoadConfig(t *testing.T) *configs.Config {
	t.Helper()

	t.Setenv("ATTO_WALLET_ENCRYPTION_KEY", testEncryptionKey)
	t.Setenv("ATTO_WALLET_ENCRYPTION_KEY_TYPE", "local")

	cfg, err := configs.Parse()
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	cfg.DatabaseDSN = path.Join(dir, "test.db")
	cfg.DatabaseType = "sqlite"
	cfg.SecretStoreDir = path.Join(dir, "secrets")

	configs.ConfigureLogger(cfg.LogLevel)

	return cfg
}
