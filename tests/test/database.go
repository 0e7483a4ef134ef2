package test

import (
	"testing"

	"github.com/attocash/wallet-core/configs"
	"github.com/attocash/wallet-core/datastore/gorm"
	"github.com/attocash/wallet-core/keys"
	"github.com/attocash/wallet-core/keys/encryption"
	upstreamgorm "gorm.io/gorm"
)

// GetDatabase opens and migrates the configured test database. It is closed
// when the test ends.
func GetDatabase(t *testing.T, cfg *configs.Config) *upstreamgorm.DB {
	t.Helper()

	db, err := gorm.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { gorm.Close(db) })

	return db
}

// GetCrypter returns the crypter configured for tests.
func GetCrypter(t *testing.T, cfg *configs.Config) encryption.Crypter {
	t.Helper()

	c, err := keys.NewCrypter(cfg)
	if err != nil {
		t.Fatal(err)
	}

	return c
}
