// Package secrets provides storage for small secrets (salt, encrypted seed,
// passwords) backed by the most secure facility available to the process.
package secrets

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"syscall"

	wallet_errors "github.com/attocash/wallet-core/errors"
	"github.com/attocash/wallet-core/keys/encryption"
)

const (
	// ServiceName is the namespace every item is stored under.
	ServiceName = "Atto Wallet"

	// AccessibleWhenUnlockedThisDeviceOnly is the protection class recorded
	// with every persisted item: readable only while the session is unlocked, bound to
	// this device and never exported.
	AccessibleWhenUnlockedThisDeviceOnly = "when-unlocked-this-device-only"

	SaltKey = "salt"
	SeedKey = "seed"

	passwordKeyPrefix = "password-"
)

const (
	StoreTypeMemory   = "memory"
	StoreTypeFile     = "file"
	StoreTypeDatabase = "database"
	StoreTypeRedis    = "redis"
)

// Store is an opaque key/value store for small secrets.
// Get reports a missing key with found == false and a nil error.
// Set replaces any existing value; Delete of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// PasswordKey returns the item name of the password record for seedID.
func PasswordKey(seedID string) string {
	return passwordKeyPrefix + seedID
}

func storeError(op, key string, err error) error {
	se := &wallet_errors.SecretStoreError{Op: op, Key: key, Err: err}

	var (
		pe    *encryption.ProviderError
		errno syscall.Errno
	)
	switch {
	case errors.As(err, &pe):
		se.NativeCode = pe.Code
	case errors.As(err, &errno):
		se.NativeCode = strconv.Itoa(int(errno))
	}

	return se
}

// sealedHeader is written in front of every sealed value: service,
// protection class and item name, each NUL terminated. Binding them means a
// sealed blob cannot be moved to another item or protection class.
func sealedHeader(key string) []byte {
	h := make([]byte, 0, len(ServiceName)+len(AccessibleWhenUnlockedThisDeviceOnly)+len(key)+3)
	h = append(h, ServiceName...)
	h = append(h, 0)
	h = append(h, AccessibleWhenUnlockedThisDeviceOnly...)
	h = append(h, 0)
	h = append(h, key...)
	h = append(h, 0)
	return h
}

func seal(c encryption.Crypter, key string, value []byte) ([]byte, error) {
	msg := append(sealedHeader(key), value...)
	defer clear(msg)

	return c.Encrypt(msg)
}

func unseal(c encryption.Crypter, key string, sealed []byte) ([]byte, error) {
	msg, err := c.Decrypt(sealed)
	if err != nil {
		return nil, err
	}
	defer clear(msg)

	header := sealedHeader(key)
	if !bytes.HasPrefix(msg, header) {
		return nil, errors.New("sealed item does not belong to this key")
	}

	value := make([]byte, len(msg)-len(header))
	copy(value, msg[len(header):])
	return value, nil
}
