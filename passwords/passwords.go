// Package passwords stores wallet passwords keyed by seed identifier.
package passwords

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/attocash/wallet-core/secrets"
)

const (
	seedIDDomain = "atto-seed-id:"
	seedIDLength = 32
)

// SeedIdentifier derives the stable identifier of a seed. It is safe to
// store in clear: it does not reveal the seed.
func SeedIdentifier(seed []byte) string {
	h := sha256.New()
	h.Write([]byte(seedIDDomain))
	h.Write(seed)
	return hex.EncodeToString(h.Sum(nil))[:seedIDLength]
}

type Vault struct {
	store secrets.Store
}

func NewVault(store secrets.Store) *Vault {
	return &Vault{store}
}

func (v *Vault) Get(ctx context.Context, seedID string) (string, bool, error) {
	b, found, err := v.store.Get(ctx, secrets.PasswordKey(seedID))
	if err != nil || !found {
		return "", false, err
	}
	defer clear(b)
	return string(b), true, nil
}

// Set stores password for seedID, replacing any previous one.
func (v *Vault) Set(ctx context.Context, seedID, password string) error {
	b := []byte(password)
	defer clear(b)
	return v.store.Set(ctx, secrets.PasswordKey(seedID), b)
}

func (v *Vault) Delete(ctx context.Context, seedID string) error {
	return v.store.Delete(ctx, secrets.PasswordKey(seedID))
}
