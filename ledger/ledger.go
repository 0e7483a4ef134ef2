// Package ledger caches account entries and proof-of-work values locally.
package ledger

import (
	"context"

	wallet_errors "github.com/attocash/wallet-core/errors"
)

const (
	EngineGorm   = "gorm"
	EngineBun    = "bun"
	EngineMemory = "memory"
)

// AccountEntry is one ledger event of an account. Entry is an opaque
// serialized payload.
type AccountEntry struct {
	Hash      []byte `gorm:"primaryKey"`
	PublicKey []byte `gorm:"index:idx_account_entries_public_key_height,priority:1"`
	Height    uint64 `gorm:"index:idx_account_entries_public_key_height,priority:2"`
	Entry     string
}

func (AccountEntry) TableName() string {
	return "accountEntries"
}

// Work is a cached proof-of-work value. There is at most one per account.
type Work struct {
	PublicKey []byte `gorm:"primaryKey"`
	Value     []byte
}

func (Work) TableName() string {
	return "work"
}

// Store is implemented by every ledger engine. Each write is a single
// atomic statement or transaction; reads report absence with found == false.
type Store interface {
	// LastEntry returns the entry with the highest height for publicKey.
	LastEntry(ctx context.Context, publicKey []byte) (entry AccountEntry, found bool, err error)
	// ListEntries returns all entries for publicKey by descending height.
	ListEntries(ctx context.Context, publicKey []byte) ([]AccountEntry, error)
	// SaveEntry inserts entry or replaces the one with the same hash.
	SaveEntry(ctx context.Context, entry *AccountEntry) error

	// Work returns the stored work with the lowest value.
	Work(ctx context.Context) (work Work, found bool, err error)
	// SetWork inserts work or replaces the one for the same account.
	SetWork(ctx context.Context, work *Work) error
	ClearWork(ctx context.Context) error

	// Clear removes all entries and work.
	Clear(ctx context.Context) error
}

func txError(op string, err error) error {
	return &wallet_errors.StorageTransactionError{Op: op, Err: err}
}
