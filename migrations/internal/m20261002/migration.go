package m20261002

import (
	"gorm.io/gorm"
)

//
// Initial schema of the local ledger cache. Types are snapshot here so the
// schema for this point in time is preserved and can be rolled back to.
//

const ID = "20261002"

type AccountEntry struct {
	Hash      []byte `gorm:"primaryKey"`
	PublicKey []byte `gorm:"index:idx_account_entries_public_key_height,priority:1"`
	Height    uint64 `gorm:"index:idx_account_entries_public_key_height,priority:2"`
	Entry     string
}

func (AccountEntry) TableName() string {
	return "accountEntries"
}

type Work struct {
	PublicKey []byte `gorm:"primaryKey"`
	Value     []byte
}

func (Work) TableName() string {
	return "work"
}

func Migrate(tx *gorm.DB) error {
	return tx.AutoMigrate(&AccountEntry{}, &Work{})
}

func Rollback(tx *gorm.DB) error {
	return tx.Migrator().DropTable(&Work{}, &AccountEntry{})
}
