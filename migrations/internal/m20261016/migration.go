package m20261016

import (
	"time"

	"gorm.io/gorm"
)

// Adds the table for the shared idempotency key store.

const ID = "20261016"

type IdempotencyStoreGormItem struct {
	Key        string    `gorm:"column:key;primary_key"`
	ExpiryDate time.Time `gorm:"column:expiry_date;index"`
}

func (IdempotencyStoreGormItem) TableName() string {
	return "idempotency_keys"
}

func Migrate(tx *gorm.DB) error {
	return tx.AutoMigrate(&IdempotencyStoreGormItem{})
}

func Rollback(tx *gorm.DB) error {
	return tx.Migrator().DropTable(&IdempotencyStoreGormItem{})
}
