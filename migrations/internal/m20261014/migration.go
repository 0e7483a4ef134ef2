package m20261014

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Adds the table backing the database secret store.

const ID = "20261014"

type Item struct {
	Service    string `gorm:"primaryKey"`
	Account    string `gorm:"primaryKey"`
	Value      []byte
	Attributes datatypes.JSON
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Item) TableName() string {
	return "secret_items"
}

func Migrate(tx *gorm.DB) error {
	return tx.AutoMigrate(&Item{})
}

func Rollback(tx *gorm.DB) error {
	return tx.Migrator().DropTable(&Item{})
}
