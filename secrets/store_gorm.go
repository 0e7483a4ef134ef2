package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/attocash/wallet-core/keys/encryption"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Item is a sealed secret stored in the embedded database.
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

type itemAttributes struct {
	Accessible string `json:"accessible"`
}

// GormStore keeps sealed secrets in the secret_items table. Set is a single
// upsert statement.
type GormStore struct {
	db      *gorm.DB
	crypter encryption.Crypter
}

func NewGormStore(db *gorm.DB, crypter encryption.Crypter) *GormStore {
	return &GormStore{db, crypter}
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	item := Item{}
	err := s.db.WithContext(ctx).First(&item, "service = ? AND account = ?", ServiceName, key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, storeError("get", key, err)
	}

	value, err := unseal(s.crypter, key, item.Value)
	if err != nil {
		return nil, false, storeError("get", key, err)
	}

	return value, true, nil
}

func (s *GormStore) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := seal(s.crypter, key, value)
	if err != nil {
		return storeError("set", key, err)
	}

	attrs, err := json.Marshal(itemAttributes{Accessible: AccessibleWhenUnlockedThisDeviceOnly})
	if err != nil {
		return storeError("set", key, err)
	}

	item := &Item{
		Service:    ServiceName,
		Account:    key,
		Value:      sealed,
		Attributes: datatypes.JSON(attrs),
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "service"}, {Name: "account"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "attributes", "updated_at"}),
	}).Create(item).Error
	if err != nil {
		return storeError("set", key, err)
	}

	return nil
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Delete(&Item{}, "service = ? AND account = ?", ServiceName, key).Error
	if err != nil {
		return storeError("delete", key, err)
	}
	return nil
}
