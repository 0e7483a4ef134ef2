package ledger

import (
	"context"
	"errors"

	"github.com/attocash/wallet-core/datastore/lib"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db}
}

func (s *GormStore) LastEntry(ctx context.Context, publicKey []byte) (e AccountEntry, found bool, err error) {
	err = s.db.WithContext(ctx).
		Where("public_key = ?", publicKey).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "height"}, Desc: true}).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return AccountEntry{}, false, nil
	} else if err != nil {
		return AccountEntry{}, false, txError("last entry", err)
	}
	return e, true, nil
}

func (s *GormStore) ListEntries(ctx context.Context, publicKey []byte) (ee []AccountEntry, err error) {
	err = s.db.WithContext(ctx).
		Where("public_key = ?", publicKey).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "height"}, Desc: true}).
		Find(&ee).Error
	if err != nil {
		return nil, txError("list entries", err)
	}
	return ee, nil
}

func (s *GormStore) SaveEntry(ctx context.Context, e *AccountEntry) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			UpdateAll: true,
		}).
		Create(e).Error
	if err != nil {
		return txError("save entry", err)
	}
	return nil
}

func (s *GormStore) Work(ctx context.Context) (w Work, found bool, err error) {
	err = s.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "value"}}).
		First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Work{}, false, nil
	} else if err != nil {
		return Work{}, false, txError("get work", err)
	}
	return w, true, nil
}

func (s *GormStore) SetWork(ctx context.Context, w *Work) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "public_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).
		Create(w).Error
	if err != nil {
		return txError("set work", err)
	}
	return nil
}

func (s *GormStore) ClearWork(ctx context.Context) error {
	err := s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&Work{}).Error
	if err != nil {
		return txError("clear work", err)
	}
	return nil
}

func (s *GormStore) Clear(ctx context.Context) error {
	err := lib.GormTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		global := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := global.Delete(&AccountEntry{}).Error; err != nil {
			return err
		}
		return global.Delete(&Work{}).Error
	})
	if err != nil {
		return txError("clear", err)
	}
	return nil
}
