package gorm

import (
	"fmt"

	"github.com/attocash/wallet-core/configs"
	"github.com/attocash/wallet-core/migrations"
	"github.com/go-gormigrate/gormigrate/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// New opens the configured database and brings its schema up to date.
func New(cfg *configs.Config) (*gorm.DB, error) {
	dbCfg, err := parseConfig(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dbCfg.Dialector, dbCfg.Options)
	if err != nil {
		return nil, err
	}

	// sqlite allows a single writer; share one connection instead of
	// failing with "database is locked".
	if db.Dialector.Name() == dbTypeSqlite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations.List())
	if err := m.Migrate(); err != nil {
		Close(db)
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	log.WithFields(log.Fields{"type": cfg.DatabaseType}).Debug("Database ready")

	return db, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Warn("Unable to close database")
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.WithFields(log.Fields{"error": err}).Warn("Unable to close database")
	}
}
