package lib

import "gorm.io/gorm"

// GormTransaction performs fn inside a database transaction when using
// something else than sqlite as the dialector (mysql or psql).
// When using sqlite it falls back to the regular database instance, where
// each statement is already atomic.
func GormTransaction(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db.Config.Dialector.Name() == "sqlite" {
		return fn(db)
	}
	return db.Transaction(fn)
}
