package migrations

import (
	"github.com/attocash/wallet-core/migrations/internal/m20261002"
	"github.com/attocash/wallet-core/migrations/internal/m20261014"
	"github.com/attocash/wallet-core/migrations/internal/m20261016"
	"github.com/go-gormigrate/gormigrate/v2"
)

func List() []*gormigrate.Migration {
	ms := []*gormigrate.Migration{
		{
			ID:       m20261002.ID,
			Migrate:  m20261002.Migrate,
			Rollback: m20261002.Rollback,
		},
		{
			ID:       m20261014.ID,
			Migrate:  m20261014.Migrate,
			Rollback: m20261014.Rollback,
		},
		{
			ID:       m20261016.ID,
			Migrate:  m20261016.Migrate,
			Rollback: m20261016.Rollback,
		},
	}
	return ms
}
