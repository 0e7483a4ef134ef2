package ledger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type bunAccountEntry struct {
	bun.BaseModel `bun:"table:accountEntries"`

	Hash      []byte `bun:"hash,pk"`
	PublicKey []byte `bun:"public_key,notnull"`
	Height    uint64 `bun:"height,notnull"`
	Entry     string `bun:"entry,notnull"`
}

type bunWork struct {
	bun.BaseModel `bun:"table:work"`

	PublicKey []byte `bun:"public_key,pk"`
	Value     []byte `bun:"value,notnull"`
}

// BunStore keeps the ledger in an embedded sqlite database through bun.
type BunStore struct {
	db *bun.DB
}

// OpenBunStore opens the sqlite database at dsn and creates the ledger
// tables if they do not exist.
func OpenBunStore(ctx context.Context, dsn string) (*BunStore, error) {
	sqldb, err := sql.Open(sqliteshim.DriverName(), dsn)
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)

	s := NewBunStore(bun.NewDB(sqldb, sqlitedialect.New()))
	if err := s.CreateSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db}
}

func (s *BunStore) CreateSchema(ctx context.Context) error {
	for _, model := range []any{(*bunAccountEntry)(nil), (*bunWork)(nil)} {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return txError("create schema", err)
		}
	}

	_, err := s.db.NewCreateIndex().
		Model((*bunAccountEntry)(nil)).
		Index("idx_account_entries_public_key_height").
		Column("public_key", "height").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return txError("create schema", err)
	}

	return nil
}

func (s *BunStore) Close() error {
	return s.db.Close()
}

func (s *BunStore) LastEntry(ctx context.Context, publicKey []byte) (AccountEntry, bool, error) {
	var row bunAccountEntry
	err := s.db.NewSelect().
		Model(&row).
		Where("public_key = ?", publicKey).
		OrderExpr("height DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return AccountEntry{}, false, nil
	} else if err != nil {
		return AccountEntry{}, false, txError("last entry", err)
	}
	return row.toEntry(), true, nil
}

func (s *BunStore) ListEntries(ctx context.Context, publicKey []byte) ([]AccountEntry, error) {
	var rows []bunAccountEntry
	err := s.db.NewSelect().
		Model(&rows).
		Where("public_key = ?", publicKey).
		OrderExpr("height DESC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, txError("list entries", err)
	}

	ee := make([]AccountEntry, 0, len(rows))
	for _, r := range rows {
		ee = append(ee, r.toEntry())
	}
	return ee, nil
}

func (s *BunStore) SaveEntry(ctx context.Context, e *AccountEntry) error {
	row := &bunAccountEntry{Hash: e.Hash, PublicKey: e.PublicKey, Height: e.Height, Entry: e.Entry}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (hash) DO UPDATE").
		Set("public_key = EXCLUDED.public_key").
		Set("height = EXCLUDED.height").
		Set("entry = EXCLUDED.entry").
		Exec(ctx)
	if err != nil {
		return txError("save entry", err)
	}
	return nil
}

func (s *BunStore) Work(ctx context.Context) (Work, bool, error) {
	var row bunWork
	err := s.db.NewSelect().
		Model(&row).
		OrderExpr("value ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Work{}, false, nil
	} else if err != nil {
		return Work{}, false, txError("get work", err)
	}
	return Work{PublicKey: row.PublicKey, Value: row.Value}, true, nil
}

func (s *BunStore) SetWork(ctx context.Context, w *Work) error {
	_, err := s.db.NewInsert().
		Model(&bunWork{PublicKey: w.PublicKey, Value: w.Value}).
		On("CONFLICT (public_key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	if err != nil {
		return txError("set work", err)
	}
	return nil
}

func (s *BunStore) ClearWork(ctx context.Context) error {
	_, err := s.db.NewDelete().
		Model((*bunWork)(nil)).
		Where("1 = 1").
		Exec(ctx)
	if err != nil {
		return txError("clear work", err)
	}
	return nil
}

func (s *BunStore) Clear(ctx context.Context) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*bunAccountEntry)(nil)).Where("1 = 1").Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*bunWork)(nil)).Where("1 = 1").Exec(ctx)
		return err
	})
	if err != nil {
		return txError("clear", err)
	}
	return nil
}

func (r bunAccountEntry) toEntry() AccountEntry {
	return AccountEntry{Hash: r.Hash, PublicKey: r.PublicKey, Height: r.Height, Entry: r.Entry}
}
