package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/lifeos-tools/attache/internal"
)

const DriverName = "sqlite3"

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sql.DB) *Storage {
	s := &Storage{
		db: sqlx.NewDb(db, DriverName),
	}
	err := s.RunMigrations()
	if err != nil {
		panic(fmt.Sprintf("sqlite: running migrations: %v", err))
	}
	return s
}

func (s Storage) AddAccount(ctx context.Context, account *internal.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, auth) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET auth=?;
	`, account.ID(), account.Auth, account.Auth)
	return err
}

func (s Storage) Account(ctx context.Context, id string) (*internal.Account, error) {
	var acc Account
	err := s.db.GetContext(ctx, &acc, `
		SELECT id, auth FROM accounts WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %q (run configure first)", internal.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return acc.Convert(), nil
}

func (s Storage) Accounts(ctx context.Context) ([]*internal.Account, error) {
	var accs []Account
	err := s.db.SelectContext(ctx, &accs, `
		SELECT id, auth FROM accounts ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	res := make([]*internal.Account, len(accs))
	for i, a := range accs {
		res[i] = a.Convert()
	}
	return res, nil
}

func (s Storage) AppendMutation(ctx context.Context, rec internal.MutationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mutations (id, at, action, source_id, event_id, title, status, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.At.UTC(), rec.Action, rec.SourceID, rec.EventID, rec.Title, rec.Status, rec.Detail)
	return err
}

func (s Storage) RecentMutations(ctx context.Context, limit int) ([]internal.MutationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []Mutation
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, at, action, source_id, event_id, title, status, detail
		FROM mutations
		ORDER BY at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	res := make([]internal.MutationRecord, len(rows))
	for i, m := range rows {
		res[i] = m.Convert()
	}
	return res, nil
}
