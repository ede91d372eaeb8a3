package sqlite

import (
	"strings"
	"time"

	"github.com/lifeos-tools/attache/internal"
)

type Account struct {
	ID   string `db:"id"`
	Auth string `db:"auth"`
}

func (a Account) Convert() *internal.Account {
	acc := internal.Account{
		Auth: a.Auth,
	}
	acc.Platform, acc.Name, _ = strings.Cut(a.ID, "/")
	return &acc
}

type Mutation struct {
	ID       string    `db:"id"`
	At       time.Time `db:"at"`
	Action   string    `db:"action"`
	SourceID string    `db:"source_id"`
	EventID  string    `db:"event_id"`
	Title    string    `db:"title"`
	Status   string    `db:"status"`
	Detail   string    `db:"detail"`
}

func (m Mutation) Convert() internal.MutationRecord {
	return internal.MutationRecord{
		ID:       m.ID,
		At:       m.At,
		Action:   m.Action,
		SourceID: m.SourceID,
		EventID:  m.EventID,
		Title:    m.Title,
		Status:   m.Status,
		Detail:   m.Detail,
	}
}
