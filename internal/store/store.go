// Package store persists contact profiles in the relational store and
// serves the relational and vector retrieval modes.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-research/internal/config"
	"github.com/sells-group/contact-research/internal/model"
)

// ErrNotFound is returned when a contact id has no row.
var ErrNotFound = eris.New("store: contact not found")

// ContactStore is the authoritative relational record plus its vector column.
type ContactStore interface {
	GetContact(ctx context.Context, id string) (*model.Contact, error)
	// UpdateResearch overwrites every research field except the embedding.
	UpdateResearch(ctx context.Context, id string, r model.Research) error
	// UpdateEmbedding writes the vector column; a nil vector clears it.
	UpdateEmbedding(ctx context.Context, id string, vec []float32) error

	SemanticSearch(ctx context.Context, vec []float32, limit int) ([]model.SearchHit, error)
	TextSearch(ctx context.Context, query string, limit int) ([]model.SearchHit, error)

	ImportContacts(ctx context.Context, contacts []model.Contact) (int64, error)

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (ContactStore, error) {
	switch cfg.Driver {
	case "", "postgres":
		return NewPostgres(ctx, cfg)
	case "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "contacts.db"
		}
		return NewSQLite(dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// likePattern wraps q for a substring LIKE match with wildcards in q escaped.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullIfEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
