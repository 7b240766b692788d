package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-research/internal/config"
	"github.com/sells-group/contact-research/internal/db"
	"github.com/sells-group/contact-research/internal/model"
)

// PostgresStore implements ContactStore on Postgres with the pgvector extension.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects a pool sized from cfg and pings it.
func NewPostgres(ctx context.Context, cfg config.StoreConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	if cfg.MaxConns > 0 {
		pgxCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pgxCfg.MinConns = cfg.MinConns
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS contacts (
	id                      TEXT PRIMARY KEY,
	name                    TEXT NOT NULL,
	title                   TEXT NOT NULL DEFAULT '',
	organization            TEXT NOT NULL DEFAULT '',
	email                   TEXT NOT NULL DEFAULT '',
	profile_url             TEXT NOT NULL DEFAULT '',
	social_url              TEXT NOT NULL DEFAULT '',
	website_url             TEXT NOT NULL DEFAULT '',
	contact_type            TEXT NOT NULL DEFAULT '',
	warmth                  TEXT NOT NULL DEFAULT '',
	tags                    TEXT[] NOT NULL DEFAULT '{}',
	genres                  TEXT[] NOT NULL DEFAULT '{}',
	archived                BOOLEAN NOT NULL DEFAULT false,
	research_summary        TEXT,
	research_raw            JSONB,
	research_last_updated   TIMESTAMPTZ,
	research_depth_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
	key_achievements        TEXT[] NOT NULL DEFAULT '{}',
	mutual_interests        TEXT[] NOT NULL DEFAULT '{}',
	suggested_introductions TEXT[] NOT NULL DEFAULT '{}',
	potential_value         TEXT,
	profile_embedding       vector(1536),
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_contacts_archived ON contacts(archived);
CREATE INDEX IF NOT EXISTS idx_contacts_embedding ON contacts USING hnsw (profile_embedding vector_cosine_ops);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const selectContact = `SELECT id, name, title, organization, email, profile_url, social_url, website_url,
	contact_type, warmth, tags, genres, archived,
	research_summary, research_raw, research_last_updated, research_depth_score,
	key_achievements, mutual_interests, suggested_introductions, potential_value
FROM contacts WHERE id = $1`

func (s *PostgresStore) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	var (
		c              model.Contact
		summary, value *string
		raw            []byte
	)
	err := s.pool.QueryRow(ctx, selectContact, id).Scan(
		&c.ID, &c.Name, &c.Title, &c.Organization, &c.Email, &c.ProfileURL, &c.SocialURL, &c.WebsiteURL,
		&c.Type, &c.Warmth, &c.Tags, &c.Genres, &c.Archived,
		&summary, &raw, &c.Research.LastUpdated, &c.Research.DepthScore,
		&c.Research.KeyAchievements, &c.Research.MutualInterests, &c.Research.SuggestedIntroductions, &value,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get contact %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get contact %s", id)
	}

	c.Research.Summary = derefString(summary)
	c.Research.PotentialValue = derefString(value)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &c.Research.Raw); err != nil {
			return nil, eris.Wrapf(err, "postgres: decode research_raw for %s", id)
		}
	}
	return &c, nil
}

func (s *PostgresStore) UpdateResearch(ctx context.Context, id string, r model.Research) error {
	raw, err := json.Marshal(r.Raw)
	if err != nil {
		return eris.Wrap(err, "postgres: encode research_raw")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE contacts SET research_summary = $2, research_raw = $3, research_last_updated = $4,
			research_depth_score = $5, key_achievements = $6, mutual_interests = $7,
			suggested_introductions = $8, potential_value = $9, updated_at = now()
		WHERE id = $1`,
		id, nullIfEmpty(r.Summary), raw, r.LastUpdated, r.DepthScore,
		nonNil(r.KeyAchievements), nonNil(r.MutualInterests), nonNil(r.SuggestedIntroductions),
		nullIfEmpty(r.PotentialValue),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update research %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update research %s", id)
	}
	return nil
}

func (s *PostgresStore) UpdateEmbedding(ctx context.Context, id string, vec []float32) error {
	var emb *pgvector.Vector
	if len(vec) > 0 {
		if len(vec) != EmbeddingDims {
			return eris.Errorf("postgres: embedding for %s has %d dims, want %d", id, len(vec), EmbeddingDims)
		}
		v := pgvector.NewVector(vec)
		emb = &v
	}

	// Sent as text and cast server-side; the pool has no pgvector type registration.
	tag, err := s.pool.Exec(ctx,
		`UPDATE contacts SET profile_embedding = $2::vector, updated_at = now() WHERE id = $1`,
		id, emb,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update embedding %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update embedding %s", id)
	}
	return nil
}

func (s *PostgresStore) SemanticSearch(ctx context.Context, vec []float32, limit int) ([]model.SearchHit, error) {
	if len(vec) == 0 || limit <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, title, organization, 1 - (profile_embedding <=> $1::vector) AS score
		FROM contacts
		WHERE profile_embedding IS NOT NULL AND NOT archived
		ORDER BY profile_embedding <=> $1::vector
		LIMIT $2`,
		pgvector.NewVector(vec), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: semantic search")
	}
	defer rows.Close()

	var hits []model.SearchHit
	for rows.Next() {
		var h model.SearchHit
		if err := rows.Scan(&h.ID, &h.Name, &h.Title, &h.Organization, &h.Score); err != nil {
			return nil, eris.Wrap(err, "postgres: scan semantic hit")
		}
		hits = append(hits, h)
	}
	return hits, eris.Wrap(rows.Err(), "postgres: semantic search rows")
}

func (s *PostgresStore) TextSearch(ctx context.Context, query string, limit int) ([]model.SearchHit, error) {
	if query == "" || limit <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, title, organization
		FROM contacts
		WHERE NOT archived AND (
			name ILIKE $1 ESCAPE '\' OR organization ILIKE $1 ESCAPE '\' OR title ILIKE $1 ESCAPE '\'
			OR EXISTS (SELECT 1 FROM unnest(tags || genres) AS t(v) WHERE t.v ILIKE $1 ESCAPE '\')
		)
		ORDER BY (name ILIKE $1 ESCAPE '\') DESC, name
		LIMIT $2`,
		likePattern(query), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: text search")
	}
	defer rows.Close()

	var hits []model.SearchHit
	for rows.Next() {
		var h model.SearchHit
		if err := rows.Scan(&h.ID, &h.Name, &h.Title, &h.Organization); err != nil {
			return nil, eris.Wrap(err, "postgres: scan text hit")
		}
		hits = append(hits, h)
	}
	return hits, eris.Wrap(rows.Err(), "postgres: text search rows")
}

var importColumns = []string{
	"id", "name", "title", "organization", "email", "profile_url", "social_url", "website_url",
	"contact_type", "warmth", "tags", "genres", "archived",
}

// ImportContacts bulk-merges contact identity fields by id. Research fields
// of existing rows are left untouched.
func (s *PostgresStore) ImportContacts(ctx context.Context, contacts []model.Contact) (int64, error) {
	rows := make([][]any, 0, len(contacts))
	for _, c := range contacts {
		rows = append(rows, []any{
			c.ID, c.Name, c.Title, c.Organization, c.Email, c.ProfileURL, c.SocialURL, c.WebsiteURL,
			c.Type, c.Warmth, nonNil(c.Tags), nonNil(c.Genres), c.Archived,
		})
	}
	n, err := db.StageMerge(ctx, s.pool, db.MergeSpec{
		Table:   "contacts",
		Key:     "id",
		Columns: importColumns,
	}, rows)
	return n, eris.Wrap(err, "postgres: import contacts")
}
