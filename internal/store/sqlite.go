package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/contact-research/internal/model"
)

// SQLiteStore implements ContactStore on modernc.org/sqlite. List columns
// and the embedding are JSON text; vector search is brute-force cosine.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn in WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	tags                    TEXT NOT NULL DEFAULT '[]',
	genres                  TEXT NOT NULL DEFAULT '[]',
	archived                INTEGER NOT NULL DEFAULT 0,
	research_summary        TEXT,
	research_raw            TEXT,
	research_last_updated   TEXT,
	research_depth_score    REAL NOT NULL DEFAULT 0,
	key_achievements        TEXT NOT NULL DEFAULT '[]',
	mutual_interests        TEXT NOT NULL DEFAULT '[]',
	suggested_introductions TEXT NOT NULL DEFAULT '[]',
	potential_value         TEXT,
	profile_embedding       TEXT,
	updated_at              TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);

CREATE INDEX IF NOT EXISTS idx_contacts_archived ON contacts(archived);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	var (
		c                                   model.Contact
		tags, genres, achievements          string
		interests, intros                   string
		summary, raw, lastUpdated, potValue sql.NullString
		archived                            int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, title, organization, email, profile_url, social_url, website_url,
			contact_type, warmth, tags, genres, archived,
			research_summary, research_raw, research_last_updated, research_depth_score,
			key_achievements, mutual_interests, suggested_introductions, potential_value
		FROM contacts WHERE id = ?`, id,
	).Scan(
		&c.ID, &c.Name, &c.Title, &c.Organization, &c.Email, &c.ProfileURL, &c.SocialURL, &c.WebsiteURL,
		&c.Type, &c.Warmth, &tags, &genres, &archived,
		&summary, &raw, &lastUpdated, &c.Research.DepthScore,
		&achievements, &interests, &intros, &potValue,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get contact %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get contact %s", id)
	}

	c.Archived = archived != 0
	c.Research.Summary = summary.String
	c.Research.PotentialValue = potValue.String

	for _, f := range []struct {
		src string
		dst *[]string
	}{
		{tags, &c.Tags},
		{genres, &c.Genres},
		{achievements, &c.Research.KeyAchievements},
		{interests, &c.Research.MutualInterests},
		{intros, &c.Research.SuggestedIntroductions},
	} {
		if err := json.Unmarshal([]byte(f.src), f.dst); err != nil {
			return nil, eris.Wrapf(err, "sqlite: decode list for %s", id)
		}
	}
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &c.Research.Raw); err != nil {
			return nil, eris.Wrapf(err, "sqlite: decode research_raw for %s", id)
		}
	}
	if lastUpdated.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastUpdated.String)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse research_last_updated for %s", id)
		}
		c.Research.LastUpdated = &t
	}
	return &c, nil
}

func jsonText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *SQLiteStore) UpdateResearch(ctx context.Context, id string, r model.Research) error {
	raw, err := jsonText(r.Raw)
	if err != nil {
		return eris.Wrap(err, "sqlite: encode research_raw")
	}
	lists := make([]string, 3)
	for i, l := range [][]string{r.KeyAchievements, r.MutualInterests, r.SuggestedIntroductions} {
		if lists[i], err = jsonText(nonNil(l)); err != nil {
			return eris.Wrap(err, "sqlite: encode research list")
		}
	}
	var last *string
	if r.LastUpdated != nil {
		v := r.LastUpdated.UTC().Format(time.RFC3339Nano)
		last = &v
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET research_summary = ?, research_raw = ?, research_last_updated = ?,
			research_depth_score = ?, key_achievements = ?, mutual_interests = ?,
			suggested_introductions = ?, potential_value = ?,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ?`,
		nullIfEmpty(r.Summary), raw, last, r.DepthScore, lists[0], lists[1], lists[2],
		nullIfEmpty(r.PotentialValue), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update research %s", id)
	}
	return checkRowsAffected(res, "update research", id)
}

func (s *SQLiteStore) UpdateEmbedding(ctx context.Context, id string, vec []float32) error {
	var enc *string
	if len(vec) > 0 {
		v, err := jsonText(vec)
		if err != nil {
			return eris.Wrap(err, "sqlite: encode embedding")
		}
		enc = &v
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET profile_embedding = ? WHERE id = ?`, enc, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update embedding %s", id)
	}
	return checkRowsAffected(res, "update embedding", id)
}

func (s *SQLiteStore) SemanticSearch(ctx context.Context, vec []float32, limit int) ([]model.SearchHit, error) {
	if len(vec) == 0 || limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, title, organization, profile_embedding
		FROM contacts WHERE profile_embedding IS NOT NULL AND archived = 0`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: semantic search")
	}
	defer rows.Close()

	type scored struct {
		hit  model.SearchHit
		dist float64
	}
	var candidates []scored
	for rows.Next() {
		var (
			h   model.SearchHit
			enc string
			emb []float32
		)
		if err := rows.Scan(&h.ID, &h.Name, &h.Title, &h.Organization, &enc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan semantic row")
		}
		if err := json.Unmarshal([]byte(enc), &emb); err != nil {
			return nil, eris.Wrapf(err, "sqlite: decode embedding for %s", h.ID)
		}
		d, ok := cosineDistance(vec, emb)
		if !ok {
			continue
		}
		h.Score = 1 - d
		candidates = append(candidates, scored{hit: h, dist: d})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: semantic search rows")
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	hits := make([]model.SearchHit, len(candidates))
	for i, c := range candidates {
		hits[i] = c.hit
	}
	return hits, nil
}

func (s *SQLiteStore) TextSearch(ctx context.Context, query string, limit int) ([]model.SearchHit, error) {
	if query == "" || limit <= 0 {
		return nil, nil
	}
	pat := likePattern(query)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, title, organization
		FROM contacts
		WHERE archived = 0 AND (
			name LIKE ?1 ESCAPE '\' OR organization LIKE ?1 ESCAPE '\' OR title LIKE ?1 ESCAPE '\'
			OR EXISTS (SELECT 1 FROM json_each(contacts.tags) WHERE value LIKE ?1 ESCAPE '\')
			OR EXISTS (SELECT 1 FROM json_each(contacts.genres) WHERE value LIKE ?1 ESCAPE '\')
		)
		ORDER BY (name LIKE ?1 ESCAPE '\') DESC, name
		LIMIT ?2`,
		pat, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: text search")
	}
	defer rows.Close()

	var hits []model.SearchHit
	for rows.Next() {
		var h model.SearchHit
		if err := rows.Scan(&h.ID, &h.Name, &h.Title, &h.Organization); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan text hit")
		}
		hits = append(hits, h)
	}
	return hits, eris.Wrap(rows.Err(), "sqlite: text search rows")
}

func (s *SQLiteStore) ImportContacts(ctx context.Context, contacts []model.Contact) (int64, error) {
	if len(contacts) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO contacts (id, name, title, organization, email, profile_url, social_url, website_url,
			contact_type, warmth, tags, genres, archived)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, title = excluded.title, organization = excluded.organization,
			email = excluded.email, profile_url = excluded.profile_url, social_url = excluded.social_url,
			website_url = excluded.website_url, contact_type = excluded.contact_type,
			warmth = excluded.warmth, tags = excluded.tags, genres = excluded.genres,
			archived = excluded.archived`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import prepare")
	}
	defer stmt.Close()

	var n int64
	for _, c := range contacts {
		tags, err := jsonText(nonNil(c.Tags))
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: encode tags")
		}
		genres, err := jsonText(nonNil(c.Genres))
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: encode genres")
		}
		archived := 0
		if c.Archived {
			archived = 1
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.Name, c.Title, c.Organization, c.Email, c.ProfileURL, c.SocialURL, c.WebsiteURL,
			c.Type, c.Warmth, tags, genres, archived,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: import contact %s", c.ID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import commit")
	}
	return n, nil
}

func checkRowsAffected(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s rows affected", op)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s %s", op, id)
	}
	return nil
}
