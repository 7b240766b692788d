package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-research/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

var contactColumns = []string{
	"id", "name", "title", "organization", "email", "profile_url", "social_url", "website_url",
	"contact_type", "warmth", "tags", "genres", "archived",
	"research_summary", "research_raw", "research_last_updated", "research_depth_score",
	"key_achievements", "mutual_interests", "suggested_introductions", "potential_value",
}

func TestPostgresStore_GetContact(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	summary := "Builds compilers."
	value := "Intro to tooling teams"
	updated := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	raw := []byte(`{"news":{"articles":[{"title":"Launch","url":"https://n.example/1","snippet":"s"}]}}`)

	mock.ExpectQuery(`SELECT id, name, title, organization .* FROM contacts WHERE id = \$1`).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows(contactColumns).AddRow(
			"c1", "Ada Lovelace", "Engineer", "Analytical", "ada@example.com", "", "", "",
			"investor", "warm", []string{"ai"}, []string{"jazz"}, false,
			&summary, raw, &updated, 0.6,
			[]string{"First program"}, []string{}, []string{"Babbage"}, &value,
		))

	c, err := s.GetContact(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", c.Name)
	assert.Equal(t, []string{"ai"}, c.Tags)
	assert.Equal(t, "Builds compilers.", c.Research.Summary)
	assert.Equal(t, "Intro to tooling teams", c.Research.PotentialValue)
	assert.InDelta(t, 0.6, c.Research.DepthScore, 1e-9)
	require.NotNil(t, c.Research.Raw.News)
	assert.Equal(t, "Launch", c.Research.Raw.News.Articles[0].Title)
	assert.Nil(t, c.Research.Raw.Profile)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetContact_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM contacts WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetContact(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateResearch(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE contacts SET research_summary = \$2`).
		WithArgs("c1", pgxmock.AnyArg(), pgxmock.AnyArg(), &now, 0.3,
			[]string{}, []string{}, []string{}, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateResearch(context.Background(), "c1", model.Research{LastUpdated: &now, DepthScore: 0.3})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateResearch_NoRow(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE contacts SET research_summary`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateResearch(context.Background(), "gone", model.Research{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPostgresStore_UpdateEmbedding_Clears(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE contacts SET profile_embedding = \$2::vector`).
		WithArgs("c1", (*pgvector.Vector)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateEmbedding(context.Background(), "c1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateEmbedding_Writes(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	vec := make([]float32, EmbeddingDims)
	vec[0], vec[EmbeddingDims-1] = 0.5, -0.25
	want := pgvector.NewVector(vec)

	mock.ExpectExec(`UPDATE contacts SET profile_embedding = \$2::vector`).
		WithArgs("c1", &want).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateEmbedding(context.Background(), "c1", vec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateEmbedding_WrongDims(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	err := s.UpdateEmbedding(context.Background(), "c1", []float32{1, 2, 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has 3 dims")
}

func TestPostgresStore_SemanticSearch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`ORDER BY profile_embedding <=> \$1::vector`).
		WithArgs(pgvector.NewVector([]float32{0.5, 0.25}), 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "title", "organization", "score"}).
			AddRow("c1", "Ada", "Engineer", "Analytical", 0.91).
			AddRow("c2", "Grace", "Admiral", "Navy", 0.42))

	hits, err := s.SemanticSearch(context.Background(), []float32{0.5, 0.25}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "c1", hits[0].ID)
	assert.InDelta(t, 0.91, hits[0].Score, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SemanticSearch_EmptyVector(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	hits, err := s.SemanticSearch(context.Background(), nil, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TextSearch_EscapesWildcards(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`name ILIKE \$1 ESCAPE`).
		WithArgs(`%100\%\_ai%`, 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "title", "organization"}).
			AddRow("c3", "Linus", "Maintainer", "Kernel"))

	hits, err := s.TextSearch(context.Background(), "100%_ai", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c3", hits[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportContacts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_stage_contacts"`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_contacts"}, importColumns).WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "contacts"`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.ImportContacts(context.Background(), []model.Contact{{ID: "c1", Name: "Ada"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS vector`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
