package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var contactSpec = MergeSpec{
	Table:   "contacts",
	Key:     "id",
	Columns: []string{"id", "name", "organization"},
}

func TestStageMerge_EmptyRows(t *testing.T) {
	n, err := StageMerge(context.Background(), nil, contactSpec, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestStageMerge_InvalidSpec(t *testing.T) {
	_, err := StageMerge(context.Background(), nil, MergeSpec{Table: "contacts"}, [][]any{{"c1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table, key and columns are required")
}

func TestStageMerge_Success(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_stage_contacts" \(LIKE "contacts" INCLUDING DEFAULTS\) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_contacts"}, contactSpec.Columns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "contacts" \("id", "name", "organization"\) SELECT .* ON CONFLICT \("id"\) DO UPDATE SET "name" = EXCLUDED."name", "organization" = EXCLUDED."organization"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{{"c1", "Ada", "Analytical"}, {"c2", "Grace", "Navy"}}
	n, err := StageMerge(context.Background(), mock, contactSpec, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStageMerge_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_contacts"}, contactSpec.Columns).WillReturnError(fmt.Errorf("copy failed"))
	mock.ExpectRollback()

	_, err = StageMerge(context.Background(), mock, contactSpec, [][]any{{"c1", "Ada", "X"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy into stage for contacts")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeSpec_UpdateColumns(t *testing.T) {
	assert.Equal(t, []string{"name", "organization"}, contactSpec.updateColumns())

	s := contactSpec
	s.Update = []string{"name"}
	assert.Equal(t, []string{"name"}, s.updateColumns())
}
