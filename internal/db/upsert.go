package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// MergeSpec describes a staged bulk merge into Table keyed on Key.
type MergeSpec struct {
	Table   string
	Key     string
	Columns []string
	// Update lists the columns overwritten on conflict. Empty means every
	// column except Key.
	Update []string
}

func (s MergeSpec) updateColumns() []string {
	if len(s.Update) > 0 {
		return s.Update
	}
	out := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		if c != s.Key {
			out = append(out, c)
		}
	}
	return out
}

// StageMerge COPYs rows into a transaction-scoped staging table and merges
// them into the target with INSERT ... ON CONFLICT DO UPDATE. It returns
// the number of rows inserted or updated.
func StageMerge(ctx context.Context, pool Pool, spec MergeSpec, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if spec.Table == "" || spec.Key == "" || len(spec.Columns) == 0 {
		return 0, eris.New("db: merge: table, key and columns are required")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: merge: begin")
	}

	target := pgx.Identifier{spec.Table}.Sanitize()
	stage := pgx.Identifier{"_stage_" + spec.Table}.Sanitize()

	if _, err := tx.Exec(ctx, fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP", stage, target,
	)); err != nil {
		_ = tx.Rollback(ctx)
		return 0, eris.Wrapf(err, "db: merge: stage %s", spec.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"_stage_" + spec.Table}, spec.Columns, pgx.CopyFromRows(rows)); err != nil {
		_ = tx.Rollback(ctx)
		return 0, eris.Wrapf(err, "db: merge: copy into stage for %s", spec.Table)
	}

	sets := make([]string, 0, len(spec.Columns))
	for _, c := range spec.updateColumns() {
		col := pgx.Identifier{c}.Sanitize()
		sets = append(sets, col+" = EXCLUDED."+col)
	}
	cols := identList(spec.Columns)
	tag, err := tx.Exec(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		target, cols, cols, stage, pgx.Identifier{spec.Key}.Sanitize(), strings.Join(sets, ", "),
	))
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, eris.Wrapf(err, "db: merge: insert into %s", spec.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: merge: commit")
	}
	return tag.RowsAffected(), nil
}

func identList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
