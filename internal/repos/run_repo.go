package repos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"shopindex/internal/domain"
)

// RunRepo records load runs in the store's load_runs table.
type RunRepo struct{ db *sqlx.DB }

func NewRunRepo(db *sqlx.DB) *RunRepo { return &RunRepo{db: db} }

func (r *RunRepo) Start(ctx context.Context, run domain.LoadRun) error {
	_, err := r.db.NamedExecContext(ctx, `
INSERT INTO load_runs(id, catalog, kind, source, started_at)
VALUES (:id, :catalog, :kind, :source, :started_at)`, run)
	return err
}

func (r *RunRepo) Finish(ctx context.Context, id string, s domain.LoadStats) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
UPDATE load_runs SET
  finished_at = ?, files_processed = ?, files_failed = ?,
  inserted = ?, duplicates = ?, missing_key = ?, malformed = ?
WHERE id = ?`),
		time.Now().UTC(), s.FilesProcessed, s.FilesFailed, s.Inserted, s.Duplicates, s.MissingKey, s.Malformed, id)
	return err
}

// List returns the most recent runs for a catalog.
func (r *RunRepo) List(ctx context.Context, catalog string, limit int) ([]domain.LoadRun, error) {
	var out []domain.LoadRun
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
SELECT id, catalog, kind, source, started_at, finished_at, files_processed, files_failed,
  inserted, duplicates, missing_key, malformed
FROM load_runs
WHERE catalog = ?
ORDER BY started_at DESC
LIMIT ?`), catalog, limit)
	return out, err
}
