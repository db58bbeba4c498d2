package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/courtdata/nba-sync/internal/domain/synclog"
)

type progressTableModel struct {
	Kind      string    `db:"sync_kind"`
	Cursor    string    `db:"cursor"`
	State     []byte    `db:"state"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ProgressRepository keeps one cursor row per sync kind. Unlike the
// ledger it is updated in place.
type ProgressRepository struct {
	db *sqlx.DB
}

func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

func (r *ProgressRepository) Get(ctx context.Context, kind synclog.Kind) (synclog.Progress, bool, error) {
	const query = `
SELECT sync_kind, cursor, state, updated_at
FROM sync_progress
WHERE sync_kind = $1`

	var row progressTableModel
	if err := r.db.GetContext(ctx, &row, query, string(kind)); err != nil {
		if isNotFound(err) {
			return synclog.Progress{}, false, nil
		}
		return synclog.Progress{}, false, fmt.Errorf("select sync progress kind=%s: %w", kind, err)
	}

	return synclog.Progress{
		Kind:      synclog.Kind(row.Kind),
		Cursor:    row.Cursor,
		State:     decodeJSONMap(row.State),
		UpdatedAt: row.UpdatedAt,
	}, true, nil
}

func (r *ProgressRepository) Put(ctx context.Context, progress synclog.Progress) error {
	const query = `
INSERT INTO sync_progress (sync_kind, cursor, state, updated_at)
VALUES (:sync_kind, :cursor, :state, :updated_at)
ON CONFLICT (sync_kind) DO UPDATE SET
    cursor = EXCLUDED.cursor,
    state = EXCLUDED.state,
    updated_at = EXCLUDED.updated_at`

	model := progressTableModel{
		Kind:      string(progress.Kind),
		Cursor:    progress.Cursor,
		State:     encodeJSONMap(progress.State),
		UpdatedAt: progress.UpdatedAt,
	}
	if _, err := r.db.NamedExecContext(ctx, query, model); err != nil {
		return fmt.Errorf("upsert sync progress kind=%s: %w", progress.Kind, err)
	}
	return nil
}
