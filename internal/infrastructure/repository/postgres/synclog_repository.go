package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/courtdata/nba-sync/internal/domain/synclog"
)

type syncEntryInsertModel struct {
	Kind           string    `db:"sync_kind"`
	GameID         any       `db:"game_id"`
	Status         string    `db:"status"`
	ItemsProcessed int       `db:"items_processed"`
	ItemsSucceeded int       `db:"items_succeeded"`
	StartTime      time.Time `db:"start_time"`
	EndTime        time.Time `db:"end_time"`
	Details        []byte    `db:"details"`
	ErrorMessage   any       `db:"error_message"`
}

// SyncLogRepository is the append-only history. Rows are never updated
// after insert; derived sets are plain aggregate reads.
type SyncLogRepository struct {
	db *sqlx.DB
}

func NewSyncLogRepository(db *sqlx.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

func (r *SyncLogRepository) Append(ctx context.Context, entry synclog.Entry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx append sync entry: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := insertSyncEntryTx(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append sync entry tx: %w", err)
	}
	return nil
}

// insertSyncEntryTx lands one ledger row inside a caller-owned
// transaction. The stats repositories use it to couple row writes and
// their success entry atomically.
func insertSyncEntryTx(ctx context.Context, tx *sqlx.Tx, entry synclog.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validate sync entry: %w", err)
	}

	const query = `
INSERT INTO game_stats_sync_history (sync_kind, game_id, status, items_processed, items_succeeded, start_time, end_time, details, error_message)
VALUES (:sync_kind, :game_id, :status, :items_processed, :items_succeeded, :start_time, :end_time, :details, :error_message)`

	model := syncEntryInsertModel{
		Kind:           string(entry.Kind),
		GameID:         nullableString(entry.GameID),
		Status:         string(entry.Status),
		ItemsProcessed: entry.ItemsProcessed,
		ItemsSucceeded: entry.ItemsSucceeded,
		StartTime:      entry.StartTime,
		EndTime:        entry.EndTime,
		Details:        encodeJSONMap(entry.Details),
		ErrorMessage:   nullableString(entry.ErrorMessage),
	}
	if _, err := tx.NamedExecContext(ctx, query, model); err != nil {
		return fmt.Errorf("insert sync entry kind=%s game_id=%s: %w", entry.Kind, entry.GameID, err)
	}
	return nil
}

func (r *SyncLogRepository) SuccessfulGameIDs(ctx context.Context, kind synclog.Kind) (map[string]struct{}, error) {
	const query = `
SELECT DISTINCT game_id
FROM game_stats_sync_history
WHERE sync_kind = $1 AND status = $2 AND game_id IS NOT NULL`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, string(kind), string(synclog.StatusSuccess)); err != nil {
		return nil, fmt.Errorf("select successful game ids kind=%s: %w", kind, err)
	}
	return toSet(ids), nil
}

func (r *SyncLogRepository) NoDataGameIDs(ctx context.Context, kind synclog.Kind) (map[string]struct{}, error) {
	const query = `
SELECT DISTINCT game_id
FROM game_stats_sync_history
WHERE sync_kind = $1 AND status = $2 AND game_id IS NOT NULL
  AND (details ->> 'no_data')::boolean IS TRUE`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, string(kind), string(synclog.StatusSuccess)); err != nil {
		return nil, fmt.Errorf("select no-data game ids kind=%s: %w", kind, err)
	}
	return toSet(ids), nil
}

func (r *SyncLogRepository) HasSuccess(ctx context.Context, kind synclog.Kind, gameID string) (bool, error) {
	const query = `
SELECT EXISTS (
    SELECT 1 FROM game_stats_sync_history
    WHERE sync_kind = $1 AND status = $2 AND game_id = $3
)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, string(kind), string(synclog.StatusSuccess), gameID); err != nil {
		return false, fmt.Errorf("check success entry kind=%s game_id=%s: %w", kind, gameID, err)
	}
	return exists, nil
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}
