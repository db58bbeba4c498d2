package usecase

import (
	"context"

	"github.com/courtdata/nba-sync/internal/domain/boxscore"
	"github.com/courtdata/nba-sync/internal/domain/game"
	"github.com/courtdata/nba-sync/internal/domain/playbyplay"
	"github.com/courtdata/nba-sync/internal/domain/synclog"
)

// GameStore is the reference-store view the planner needs.
type GameStore interface {
	// ListFinished returns finished games newest first.
	ListFinished(ctx context.Context) ([]game.Game, error)
}

// BoxscoreStore persists one game's player rows. SaveGame writes all rows
// and the success ledger entry in a single transaction so that either
// both land or neither does.
type BoxscoreStore interface {
	SaveGame(ctx context.Context, gameID string, rows []boxscore.Row, entry synclog.Entry) error
	HasRows(ctx context.Context, gameID string) (bool, error)
}

// EventStore persists one game's play-by-play rows under the same
// single-transaction contract as BoxscoreStore.
type EventStore interface {
	SaveGame(ctx context.Context, gameID string, events []playbyplay.Event, entry synclog.Entry) error
	HasEvents(ctx context.Context, gameID string) (bool, error)
	// GameIDsWithEvents backs the needs-verify computation at plan time.
	GameIDsWithEvents(ctx context.Context) (map[string]struct{}, error)
}

// SyncLedger is the append-only sync history. The derived sets are
// recomputed at the start of each pass, never cached across passes.
type SyncLedger interface {
	Append(ctx context.Context, entry synclog.Entry) error
	SuccessfulGameIDs(ctx context.Context, kind synclog.Kind) (map[string]struct{}, error)
	NoDataGameIDs(ctx context.Context, kind synclog.Kind) (map[string]struct{}, error)
	HasSuccess(ctx context.Context, kind synclog.Kind, gameID string) (bool, error)
}

// ProgressStore keeps per-kind cursors for multi-pass reference syncs.
type ProgressStore interface {
	Get(ctx context.Context, kind synclog.Kind) (synclog.Progress, bool, error)
	Put(ctx context.Context, progress synclog.Progress) error
}
