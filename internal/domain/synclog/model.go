package synclog

import (
	"fmt"
	"time"
)

// Kind identifies what a ledger entry describes.
type Kind string

const (
	KindBoxscore   Kind = "boxscore"
	KindPlayByPlay Kind = "playbyplay"
	KindGameData   Kind = "game_data"
	KindBatch      Kind = "batch"
	KindSegment    Kind = "segment"
)

// Status is the terminal outcome recorded for one sync attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPartial Status = "partial"
	StatusSkipped Status = "skipped"
)

// DetailNoData marks a success entry whose upstream legitimately had no
// payload. Such entries are terminal and never retried without force.
const DetailNoData = "no_data"

// Entry is one append-only row in the sync history ledger. Entries are
// never updated after insert.
type Entry struct {
	ID             int64
	Kind           Kind
	GameID         string
	Status         Status
	ItemsProcessed int
	ItemsSucceeded int
	StartTime      time.Time
	EndTime        time.Time
	Details        map[string]any
	ErrorMessage   string
}

func (e Entry) Validate() error {
	if e.Kind == "" {
		return fmt.Errorf("sync kind is required")
	}
	if e.Status == "" {
		return fmt.Errorf("status is required")
	}
	if e.ItemsSucceeded > e.ItemsProcessed {
		return fmt.Errorf("items_succeeded=%d exceeds items_processed=%d", e.ItemsSucceeded, e.ItemsProcessed)
	}
	return nil
}

// IsNoData reports whether the entry carries the no-data marker.
func (e Entry) IsNoData() bool {
	if e.Details == nil {
		return false
	}
	flagged, ok := e.Details[DetailNoData].(bool)
	return ok && flagged
}

// Progress is the in-place cursor record used by multi-pass reference
// syncs. One row per kind.
type Progress struct {
	Kind      Kind
	Cursor    string
	State     map[string]any
	UpdatedAt time.Time
}
