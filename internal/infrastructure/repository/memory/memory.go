// Package memory holds map-backed implementations of the store
// contracts. They back the usecase tests and the -dev wiring; the
// transaction semantics mirror the postgres package, so a SaveGame
// either lands rows and ledger entry together or not at all.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/courtdata/nba-sync/internal/domain/boxscore"
	"github.com/courtdata/nba-sync/internal/domain/game"
	"github.com/courtdata/nba-sync/internal/domain/playbyplay"
	"github.com/courtdata/nba-sync/internal/domain/player"
	"github.com/courtdata/nba-sync/internal/domain/synclog"
	"github.com/courtdata/nba-sync/internal/domain/team"
)

// GameRepository is the reference schedule.
type GameRepository struct {
	mu    sync.RWMutex
	games map[string]game.Game
}

func NewGameRepository() *GameRepository {
	return &GameRepository{games: make(map[string]game.Game)}
}

func (r *GameRepository) ListFinished(_ context.Context) ([]game.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]game.Game, 0, len(r.games))
	for _, g := range r.games {
		if g.IsFinished() {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DateTimeUTC.Equal(out[j].DateTimeUTC) {
			return out[i].DateTimeUTC.After(out[j].DateTimeUTC)
		}
		return out[i].GameID > out[j].GameID
	})
	return out, nil
}

func (r *GameRepository) GetByID(_ context.Context, gameID string) (game.Game, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[gameID]
	return g, ok, nil
}

func (r *GameRepository) Upsert(_ context.Context, items []game.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range items {
		r.games[g.GameID] = g
	}
	return nil
}

// TeamRepository is the reference franchise list.
type TeamRepository struct {
	mu    sync.RWMutex
	teams map[int64]team.Team
}

func NewTeamRepository() *TeamRepository {
	return &TeamRepository{teams: make(map[int64]team.Team)}
}

func (r *TeamRepository) List(_ context.Context) ([]team.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]team.Team, 0, len(r.teams))
	for _, t := range r.teams {
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TeamID < out[j].TeamID })
	return out, nil
}

func (r *TeamRepository) Upsert(_ context.Context, items []team.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range items {
		r.teams[t.TeamID] = t
	}
	return nil
}

// PlayerRepository is the reference roster.
type PlayerRepository struct {
	mu      sync.RWMutex
	players map[int64]player.Player
}

func NewPlayerRepository() *PlayerRepository {
	return &PlayerRepository{players: make(map[int64]player.Player)}
}

func (r *PlayerRepository) ListActive(_ context.Context) ([]player.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]player.Player, 0, len(r.players))
	for _, p := range r.players {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PersonID < out[j].PersonID })
	return out, nil
}

func (r *PlayerRepository) Upsert(_ context.Context, items []player.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range items {
		r.players[p.PersonID] = p
	}
	return nil
}

// SyncLogRepository is the append-only history.
type SyncLogRepository struct {
	mu      sync.RWMutex
	nextID  int64
	entries []synclog.Entry
}

func NewSyncLogRepository() *SyncLogRepository {
	return &SyncLogRepository{nextID: 1}
}

func (r *SyncLogRepository) Append(_ context.Context, entry synclog.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = r.nextID
	r.nextID++
	r.entries = append(r.entries, entry)
	return nil
}

func (r *SyncLogRepository) SuccessfulGameIDs(_ context.Context, kind synclog.Kind) (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]struct{})
	for _, e := range r.entries {
		if e.Kind == kind && e.Status == synclog.StatusSuccess && e.GameID != "" {
			out[e.GameID] = struct{}{}
		}
	}
	return out, nil
}

func (r *SyncLogRepository) NoDataGameIDs(_ context.Context, kind synclog.Kind) (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]struct{})
	for _, e := range r.entries {
		if e.Kind == kind && e.Status == synclog.StatusSuccess && e.GameID != "" && e.IsNoData() {
			out[e.GameID] = struct{}{}
		}
	}
	return out, nil
}

func (r *SyncLogRepository) HasSuccess(_ context.Context, kind synclog.Kind, gameID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.Kind == kind && e.Status == synclog.StatusSuccess && e.GameID == gameID {
			return true, nil
		}
	}
	return false, nil
}

// Entries returns a copy of the history in insert order.
func (r *SyncLogRepository) Entries() []synclog.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]synclog.Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// EntriesByKind filters the history by kind, preserving insert order.
func (r *SyncLogRepository) EntriesByKind(kind synclog.Kind) []synclog.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]synclog.Entry, 0)
	for _, e := range r.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// BoxscoreRepository stores statistics rows keyed by game.
type BoxscoreRepository struct {
	mu     sync.RWMutex
	rows   map[string][]boxscore.Row
	ledger *SyncLogRepository

	// FailSaveGame makes every SaveGame call fail; tests use it to
	// assert that failed persists leave no ledger entry behind.
	FailSaveGame error
}

func NewBoxscoreRepository(ledger *SyncLogRepository) *BoxscoreRepository {
	return &BoxscoreRepository{rows: make(map[string][]boxscore.Row), ledger: ledger}
}

func (r *BoxscoreRepository) SaveGame(ctx context.Context, gameID string, rows []boxscore.Row, entry synclog.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailSaveGame != nil {
		return r.FailSaveGame
	}
	if err := r.ledger.Append(ctx, entry); err != nil {
		return err
	}
	stored := make([]boxscore.Row, len(rows))
	copy(stored, rows)
	r.rows[gameID] = stored
	return nil
}

func (r *BoxscoreRepository) HasRows(_ context.Context, gameID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows[gameID]) > 0, nil
}

// Rows returns the stored rows for one game.
func (r *BoxscoreRepository) Rows(gameID string) []boxscore.Row {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rows[gameID]
}

// PlayByPlayRepository stores event rows keyed by game.
type PlayByPlayRepository struct {
	mu     sync.RWMutex
	events map[string][]playbyplay.Event
	ledger *SyncLogRepository

	FailSaveGame error
}

func NewPlayByPlayRepository(ledger *SyncLogRepository) *PlayByPlayRepository {
	return &PlayByPlayRepository{events: make(map[string][]playbyplay.Event), ledger: ledger}
}

func (r *PlayByPlayRepository) SaveGame(ctx context.Context, gameID string, events []playbyplay.Event, entry synclog.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailSaveGame != nil {
		return r.FailSaveGame
	}
	if err := r.ledger.Append(ctx, entry); err != nil {
		return err
	}
	stored := make([]playbyplay.Event, len(events))
	copy(stored, events)
	r.events[gameID] = stored
	return nil
}

func (r *PlayByPlayRepository) HasEvents(_ context.Context, gameID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events[gameID]) > 0, nil
}

func (r *PlayByPlayRepository) GameIDsWithEvents(_ context.Context) (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]struct{}, len(r.events))
	for gameID, rows := range r.events {
		if len(rows) > 0 {
			out[gameID] = struct{}{}
		}
	}
	return out, nil
}

// Events returns the stored events for one game.
func (r *PlayByPlayRepository) Events(gameID string) []playbyplay.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.events[gameID]
}

// ProgressRepository keeps per-kind cursors.
type ProgressRepository struct {
	mu       sync.RWMutex
	progress map[synclog.Kind]synclog.Progress
}

func NewProgressRepository() *ProgressRepository {
	return &ProgressRepository{progress: make(map[synclog.Kind]synclog.Progress)}
}

func (r *ProgressRepository) Get(_ context.Context, kind synclog.Kind) (synclog.Progress, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.progress[kind]
	return p, ok, nil
}

func (r *ProgressRepository) Put(_ context.Context, progress synclog.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if progress.UpdatedAt.IsZero() {
		progress.UpdatedAt = time.Now()
	}
	r.progress[progress.Kind] = progress
	return nil
}
