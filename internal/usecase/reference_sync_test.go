package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/courtdata/nba-sync/internal/domain/synclog"
	"github.com/courtdata/nba-sync/internal/infrastructure/repository/memory"
	"github.com/courtdata/nba-sync/internal/platform/logging"
)

// stubReferenceProvider pages players out of a fixed script keyed by
// cursor. An empty next cursor ends the listing.
type stubReferenceProvider struct {
	teams       []ExternalTeam
	teamsErr    error
	pages       map[string]playerPage
	playerCalls []string
	schedule    []ExternalGame
	scheduleErr error
}

type playerPage struct {
	players []ExternalPlayer
	next    string
}

func (p *stubReferenceProvider) FetchTeams(context.Context) ([]ExternalTeam, error) {
	return p.teams, p.teamsErr
}

func (p *stubReferenceProvider) FetchPlayers(_ context.Context, cursor string) ([]ExternalPlayer, string, error) {
	p.playerCalls = append(p.playerCalls, cursor)
	page, ok := p.pages[cursor]
	if !ok {
		return nil, "", fmt.Errorf("unknown cursor %q", cursor)
	}
	return page.players, page.next, nil
}

func (p *stubReferenceProvider) FetchSeasonSchedule(_ context.Context, _ string) ([]ExternalGame, error) {
	return p.schedule, p.scheduleErr
}

type referenceHarness struct {
	provider *stubReferenceProvider
	teams    *memory.TeamRepository
	players  *memory.PlayerRepository
	games    *memory.GameRepository
	ledger   *memory.SyncLogRepository
	progress *memory.ProgressRepository
	service  *ReferenceSyncService
}

func newReferenceHarness(t *testing.T) *referenceHarness {
	t.Helper()

	h := &referenceHarness{
		provider: &stubReferenceProvider{pages: make(map[string]playerPage)},
		teams:    memory.NewTeamRepository(),
		players:  memory.NewPlayerRepository(),
		games:    memory.NewGameRepository(),
		ledger:   memory.NewSyncLogRepository(),
		progress: memory.NewProgressRepository(),
	}
	h.service = NewReferenceSyncService(
		h.provider, h.teams, h.players, h.games, h.ledger, h.progress, nil, logging.NewNop(),
	)
	return h
}

func TestSyncTeams(t *testing.T) {
	t.Parallel()

	h := newReferenceHarness(t)
	h.provider.teams = []ExternalTeam{
		{TeamID: 1610612738, Abbreviation: "BOS", Nickname: "Celtics", City: "Boston", Conference: "East"},
		{TeamID: 1610612747, Abbreviation: "LAL", Nickname: "Lakers", City: "Los Angeles", Conference: "West"},
	}

	n, err := h.service.SyncTeams(context.Background())
	if err != nil {
		t.Fatalf("SyncTeams error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 teams, got=%d", n)
	}

	stored, err := h.teams.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(stored) != 2 || stored[0].Abbreviation != "BOS" {
		t.Fatalf("unexpected stored teams: %+v", stored)
	}

	entries := h.ledger.EntriesByKind(synclog.KindGameData)
	if len(entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got=%d", len(entries))
	}
	if entries[0].Details["entity"] != "teams" || entries[0].Status != synclog.StatusSuccess {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

func TestSyncTeams_FetchFailureRecorded(t *testing.T) {
	t.Parallel()

	h := newReferenceHarness(t)
	h.provider.teamsErr = errors.New("upstream down")

	if _, err := h.service.SyncTeams(context.Background()); err == nil {
		t.Fatal("expected an error")
	}

	entries := h.ledger.EntriesByKind(synclog.KindGameData)
	if len(entries) != 1 || entries[0].Status != synclog.StatusFailed {
		t.Fatalf("expected 1 failed entry, got=%+v", entries)
	}
	if entries[0].ErrorMessage == "" {
		t.Fatal("expected the cause recorded on the entry")
	}
}

func TestSyncPlayers_DrainsAllPages(t *testing.T) {
	t.Parallel()

	h := newReferenceHarness(t)
	h.provider.pages[""] = playerPage{
		players: []ExternalPlayer{
			{PersonID: 1, DisplayFirstLast: "Jayson Tatum", IsActive: true},
			{PersonID: 2, DisplayFirstLast: "Derrick White", IsActive: true},
		},
		next: "page2",
	}
	h.provider.pages["page2"] = playerPage{
		players: []ExternalPlayer{
			{PersonID: 3, DisplayFirstLast: "LeBron James", IsActive: true},
		},
		next: "",
	}

	n, err := h.service.SyncPlayers(context.Background(), false, 0)
	if err != nil {
		t.Fatalf("SyncPlayers error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 players, got=%d", n)
	}

	active, err := h.players.ListActive(context.Background())
	if err != nil {
		t.Fatalf("ListActive error: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("expected 3 stored players, got=%d", len(active))
	}

	// The drained listing leaves an empty cursor behind.
	prog, ok, err := h.progress.Get(context.Background(), synclog.KindGameData)
	if err != nil || !ok {
		t.Fatalf("expected progress row, ok=%v err=%v", ok, err)
	}
	if prog.Cursor != "" {
		t.Fatalf("expected empty cursor after drain, got=%q", prog.Cursor)
	}
}

func TestSyncPlayers_ResumesFromSavedCursor(t *testing.T) {
	t.Parallel()

	h := newReferenceHarness(t)
	h.provider.pages[""] = playerPage{
		players: []ExternalPlayer{{PersonID: 1, DisplayFirstLast: "Jayson Tatum", IsActive: true}},
		next:    "page2",
	}
	h.provider.pages["page2"] = playerPage{
		players: []ExternalPlayer{{PersonID: 2, DisplayFirstLast: "Derrick White", IsActive: true}},
		next:    "",
	}

	ctx := context.Background()

	// First call stops after one page and persists the cursor.
	n, err := h.service.SyncPlayers(ctx, false, 1)
	if err != nil {
		t.Fatalf("first SyncPlayers error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 player from the first page, got=%d", n)
	}

	// Second call resumes at page2 instead of restarting.
	n, err = h.service.SyncPlayers(ctx, false, 0)
	if err != nil {
		t.Fatalf("second SyncPlayers error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 player from the resumed page, got=%d", n)
	}

	if got := h.provider.playerCalls; len(got) != 2 || got[0] != "" || got[1] != "page2" {
		t.Fatalf("unexpected cursor sequence: %v", got)
	}
}

func TestSyncPlayers_ActiveOnlyFiltersRoster(t *testing.T) {
	t.Parallel()

	h := newReferenceHarness(t)
	h.provider.pages[""] = playerPage{
		players: []ExternalPlayer{
			{PersonID: 1, DisplayFirstLast: "Jayson Tatum", IsActive: true},
			{PersonID: 2, DisplayFirstLast: "Bill Russell", IsActive: false},
		},
	}

	n, err := h.service.SyncPlayers(context.Background(), true, 0)
	if err != nil {
		t.Fatalf("SyncPlayers error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected only the active player, got=%d", n)
	}
}

func TestSyncSchedule(t *testing.T) {
	t.Parallel()

	h := newReferenceHarness(t)
	h.provider.schedule = []ExternalGame{
		{GameID: "0022300001", Season: "2023-24", Status: 3,
			DateTimeUTC: time.Date(2023, 10, 24, 23, 30, 0, 0, time.UTC),
			HomeTeamID:  1610612738, AwayTeamID: 1610612747, HomeScore: 112, AwayScore: 104},
		{GameID: "0022300002", Season: "2023-24", Status: 1,
			DateTimeUTC: time.Date(2024, 4, 10, 23, 0, 0, 0, time.UTC),
			HomeTeamID:  1610612747, AwayTeamID: 1610612738},
	}

	n, err := h.service.SyncSchedule(context.Background(), "2023-24")
	if err != nil {
		t.Fatalf("SyncSchedule error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 games, got=%d", n)
	}

	finished, err := h.games.ListFinished(context.Background())
	if err != nil {
		t.Fatalf("ListFinished error: %v", err)
	}
	if len(finished) != 1 || finished[0].GameID != "0022300001" {
		t.Fatalf("expected only the final game listed, got=%+v", finished)
	}
}

func TestSyncSchedule_RequiresSeason(t *testing.T) {
	t.Parallel()

	h := newReferenceHarness(t)
	if _, err := h.service.SyncSchedule(context.Background(), ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got=%v", err)
	}
}
