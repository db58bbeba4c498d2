package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/courtdata/nba-sync/internal/domain/game"
	"github.com/courtdata/nba-sync/internal/domain/synclog"
	"github.com/courtdata/nba-sync/internal/infrastructure/repository/memory"
	"github.com/courtdata/nba-sync/internal/platform/logging"
)

type managerHarness struct {
	games    *memory.GameRepository
	boxes    *memory.BoxscoreRepository
	events   *memory.PlayByPlayRepository
	ledger   *memory.SyncLogRepository
	provider *scriptedProvider
	manager  *SyncManager
}

// testManagerConfig shrinks every pacing constant to a millisecond so a
// full pass completes instantly against the memory stores.
func testManagerConfig() ManagerConfig {
	return ManagerConfig{
		InterKindGap:     time.Millisecond,
		SegmentThreshold: 4,
		SegmentSize:      3,
		SegmentGap:       time.Millisecond,
		IntraSegmentRest: time.Millisecond,
		PeakStartHour:    18,
		PeakEndHour:      23,
		PeakParams:       SyncParams{MaxWorkers: 2, BatchSize: 10, BatchInterval: time.Millisecond},
		OffPeakParams:    SyncParams{MaxWorkers: 4, BatchSize: 20, BatchInterval: time.Millisecond},
		RetryDelay:       time.Millisecond,
		BatchPacing:      PacerConfig{JitterChance: -1},
		SegmentPacing:    PacerConfig{JitterChance: -1},
	}
}

func newManagerHarness(t *testing.T, cfg ManagerConfig, clk clock.Clock) *managerHarness {
	t.Helper()

	h := &managerHarness{
		games:    memory.NewGameRepository(),
		ledger:   memory.NewSyncLogRepository(),
		provider: newScriptedProvider(),
	}
	h.boxes = memory.NewBoxscoreRepository(h.ledger)
	h.events = memory.NewPlayByPlayRepository(h.ledger)

	rng := rand.New(rand.NewSource(1))
	logger := logging.NewNop()
	box := NewBoxscoreSyncer(h.provider, h.boxes, h.ledger, cfg.BatchPacing, clk, rng, logger)
	pbp := NewPlayByPlaySyncer(h.provider, h.events, h.ledger, cfg.BatchPacing, clk, rng, logger)
	h.manager = NewSyncManager(h.games, h.boxes, h.events, h.ledger, box, pbp, cfg, clk, rng, logger)
	return h
}

// seedFinishedGames inserts n final games with ascending tip-off times,
// so g{n} is the newest.
func (h *managerHarness) seedFinishedGames(t *testing.T, n int) []string {
	t.Helper()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	games := make([]game.Game, 0, n)
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("g%02d", i)
		ids = append(ids, id)
		games = append(games, game.Game{
			GameID:      id,
			Season:      "2023-24",
			Status:      game.StatusFinal,
			DateTimeUTC: base.Add(time.Duration(i) * time.Hour),
			HomeTeamID:  1,
			AwayTeamID:  2,
		})
	}
	if err := h.games.Upsert(context.Background(), games); err != nil {
		t.Fatalf("seed games: %v", err)
	}
	return ids
}

func testPassOptions() PassOptions {
	return PassOptions{
		MaxWorkers:    2,
		BatchSize:     2,
		BatchInterval: time.Millisecond,
		ReverseOrder:  true,
	}
}

func TestSyncRemainingGameStats_ColdStart(t *testing.T) {
	t.Parallel()

	h := newManagerHarness(t, testManagerConfig(), clock.New())
	ids := h.seedFinishedGames(t, 3)

	report, err := h.manager.SyncRemainingGameStats(context.Background(), testPassOptions())
	if err != nil {
		t.Fatalf("SyncRemainingGameStats error: %v", err)
	}

	if report.Status != PassStatusSuccess {
		t.Fatalf("expected success pass, got=%s (%s)", report.Status, report.Error)
	}
	if report.TotalGames != 3 || report.BoxscoreToSync != 3 || report.PlayByPlayToSync != 3 {
		t.Fatalf("unexpected plan counts: %+v", report)
	}
	if report.Segmented {
		t.Fatal("3 games must not trigger segmentation")
	}
	if report.Details.Boxscore.Batch.SuccessfulGames != 3 {
		t.Fatalf("expected 3 boxscore successes, got=%+v", report.Details.Boxscore.Batch)
	}
	if report.Details.PlayByPlay.Batch.SuccessfulGames != 3 {
		t.Fatalf("expected 3 playbyplay successes, got=%+v", report.Details.PlayByPlay.Batch)
	}

	for _, id := range ids {
		if len(h.boxes.Rows(id)) == 0 {
			t.Fatalf("expected boxscore rows for %s", id)
		}
		if len(h.events.Events(id)) == 0 {
			t.Fatalf("expected events for %s", id)
		}
	}
}

func TestSyncRemainingGameStats_SecondPassSkipsEverything(t *testing.T) {
	t.Parallel()

	h := newManagerHarness(t, testManagerConfig(), clock.New())
	h.seedFinishedGames(t, 3)

	ctx := context.Background()
	if _, err := h.manager.SyncRemainingGameStats(ctx, testPassOptions()); err != nil {
		t.Fatalf("first pass error: %v", err)
	}

	report, err := h.manager.SyncRemainingGameStats(ctx, testPassOptions())
	if err != nil {
		t.Fatalf("second pass error: %v", err)
	}

	if report.Status != PassStatusSuccess {
		t.Fatalf("expected success, got=%s", report.Status)
	}
	if report.BoxscoreToSync != 0 || report.PlayByPlayToSync != 0 {
		t.Fatalf("second pass must plan no work, got=%+v", report)
	}
	if !report.Details.Boxscore.Skipped || !report.Details.PlayByPlay.Skipped {
		t.Fatal("both phases must be marked skipped")
	}

	var skipped int
	for _, e := range h.ledger.Entries() {
		if e.Status == synclog.StatusSkipped {
			skipped++
		}
	}
	if skipped != 2 {
		t.Fatalf("expected 2 skipped ledger entries, got=%d", skipped)
	}
}

func TestSyncRemainingGameStats_SegmentationThreshold(t *testing.T) {
	t.Parallel()

	// Threshold is 4: four pending games run flat, five run segmented.
	ctx := context.Background()

	flat := newManagerHarness(t, testManagerConfig(), clock.New())
	flat.seedFinishedGames(t, 4)
	report, err := flat.manager.SyncRemainingGameStats(ctx, testPassOptions())
	if err != nil {
		t.Fatalf("flat pass error: %v", err)
	}
	if report.Segmented {
		t.Fatal("backlog at the threshold must run flat")
	}

	seg := newManagerHarness(t, testManagerConfig(), clock.New())
	seg.seedFinishedGames(t, 5)
	report, err = seg.manager.SyncRemainingGameStats(ctx, testPassOptions())
	if err != nil {
		t.Fatalf("segmented pass error: %v", err)
	}
	if !report.Segmented {
		t.Fatal("backlog over the threshold must segment")
	}
	if len(report.Segments) != 2 {
		t.Fatalf("expected 2 segments of size 3, got=%d", len(report.Segments))
	}
	if report.Status != PassStatusSuccess {
		t.Fatalf("expected success, got=%s", report.Status)
	}
	if report.Details.PlayByPlay.Batch.SuccessfulGames != 5 {
		t.Fatalf("expected 5 playbyplay successes across segments, got=%+v", report.Details.PlayByPlay.Batch)
	}

	segEntries := len(seg.ledger.EntriesByKind(synclog.KindSegment))
	if segEntries != 2 {
		t.Fatalf("expected 2 segment ledger entries, got=%d", segEntries)
	}
}

func TestBuildPlan_NeedsVerifyRequeuesSuccessWithoutRows(t *testing.T) {
	t.Parallel()

	h := newManagerHarness(t, testManagerConfig(), clock.New())
	h.seedFinishedGames(t, 2)
	ctx := context.Background()
	now := time.Now()

	// g01 has a play-by-play success entry but no events behind it.
	if err := h.ledger.Append(ctx, synclog.Entry{
		Kind: synclog.KindPlayByPlay, GameID: "g01", Status: synclog.StatusSuccess,
		StartTime: now, EndTime: now,
	}); err != nil {
		t.Fatalf("append entry: %v", err)
	}
	// g02 is a legitimate no-data game.
	if err := h.ledger.Append(ctx, synclog.Entry{
		Kind: synclog.KindPlayByPlay, GameID: "g02", Status: synclog.StatusSuccess,
		StartTime: now, EndTime: now,
		Details: map[string]any{synclog.DetailNoData: true},
	}); err != nil {
		t.Fatalf("append entry: %v", err)
	}

	plan, err := h.manager.buildPlan(ctx, testPassOptions())
	if err != nil {
		t.Fatalf("buildPlan error: %v", err)
	}

	if len(plan.needsVerify) != 1 {
		t.Fatalf("expected 1 needs-verify game, got=%d", len(plan.needsVerify))
	}
	if _, ok := plan.needsVerify["g01"]; !ok {
		t.Fatalf("expected g01 in the needs-verify set, got=%v", plan.needsVerify)
	}
	if !containsID(plan.pbpToSync, "g01") {
		t.Fatalf("expected g01 re-queued for verification, got=%v", plan.pbpToSync)
	}
	if containsID(plan.pbpToSync, "g02") {
		t.Fatalf("no-data game must not be re-queued, got=%v", plan.pbpToSync)
	}
	if len(plan.boxToSync) != 2 {
		t.Fatalf("boxscore plan untouched by playbyplay entries, got=%v", plan.boxToSync)
	}
}

func TestSyncRemainingGameStats_RefetchesSuccessWithoutRows(t *testing.T) {
	t.Parallel()

	h := newManagerHarness(t, testManagerConfig(), clock.New())
	h.seedFinishedGames(t, 1)
	ctx := context.Background()
	now := time.Now()

	// A play-by-play success entry with no events behind it. The batch
	// prefilter sees the game as synced; the pass must still re-fetch it.
	if err := h.ledger.Append(ctx, synclog.Entry{
		Kind: synclog.KindPlayByPlay, GameID: "g01", Status: synclog.StatusSuccess,
		StartTime: now, EndTime: now,
	}); err != nil {
		t.Fatalf("append entry: %v", err)
	}

	report, err := h.manager.SyncRemainingGameStats(ctx, testPassOptions())
	if err != nil {
		t.Fatalf("SyncRemainingGameStats error: %v", err)
	}

	if report.NeedsVerify != 1 {
		t.Fatalf("expected 1 needs-verify game, got=%d", report.NeedsVerify)
	}
	pbp := report.Details.PlayByPlay.Batch
	if pbp.SkippedGames != 0 || pbp.SuccessfulGames != 1 {
		t.Fatalf("needs-verify game must be re-fetched, not skipped, got=%+v", pbp)
	}
	if len(h.events.Events("g01")) == 0 {
		t.Fatal("expected events stored after re-verification")
	}
}

func TestBuildPlan_Ordering(t *testing.T) {
	t.Parallel()

	h := newManagerHarness(t, testManagerConfig(), clock.New())
	h.seedFinishedGames(t, 3)
	ctx := context.Background()

	opts := testPassOptions()
	plan, err := h.manager.buildPlan(ctx, opts)
	if err != nil {
		t.Fatalf("buildPlan error: %v", err)
	}
	if plan.boxToSync[0] != "g03" || plan.boxToSync[2] != "g01" {
		t.Fatalf("reverse order must put the newest game first, got=%v", plan.boxToSync)
	}

	opts.ReverseOrder = false
	plan, err = h.manager.buildPlan(ctx, opts)
	if err != nil {
		t.Fatalf("buildPlan error: %v", err)
	}
	if plan.boxToSync[0] != "g01" || plan.boxToSync[2] != "g03" {
		t.Fatalf("chronological order must put the oldest game first, got=%v", plan.boxToSync)
	}
}

func TestBuildPlan_ForceQueuesEverything(t *testing.T) {
	t.Parallel()

	h := newManagerHarness(t, testManagerConfig(), clock.New())
	h.seedFinishedGames(t, 3)
	ctx := context.Background()

	if _, err := h.manager.SyncRemainingGameStats(ctx, testPassOptions()); err != nil {
		t.Fatalf("first pass error: %v", err)
	}

	opts := testPassOptions()
	opts.Force = true
	plan, err := h.manager.buildPlan(ctx, opts)
	if err != nil {
		t.Fatalf("buildPlan error: %v", err)
	}
	if len(plan.boxToSync) != 3 || len(plan.pbpToSync) != 3 {
		t.Fatalf("force must queue all finished games, got=%+v", plan)
	}
}

func TestSyncRemainingGameStats_CancelledSegmentedPass(t *testing.T) {
	t.Parallel()

	h := newManagerHarness(t, testManagerConfig(), clock.New())
	h.seedFinishedGames(t, 5)

	ctx, cancel := context.WithCancel(context.Background())
	var fetches atomic.Int32
	h.provider.boxFn = func(gameID string, _ int) (*ExternalBoxscore, error) {
		if fetches.Add(1) == 2 {
			cancel()
		}
		return makeBoxscore(gameID), nil
	}

	report, err := h.manager.SyncRemainingGameStats(ctx, testPassOptions())
	if err != nil {
		t.Fatalf("SyncRemainingGameStats error: %v", err)
	}

	if report.Status != PassStatusPartiallyFailed {
		t.Fatalf("expected partially_failed after cancel, got=%s", report.Status)
	}
	pbp := report.Details.PlayByPlay.Batch
	if pbp.NotAttempted == 0 {
		t.Fatalf("expected not-attempted playbyplay games, got=%+v", pbp)
	}

	// The cut-short segment still writes its ledger entry.
	segEntries := h.ledger.EntriesByKind(synclog.KindSegment)
	if len(segEntries) != 1 {
		t.Fatalf("expected 1 segment ledger entry after cancel, got=%d", len(segEntries))
	}
	if segEntries[0].Status != synclog.StatusPartial {
		t.Fatalf("cancelled segment entry must be partial, got=%s", segEntries[0].Status)
	}
}

func TestSyncRemainingGameStats_SegmentGapEnforced(t *testing.T) {
	t.Parallel()

	cfg := testManagerConfig()
	cfg.SegmentThreshold = 2
	cfg.SegmentSize = 2
	cfg.SegmentGap = 900 * time.Second
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	h := newManagerHarness(t, cfg, mock)
	h.seedFinishedGames(t, 4)

	done := make(chan struct{})
	var (
		report PassReport
		err    error
	)
	go func() {
		defer close(done)
		report, err = h.manager.SyncRemainingGameStats(context.Background(), testPassOptions())
	}()

	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
			mock.Add(time.Minute)
			gosched()
		}
	}

	if err != nil {
		t.Fatalf("SyncRemainingGameStats error: %v", err)
	}
	if !report.Segmented || len(report.Segments) != 2 {
		t.Fatalf("expected 2 segments, got=%+v", report)
	}
	if report.Status != PassStatusSuccess {
		t.Fatalf("expected success, got=%s", report.Status)
	}

	gap := report.Segments[1].StartTime.Sub(report.Segments[0].StartTime)
	if gap < cfg.SegmentGap {
		t.Fatalf("segment starts must be at least %s apart, got=%s", cfg.SegmentGap, gap)
	}
}

func TestIsGameStatsSynchronized(t *testing.T) {
	t.Parallel()

	h := newManagerHarness(t, testManagerConfig(), clock.New())
	h.seedFinishedGames(t, 1)
	ctx := context.Background()

	ok, err := h.manager.IsGameStatsSynchronized(ctx, "g01")
	if err != nil {
		t.Fatalf("IsGameStatsSynchronized error: %v", err)
	}
	if ok {
		t.Fatal("unsynced game must report false")
	}

	if _, err := h.manager.SyncRemainingGameStats(ctx, testPassOptions()); err != nil {
		t.Fatalf("pass error: %v", err)
	}

	ok, err = h.manager.IsGameStatsSynchronized(ctx, "g01")
	if err != nil {
		t.Fatalf("IsGameStatsSynchronized error: %v", err)
	}
	if !ok {
		t.Fatal("synced game must report true")
	}

	// A success entry without rows behind it is not synchronized.
	now := time.Now()
	if err := h.ledger.Append(ctx, synclog.Entry{
		Kind: synclog.KindBoxscore, GameID: "ghost", Status: synclog.StatusSuccess,
		StartTime: now, EndTime: now,
	}); err != nil {
		t.Fatalf("append entry: %v", err)
	}
	ok, err = h.manager.IsGameStatsSynchronized(ctx, "ghost")
	if err != nil {
		t.Fatalf("IsGameStatsSynchronized error: %v", err)
	}
	if ok {
		t.Fatal("entry without rows must report false")
	}
}

func TestOptimalParams_PeakHours(t *testing.T) {
	t.Parallel()

	cfg := testManagerConfig()
	mock := clock.NewMock()
	h := newManagerHarness(t, cfg, mock)

	mock.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	if got := h.manager.OptimalParams(); got != cfg.OffPeakParams {
		t.Fatalf("expected off-peak params at noon, got=%+v", got)
	}

	mock.Set(time.Date(2024, 3, 1, 19, 30, 0, 0, time.UTC))
	if got := h.manager.OptimalParams(); got != cfg.PeakParams {
		t.Fatalf("expected peak params in the evening, got=%+v", got)
	}

	mock.Set(time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC))
	if got := h.manager.OptimalParams(); got != cfg.PeakParams {
		t.Fatalf("expected peak params at 23h, got=%+v", got)
	}
}

func TestFillDefaults(t *testing.T) {
	t.Parallel()

	mock := clock.NewMock()
	mock.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	cfg := testManagerConfig()
	h := newManagerHarness(t, cfg, mock)

	opts := h.manager.fillDefaults(PassOptions{WithRetry: true})
	if opts.MaxWorkers != cfg.OffPeakParams.MaxWorkers || opts.BatchSize != cfg.OffPeakParams.BatchSize {
		t.Fatalf("zero fields must fall back to optimal params, got=%+v", opts)
	}
	if opts.MaxRetries != 3 {
		t.Fatalf("retry without a cap must default to 3, got=%d", opts.MaxRetries)
	}

	explicit := h.manager.fillDefaults(PassOptions{MaxWorkers: 7, BatchSize: 9, BatchInterval: time.Minute})
	if explicit.MaxWorkers != 7 || explicit.BatchSize != 9 || explicit.BatchInterval != time.Minute {
		t.Fatalf("explicit fields must survive, got=%+v", explicit)
	}
}

func TestConservativeAndHalvedParams(t *testing.T) {
	t.Parallel()

	aggressive := SyncParams{MaxWorkers: 8, BatchSize: 50, BatchInterval: 2 * time.Second}
	c := conservativeParams(aggressive)
	if c.MaxWorkers != 4 || c.BatchSize != 20 || c.BatchInterval != 3*time.Second {
		t.Fatalf("unexpected conservative params: %+v", c)
	}

	modest := SyncParams{MaxWorkers: 2, BatchSize: 10, BatchInterval: 2 * time.Second}
	c = conservativeParams(modest)
	if c.MaxWorkers != 2 || c.BatchSize != 10 {
		t.Fatalf("conservative params must not raise modest values: %+v", c)
	}

	hv := halvedParams(SyncParams{MaxWorkers: 1, BatchSize: 1, BatchInterval: time.Second})
	if hv.MaxWorkers != 1 || hv.BatchSize != 1 {
		t.Fatalf("halved params must floor at 1, got=%+v", hv)
	}
}

func TestCombineStatuses(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b, want string
	}{
		{PassStatusSuccess, PassStatusSuccess, PassStatusSuccess},
		{PassStatusSkipped, PassStatusSkipped, PassStatusSuccess},
		{PassStatusSuccess, PassStatusSkipped, PassStatusSuccess},
		{PassStatusFailed, PassStatusFailed, PassStatusFailed},
		{PassStatusSuccess, PassStatusFailed, PassStatusPartiallyFailed},
		{PassStatusPartiallyFailed, PassStatusSuccess, PassStatusPartiallyFailed},
	}
	for _, tc := range cases {
		if got := combineStatuses(tc.a, tc.b); got != tc.want {
			t.Fatalf("combineStatuses(%s, %s): expected %s, got=%s", tc.a, tc.b, tc.want, got)
		}
	}
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
