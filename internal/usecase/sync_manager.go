package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/courtdata/nba-sync/internal/domain/synclog"
	"github.com/courtdata/nba-sync/internal/platform/logging"
)

// PassOptions is the caller surface for one full sync pass. Zero-valued
// worker, batch, and interval fields fall back to OptimalParams.
type PassOptions struct {
	Force         bool
	MaxWorkers    int
	BatchSize     int
	BatchInterval time.Duration
	// ReverseOrder processes newest games first. Defaults on; recent
	// games are the ones consumers ask for.
	ReverseOrder bool
	WithRetry    bool
	MaxRetries   int
}

// SyncParams is one {workers, batch size, interval} tuple.
type SyncParams struct {
	MaxWorkers    int
	BatchSize     int
	BatchInterval time.Duration
}

// ManagerConfig carries the pass-level pacing constants. Defaults match
// the production cadence; tests shrink them through the injected clock.
type ManagerConfig struct {
	InterKindGap     time.Duration
	SegmentThreshold int
	SegmentSize      int
	SegmentGap       time.Duration
	IntraSegmentRest time.Duration
	PeakStartHour    int
	PeakEndHour      int
	PeakParams       SyncParams
	OffPeakParams    SyncParams
	RetryDelay       time.Duration
	BatchPacing      PacerConfig
	SegmentPacing    PacerConfig
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		InterKindGap:     120 * time.Second,
		SegmentThreshold: 1000,
		SegmentSize:      800,
		SegmentGap:       900 * time.Second,
		IntraSegmentRest: 300 * time.Second,
		PeakStartHour:    18,
		PeakEndHour:      23,
		PeakParams: SyncParams{
			MaxWorkers:    2,
			BatchSize:     10,
			BatchInterval: 5 * time.Second,
		},
		OffPeakParams: SyncParams{
			MaxWorkers:    4,
			BatchSize:     20,
			BatchInterval: 2 * time.Second,
		},
		RetryDelay: 5 * time.Second,
		BatchPacing: PacerConfig{
			Adaptive: true,
			Multipliers: map[int]float64{
				10: 1.5,
				25: 2.0,
			},
			LongPauses: []LongPause{
				{AfterBatches: 50, Pause: 5 * time.Minute, Reason: "sustained batch volume"},
			},
		},
		SegmentPacing: PacerConfig{
			Adaptive: true,
			Multipliers: map[int]float64{
				4: 1.5,
				8: 2.0,
			},
		},
	}
}

func (c ManagerConfig) normalized() ManagerConfig {
	d := DefaultManagerConfig()
	if c.InterKindGap <= 0 {
		c.InterKindGap = d.InterKindGap
	}
	if c.SegmentThreshold <= 0 {
		c.SegmentThreshold = d.SegmentThreshold
	}
	if c.SegmentSize <= 0 {
		c.SegmentSize = d.SegmentSize
	}
	if c.SegmentGap <= 0 {
		c.SegmentGap = d.SegmentGap
	}
	if c.IntraSegmentRest <= 0 {
		c.IntraSegmentRest = d.IntraSegmentRest
	}
	if c.PeakParams == (SyncParams{}) {
		c.PeakParams = d.PeakParams
	}
	if c.OffPeakParams == (SyncParams{}) {
		c.OffPeakParams = d.OffPeakParams
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.SegmentPacing.BaseInterval == 0 {
		c.SegmentPacing.BaseInterval = c.SegmentGap
	}
	return c
}

// syncPlan is the immutable work set for one pass, built once at the
// start and never mutated by workers.
type syncPlan struct {
	totalFinished int
	boxToSync     []string
	pbpToSync     []string
	// needsVerify holds games with a play-by-play success entry but no
	// event rows; the prefilter must not skip them.
	needsVerify map[string]struct{}
}

// SyncManager coordinates the boxscore and play-by-play syncers over
// the shared ledger. One pass runs on one driver goroutine.
type SyncManager struct {
	games  GameStore
	boxes  BoxscoreStore
	events EventStore
	ledger SyncLedger
	box    GameSyncer
	pbp    GameSyncer

	cfg    ManagerConfig
	clk    clock.Clock
	rng    *rand.Rand
	logger *logging.Logger
}

func NewSyncManager(
	games GameStore,
	boxes BoxscoreStore,
	events EventStore,
	ledger SyncLedger,
	box GameSyncer,
	pbp GameSyncer,
	cfg ManagerConfig,
	clk clock.Clock,
	rng *rand.Rand,
	logger *logging.Logger,
) *SyncManager {
	if clk == nil {
		clk = clock.New()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SyncManager{
		games:  games,
		boxes:  boxes,
		events: events,
		ledger: ledger,
		box:    box,
		pbp:    pbp,
		cfg:    cfg.normalized(),
		clk:    clk,
		rng:    rng,
		logger: logger.Named("sync-manager"),
	}
}

// OptimalParams picks a parameter tuple by wall-clock hour. Evening
// hours are upstream-busy; the tuple backs off accordingly.
func (m *SyncManager) OptimalParams() SyncParams {
	hour := m.clk.Now().Hour()
	if hour >= m.cfg.PeakStartHour && hour <= m.cfg.PeakEndHour {
		return m.cfg.PeakParams
	}
	return m.cfg.OffPeakParams
}

// IsGameStatsSynchronized reports whether the game's boxscore is fully
// landed: a success ledger entry plus at least one statistics row.
// Play-by-play is deliberately not part of this predicate.
func (m *SyncManager) IsGameStatsSynchronized(ctx context.Context, gameID string) (bool, error) {
	ok, err := m.ledger.HasSuccess(ctx, synclog.KindBoxscore, gameID)
	if err != nil {
		return false, fmt.Errorf("check boxscore ledger: %w", err)
	}
	if !ok {
		return false, nil
	}
	hasRows, err := m.boxes.HasRows(ctx, gameID)
	if err != nil {
		return false, fmt.Errorf("check boxscore rows: %w", err)
	}
	return hasRows, nil
}

// SyncRemainingGameStats runs one full pass: plan, box phase, inter-kind
// rest, play-by-play phase. Large play-by-play backlogs route through
// the segmented strategy. The returned error is non-nil only for
// planning failures; execution problems land in the report.
func (m *SyncManager) SyncRemainingGameStats(ctx context.Context, opts PassOptions) (PassReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SyncManager.SyncRemainingGameStats")
	defer span.End()

	start := m.clk.Now()
	report := PassReport{StartTime: start}

	opts = m.fillDefaults(opts)

	plan, err := m.buildPlan(ctx, opts)
	if err != nil {
		report.Status = PassStatusFailed
		report.Error = err.Error()
		report.EndTime = m.clk.Now()
		report.DurationSeconds = report.EndTime.Sub(start).Seconds()
		return report, err
	}

	report.TotalGames = plan.totalFinished
	report.BoxscoreToSync = len(plan.boxToSync)
	report.PlayByPlayToSync = len(plan.pbpToSync)
	report.GamesToSync = len(plan.boxToSync) + len(plan.pbpToSync)
	report.NeedsVerify = len(plan.needsVerify)

	m.logger.InfoContext(ctx, "sync pass planned",
		"total_finished", plan.totalFinished,
		"boxscore_to_sync", len(plan.boxToSync),
		"playbyplay_to_sync", len(plan.pbpToSync),
		"needs_verify", len(plan.needsVerify),
		"force", opts.Force,
	)

	if len(plan.pbpToSync) > m.cfg.SegmentThreshold {
		report.Segmented = true
		m.runSegmented(ctx, plan, opts, &report)
	} else {
		m.runFlat(ctx, plan, opts, &report)
	}

	report.EndTime = m.clk.Now()
	report.DurationSeconds = report.EndTime.Sub(start).Seconds()
	report.Status = passStatus(report.Details.Boxscore, report.Details.PlayByPlay)
	return report, nil
}

func (m *SyncManager) fillDefaults(opts PassOptions) PassOptions {
	params := m.OptimalParams()
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = params.MaxWorkers
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = params.BatchSize
	}
	if opts.BatchInterval <= 0 {
		opts.BatchInterval = params.BatchInterval
	}
	if opts.WithRetry && opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	return opts
}

func (m *SyncManager) buildPlan(ctx context.Context, opts PassOptions) (syncPlan, error) {
	finished, err := m.games.ListFinished(ctx)
	if err != nil {
		return syncPlan{}, fmt.Errorf("%w: list finished games: %v", ErrPlan, err)
	}

	ordered := make([]string, 0, len(finished))
	if opts.ReverseOrder {
		for _, g := range finished {
			ordered = append(ordered, g.GameID)
		}
	} else {
		for i := len(finished) - 1; i >= 0; i-- {
			ordered = append(ordered, finished[i].GameID)
		}
	}

	boxSynced, err := m.ledger.SuccessfulGameIDs(ctx, synclog.KindBoxscore)
	if err != nil {
		return syncPlan{}, fmt.Errorf("%w: load boxscore synced set: %v", ErrPlan, err)
	}
	pbpSynced, err := m.ledger.SuccessfulGameIDs(ctx, synclog.KindPlayByPlay)
	if err != nil {
		return syncPlan{}, fmt.Errorf("%w: load playbyplay synced set: %v", ErrPlan, err)
	}
	pbpNoData, err := m.ledger.NoDataGameIDs(ctx, synclog.KindPlayByPlay)
	if err != nil {
		return syncPlan{}, fmt.Errorf("%w: load playbyplay no-data set: %v", ErrPlan, err)
	}
	withEvents, err := m.events.GameIDsWithEvents(ctx)
	if err != nil {
		return syncPlan{}, fmt.Errorf("%w: load event game ids: %v", ErrPlan, err)
	}

	// A success entry with no rows behind it means the write raced a
	// timeout upstream of the commit. Those games get re-verified.
	// No-data successes legitimately have no rows and are excluded.
	needsVerify := make(map[string]struct{})
	for gameID := range pbpSynced {
		if _, ok := pbpNoData[gameID]; ok {
			continue
		}
		if _, ok := withEvents[gameID]; ok {
			continue
		}
		needsVerify[gameID] = struct{}{}
	}

	plan := syncPlan{totalFinished: len(ordered), needsVerify: needsVerify}
	for _, gameID := range ordered {
		if opts.Force {
			plan.boxToSync = append(plan.boxToSync, gameID)
			plan.pbpToSync = append(plan.pbpToSync, gameID)
			continue
		}
		if _, ok := boxSynced[gameID]; !ok {
			plan.boxToSync = append(plan.boxToSync, gameID)
		}
		_, synced := pbpSynced[gameID]
		_, noData := pbpNoData[gameID]
		_, verify := needsVerify[gameID]
		if (!synced && !noData) || verify {
			plan.pbpToSync = append(plan.pbpToSync, gameID)
		}
	}
	return plan, nil
}

// runFlat is the non-segmented pass: box phase, inter-kind rest, then
// play-by-play with the conservative parameter floor.
func (m *SyncManager) runFlat(ctx context.Context, plan syncPlan, opts PassOptions, report *PassReport) {
	boxParams := SyncParams{
		MaxWorkers:    opts.MaxWorkers,
		BatchSize:     opts.BatchSize,
		BatchInterval: opts.BatchInterval,
	}
	report.Details.Boxscore = m.runPhase(ctx, m.box, plan.boxToSync, boxParams, opts, nil)

	if len(plan.boxToSync) > 0 && len(plan.pbpToSync) > 0 {
		if err := m.sleep(ctx, m.cfg.InterKindGap); err != nil {
			report.Details.PlayByPlay = skippedPhase(m.pbp.Kind(), len(plan.pbpToSync))
			return
		}
	}

	report.Details.PlayByPlay = m.runPhase(ctx, m.pbp, plan.pbpToSync, conservativeParams(boxParams), opts, plan.needsVerify)
}

// conservativeParams is the play-by-play floor: fewer workers, smaller
// windows, longer gaps. The upstream endpoint is far touchier than the
// boxscore one.
func conservativeParams(p SyncParams) SyncParams {
	return SyncParams{
		MaxWorkers:    minInt(4, p.MaxWorkers),
		BatchSize:     minInt(20, p.BatchSize),
		BatchInterval: time.Duration(float64(p.BatchInterval) * 1.5),
	}
}

func halvedParams(p SyncParams) SyncParams {
	return SyncParams{
		MaxWorkers:    maxInt(1, p.MaxWorkers/2),
		BatchSize:     maxInt(1, p.BatchSize/2),
		BatchInterval: time.Duration(float64(p.BatchInterval) * 1.5),
	}
}

func (m *SyncManager) runPhase(ctx context.Context, syncer GameSyncer, gameIDs []string, params SyncParams, opts PassOptions, reverify map[string]struct{}) PhaseReport {
	kind := syncer.Kind()
	phase := PhaseReport{Kind: string(kind), ToSync: len(gameIDs)}

	if len(gameIDs) == 0 {
		phase.Skipped = true
		phase.Batch.Status = PassStatusSkipped
		m.appendSkippedEntry(ctx, kind)
		return phase
	}

	batchOpts := BatchOptions{
		MaxWorkers:    params.MaxWorkers,
		BatchSize:     params.BatchSize,
		BatchInterval: params.BatchInterval,
		Force:         opts.Force,
		Reverify:      reverify,
	}

	var (
		batch BatchReport
		err   error
	)
	if opts.WithRetry {
		batch, err = syncer.SyncBatchWithRetry(ctx, gameIDs, RetryOptions{
			BatchOptions:   batchOpts,
			MaxRetries:     opts.MaxRetries,
			BaseRetryDelay: m.cfg.RetryDelay,
		})
	} else {
		batch, err = syncer.SyncBatch(ctx, gameIDs, batchOpts)
	}
	if err != nil {
		m.logger.ErrorContext(ctx, "phase aborted",
			"kind", string(kind),
			"error", err,
		)
		phase.Batch.Status = PassStatusFailed
		return phase
	}

	phase.Batch = batch
	return phase
}

func (m *SyncManager) runSegmented(ctx context.Context, plan syncPlan, opts PassOptions, report *PassReport) {
	boxSegments := segment(plan.boxToSync, m.cfg.SegmentSize)
	pbpSegments := segment(plan.pbpToSync, m.cfg.SegmentSize)
	total := maxInt(len(boxSegments), len(pbpSegments))

	segPacing := m.cfg.SegmentPacing
	segPacer := NewBatchPacer(segPacing, m.clk, m.rng, m.logger)

	firstParams := SyncParams{
		MaxWorkers:    opts.MaxWorkers,
		BatchSize:     opts.BatchSize,
		BatchInterval: opts.BatchInterval,
	}

	m.logger.InfoContext(ctx, "segmented sync pass",
		"segments", total,
		"segment_size", m.cfg.SegmentSize,
		"boxscore_to_sync", len(plan.boxToSync),
		"playbyplay_to_sync", len(plan.pbpToSync),
	)

	var unattemptedBox, unattemptedPbp []GameOutcome
	for i := 0; i < total; i++ {
		if _, err := segPacer.WaitForNextBatch(ctx); err != nil {
			unattemptedBox, unattemptedPbp = notAttemptedOutcomes(boxSegments, pbpSegments, i)
			break
		}

		params := firstParams
		if i > 0 {
			params = conservativeParams(firstParams)
		}

		seg := m.runSegment(ctx, i, segmentSlice(boxSegments, i), segmentSlice(pbpSegments, i), params, opts, plan.needsVerify)
		report.Segments = append(report.Segments, seg)

		if ctx.Err() != nil {
			unattemptedBox, unattemptedPbp = notAttemptedOutcomes(boxSegments, pbpSegments, i+1)
			break
		}
	}

	report.Details.Boxscore = aggregateSegmentPhases(string(m.box.Kind()), len(plan.boxToSync), report.Segments, unattemptedBox, func(s SegmentReport) PhaseReport { return s.Boxscore })
	report.Details.PlayByPlay = aggregateSegmentPhases(string(m.pbp.Kind()), len(plan.pbpToSync), report.Segments, unattemptedPbp, func(s SegmentReport) PhaseReport { return s.PlayByPlay })
}

func (m *SyncManager) runSegment(ctx context.Context, index int, boxIDs, pbpIDs []string, params SyncParams, opts PassOptions, reverify map[string]struct{}) SegmentReport {
	start := m.clk.Now()
	seg := SegmentReport{Index: index, StartTime: start}

	seg.Boxscore = m.runPhase(ctx, m.box, boxIDs, params, opts, nil)

	boxWork := seg.Boxscore.Batch.TotalGames - seg.Boxscore.Batch.SkippedGames
	if boxWork > 0 && len(pbpIDs) > 0 {
		if err := m.sleep(ctx, m.cfg.IntraSegmentRest); err != nil {
			seg.PlayByPlay = skippedPhase(m.pbp.Kind(), len(pbpIDs))
			seg.EndTime = m.clk.Now()
			seg.Status = segmentStatus(seg)
			m.appendSegmentEntry(ctx, seg)
			return seg
		}
	}

	seg.PlayByPlay = m.runPhase(ctx, m.pbp, pbpIDs, halvedParams(params), opts, reverify)
	seg.EndTime = m.clk.Now()
	seg.Status = segmentStatus(seg)

	m.appendSegmentEntry(ctx, seg)
	return seg
}

func (m *SyncManager) appendSegmentEntry(ctx context.Context, seg SegmentReport) {
	// The entry must land even when the pass was cancelled mid-segment.
	ctx = context.WithoutCancel(ctx)

	processed := seg.Boxscore.Batch.TotalGames + seg.PlayByPlay.Batch.TotalGames
	succeeded := seg.Boxscore.Batch.SuccessfulGames + seg.Boxscore.Batch.SkippedGames +
		seg.PlayByPlay.Batch.SuccessfulGames + seg.PlayByPlay.Batch.NoDataGames + seg.PlayByPlay.Batch.SkippedGames

	entry := synclog.Entry{
		Kind:           synclog.KindSegment,
		Status:         synclog.StatusSuccess,
		ItemsProcessed: processed,
		ItemsSucceeded: succeeded,
		StartTime:      seg.StartTime,
		EndTime:        seg.EndTime,
		Details: map[string]any{
			"segment_index":      seg.Index,
			"boxscore_status":    seg.Boxscore.Batch.Status,
			"playbyplay_status":  seg.PlayByPlay.Batch.Status,
			"boxscore_success":   seg.Boxscore.Batch.SuccessfulGames,
			"boxscore_failed":    seg.Boxscore.Batch.FailedGames,
			"playbyplay_success": seg.PlayByPlay.Batch.SuccessfulGames,
			"playbyplay_failed":  seg.PlayByPlay.Batch.FailedGames,
			"playbyplay_no_data": seg.PlayByPlay.Batch.NoDataGames,
		},
	}
	if seg.Status != PassStatusSuccess {
		entry.Status = synclog.StatusPartial
	}
	if err := m.ledger.Append(ctx, entry); err != nil {
		m.logger.WarnContext(ctx, "append segment entry failed",
			"segment_index", seg.Index,
			"error", err,
		)
	}
}

func (m *SyncManager) appendSkippedEntry(ctx context.Context, kind synclog.Kind) {
	now := m.clk.Now()
	entry := synclog.Entry{
		Kind:      kind,
		Status:    synclog.StatusSkipped,
		StartTime: now,
		EndTime:   now,
		Details:   map[string]any{"reason": "no games to sync"},
	}
	if err := m.ledger.Append(ctx, entry); err != nil {
		m.logger.WarnContext(ctx, "append skipped entry failed",
			"kind", string(kind),
			"error", err,
		)
	}
}

func (m *SyncManager) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := m.clk.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func segment(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	segments := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		segments = append(segments, ids[start:end])
	}
	return segments
}

func segmentSlice(segments [][]string, i int) []string {
	if i < len(segments) {
		return segments[i]
	}
	return nil
}

func skippedPhase(kind synclog.Kind, toSync int) PhaseReport {
	return PhaseReport{
		Kind:    string(kind),
		ToSync:  toSync,
		Skipped: true,
		Batch:   BatchReport{Status: PassStatusSkipped},
	}
}

// notAttemptedOutcomes covers the segments a cancelled pass never
// reached, starting at segment index from.
func notAttemptedOutcomes(boxSegments, pbpSegments [][]string, from int) (box, pbp []GameOutcome) {
	for i := from; i < len(boxSegments); i++ {
		for _, gameID := range boxSegments[i] {
			box = append(box, GameOutcome{GameID: gameID, Status: GameOutcomeNotAttempted})
		}
	}
	for i := from; i < len(pbpSegments); i++ {
		for _, gameID := range pbpSegments[i] {
			pbp = append(pbp, GameOutcome{GameID: gameID, Status: GameOutcomeNotAttempted})
		}
	}
	return box, pbp
}

func aggregateSegmentPhases(kind string, toSync int, segments []SegmentReport, unattempted []GameOutcome, pick func(SegmentReport) PhaseReport) PhaseReport {
	phase := PhaseReport{Kind: kind, ToSync: toSync}
	for _, seg := range segments {
		p := pick(seg)
		phase.Batch.Details = append(phase.Batch.Details, p.Batch.Details...)
	}
	phase.Batch.Details = append(phase.Batch.Details, unattempted...)
	phase.Batch.recount()
	if len(phase.Batch.Details) == 0 {
		phase.Skipped = true
		phase.Batch.Status = PassStatusSkipped
	}
	return phase
}

func segmentStatus(seg SegmentReport) string {
	return combineStatuses(seg.Boxscore.Batch.Status, seg.PlayByPlay.Batch.Status)
}

func passStatus(box, pbp PhaseReport) string {
	return combineStatuses(box.Batch.Status, pbp.Batch.Status)
}

func combineStatuses(a, b string) string {
	if a == PassStatusSkipped && b == PassStatusSkipped {
		return PassStatusSuccess
	}
	okA := a == PassStatusSuccess || a == PassStatusSkipped
	okB := b == PassStatusSuccess || b == PassStatusSkipped
	switch {
	case okA && okB:
		return PassStatusSuccess
	case a == PassStatusFailed && b == PassStatusFailed:
		return PassStatusFailed
	default:
		return PassStatusPartiallyFailed
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
