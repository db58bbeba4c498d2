package usecase

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/panjf2000/ants/v2"

	"github.com/courtdata/nba-sync/internal/domain/synclog"
	"github.com/courtdata/nba-sync/internal/platform/logging"
)

// BatchOptions tunes one syncBatch run.
type BatchOptions struct {
	MaxWorkers    int
	BatchSize     int
	BatchInterval time.Duration
	// Force resyncs games that already have a success or no-data entry.
	Force bool
	// Reverify exempts games from the synced-set prefilter. The planner
	// puts games here whose success entry has no rows behind it; they
	// must be re-fetched even though the ledger says synced.
	Reverify map[string]struct{}
}

// RetryOptions adds the retry-wrapper knobs on top of BatchOptions.
type RetryOptions struct {
	BatchOptions
	MaxRetries     int
	BaseRetryDelay time.Duration
}

func (o BatchOptions) normalized() BatchOptions {
	if o.MaxWorkers < 1 {
		o.MaxWorkers = 1
	}
	if o.BatchSize < 1 {
		o.BatchSize = 1
	}
	if o.BatchInterval <= 0 {
		o.BatchInterval = time.Second
	}
	return o
}

// GameSyncer is the per-kind sync surface the manager drives.
type GameSyncer interface {
	Kind() synclog.Kind
	SyncGame(ctx context.Context, gameID string, force bool) GameOutcome
	SyncBatch(ctx context.Context, gameIDs []string, opts BatchOptions) (BatchReport, error)
	SyncBatchWithRetry(ctx context.Context, gameIDs []string, opts RetryOptions) (BatchReport, error)
}

// batchCounter is the one piece of cross-worker mutable state in a
// batch run.
type batchCounter struct {
	mu      sync.Mutex
	success int
	failed  int
	noData  int
}

func (c *batchCounter) record(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch status {
	case GameOutcomeSuccess:
		c.success++
	case GameOutcomeNoData:
		c.noData++
	case GameOutcomeFailed:
		c.failed++
	}
}

func (c *batchCounter) snapshot() (success, failed, noData int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.success, c.failed, c.noData
}

// syncerCore carries the batching, pacing, and retry machinery shared
// by the boxscore and play-by-play syncers. syncOne is the kind's
// per-game operation; it never returns an error, only an outcome.
type syncerCore struct {
	kind    synclog.Kind
	ledger  SyncLedger
	clk     clock.Clock
	rng     *rand.Rand
	logger  *logging.Logger
	pacing  PacerConfig
	syncOne func(ctx context.Context, gameID string, force bool) GameOutcome
}

func newSyncerCore(
	kind synclog.Kind,
	ledger SyncLedger,
	pacing PacerConfig,
	clk clock.Clock,
	rng *rand.Rand,
	logger *logging.Logger,
) syncerCore {
	if clk == nil {
		clk = clock.New()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = logging.Default()
	}
	return syncerCore{
		kind:   kind,
		ledger: ledger,
		pacing: pacing,
		clk:    clk,
		rng:    rng,
		logger: logger.Named(string(kind)),
	}
}

func (s *syncerCore) Kind() synclog.Kind { return s.kind }

// SyncBatch runs syncOne over the given games in batch-size windows
// with bounded concurrency. Per-game failures never surface as an
// error; they are summarized in the report. The returned error covers
// only planning-level problems such as an unreadable ledger.
func (s *syncerCore) SyncBatch(ctx context.Context, gameIDs []string, opts BatchOptions) (BatchReport, error) {
	ctx, span := startUsecaseSpan(ctx, fmt.Sprintf("usecase.GameSyncer.SyncBatch.%s", s.kind))
	defer span.End()

	opts = opts.normalized()
	report := BatchReport{Details: make([]GameOutcome, 0, len(gameIDs))}

	pending, err := s.prefilter(ctx, gameIDs, opts, &report)
	if err != nil {
		return BatchReport{}, err
	}
	if len(pending) == 0 {
		report.recount()
		return report, nil
	}

	pacing := s.pacing
	pacing.BaseInterval = opts.BatchInterval
	pacer := NewBatchPacer(pacing, s.clk, s.rng, s.logger)

	pool, err := ants.NewPool(opts.MaxWorkers)
	if err != nil {
		return BatchReport{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	counter := &batchCounter{}
	cancelled := false

	for start := 0; start < len(pending); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		window := pending[start:end]

		if _, err := pacer.WaitForNextBatch(ctx); err != nil {
			for _, gameID := range pending[start:] {
				report.Details = append(report.Details, GameOutcome{
					GameID: gameID,
					Status: GameOutcomeNotAttempted,
				})
			}
			cancelled = true
			break
		}

		outcomes := make(chan GameOutcome, len(window))
		var workers sync.WaitGroup
		for _, gameID := range window {
			gameID := gameID
			workers.Add(1)
			if err := pool.Submit(func() {
				defer workers.Done()
				outcome := s.syncOne(ctx, gameID, opts.Force)
				counter.record(outcome.Status)
				outcomes <- outcome
			}); err != nil {
				workers.Done()
				return BatchReport{}, fmt.Errorf("submit game to worker pool: %w", err)
			}
		}
		workers.Wait()
		close(outcomes)

		for outcome := range outcomes {
			report.Details = append(report.Details, outcome)
		}

		success, failed, noData := counter.snapshot()
		s.logger.InfoContext(ctx, "batch window complete",
			"kind", string(s.kind),
			"window_size", len(window),
			"progress", end,
			"total", len(pending),
			"success", success,
			"failed", failed,
			"no_data", noData,
		)
	}

	report.recount()
	if cancelled && report.Status == PassStatusSuccess {
		report.Status = PassStatusPartiallyFailed
	}
	return report, nil
}

// SyncBatchWithRetry runs SyncBatch, then re-runs the retryable failed
// games with exponential backoff between rounds. Each round appends one
// roll-up ledger entry.
func (s *syncerCore) SyncBatchWithRetry(ctx context.Context, gameIDs []string, opts RetryOptions) (BatchReport, error) {
	ctx, span := startUsecaseSpan(ctx, fmt.Sprintf("usecase.GameSyncer.SyncBatchWithRetry.%s", s.kind))
	defer span.End()

	if opts.BaseRetryDelay <= 0 {
		opts.BaseRetryDelay = 5 * time.Second
	}

	report, err := s.SyncBatch(ctx, gameIDs, opts.BatchOptions)
	if err != nil {
		return BatchReport{}, err
	}

	for attempt := 0; attempt < opts.MaxRetries; attempt++ {
		failed := report.FailedGameIDs(attempt)
		if len(failed) == 0 {
			break
		}

		backoff := s.retryBackoff(opts.BaseRetryDelay, attempt)
		s.logger.WarnContext(ctx, "retrying failed games",
			"kind", string(s.kind),
			"attempt", attempt+1,
			"failed_games", len(failed),
			"backoff", backoff.String(),
		)
		if err := s.sleep(ctx, backoff); err != nil {
			break
		}

		roundStart := s.clk.Now()
		retryReport, err := s.SyncBatch(ctx, failed, opts.BatchOptions)
		if err != nil {
			return BatchReport{}, err
		}

		mergeOutcomes(&report, retryReport)
		report.RetryRounds = attempt + 1

		s.appendRetryRoundEntry(ctx, attempt+1, roundStart, failed, retryReport)

		if ctx.Err() != nil {
			break
		}
	}

	return report, nil
}

// prefilter drops games that already carry a success or no-data entry,
// recording a skipped outcome for each. Order of the survivors follows
// the input order. Games in opts.Reverify keep their slot: their
// success entry is not backed by rows and the fetch must happen again.
func (s *syncerCore) prefilter(ctx context.Context, gameIDs []string, opts BatchOptions, report *BatchReport) ([]string, error) {
	if opts.Force {
		return gameIDs, nil
	}
	synced, err := s.ledger.SuccessfulGameIDs(ctx, s.kind)
	if err != nil {
		return nil, fmt.Errorf("%w: load synced set: %v", ErrPlan, err)
	}
	noData, err := s.ledger.NoDataGameIDs(ctx, s.kind)
	if err != nil {
		return nil, fmt.Errorf("%w: load no-data set: %v", ErrPlan, err)
	}

	pending := make([]string, 0, len(gameIDs))
	for _, gameID := range gameIDs {
		if _, ok := opts.Reverify[gameID]; ok {
			pending = append(pending, gameID)
			continue
		}
		if _, ok := synced[gameID]; ok {
			report.Details = append(report.Details, GameOutcome{
				GameID:  gameID,
				Status:  GameOutcomeSkipped,
				Message: "already synced",
			})
			continue
		}
		if _, ok := noData[gameID]; ok {
			report.Details = append(report.Details, GameOutcome{
				GameID:  gameID,
				Status:  GameOutcomeSkipped,
				Message: "known no-data game",
			})
			continue
		}
		pending = append(pending, gameID)
	}
	return pending, nil
}

func (s *syncerCore) retryBackoff(base time.Duration, attempt int) time.Duration {
	backoff := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	jitter := time.Duration((s.rng.Float64()*2 - 1) * float64(time.Second))
	if backoff+jitter < 0 {
		return backoff
	}
	return backoff + jitter
}

func (s *syncerCore) appendRetryRoundEntry(ctx context.Context, round int, start time.Time, attempted []string, retryReport BatchReport) {
	entry := synclog.Entry{
		Kind:           synclog.KindBatch,
		Status:         synclog.StatusSuccess,
		ItemsProcessed: len(attempted),
		ItemsSucceeded: retryReport.SuccessfulGames + retryReport.NoDataGames,
		StartTime:      start,
		EndTime:        s.clk.Now(),
		Details: map[string]any{
			"kind":        string(s.kind),
			"retry_round": round,
			"attempted":   len(attempted),
			"succeeded":   retryReport.SuccessfulGames,
			"failed":      retryReport.FailedGames,
			"no_data":     retryReport.NoDataGames,
		},
	}
	if retryReport.FailedGames > 0 {
		entry.Status = synclog.StatusPartial
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "append retry round entry failed",
			"kind", string(s.kind),
			"retry_round", round,
			"error", err,
		)
	}
}

func (s *syncerCore) appendFailureEntry(ctx context.Context, gameID string, start time.Time, err error) {
	entry := synclog.Entry{
		Kind:         s.kind,
		GameID:       gameID,
		Status:       synclog.StatusFailed,
		StartTime:    start,
		EndTime:      s.clk.Now(),
		ErrorMessage: err.Error(),
	}
	if appendErr := s.ledger.Append(ctx, entry); appendErr != nil {
		s.logger.WarnContext(ctx, "append failure entry failed",
			"kind", string(s.kind),
			"game_id", gameID,
			"error", appendErr,
		)
	}
}

func (s *syncerCore) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := s.clk.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// mergeOutcomes replaces the latest outcome per game with the retry
// round's outcome and rebuilds the aggregate counts.
func mergeOutcomes(report *BatchReport, retry BatchReport) {
	latest := make(map[string]GameOutcome, len(retry.Details))
	for _, outcome := range retry.Details {
		latest[outcome.GameID] = outcome
	}
	for i, outcome := range report.Details {
		if updated, ok := latest[outcome.GameID]; ok {
			report.Details[i] = updated
		}
	}
	report.recount()
}
