package usecase

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/courtdata/nba-sync/internal/platform/logging"
)

// LongPause is a scheduled hard stop taken once, right before the batch
// whose index matches AfterBatches starts.
type LongPause struct {
	AfterBatches int
	Pause        time.Duration
	Reason       string
}

// PacerConfig describes one pacing policy. Multipliers maps a batch
// count threshold to the factor applied to BaseInterval once that many
// batches have started; the largest matching threshold wins.
type PacerConfig struct {
	BaseInterval time.Duration
	Adaptive     bool
	Multipliers  map[int]float64
	LongPauses   []LongPause
	JitterChance float64
	JitterMin    time.Duration
	JitterMax    time.Duration
}

// DefaultJitter fills in the standard 20% chance of a 0.5-3.0s extra
// wait. Zero-valued configs get it applied by NewBatchPacer.
func (c PacerConfig) withDefaults() PacerConfig {
	if c.JitterChance == 0 {
		c.JitterChance = 0.2
	}
	if c.JitterMin == 0 {
		c.JitterMin = 500 * time.Millisecond
	}
	if c.JitterMax == 0 {
		c.JitterMax = 3 * time.Second
	}
	return c
}

// BatchPacer gates successive batch starts. It is not safe for
// concurrent use; exactly one driver goroutine calls WaitForNextBatch.
type BatchPacer struct {
	cfg    PacerConfig
	clk    clock.Clock
	rng    *rand.Rand
	logger *logging.Logger

	batchCount     int
	lastBatchStart time.Time
}

func NewBatchPacer(cfg PacerConfig, clk clock.Clock, rng *rand.Rand, logger *logging.Logger) *BatchPacer {
	if clk == nil {
		clk = clock.New()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = logging.Default()
	}
	sort.Slice(cfg.LongPauses, func(i, j int) bool {
		return cfg.LongPauses[i].AfterBatches < cfg.LongPauses[j].AfterBatches
	})
	return &BatchPacer{cfg: cfg.withDefaults(), clk: clk, rng: rng, logger: logger}
}

// WaitForNextBatch blocks until the next batch may start and returns the
// interval it enforced. The first call returns immediately apart from
// jitter. Cancellation cuts the wait short and returns ctx.Err().
func (p *BatchPacer) WaitForNextBatch(ctx context.Context) (time.Duration, error) {
	interval := p.currentInterval()

	if pause, ok := p.longPauseFor(p.batchCount); ok {
		p.logger.WarnContext(ctx, "pacer long pause",
			"batch_count", p.batchCount,
			"pause", pause.Pause.String(),
			"reason", pause.Reason,
		)
		if err := p.sleep(ctx, pause.Pause); err != nil {
			return interval, err
		}
	}

	if !p.lastBatchStart.IsZero() {
		elapsed := p.clk.Since(p.lastBatchStart)
		if elapsed < interval {
			if err := p.sleep(ctx, interval-elapsed); err != nil {
				return interval, err
			}
		}
	}

	if p.rng.Float64() < p.cfg.JitterChance {
		jitter := p.cfg.JitterMin +
			time.Duration(p.rng.Float64()*float64(p.cfg.JitterMax-p.cfg.JitterMin))
		if err := p.sleep(ctx, jitter); err != nil {
			return interval, err
		}
	}

	p.batchCount++
	p.lastBatchStart = p.clk.Now()
	return interval, nil
}

// BatchCount returns how many batches have been released so far.
func (p *BatchPacer) BatchCount() int { return p.batchCount }

func (p *BatchPacer) currentInterval() time.Duration {
	if !p.cfg.Adaptive || len(p.cfg.Multipliers) == 0 {
		return p.cfg.BaseInterval
	}
	best := 1.0
	bestThreshold := -1
	for threshold, multiplier := range p.cfg.Multipliers {
		if p.batchCount >= threshold && threshold > bestThreshold {
			bestThreshold = threshold
			best = multiplier
		}
	}
	return time.Duration(float64(p.cfg.BaseInterval) * best)
}

func (p *BatchPacer) longPauseFor(count int) (LongPause, bool) {
	for _, lp := range p.cfg.LongPauses {
		if lp.AfterBatches == count {
			return lp, true
		}
	}
	return LongPause{}, false
}

func (p *BatchPacer) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := p.clk.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
