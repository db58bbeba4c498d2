package usecase

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/benbjohnson/clock"

	"github.com/courtdata/nba-sync/internal/domain/playbyplay"
	"github.com/courtdata/nba-sync/internal/domain/synclog"
	"github.com/courtdata/nba-sync/internal/platform/logging"
)

// PlayByPlaySyncer pulls per-game action streams. Unlike boxscores, an
// absent payload is a legitimate terminal state: early-era games have
// no play-by-play upstream.
type PlayByPlaySyncer struct {
	syncerCore
	provider StatsProvider
	store    EventStore
}

func NewPlayByPlaySyncer(
	provider StatsProvider,
	store EventStore,
	ledger SyncLedger,
	pacing PacerConfig,
	clk clock.Clock,
	rng *rand.Rand,
	logger *logging.Logger,
) *PlayByPlaySyncer {
	s := &PlayByPlaySyncer{
		syncerCore: newSyncerCore(synclog.KindPlayByPlay, ledger, pacing, clk, rng, logger),
		provider:   provider,
		store:      store,
	}
	s.syncerCore.syncOne = s.SyncGame
	return s
}

// SyncGame syncs one game's play-by-play. A nil or empty payload is
// recorded as success with the no-data marker and zero items.
func (s *PlayByPlaySyncer) SyncGame(ctx context.Context, gameID string, force bool) GameOutcome {
	start := s.clk.Now()
	outcome := GameOutcome{GameID: gameID}

	fail := func(err error) GameOutcome {
		s.appendFailureEntry(ctx, gameID, start, err)
		outcome.Status = GameOutcomeFailed
		outcome.ErrorKind = classifyError(err)
		outcome.Message = err.Error()
		outcome.DurationMs = s.clk.Since(start).Milliseconds()
		return outcome
	}

	payload, err := s.provider.FetchPlayByPlay(ctx, gameID, force)
	if err != nil {
		return fail(fmt.Errorf("fetch play-by-play: %w", err))
	}
	if payload == nil || len(payload.Actions) == 0 {
		entry := synclog.Entry{
			Kind:      synclog.KindPlayByPlay,
			GameID:    gameID,
			Status:    synclog.StatusSuccess,
			StartTime: start,
			EndTime:   s.clk.Now(),
			Details:   map[string]any{synclog.DetailNoData: true},
		}
		if err := s.ledger.Append(ctx, entry); err != nil {
			return fail(fmt.Errorf("%w: record no-data entry: %v", ErrPersistence, err))
		}
		outcome.Status = GameOutcomeNoData
		outcome.DurationMs = s.clk.Since(start).Milliseconds()
		return outcome
	}

	events := buildEvents(gameID, payload.Actions)

	entry := synclog.Entry{
		Kind:           synclog.KindPlayByPlay,
		GameID:         gameID,
		Status:         synclog.StatusSuccess,
		ItemsProcessed: len(events),
		ItemsSucceeded: len(events),
		StartTime:      start,
		EndTime:        s.clk.Now(),
		Details: map[string]any{
			"total_actions": len(events),
			"final_period":  finalPeriod(events),
		},
	}
	if err := s.store.SaveGame(ctx, gameID, events, entry); err != nil {
		return fail(fmt.Errorf("%w: save play-by-play events: %v", ErrPersistence, err))
	}

	outcome.Status = GameOutcomeSuccess
	outcome.Items = len(events)
	outcome.DurationMs = s.clk.Since(start).Milliseconds()
	return outcome
}

func buildEvents(gameID string, actions []ExternalAction) []playbyplay.Event {
	events := make([]playbyplay.Event, 0, len(actions))
	for _, action := range actions {
		events = append(events, playbyplay.Event{
			GameID:       gameID,
			ActionNumber: action.ActionNumber,

			Clock:          action.Clock,
			Period:         action.Period,
			TeamID:         action.TeamID,
			TeamTricode:    action.TeamTricode,
			PersonID:       action.PersonID,
			PlayerName:     action.PlayerName,
			XLegacy:        action.XLegacy,
			YLegacy:        action.YLegacy,
			ShotDistance:   action.ShotDistance,
			ShotResult:     action.ShotResult,
			IsFieldGoal:    action.IsFieldGoal,
			ScoreHome:      action.ScoreHome,
			ScoreAway:      action.ScoreAway,
			PointsTotal:    action.PointsTotal,
			Location:       action.Location,
			Description:    action.Description,
			ActionType:     action.ActionType,
			SubType:        action.SubType,
			VideoAvailable: action.VideoAvailable,
		})
	}
	return events
}

func finalPeriod(events []playbyplay.Event) int {
	period := 0
	for _, ev := range events {
		if ev.Period > period {
			period = ev.Period
		}
	}
	return period
}
