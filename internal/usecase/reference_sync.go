package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/courtdata/nba-sync/internal/domain/game"
	"github.com/courtdata/nba-sync/internal/domain/player"
	"github.com/courtdata/nba-sync/internal/domain/synclog"
	"github.com/courtdata/nba-sync/internal/domain/team"
	"github.com/courtdata/nba-sync/internal/platform/logging"
)

// ReferenceSyncService keeps the reference store current: teams,
// players, and the season schedule. It is the only collaborator that
// mutates game rows; the stats path only reads them.
type ReferenceSyncService struct {
	provider ReferenceProvider
	teams    team.Repository
	players  player.Repository
	games    game.Repository
	ledger   SyncLedger
	progress ProgressStore
	clk      clock.Clock
	logger   *logging.Logger
}

func NewReferenceSyncService(
	provider ReferenceProvider,
	teams team.Repository,
	players player.Repository,
	games game.Repository,
	ledger SyncLedger,
	progress ProgressStore,
	clk clock.Clock,
	logger *logging.Logger,
) *ReferenceSyncService {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ReferenceSyncService{
		provider: provider,
		teams:    teams,
		players:  players,
		games:    games,
		ledger:   ledger,
		progress: progress,
		clk:      clk,
		logger:   logger.Named("reference-sync"),
	}
}

// SyncTeams refreshes the full franchise list. The league is small
// enough to land in one call.
func (s *ReferenceSyncService) SyncTeams(ctx context.Context) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ReferenceSyncService.SyncTeams")
	defer span.End()

	start := s.clk.Now()
	external, err := s.provider.FetchTeams(ctx)
	if err != nil {
		s.appendEntry(ctx, "teams", start, 0, 0, err)
		return 0, fmt.Errorf("fetch teams: %w", err)
	}

	now := s.clk.Now()
	items := make([]team.Team, 0, len(external))
	for _, t := range external {
		items = append(items, team.Team{
			TeamID:       t.TeamID,
			Abbreviation: t.Abbreviation,
			Nickname:     t.Nickname,
			City:         t.City,
			Conference:   t.Conference,
			Division:     t.Division,
			LogoURL:      t.LogoURL,
			UpdatedAt:    now,
		})
	}
	if err := s.teams.Upsert(ctx, items); err != nil {
		s.appendEntry(ctx, "teams", start, len(items), 0, err)
		return 0, fmt.Errorf("%w: upsert teams: %v", ErrPersistence, err)
	}

	s.appendEntry(ctx, "teams", start, len(items), len(items), nil)
	return len(items), nil
}

// SyncPlayers walks the cursor-paged roster listing, persisting the
// cursor after every page so an interrupted sync resumes where it
// stopped. maxPages <= 0 drains the listing in one call.
func (s *ReferenceSyncService) SyncPlayers(ctx context.Context, activeOnly bool, maxPages int) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ReferenceSyncService.SyncPlayers")
	defer span.End()

	start := s.clk.Now()
	cursor := ""
	if prog, ok, err := s.progress.Get(ctx, synclog.KindGameData); err != nil {
		return 0, fmt.Errorf("%w: load player cursor: %v", ErrPersistence, err)
	} else if ok {
		cursor = prog.Cursor
	}

	total := 0
	pages := 0
	for {
		external, next, err := s.provider.FetchPlayers(ctx, cursor)
		if err != nil {
			s.appendEntry(ctx, "players", start, total, total, err)
			return total, fmt.Errorf("fetch players page: %w", err)
		}

		now := s.clk.Now()
		items := make([]player.Player, 0, len(external))
		for _, p := range external {
			if activeOnly && !p.IsActive {
				continue
			}
			items = append(items, player.Player{
				PersonID:         p.PersonID,
				DisplayFirstLast: p.DisplayFirstLast,
				FirstName:        p.FirstName,
				LastName:         p.LastName,
				TeamID:           p.TeamID,
				JerseyNum:        p.JerseyNum,
				Position:         p.Position,
				IsActive:         p.IsActive,
				LastSynced:       now,
				UpdatedAt:        now,
			})
		}
		if err := s.players.Upsert(ctx, items); err != nil {
			s.appendEntry(ctx, "players", start, total+len(items), total, err)
			return total, fmt.Errorf("%w: upsert players: %v", ErrPersistence, err)
		}
		total += len(items)

		if err := s.progress.Put(ctx, synclog.Progress{
			Kind:      synclog.KindGameData,
			Cursor:    next,
			UpdatedAt: now,
		}); err != nil {
			return total, fmt.Errorf("%w: save player cursor: %v", ErrPersistence, err)
		}

		cursor = next
		pages++
		if cursor == "" || (maxPages > 0 && pages >= maxPages) {
			break
		}
	}

	s.appendEntry(ctx, "players", start, total, total, nil)
	return total, nil
}

// SyncSchedule refreshes one season's games.
func (s *ReferenceSyncService) SyncSchedule(ctx context.Context, season string) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ReferenceSyncService.SyncSchedule")
	defer span.End()

	if season == "" {
		return 0, fmt.Errorf("%w: season is required", ErrInvalidInput)
	}

	start := s.clk.Now()
	external, err := s.provider.FetchSeasonSchedule(ctx, season)
	if err != nil {
		s.appendEntry(ctx, "schedule", start, 0, 0, err)
		return 0, fmt.Errorf("fetch season schedule: %w", err)
	}

	items := make([]game.Game, 0, len(external))
	for _, g := range external {
		items = append(items, game.Game{
			GameID:      g.GameID,
			Season:      g.Season,
			Status:      g.Status,
			DateTimeUTC: g.DateTimeUTC,
			HomeTeamID:  g.HomeTeamID,
			AwayTeamID:  g.AwayTeamID,
			HomeScore:   g.HomeScore,
			AwayScore:   g.AwayScore,
			Arena:       g.Arena,
		})
	}
	if err := s.games.Upsert(ctx, items); err != nil {
		s.appendEntry(ctx, "schedule", start, len(items), 0, err)
		return 0, fmt.Errorf("%w: upsert schedule: %v", ErrPersistence, err)
	}

	s.appendEntry(ctx, "schedule", start, len(items), len(items), nil)
	return len(items), nil
}

func (s *ReferenceSyncService) appendEntry(ctx context.Context, entity string, start time.Time, processed, succeeded int, cause error) {
	entry := synclog.Entry{
		Kind:           synclog.KindGameData,
		Status:         synclog.StatusSuccess,
		ItemsProcessed: processed,
		ItemsSucceeded: succeeded,
		StartTime:      start,
		EndTime:        s.clk.Now(),
		Details:        map[string]any{"entity": entity},
	}
	if cause != nil {
		entry.Status = synclog.StatusFailed
		entry.ErrorMessage = cause.Error()
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "append reference sync entry failed",
			"entity", entity,
			"error", err,
		)
	}
}
