package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/benbjohnson/clock"

	"github.com/courtdata/nba-sync/internal/domain/boxscore"
	"github.com/courtdata/nba-sync/internal/domain/synclog"
	"github.com/courtdata/nba-sync/internal/platform/logging"
)

// BoxscoreSyncer pulls per-game boxscores from the stats provider and
// lands the player rows plus a success ledger entry in one transaction.
type BoxscoreSyncer struct {
	syncerCore
	provider StatsProvider
	store    BoxscoreStore
}

func NewBoxscoreSyncer(
	provider StatsProvider,
	store BoxscoreStore,
	ledger SyncLedger,
	pacing PacerConfig,
	clk clock.Clock,
	rng *rand.Rand,
	logger *logging.Logger,
) *BoxscoreSyncer {
	s := &BoxscoreSyncer{
		syncerCore: newSyncerCore(synclog.KindBoxscore, ledger, pacing, clk, rng, logger),
		provider:   provider,
		store:      store,
	}
	s.syncerCore.syncOne = s.SyncGame
	return s
}

// SyncGame syncs one game's boxscore. A nil payload is a failure; a
// finished game must have a boxscore upstream.
func (s *BoxscoreSyncer) SyncGame(ctx context.Context, gameID string, force bool) GameOutcome {
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

	payload, err := s.provider.FetchBoxscore(ctx, gameID, force)
	if err != nil {
		return fail(fmt.Errorf("fetch boxscore: %w", err))
	}
	if payload == nil {
		return fail(fmt.Errorf("%w: no boxscore data", ErrNoData))
	}

	rows := buildBoxscoreRows(payload)
	if len(rows) == 0 {
		return fail(fmt.Errorf("%w: boxscore payload has no player lines", ErrParse))
	}

	entry := synclog.Entry{
		Kind:           synclog.KindBoxscore,
		GameID:         gameID,
		Status:         synclog.StatusSuccess,
		ItemsProcessed: len(rows),
		ItemsSucceeded: len(rows),
		StartTime:      start,
		EndTime:        s.clk.Now(),
		Details: map[string]any{
			"home_team":    payload.HomeTeam.Tricode,
			"away_team":    payload.AwayTeam.Tricode,
			"home_players": len(payload.HomeTeam.Players),
			"away_players": len(payload.AwayTeam.Players),
			"total_rows":   len(rows),
		},
	}
	if err := s.store.SaveGame(ctx, gameID, rows, entry); err != nil {
		return fail(fmt.Errorf("%w: save boxscore rows: %v", ErrPersistence, err))
	}

	outcome.Status = GameOutcomeSuccess
	outcome.Items = len(rows)
	outcome.DurationMs = s.clk.Since(start).Milliseconds()
	return outcome
}

// buildBoxscoreRows flattens the two team rosters into self-describing
// rows. Game status is resolved once from the final scores: 2 when
// either side has scored, 0 otherwise.
func buildBoxscoreRows(payload *ExternalBoxscore) []boxscore.Row {
	gameStatus := 0
	if payload.HomeTeam.Score > 0 || payload.AwayTeam.Score > 0 {
		gameStatus = 2
	}

	base := boxscore.Row{
		GameID:         payload.GameID,
		HomeTeamID:     payload.HomeTeam.TeamID,
		AwayTeamID:     payload.AwayTeam.TeamID,
		HomeTricode:    payload.HomeTeam.Tricode,
		AwayTricode:    payload.AwayTeam.Tricode,
		HomeTeamName:   teamDisplayName(payload.HomeTeam),
		AwayTeamName:   teamDisplayName(payload.AwayTeam),
		HomeScore:      payload.HomeTeam.Score,
		AwayScore:      payload.AwayTeam.Score,
		GameDate:       payload.GameTimeUTC,
		GameStatus:     gameStatus,
		VideoAvailable: payload.VideoAvailable,
	}

	rows := make([]boxscore.Row, 0, len(payload.HomeTeam.Players)+len(payload.AwayTeam.Players))
	rows = appendTeamRows(rows, base, payload.HomeTeam)
	rows = appendTeamRows(rows, base, payload.AwayTeam)
	return rows
}

func appendTeamRows(rows []boxscore.Row, base boxscore.Row, team ExternalBoxTeam) []boxscore.Row {
	for _, line := range team.Players {
		row := base
		row.PersonID = line.PersonID
		row.TeamID = team.TeamID
		row.TeamTricode = team.Tricode

		row.FirstName = line.FirstName
		row.FamilyName = line.FamilyName
		row.DisplayFirstLast = strings.TrimSpace(line.FirstName + " " + line.FamilyName)
		row.JerseyNum = line.JerseyNum
		row.Position = line.Position
		row.IsStarter = line.Starter
		row.Comment = line.Comment

		st := line.Statistics
		row.Minutes = st.Minutes
		row.FieldGoalsMade = st.FieldGoalsMade
		row.FieldGoalsAtt = st.FieldGoalsAtt
		row.FieldGoalsPct = st.FieldGoalsPct
		row.ThreePointersMade = st.ThreePointersMade
		row.ThreePointersAtt = st.ThreePointersAtt
		row.ThreePointersPct = st.ThreePointersPct
		row.FreeThrowsMade = st.FreeThrowsMade
		row.FreeThrowsAtt = st.FreeThrowsAtt
		row.FreeThrowsPct = st.FreeThrowsPct
		row.ReboundsOff = st.ReboundsOff
		row.ReboundsDef = st.ReboundsDef
		row.ReboundsTotal = st.ReboundsTotal
		row.Assists = st.Assists
		row.Steals = st.Steals
		row.Blocks = st.Blocks
		row.Turnovers = st.Turnovers
		row.FoulsPersonal = st.FoulsPersonal
		row.Points = st.Points
		row.PlusMinus = st.PlusMinus

		rows = append(rows, row)
	}
	return rows
}

func teamDisplayName(team ExternalBoxTeam) string {
	return strings.TrimSpace(team.TeamCity + " " + team.TeamName)
}
