package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/courtdata/nba-sync/internal/domain/game"
)

type gameTableModel struct {
	GameID      string    `db:"game_id"`
	Season      string    `db:"season"`
	Status      int       `db:"status"`
	DateTimeUTC time.Time `db:"date_time_utc"`
	HomeTeamID  int64     `db:"home_team_id"`
	AwayTeamID  int64     `db:"away_team_id"`
	HomeScore   int       `db:"home_score"`
	AwayScore   int       `db:"away_score"`
	Arena       string    `db:"arena"`
}

// GameRepository reads and writes the reference schedule. The stats
// sync path only calls ListFinished; writes come from the schedule
// sync alone.
type GameRepository struct {
	db *sqlx.DB
}

func NewGameRepository(db *sqlx.DB) *GameRepository {
	return &GameRepository{db: db}
}

func (r *GameRepository) ListFinished(ctx context.Context) ([]game.Game, error) {
	const query = `
SELECT game_id, season, status, date_time_utc, home_team_id, away_team_id, home_score, away_score, arena
FROM games
WHERE status = $1
ORDER BY date_time_utc DESC, game_id DESC`

	var rows []gameTableModel
	if err := r.db.SelectContext(ctx, &rows, query, game.StatusFinal); err != nil {
		return nil, fmt.Errorf("select finished games: %w", err)
	}

	out := make([]game.Game, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapGameRow(row))
	}
	return out, nil
}

func (r *GameRepository) GetByID(ctx context.Context, gameID string) (game.Game, bool, error) {
	const query = `
SELECT game_id, season, status, date_time_utc, home_team_id, away_team_id, home_score, away_score, arena
FROM games
WHERE game_id = $1`

	var row gameTableModel
	if err := r.db.GetContext(ctx, &row, query, gameID); err != nil {
		if isNotFound(err) {
			return game.Game{}, false, nil
		}
		return game.Game{}, false, fmt.Errorf("select game game_id=%s: %w", gameID, err)
	}
	return mapGameRow(row), true, nil
}

func (r *GameRepository) Upsert(ctx context.Context, items []game.Game) error {
	if len(items) == 0 {
		return nil
	}

	const query = `
INSERT INTO games (game_id, season, status, date_time_utc, home_team_id, away_team_id, home_score, away_score, arena)
VALUES (:game_id, :season, :status, :date_time_utc, :home_team_id, :away_team_id, :home_score, :away_score, :arena)
ON CONFLICT (game_id) DO UPDATE SET
    season = EXCLUDED.season,
    status = EXCLUDED.status,
    date_time_utc = EXCLUDED.date_time_utc,
    home_team_id = EXCLUDED.home_team_id,
    away_team_id = EXCLUDED.away_team_id,
    home_score = EXCLUDED.home_score,
    away_score = EXCLUDED.away_score,
    arena = EXCLUDED.arena`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert games: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, item := range items {
		model := gameTableModel{
			GameID:      item.GameID,
			Season:      item.Season,
			Status:      item.Status,
			DateTimeUTC: item.DateTimeUTC,
			HomeTeamID:  item.HomeTeamID,
			AwayTeamID:  item.AwayTeamID,
			HomeScore:   item.HomeScore,
			AwayScore:   item.AwayScore,
			Arena:       item.Arena,
		}
		if _, err := tx.NamedExecContext(ctx, query, model); err != nil {
			return fmt.Errorf("upsert game game_id=%s: %w", item.GameID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert games tx: %w", err)
	}
	return nil
}

func mapGameRow(row gameTableModel) game.Game {
	return game.Game{
		GameID:      row.GameID,
		Season:      row.Season,
		Status:      row.Status,
		DateTimeUTC: row.DateTimeUTC,
		HomeTeamID:  row.HomeTeamID,
		AwayTeamID:  row.AwayTeamID,
		HomeScore:   row.HomeScore,
		AwayScore:   row.AwayScore,
		Arena:       row.Arena,
	}
}
