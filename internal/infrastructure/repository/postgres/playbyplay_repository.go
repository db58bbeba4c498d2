package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/courtdata/nba-sync/internal/domain/playbyplay"
	"github.com/courtdata/nba-sync/internal/domain/synclog"
)

type eventTableModel struct {
	GameID       string `db:"game_id"`
	ActionNumber int    `db:"action_number"`

	Clock          string         `db:"clock"`
	Period         int            `db:"period"`
	TeamID         sql.NullInt64  `db:"team_id"`
	TeamTricode    sql.NullString `db:"team_tricode"`
	PersonID       sql.NullInt64  `db:"person_id"`
	PlayerName     sql.NullString `db:"player_name"`
	XLegacy        int            `db:"x_legacy"`
	YLegacy        int            `db:"y_legacy"`
	ShotDistance   int            `db:"shot_distance"`
	ShotResult     sql.NullString `db:"shot_result"`
	IsFieldGoal    bool           `db:"is_field_goal"`
	ScoreHome      int            `db:"score_home"`
	ScoreAway      int            `db:"score_away"`
	PointsTotal    int            `db:"points_total"`
	Location       sql.NullString `db:"location"`
	Description    sql.NullString `db:"description"`
	ActionType     sql.NullString `db:"action_type"`
	SubType        sql.NullString `db:"sub_type"`
	VideoAvailable bool           `db:"video_available"`
}

// PlayByPlayRepository persists action rows under the same
// rows-plus-ledger transaction contract as BoxscoreRepository.
type PlayByPlayRepository struct {
	db *sqlx.DB
}

func NewPlayByPlayRepository(db *sqlx.DB) *PlayByPlayRepository {
	return &PlayByPlayRepository{db: db}
}

func (r *PlayByPlayRepository) SaveGame(ctx context.Context, gameID string, events []playbyplay.Event, entry synclog.Entry) error {
	const query = `
INSERT INTO events (
    game_id, action_number, clock, period, team_id, team_tricode, person_id, player_name,
    x_legacy, y_legacy, shot_distance, shot_result, is_field_goal,
    score_home, score_away, points_total, location, description, action_type, sub_type, video_available
) VALUES (
    :game_id, :action_number, :clock, :period, :team_id, :team_tricode, :person_id, :player_name,
    :x_legacy, :y_legacy, :shot_distance, :shot_result, :is_field_goal,
    :score_home, :score_away, :points_total, :location, :description, :action_type, :sub_type, :video_available
)
ON CONFLICT (game_id, action_number) DO UPDATE SET
    clock = EXCLUDED.clock,
    period = EXCLUDED.period,
    team_id = EXCLUDED.team_id,
    team_tricode = EXCLUDED.team_tricode,
    person_id = EXCLUDED.person_id,
    player_name = EXCLUDED.player_name,
    x_legacy = EXCLUDED.x_legacy,
    y_legacy = EXCLUDED.y_legacy,
    shot_distance = EXCLUDED.shot_distance,
    shot_result = EXCLUDED.shot_result,
    is_field_goal = EXCLUDED.is_field_goal,
    score_home = EXCLUDED.score_home,
    score_away = EXCLUDED.score_away,
    points_total = EXCLUDED.points_total,
    location = EXCLUDED.location,
    description = EXCLUDED.description,
    action_type = EXCLUDED.action_type,
    sub_type = EXCLUDED.sub_type,
    video_available = EXCLUDED.video_available`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx save playbyplay game_id=%s: %w", gameID, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, event := range events {
		if _, err := tx.NamedExecContext(ctx, query, mapEventRow(event)); err != nil {
			return fmt.Errorf("upsert event game_id=%s action=%d: %w", event.GameID, event.ActionNumber, err)
		}
	}

	if err := insertSyncEntryTx(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save playbyplay tx game_id=%s: %w", gameID, err)
	}
	return nil
}

func (r *PlayByPlayRepository) HasEvents(ctx context.Context, gameID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM events WHERE game_id = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, gameID); err != nil {
		return false, fmt.Errorf("check event rows game_id=%s: %w", gameID, err)
	}
	return exists, nil
}

func (r *PlayByPlayRepository) GameIDsWithEvents(ctx context.Context) (map[string]struct{}, error) {
	const query = `SELECT DISTINCT game_id FROM events`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("select game ids with events: %w", err)
	}
	return toSet(ids), nil
}

func mapEventRow(event playbyplay.Event) eventTableModel {
	return eventTableModel{
		GameID:       event.GameID,
		ActionNumber: event.ActionNumber,

		Clock:          event.Clock,
		Period:         event.Period,
		TeamID:         nullableInt64(event.TeamID),
		TeamTricode:    nullableString(event.TeamTricode),
		PersonID:       nullableInt64(event.PersonID),
		PlayerName:     nullableString(event.PlayerName),
		XLegacy:        event.XLegacy,
		YLegacy:        event.YLegacy,
		ShotDistance:   event.ShotDistance,
		ShotResult:     nullableString(event.ShotResult),
		IsFieldGoal:    event.IsFieldGoal,
		ScoreHome:      event.ScoreHome,
		ScoreAway:      event.ScoreAway,
		PointsTotal:    event.PointsTotal,
		Location:       nullableString(event.Location),
		Description:    nullableString(event.Description),
		ActionType:     nullableString(event.ActionType),
		SubType:        nullableString(event.SubType),
		VideoAvailable: event.VideoAvailable,
	}
}
