package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/courtdata/nba-sync/internal/domain/boxscore"
	"github.com/courtdata/nba-sync/internal/domain/synclog"
)

type statisticsTableModel struct {
	GameID   string `db:"game_id"`
	PersonID int64  `db:"person_id"`

	TeamID         int64     `db:"team_id"`
	TeamTricode    string    `db:"team_tricode"`
	HomeTeamID     int64     `db:"home_team_id"`
	AwayTeamID     int64     `db:"away_team_id"`
	HomeTricode    string    `db:"home_tricode"`
	AwayTricode    string    `db:"away_tricode"`
	HomeTeamName   string    `db:"home_team_name"`
	AwayTeamName   string    `db:"away_team_name"`
	HomeScore      int       `db:"home_score"`
	AwayScore      int       `db:"away_score"`
	GameDate       time.Time `db:"game_date"`
	GameStatus     int       `db:"game_status"`
	VideoAvailable bool      `db:"video_available"`

	FirstName        string         `db:"first_name"`
	FamilyName       string         `db:"family_name"`
	DisplayFirstLast string         `db:"display_first_last"`
	JerseyNum        sql.NullString `db:"jersey_num"`
	Position         sql.NullString `db:"position"`
	IsStarter        bool           `db:"is_starter"`
	Comment          sql.NullString `db:"comment"`

	Minutes           string  `db:"minutes"`
	FieldGoalsMade    int     `db:"field_goals_made"`
	FieldGoalsAtt     int     `db:"field_goals_att"`
	FieldGoalsPct     float64 `db:"field_goals_pct"`
	ThreePointersMade int     `db:"three_pointers_made"`
	ThreePointersAtt  int     `db:"three_pointers_att"`
	ThreePointersPct  float64 `db:"three_pointers_pct"`
	FreeThrowsMade    int     `db:"free_throws_made"`
	FreeThrowsAtt     int     `db:"free_throws_att"`
	FreeThrowsPct     float64 `db:"free_throws_pct"`
	ReboundsOff       int     `db:"rebounds_off"`
	ReboundsDef       int     `db:"rebounds_def"`
	ReboundsTotal     int     `db:"rebounds_total"`
	Assists           int     `db:"assists"`
	Steals            int     `db:"steals"`
	Blocks            int     `db:"blocks"`
	Turnovers         int     `db:"turnovers"`
	FoulsPersonal     int     `db:"fouls_personal"`
	Points            int     `db:"points"`
	PlusMinus         float64 `db:"plus_minus"`
}

// BoxscoreRepository persists player statistics rows. SaveGame couples
// the rows and the success ledger entry in one transaction; a torn
// write cannot leave the ledger claiming rows that are not there.
type BoxscoreRepository struct {
	db *sqlx.DB
}

func NewBoxscoreRepository(db *sqlx.DB) *BoxscoreRepository {
	return &BoxscoreRepository{db: db}
}

func (r *BoxscoreRepository) SaveGame(ctx context.Context, gameID string, rows []boxscore.Row, entry synclog.Entry) error {
	const query = `
INSERT INTO statistics (
    game_id, person_id, team_id, team_tricode,
    home_team_id, away_team_id, home_tricode, away_tricode, home_team_name, away_team_name,
    home_score, away_score, game_date, game_status, video_available,
    first_name, family_name, display_first_last, jersey_num, position, is_starter, comment,
    minutes, field_goals_made, field_goals_att, field_goals_pct,
    three_pointers_made, three_pointers_att, three_pointers_pct,
    free_throws_made, free_throws_att, free_throws_pct,
    rebounds_off, rebounds_def, rebounds_total,
    assists, steals, blocks, turnovers, fouls_personal, points, plus_minus
) VALUES (
    :game_id, :person_id, :team_id, :team_tricode,
    :home_team_id, :away_team_id, :home_tricode, :away_tricode, :home_team_name, :away_team_name,
    :home_score, :away_score, :game_date, :game_status, :video_available,
    :first_name, :family_name, :display_first_last, :jersey_num, :position, :is_starter, :comment,
    :minutes, :field_goals_made, :field_goals_att, :field_goals_pct,
    :three_pointers_made, :three_pointers_att, :three_pointers_pct,
    :free_throws_made, :free_throws_att, :free_throws_pct,
    :rebounds_off, :rebounds_def, :rebounds_total,
    :assists, :steals, :blocks, :turnovers, :fouls_personal, :points, :plus_minus
)
ON CONFLICT (game_id, person_id) DO UPDATE SET
    team_id = EXCLUDED.team_id,
    team_tricode = EXCLUDED.team_tricode,
    home_team_id = EXCLUDED.home_team_id,
    away_team_id = EXCLUDED.away_team_id,
    home_tricode = EXCLUDED.home_tricode,
    away_tricode = EXCLUDED.away_tricode,
    home_team_name = EXCLUDED.home_team_name,
    away_team_name = EXCLUDED.away_team_name,
    home_score = EXCLUDED.home_score,
    away_score = EXCLUDED.away_score,
    game_date = EXCLUDED.game_date,
    game_status = EXCLUDED.game_status,
    video_available = EXCLUDED.video_available,
    first_name = EXCLUDED.first_name,
    family_name = EXCLUDED.family_name,
    display_first_last = EXCLUDED.display_first_last,
    jersey_num = EXCLUDED.jersey_num,
    position = EXCLUDED.position,
    is_starter = EXCLUDED.is_starter,
    comment = EXCLUDED.comment,
    minutes = EXCLUDED.minutes,
    field_goals_made = EXCLUDED.field_goals_made,
    field_goals_att = EXCLUDED.field_goals_att,
    field_goals_pct = EXCLUDED.field_goals_pct,
    three_pointers_made = EXCLUDED.three_pointers_made,
    three_pointers_att = EXCLUDED.three_pointers_att,
    three_pointers_pct = EXCLUDED.three_pointers_pct,
    free_throws_made = EXCLUDED.free_throws_made,
    free_throws_att = EXCLUDED.free_throws_att,
    free_throws_pct = EXCLUDED.free_throws_pct,
    rebounds_off = EXCLUDED.rebounds_off,
    rebounds_def = EXCLUDED.rebounds_def,
    rebounds_total = EXCLUDED.rebounds_total,
    assists = EXCLUDED.assists,
    steals = EXCLUDED.steals,
    blocks = EXCLUDED.blocks,
    turnovers = EXCLUDED.turnovers,
    fouls_personal = EXCLUDED.fouls_personal,
    points = EXCLUDED.points,
    plus_minus = EXCLUDED.plus_minus`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx save boxscore game_id=%s: %w", gameID, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, query, mapBoxscoreRow(row)); err != nil {
			return fmt.Errorf("upsert statistics game_id=%s person_id=%d: %w", row.GameID, row.PersonID, err)
		}
	}

	if err := insertSyncEntryTx(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save boxscore tx game_id=%s: %w", gameID, err)
	}
	return nil
}

func (r *BoxscoreRepository) HasRows(ctx context.Context, gameID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM statistics WHERE game_id = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, gameID); err != nil {
		return false, fmt.Errorf("check statistics rows game_id=%s: %w", gameID, err)
	}
	return exists, nil
}

func mapBoxscoreRow(row boxscore.Row) statisticsTableModel {
	return statisticsTableModel{
		GameID:   row.GameID,
		PersonID: row.PersonID,

		TeamID:         row.TeamID,
		TeamTricode:    row.TeamTricode,
		HomeTeamID:     row.HomeTeamID,
		AwayTeamID:     row.AwayTeamID,
		HomeTricode:    row.HomeTricode,
		AwayTricode:    row.AwayTricode,
		HomeTeamName:   row.HomeTeamName,
		AwayTeamName:   row.AwayTeamName,
		HomeScore:      row.HomeScore,
		AwayScore:      row.AwayScore,
		GameDate:       row.GameDate,
		GameStatus:     row.GameStatus,
		VideoAvailable: row.VideoAvailable,

		FirstName:        row.FirstName,
		FamilyName:       row.FamilyName,
		DisplayFirstLast: row.DisplayFirstLast,
		JerseyNum:        nullableString(row.JerseyNum),
		Position:         nullableString(row.Position),
		IsStarter:        row.IsStarter,
		Comment:          nullableString(row.Comment),

		Minutes:           row.Minutes,
		FieldGoalsMade:    row.FieldGoalsMade,
		FieldGoalsAtt:     row.FieldGoalsAtt,
		FieldGoalsPct:     row.FieldGoalsPct,
		ThreePointersMade: row.ThreePointersMade,
		ThreePointersAtt:  row.ThreePointersAtt,
		ThreePointersPct:  row.ThreePointersPct,
		FreeThrowsMade:    row.FreeThrowsMade,
		FreeThrowsAtt:     row.FreeThrowsAtt,
		FreeThrowsPct:     row.FreeThrowsPct,
		ReboundsOff:       row.ReboundsOff,
		ReboundsDef:       row.ReboundsDef,
		ReboundsTotal:     row.ReboundsTotal,
		Assists:           row.Assists,
		Steals:            row.Steals,
		Blocks:            row.Blocks,
		Turnovers:         row.Turnovers,
		FoulsPersonal:     row.FoulsPersonal,
		Points:            row.Points,
		PlusMinus:         row.PlusMinus,
	}
}
