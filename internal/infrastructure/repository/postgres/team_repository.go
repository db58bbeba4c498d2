package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/courtdata/nba-sync/internal/domain/team"
)

type teamTableModel struct {
	TeamID       int64          `db:"team_id"`
	Abbreviation string         `db:"abbreviation"`
	Nickname     string         `db:"nickname"`
	City         string         `db:"city"`
	Conference   sql.NullString `db:"conference"`
	Division     sql.NullString `db:"division"`
	LogoURL      sql.NullString `db:"logo_url"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

type TeamRepository struct {
	db *sqlx.DB
}

func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) List(ctx context.Context) ([]team.Team, error) {
	const query = `
SELECT team_id, abbreviation, nickname, city, conference, division, logo_url, updated_at
FROM teams
ORDER BY team_id`

	var rows []teamTableModel
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("select teams: %w", err)
	}

	out := make([]team.Team, 0, len(rows))
	for _, row := range rows {
		out = append(out, team.Team{
			TeamID:       row.TeamID,
			Abbreviation: row.Abbreviation,
			Nickname:     row.Nickname,
			City:         row.City,
			Conference:   nullStringToString(row.Conference),
			Division:     nullStringToString(row.Division),
			LogoURL:      nullStringToString(row.LogoURL),
			UpdatedAt:    row.UpdatedAt,
		})
	}
	return out, nil
}

func (r *TeamRepository) Upsert(ctx context.Context, items []team.Team) error {
	if len(items) == 0 {
		return nil
	}

	const query = `
INSERT INTO teams (team_id, abbreviation, nickname, city, conference, division, logo_url, updated_at)
VALUES (:team_id, :abbreviation, :nickname, :city, :conference, :division, :logo_url, :updated_at)
ON CONFLICT (team_id) DO UPDATE SET
    abbreviation = EXCLUDED.abbreviation,
    nickname = EXCLUDED.nickname,
    city = EXCLUDED.city,
    conference = EXCLUDED.conference,
    division = EXCLUDED.division,
    logo_url = EXCLUDED.logo_url,
    updated_at = EXCLUDED.updated_at`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert teams: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, item := range items {
		model := teamTableModel{
			TeamID:       item.TeamID,
			Abbreviation: item.Abbreviation,
			Nickname:     item.Nickname,
			City:         item.City,
			Conference:   nullableString(item.Conference),
			Division:     nullableString(item.Division),
			LogoURL:      nullableString(item.LogoURL),
			UpdatedAt:    item.UpdatedAt,
		}
		if _, err := tx.NamedExecContext(ctx, query, model); err != nil {
			return fmt.Errorf("upsert team team_id=%d: %w", item.TeamID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert teams tx: %w", err)
	}
	return nil
}
