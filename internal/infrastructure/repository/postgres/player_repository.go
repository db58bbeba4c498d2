package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/courtdata/nba-sync/internal/domain/player"
)

type playerTableModel struct {
	PersonID         int64          `db:"person_id"`
	DisplayFirstLast string         `db:"display_first_last"`
	FirstName        string         `db:"first_name"`
	LastName         string         `db:"last_name"`
	TeamID           sql.NullInt64  `db:"team_id"`
	JerseyNum        sql.NullString `db:"jersey_num"`
	Position         sql.NullString `db:"position"`
	IsActive         bool           `db:"is_active"`
	LastSynced       time.Time      `db:"last_synced"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

type PlayerRepository struct {
	db *sqlx.DB
}

func NewPlayerRepository(db *sqlx.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

func (r *PlayerRepository) ListActive(ctx context.Context) ([]player.Player, error) {
	const query = `
SELECT person_id, display_first_last, first_name, last_name, team_id, jersey_num, position, is_active, last_synced, updated_at
FROM players
WHERE is_active = TRUE
ORDER BY person_id`

	var rows []playerTableModel
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("select active players: %w", err)
	}

	out := make([]player.Player, 0, len(rows))
	for _, row := range rows {
		out = append(out, player.Player{
			PersonID:         row.PersonID,
			DisplayFirstLast: row.DisplayFirstLast,
			FirstName:        row.FirstName,
			LastName:         row.LastName,
			TeamID:           nullInt64ToInt64(row.TeamID),
			JerseyNum:        nullStringToString(row.JerseyNum),
			Position:         nullStringToString(row.Position),
			IsActive:         row.IsActive,
			LastSynced:       row.LastSynced,
			UpdatedAt:        row.UpdatedAt,
		})
	}
	return out, nil
}

func (r *PlayerRepository) Upsert(ctx context.Context, items []player.Player) error {
	if len(items) == 0 {
		return nil
	}

	const query = `
INSERT INTO players (person_id, display_first_last, first_name, last_name, team_id, jersey_num, position, is_active, last_synced, updated_at)
VALUES (:person_id, :display_first_last, :first_name, :last_name, :team_id, :jersey_num, :position, :is_active, :last_synced, :updated_at)
ON CONFLICT (person_id) DO UPDATE SET
    display_first_last = EXCLUDED.display_first_last,
    first_name = EXCLUDED.first_name,
    last_name = EXCLUDED.last_name,
    team_id = EXCLUDED.team_id,
    jersey_num = EXCLUDED.jersey_num,
    position = EXCLUDED.position,
    is_active = EXCLUDED.is_active,
    last_synced = EXCLUDED.last_synced,
    updated_at = EXCLUDED.updated_at`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert players: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, item := range items {
		model := playerTableModel{
			PersonID:         item.PersonID,
			DisplayFirstLast: item.DisplayFirstLast,
			FirstName:        item.FirstName,
			LastName:         item.LastName,
			TeamID:           nullableInt64(item.TeamID),
			JerseyNum:        nullableString(item.JerseyNum),
			Position:         nullableString(item.Position),
			IsActive:         item.IsActive,
			LastSynced:       item.LastSynced,
			UpdatedAt:        item.UpdatedAt,
		}
		if _, err := tx.NamedExecContext(ctx, query, model); err != nil {
			return fmt.Errorf("upsert player person_id=%d: %w", item.PersonID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert players tx: %w", err)
	}
	return nil
}
