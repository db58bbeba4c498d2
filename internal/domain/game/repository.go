package game

import "context"

type Repository interface {
	// ListFinished returns finished games ordered newest first.
	ListFinished(ctx context.Context) ([]Game, error)
	GetByID(ctx context.Context, gameID string) (Game, bool, error)
	Upsert(ctx context.Context, items []Game) error
}
