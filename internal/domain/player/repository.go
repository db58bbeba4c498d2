package player

import "context"

type Repository interface {
	ListActive(ctx context.Context) ([]Player, error)
	Upsert(ctx context.Context, items []Player) error
}
