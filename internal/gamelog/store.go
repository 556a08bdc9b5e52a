package gamelog

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("game not found")

// Store is the per-lobby game log. Ids are sequential within a lobby and
// start at 1. List returns games in ascending id order.
type Store interface {
	Append(ctx context.Context, g *Game) error
	Update(ctx context.Context, g Game) error
	Get(ctx context.Context, lobby string, id int) (Game, error)
	List(ctx context.Context, lobby string) ([]Game, error)
	ListAll(ctx context.Context) (map[string][]Game, error)
}

// SeedStore holds administrative rating overrides, shared by every lobby.
type SeedStore interface {
	SetSeed(ctx context.Context, playerID string, mean float64) error
	Seeds(ctx context.Context) (map[string]float64, error)
}
