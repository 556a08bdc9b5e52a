package gamelog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
	lobby      TEXT        NOT NULL,
	id         INTEGER     NOT NULL,
	team1      TEXT[]      NOT NULL,
	team2      TEXT[]      NOT NULL,
	outcome    SMALLINT    NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (lobby, id)
);`

// Postgres is the durable game log.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schema)
	return err
}

func (p *Postgres) Append(ctx context.Context, g *Game) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		// serializes id allocation per lobby across instances
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, g.Lobby); err != nil {
			return err
		}
		var next int
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(id), 0) + 1 FROM games WHERE lobby = $1`, g.Lobby,
		).Scan(&next)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO games (lobby, id, team1, team2, outcome, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			g.Lobby, next, g.Team1, g.Team2, int16(g.Outcome), g.CreatedAt,
		)
		if err != nil {
			return err
		}
		g.ID = next
		return nil
	})
}

func (p *Postgres) Update(ctx context.Context, g Game) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE games SET team1 = $3, team2 = $4, outcome = $5 WHERE lobby = $1 AND id = $2`,
		g.Lobby, g.ID, g.Team1, g.Team2, int16(g.Outcome),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("game %d in %s: %w", g.ID, g.Lobby, ErrNotFound)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, lobby string, id int) (Game, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT lobby, id, team1, team2, outcome, created_at FROM games WHERE lobby = $1 AND id = $2`,
		lobby, id,
	)
	g, err := scanGame(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Game{}, fmt.Errorf("game %d in %s: %w", id, lobby, ErrNotFound)
	}
	return g, err
}

func (p *Postgres) List(ctx context.Context, lobby string) ([]Game, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT lobby, id, team1, team2, outcome, created_at FROM games WHERE lobby = $1 ORDER BY id`,
		lobby,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Game, error) {
		return scanGame(row)
	})
}

func (p *Postgres) ListAll(ctx context.Context) (map[string][]Game, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT lobby, id, team1, team2, outcome, created_at FROM games ORDER BY lobby, id`,
	)
	if err != nil {
		return nil, err
	}
	games, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Game, error) {
		return scanGame(row)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string][]Game)
	for _, g := range games {
		out[g.Lobby] = append(out[g.Lobby], g)
	}
	return out, nil
}

func scanGame(row pgx.Row) (Game, error) {
	var (
		g       Game
		outcome int16
		created time.Time
	)
	if err := row.Scan(&g.Lobby, &g.ID, &g.Team1, &g.Team2, &outcome, &created); err != nil {
		return Game{}, err
	}
	g.Outcome = Outcome(outcome)
	g.CreatedAt = created.UTC()
	return g, nil
}
