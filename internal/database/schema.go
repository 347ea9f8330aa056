package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS games (
		id           UUID PRIMARY KEY,
		table_id     UUID,
		status       TEXT NOT NULL DEFAULT 'in_progress',
		loser_id     UUID,
		reason       TEXT,
		start_time   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		end_time     TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS game_results (
		game_id    UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		player_id  UUID NOT NULL,
		seat       INT NOT NULL,
		placement  INT,
		PRIMARY KEY (game_id, player_id)
	)`,
	`CREATE TABLE IF NOT EXISTS game_actions (
		game_id        UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		action_index   INT NOT NULL,
		actor_user_id  UUID,
		action_type    TEXT NOT NULL,
		action_payload JSONB,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (game_id, action_index)
	)`,
}

// EnsureSchema creates the tables used by the server and the historian if they are missing.
func EnsureSchema(ctx context.Context) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
		}
		return nil
	})
}
