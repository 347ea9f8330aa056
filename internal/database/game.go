// internal/database/game.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/nines/internal/cache"
)

// Game row statuses.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCanceled   = "canceled"
	StatusAbandoned  = "abandoned"
)

// SeatResult is one player's line in game_results. Placement is 1-based finishing order, 0 if none.
type SeatResult struct {
	PlayerID  uuid.UUID
	Seat      int
	Placement int
}

// GameOutcome is everything written when a game leaves play.
type GameOutcome struct {
	GameID  uuid.UUID
	TableID uuid.UUID
	Status  string
	LoserID uuid.UUID
	Reason  string
	Seats   []SeatResult
	EndedAt time.Time
}

// RecordGameStart inserts the in_progress games row.
func RecordGameStart(ctx context.Context, gameID, tableID uuid.UUID) error {
	if DB == nil {
		return nil
	}
	q := `
		INSERT INTO games (id, table_id, status, start_time)
		VALUES ($1, $2, 'in_progress', NOW())
		ON CONFLICT (id) DO UPDATE SET table_id = EXCLUDED.table_id
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, gameID, tableID)
		return e
	})
}

// RecordGameOutcome upserts the final games row and one game_results row per seat in one transaction.
func RecordGameOutcome(ctx context.Context, o GameOutcome) error {
	if DB == nil {
		return nil
	}
	var loser *uuid.UUID
	if o.LoserID != uuid.Nil {
		loser = &o.LoserID
	}
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertGame := `
			INSERT INTO games (id, table_id, status, loser_id, reason, end_time)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE
			SET status = $3, loser_id = $4, reason = $5, end_time = $6
		`
		if _, e := tx.Exec(ctx, upsertGame, o.GameID, o.TableID, o.Status, loser, o.Reason, o.EndedAt); e != nil {
			return e
		}

		for _, s := range o.Seats {
			var placement *int
			if s.Placement > 0 {
				p := s.Placement
				placement = &p
			}
			q := `
				INSERT INTO game_results (game_id, player_id, seat, placement)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (game_id, player_id)
				DO UPDATE SET seat = $3, placement = $4
			`
			if _, e := tx.Exec(ctx, q, o.GameID, s.PlayerID, s.Seat, placement); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx upsert game or results: %w", err)
	}
	return nil
}

// InsertGameActions writes a batch of action records in a single transaction.
// A game_end or game_canceled action finalizes an in_progress row that never got an outcome.
func InsertGameActions(ctx context.Context, records []cache.GameActionRecord) error {
	if len(records) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			if err := insertGameActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insertGameActionTx: %w", err)
			}
		}
		return nil
	})
}

func insertGameActionTx(ctx context.Context, tx pgx.Tx, rec cache.GameActionRecord) error {
	upsertGameQ := `
		INSERT INTO games (id, table_id, status, start_time)
		VALUES ($1, $2, 'in_progress', NOW())
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, upsertGameQ, rec.GameID, rec.TableID); err != nil {
		return err
	}

	jsonPayload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	actionInsertQ := `
		INSERT INTO game_actions (game_id, action_index, actor_user_id, action_type, action_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (game_id, action_index) DO NOTHING
	`
	if _, err := tx.Exec(ctx, actionInsertQ,
		rec.GameID, rec.ActionIndex, rec.ActorUserID, rec.ActionType, jsonPayload, time.UnixMilli(rec.Timestamp),
	); err != nil {
		return err
	}

	var final string
	switch rec.ActionType {
	case "game_end":
		final = StatusCompleted
	case "game_canceled":
		final = StatusCanceled
	default:
		return nil
	}
	finalizeQ := `
		UPDATE games
		SET status = $2, end_time = NOW()
		WHERE id = $1 AND status = 'in_progress'
	`
	_, err = tx.Exec(ctx, finalizeQ, rec.GameID, final)
	return err
}

// MarkGameAbandoned flips an in_progress game to abandoned. Reports whether a row changed.
func MarkGameAbandoned(ctx context.Context, gameID uuid.UUID) (bool, error) {
	var changed bool
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			UPDATE games
			SET status = 'abandoned', end_time = NOW()
			WHERE id = $1 AND status = 'in_progress'
		`
		tag, e := tx.Exec(ctx, q, gameID)
		if e != nil {
			return e
		}
		changed = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("mark game %v abandoned: %w", gameID, err)
	}
	return changed, nil
}
