// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Rdb is the global Redis client. Nil until ConnectRedis succeeds; publishers skip when nil.
var Rdb *redis.Client

// DefaultQueueName is the Redis list the historian consumes.
const DefaultQueueName = "nines_actions"

// QueueName is the list actions are pushed to. Overridden from config at startup.
var QueueName = DefaultQueueName

// GameActionRecord is one accepted transition of a game, in order.
type GameActionRecord struct {
	GameID        uuid.UUID              `json:"game_id"`
	TableID       uuid.UUID              `json:"table_id"`
	ActionIndex   int                    `json:"action_index"`
	ActorUserID   uuid.UUID              `json:"actor_user_id"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"`
}

// ConnectRedis initializes the global client and pings it.
func ConnectRedis(ctx context.Context, addr string, db int) error {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	Rdb = client
	return nil
}

// Close releases the global client if one was connected.
func Close() error {
	if Rdb == nil {
		return nil
	}
	err := Rdb.Close()
	Rdb = nil
	return err
}

// PublishGameAction serializes record and RPushes it to QueueName.
func PublishGameAction(ctx context.Context, record GameActionRecord) error {
	if Rdb == nil {
		return nil
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal GameActionRecord: %w", err)
	}
	if err := Rdb.RPush(ctx, QueueName, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", QueueName, err)
	}
	return nil
}

// DecodeGameAction parses one queue entry.
func DecodeGameAction(payload string) (GameActionRecord, error) {
	var rec GameActionRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return rec, fmt.Errorf("invalid action record: %w", err)
	}
	return rec, nil
}
