// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/nines/internal/cache"
	"github.com/jason-s-yu/nines/internal/game"
)

// Config is everything the server and historian read from the environment.
type Config struct {
	Port          string
	ClientOrigins []string

	TurnTimeout time.Duration
	MaxPlayers  int

	RedisAddr      string
	RedisDB        int
	HistorianQueue string
	DatabaseURL    string

	LogLevel  string
	LogFormat string

	// TokenExpire is the player token lifetime. Zero means tokens never expire.
	TokenExpire      time.Duration
	AllowRawPlayerID bool

	HistorianBatchSize  int
	HistorianFlush      time.Duration
	InactivityTimeout   time.Duration
	HistorianSweepEvery time.Duration
}

// Load reads the environment. A .env file, if present, has already been loaded by
// github.com/joho/godotenv/autoload in main.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "3001"),
		ClientOrigins:  splitList(getEnv("CLIENT_ORIGINS", "localhost:3000")),
		MaxPlayers:     game.DefaultMaxPlayers,
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		HistorianQueue: getEnv("HISTORIAN_QUEUE_NAME", cache.DefaultQueueName),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.TurnTimeout, err = getDuration("TURN_TIMEOUT", game.DefaultTurnDuration); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.TokenExpire, err = tokenExpire(os.Getenv("TOKEN_EXPIRE_TIME")); err != nil {
		return nil, err
	}
	if cfg.AllowRawPlayerID, err = getBool("ALLOW_RAW_PLAYER_ID", false); err != nil {
		return nil, err
	}
	if cfg.HistorianBatchSize, err = getInt("HISTORIAN_BATCH_SIZE", 20); err != nil {
		return nil, err
	}
	if cfg.HistorianFlush, err = getDuration("HISTORIAN_FLUSH", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.InactivityTimeout, err = getDuration("GAME_INACTIVITY_TIMEOUT", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.HistorianSweepEvery, err = getDuration("HISTORIAN_SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}

	if cfg.TurnTimeout < 0 {
		return nil, fmt.Errorf("TURN_TIMEOUT must not be negative, got %s", cfg.TurnTimeout)
	}
	if cfg.HistorianBatchSize <= 0 {
		return nil, fmt.Errorf("HISTORIAN_BATCH_SIZE must be positive, got %d", cfg.HistorianBatchSize)
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

func getInt(key string, defVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defVal, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return i, nil
}

func getBool(key string, defVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// getDuration accepts Go durations ("45s") or a bare number of seconds ("45").
func getDuration(key string, defVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defVal, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func tokenExpire(v string) (time.Duration, error) {
	switch v {
	case "", "0", "never":
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid TOKEN_EXPIRE_TIME: %w", err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
