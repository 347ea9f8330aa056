// internal/game/turn_clock.go
package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTurnDuration is how long a player has to act before the game is abandoned.
const DefaultTurnDuration = 45 * time.Second

// TurnClock holds the single pending deadline of a game.
//
// Arm always replaces the previous deadline. The expire callback receives the player and turn
// it was armed for; the owner must discard it if the game has moved on since, because a timer
// that already fired cannot be recalled by Stop.
type TurnClock struct {
	mu       sync.Mutex
	duration time.Duration
	timer    *time.Timer
	deadline time.Time
	onExpire func(playerID uuid.UUID, turnID int)
}

// NewTurnClock builds a stopped clock. A non-positive duration disables expiry.
func NewTurnClock(duration time.Duration, onExpire func(playerID uuid.UUID, turnID int)) *TurnClock {
	return &TurnClock{duration: duration, onExpire: onExpire}
}

// Duration is the fixed length of every turn.
func (c *TurnClock) Duration() time.Duration { return c.duration }

// Arm cancels any pending deadline and starts a new one for playerID. Returns the deadline.
func (c *TurnClock) Arm(playerID uuid.UUID, turnID int) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.duration <= 0 {
		c.deadline = time.Time{}
		return c.deadline
	}

	c.deadline = time.Now().Add(c.duration)
	c.timer = time.AfterFunc(c.duration, func() {
		if c.onExpire != nil {
			c.onExpire(playerID, turnID)
		}
	})
	return c.deadline
}

// Stop cancels the pending deadline, if any.
func (c *TurnClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.deadline = time.Time{}
}

// Deadline returns the pending deadline, or the zero time when stopped.
func (c *TurnClock) Deadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline
}

// Remaining is informational only; enforcement happens in the timer.
func (c *TurnClock) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deadline.IsZero() {
		return 0
	}
	if left := time.Until(c.deadline); left > 0 {
		return left
	}
	return 0
}
