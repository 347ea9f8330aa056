package game

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fire struct {
	player uuid.UUID
	turn   int
}

func recordingClock(d time.Duration) (*TurnClock, func() []fire) {
	var mu sync.Mutex
	var fired []fire
	c := NewTurnClock(d, func(p uuid.UUID, turn int) {
		mu.Lock()
		defer mu.Unlock()
		fired = append(fired, fire{p, turn})
	})
	return c, func() []fire {
		mu.Lock()
		defer mu.Unlock()
		return append([]fire{}, fired...)
	}
}

func TestTurnClockFiresOnce(t *testing.T) {
	c, fired := recordingClock(20 * time.Millisecond)
	p := uuid.New()

	deadline := c.Arm(p, 1)
	assert.WithinDuration(t, time.Now().Add(20*time.Millisecond), deadline, 15*time.Millisecond)

	require.Eventually(t, func() bool { return len(fired()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, []fire{{p, 1}}, fired())
}

func TestTurnClockArmReplacesPending(t *testing.T) {
	c, fired := recordingClock(30 * time.Millisecond)
	a, b := uuid.New(), uuid.New()

	c.Arm(a, 1)
	c.Arm(b, 2)

	require.Eventually(t, func() bool { return len(fired()) > 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []fire{{b, 2}}, fired(), "only the latest deadline fires")
}

func TestTurnClockStop(t *testing.T) {
	c, fired := recordingClock(20 * time.Millisecond)
	c.Arm(uuid.New(), 1)
	assert.Greater(t, c.Remaining(), time.Duration(0))

	c.Stop()
	assert.True(t, c.Deadline().IsZero())
	assert.Equal(t, time.Duration(0), c.Remaining())

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, fired())
}

func TestTurnClockDisabled(t *testing.T) {
	c, fired := recordingClock(0)
	assert.True(t, c.Arm(uuid.New(), 1).IsZero())
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, fired())
}
