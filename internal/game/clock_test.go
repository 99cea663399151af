package game

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/silent-god/config"
	"github.com/user/silent-god/internal/types"
)

func TestClockStep(t *testing.T) {
	cfg := config.DefaultConfig()
	clock := NewClock(nil, cfg.Game)

	// 30 s cycle at 100 ms resolution
	assert.InDelta(t, 100.0/300.0, clock.Step(), 1e-9)
}

func TestClockFiresAutonomousTurn(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Game.SecondsPerYear = 0
	cfg.Game.TickInterval = 5

	oracle := quietOracle()
	gm := NewManager(cfg, oracle, NewFileStorage(filepath.Join(t.TempDir(), "save.json")))
	require.NoError(t, gm.Start(context.Background()))

	clock := NewClock(gm, cfg.Game)
	clock.Start()

	assert.Eventually(t, func() bool {
		return len(oracle.Calls()) > 0
	}, time.Second, 5*time.Millisecond)

	clock.Stop()
	gm.Stop(context.Background())

	call := oracle.Calls()[0]
	assert.Nil(t, call.Command)
	assert.Nil(t, call.DecisionChoice)
	assert.Equal(t, 5, call.YearsToAdvance)
}

func TestClockDrainsQueue(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Game.TickInterval = 5

	oracle := quietOracle()
	gm := NewManager(cfg, oracle, NewFileStorage(filepath.Join(t.TempDir(), "save.json")))
	require.NoError(t, gm.Start(context.Background()))
	require.NoError(t, gm.Enqueue(context.Background(), "raise a mountain"))

	clock := NewClock(gm, cfg.Game)
	clock.Start()

	assert.Eventually(t, func() bool {
		return len(oracle.Calls()) == 1 && gm.Snapshot().Phase == types.PhaseIdle
	}, time.Second, 5*time.Millisecond)

	clock.Stop()
	gm.Stop(context.Background())

	assert.Equal(t, "raise a mountain", *oracle.Calls()[0].Command)
}

func TestDecisionTimerDebounce(t *testing.T) {
	dt := NewDecisionTimer(time.Hour, 20*time.Millisecond)

	first, ok := dt.Begin()
	assert.True(t, ok)
	_, ok = dt.Begin()
	assert.False(t, ok)
	dt.Release(first)

	stuck, ok := dt.Begin()
	assert.True(t, ok)

	// The safety timeout unlocks a stuck answer
	var second uint64
	assert.Eventually(t, func() bool {
		second, ok = dt.Begin()
		return ok
	}, time.Second, 5*time.Millisecond)

	// The stuck answer finishing late does not free the new claim
	dt.Release(stuck)
	_, ok = dt.Begin()
	assert.False(t, ok)

	dt.Release(second)
	_, ok = dt.Begin()
	assert.True(t, ok)
}

func TestDecisionTimerArm(t *testing.T) {
	fired := make(chan struct{}, 2)
	dt := NewDecisionTimer(20*time.Millisecond, time.Second)

	dt.Arm(func() { fired <- struct{}{} })
	assert.Greater(t, dt.Remaining(), time.Duration(0))
	dt.Disarm()
	assert.Equal(t, time.Duration(0), dt.Remaining())

	dt.Arm(func() { fired <- struct{}{} })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("countdown never fired")
	}
	assert.Len(t, fired, 0)
}
