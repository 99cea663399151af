package game

import (
	"context"
	"sync"
	"time"

	"github.com/user/silent-god/config"
	"go.uber.org/zap"
)

// Clock drives the world in real time: it advances the cycle progress and
// fires an autonomous turn each time the cycle completes. It also drains the
// command queue whenever nothing blocks it.
type Clock struct {
	manager  *Manager
	interval time.Duration
	step     float64
	ticker   *time.Ticker
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	turns    sync.WaitGroup
}

// NewClock creates a new clock. Each tick adds the share of the cycle the
// interval represents.
func NewClock(manager *Manager, cfg config.GameConfig) *Clock {
	interval := cfg.TickDuration()
	step := 100.0
	if cycle := cfg.CycleDuration(); cycle > 0 {
		step = 100 * float64(interval) / float64(cycle)
	}

	return &Clock{
		manager:  manager,
		interval: interval,
		step:     step,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Step returns the progress added per tick
func (c *Clock) Step() float64 {
	return c.step
}

// Start begins ticking
func (c *Clock) Start() {
	c.ticker = time.NewTicker(c.interval)
	go func() {
		defer close(c.done)
		for {
			select {
			case <-c.ticker.C:
				c.tick()
			case <-c.stopChan:
				c.ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the clock and waits for turns it fired to finish
func (c *Clock) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
	if c.ticker != nil {
		<-c.done
	}
	c.turns.Wait()
}

func (c *Clock) tick() {
	gm := c.manager

	gm.stateLock.RLock()
	queued := gm.started && !gm.inFlight && gm.pending == nil && gm.queue.Len() > 0
	gm.stateLock.RUnlock()

	if queued {
		c.spawn(func(ctx context.Context) {
			gm.ProcessQueue(ctx)
		})
		return
	}

	if gm.Tick(c.step) {
		gm.Logger.Debug("Cycle complete, the world moves on its own")
		c.spawn(func(ctx context.Context) {
			if err := gm.RunTurn(ctx, nil, nil, gm.config.TickYears); err != nil && err != ErrTurnInFlight {
				gm.Logger.Warn("Autonomous turn not run", zap.Error(err))
			}
		})
	}
}

// spawn runs a turn off the ticker goroutine so the clock keeps its pace
func (c *Clock) spawn(turn func(ctx context.Context)) {
	c.turns.Add(1)
	go func() {
		defer c.turns.Done()
		turn(context.Background())
	}()
}
