package game

import (
	"sync"
	"time"
)

// Autosaver debounces saves: each trigger pushes the pending save back by
// the delay
type Autosaver struct {
	mu    sync.Mutex
	delay time.Duration
	save  func()
	timer *time.Timer
}

// NewAutosaver creates an autosaver
func NewAutosaver(delay time.Duration, save func()) *Autosaver {
	return &Autosaver{
		delay: delay,
		save:  save,
	}
}

// Trigger schedules a save after the delay, replacing any scheduled one
func (a *Autosaver) Trigger() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, a.save)
}

// Stop drops the scheduled save, if any
func (a *Autosaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
