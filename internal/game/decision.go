package game

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DecisionTimer runs the countdown of a pending petition and debounces
// answers to it
type DecisionTimer struct {
	mu         sync.Mutex
	timeout    time.Duration
	safety     time.Duration
	timer      *time.Timer
	deadline   time.Time
	claim      uint64
	submitting bool
	unlock     *time.Timer
}

// NewDecisionTimer creates a decision timer
func NewDecisionTimer(timeout, safety time.Duration) *DecisionTimer {
	return &DecisionTimer{
		timeout: timeout,
		safety:  safety,
	}
}

// Arm (re)starts the countdown; onExpire runs once it elapses
func (dt *DecisionTimer) Arm(onExpire func()) {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	if dt.timer != nil {
		dt.timer.Stop()
	}
	dt.deadline = time.Now().Add(dt.timeout)
	dt.timer = time.AfterFunc(dt.timeout, onExpire)
}

// Disarm cancels the countdown
func (dt *DecisionTimer) Disarm() {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	if dt.timer != nil {
		dt.timer.Stop()
		dt.timer = nil
	}
	dt.deadline = time.Time{}
}

// Remaining returns the time left on the countdown, zero when disarmed
func (dt *DecisionTimer) Remaining() time.Duration {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	if dt.timer == nil {
		return 0
	}
	if left := time.Until(dt.deadline); left > 0 {
		return left
	}
	return 0
}

// Begin claims the right to deliver an answer and returns the claim
// token. It reports false while another answer is being delivered. The
// claim lapses after the safety timeout even if Release is never called.
func (dt *DecisionTimer) Begin() (uint64, bool) {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	if dt.submitting {
		return 0, false
	}
	dt.claim++
	token := dt.claim
	dt.submitting = true
	dt.unlock = time.AfterFunc(dt.safety, func() { dt.Release(token) })
	return token, true
}

// Release ends the answer holding token. A stale token is ignored.
func (dt *DecisionTimer) Release(token uint64) {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	if !dt.submitting || token != dt.claim {
		return
	}
	dt.submitting = false
	if dt.unlock != nil {
		dt.unlock.Stop()
		dt.unlock = nil
	}
}

// armDecision starts the countdown for the given petition. On expiry the
// petition resolves to silence, unless it has been replaced meanwhile.
func (gm *Manager) armDecision(decisionID string) {
	gm.decision.Arm(func() {
		gm.Logger.Info("Petition unanswered, silence chosen", zap.String("decision_id", decisionID))
		if err := gm.resolve(context.Background(), decisionID, nil); err != nil &&
			err != ErrNoPendingDecision {
			gm.Logger.Warn("Failed to resolve petition by timeout",
				zap.String("decision_id", decisionID),
				zap.Error(err))
		}
	})
}

// Decide answers the pending petition. A nil option is silence.
func (gm *Manager) Decide(ctx context.Context, optionID *string) error {
	return gm.resolve(ctx, "", optionID)
}

// resolve answers the pending petition. A non-empty decisionID only answers
// that specific petition.
func (gm *Manager) resolve(ctx context.Context, decisionID string, optionID *string) error {
	gm.stateLock.RLock()
	pending := gm.pending
	gm.stateLock.RUnlock()

	if pending == nil || (decisionID != "" && pending.ID != decisionID) {
		return ErrNoPendingDecision
	}
	if optionID != nil {
		known := false
		for _, option := range pending.Options {
			if option.ID == *optionID {
				known = true
				break
			}
		}
		if !known {
			return ErrUnknownOption
		}
	}

	token, ok := gm.decision.Begin()
	if !ok {
		return ErrDecisionInProgress
	}
	defer gm.decision.Release(token)

	// A rejected answer leaves the countdown running
	var err error
	gm.stateLock.RLock()
	switch {
	case !gm.started:
		err = ErrNotStarted
	case gm.inFlight:
		err = ErrTurnInFlight
	case gm.pending == nil || gm.pending.ID != pending.ID:
		err = ErrNoPendingDecision
	}
	gm.stateLock.RUnlock()
	if err != nil {
		return err
	}

	gm.decision.Disarm()
	if err := gm.RunTurn(ctx, nil, optionID, gm.config.DecisionYears); err != nil {
		gm.stateLock.RLock()
		open := gm.pending != nil && gm.pending.ID == pending.ID
		gm.stateLock.RUnlock()
		if open {
			gm.armDecision(pending.ID)
		}
		return err
	}
	return nil
}
