package room

import (
	"time"

	"github.com/roomloop/server/internal/models"
	"github.com/roomloop/server/internal/protocol"
)

// The server is the single clock source for the shared timer. While running,
// a ticker decrements remainingSeconds and broadcasts timer-update once per
// interval; clients re-sync on every tick instead of counting down locally.

// StartTimer starts or resumes the countdown. Host only. A positive duration
// (re)arms the timer; zero resumes a paused one. The first broadcast carries
// the full remaining value before any decrement.
func (r *Room) StartTimer(actorID string, durationSeconds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.requireHostLocked(actorID); err != nil {
		return err
	}
	if durationSeconds > 0 {
		r.timer.DurationSeconds = durationSeconds
		r.timer.RemainingSeconds = durationSeconds
	}
	if r.timer.RemainingSeconds <= 0 {
		return ErrTimerNotConfigured
	}
	if r.timer.IsRunning {
		r.broadcastLocked(protocol.EventTimerUpdate, r.timer, "")
		return nil
	}
	r.timer.IsRunning = true
	r.broadcastLocked(protocol.EventTimerUpdate, r.timer, "")

	stop := make(chan struct{})
	r.timerStop = stop
	go r.runTimer(stop)
	return nil
}

// PauseTimer freezes remainingSeconds server-side. Host only.
func (r *Room) PauseTimer(actorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.requireHostLocked(actorID); err != nil {
		return err
	}
	r.stopTimerLocked()
	r.broadcastLocked(protocol.EventTimerUpdate, r.timer, "")
	return nil
}

// ResetTimer stops the countdown and sets a new duration. Host only.
func (r *Room) ResetTimer(actorID string, durationSeconds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.requireHostLocked(actorID); err != nil {
		return err
	}
	r.stopTimerLocked()
	r.timer.DurationSeconds = durationSeconds
	r.timer.RemainingSeconds = durationSeconds
	r.broadcastLocked(protocol.EventTimerUpdate, r.timer, "")
	return nil
}

// Timer returns the current timer state.
func (r *Room) Timer() models.TimerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timer
}

func (r *Room) runTimer(stop chan struct{}) {
	ticker := time.NewTicker(r.tickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if !r.tick(stop) {
				return
			}
		case <-stop:
			return
		}
	}
}

// tick applies one countdown step. Returns false once the timer expired or
// was stopped out from under this goroutine.
func (r *Room) tick(stop chan struct{}) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timerStop != stop || !r.timer.IsRunning {
		return false
	}
	if r.timer.RemainingSeconds > 0 {
		r.timer.RemainingSeconds--
	}
	if r.timer.RemainingSeconds == 0 {
		r.timer.IsRunning = false
		r.timerStop = nil
	}
	r.broadcastLocked(protocol.EventTimerUpdate, r.timer, "")
	return r.timer.IsRunning
}

// stopTimerLocked halts the ticker goroutine if one is running. Callers must
// hold r.mu.
func (r *Room) stopTimerLocked() {
	if r.timerStop != nil {
		close(r.timerStop)
		r.timerStop = nil
	}
	r.timer.IsRunning = false
}
