package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// scheduleTask arms a one-shot timer that enqueues the task when it fires.
// One timer per session: arming a new task replaces whatever was pending,
// which is exactly the question-cycle semantics (each phase supersedes
// the previous phase's timeout).
func (o *Orchestrator) scheduleTask(ctx context.Context, task timerTask, d time.Duration) {
	if d < 0 {
		d = 0
	}
	timer := o.clock.NewTimer(d)
	o.replaceTimer(task.sessionID, timer)

	go func(task timerTask, t clockwork.Timer) {
		select {
		case <-t.Chan():
			o.removeTimer(task.sessionID)
			select {
			case o.workCh <- task:
				log.Debug().
					Str("session_id", task.sessionID.String()).
					Str("kind", task.kind.String()).
					Msg("timer fired - enqueued for processing")
			default:
				log.Warn().
					Str("session_id", task.sessionID.String()).
					Str("kind", task.kind.String()).
					Msg("timer fired but work channel full")
			}
		case <-ctx.Done():
			stopAndDrainTimer(t)
			o.removeTimer(task.sessionID)
			log.Debug().
				Str("session_id", task.sessionID.String()).
				Msg("timer cancelled due to context cancellation")
		}
	}(task, timer)

	log.Debug().
		Str("session_id", task.sessionID.String()).
		Str("kind", task.kind.String()).
		Dur("duration", d).
		Msg("scheduled one-shot timer")
}

// replaceTimer atomically replaces the session's timer, properly
// cancelling any existing one. This prevents race conditions where a new
// timer could slip in between Stop() and delete().
func (o *Orchestrator) replaceTimer(sessionID uuid.UUID, newTimer clockwork.Timer) {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()

	if existingTimer, exists := o.activeTimers[sessionID]; exists {
		stopAndDrainTimer(existingTimer)
		log.Debug().Str("session_id", sessionID.String()).Msg("replaced existing timer")
	}
	o.activeTimers[sessionID] = newTimer
}

// stopAndDrainTimer safely stops a timer and drains its channel to prevent
// goroutine leaks. This follows the pattern recommended in the
// time.Timer.Stop() documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

// cancelTimer cancels and removes the session's active timer.
func (o *Orchestrator) cancelTimer(sessionID uuid.UUID) {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()

	if timer, exists := o.activeTimers[sessionID]; exists {
		stopAndDrainTimer(timer)
		delete(o.activeTimers, sessionID)
		log.Debug().Str("session_id", sessionID.String()).Msg("cancelled existing timer")
	}
}

// removeTimer removes a timer from the active timers map (called when the
// timer fires).
func (o *Orchestrator) removeTimer(sessionID uuid.UUID) {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()
	delete(o.activeTimers, sessionID)
}
