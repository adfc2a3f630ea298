package orchestrator

import (
	"fmt"
	"time"
)

// EventType identifies a progress event.
type EventType string

const (
	EventRunStart        EventType = "run:start"
	EventPhaseStart      EventType = "phase:start"
	EventActionResult    EventType = "action:result"
	EventAwaitingReview  EventType = "phase:awaiting_review"
	EventPhaseComplete   EventType = "phase:complete"
	EventRunComplete     EventType = "run:complete"
	EventRunFailed       EventType = "run:failed"
	EventRunAborted      EventType = "run:aborted"
)

// Event is emitted to the presentation layer during a run.
type Event struct {
	Type     EventType
	RunID    string
	PhaseID  string
	ActionID string
	Status   string
	Message  string
	Time     time.Time
}

// Reporter emits progress events through a buffered channel.
type Reporter struct {
	ch chan Event
}

// NewReporter creates a Reporter with a buffered channel of size 64.
func NewReporter(buffer int) *Reporter {
	if buffer <= 0 {
		buffer = 64
	}
	return &Reporter{ch: make(chan Event, buffer)}
}

// Emit sends an event in a non-blocking fashion.
// If the channel is full, the event is silently dropped.
func (r *Reporter) Emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	select {
	case r.ch <- ev:
	default:
		// Drop the event if the channel is full.
	}
}

// Subscribe returns a read-only channel for consuming events.
func (r *Reporter) Subscribe() <-chan Event {
	return r.ch
}

// Close closes the event channel. No Emit may follow.
func (r *Reporter) Close() {
	close(r.ch)
}

// FormatEvent formats an event as a human-readable status line.
func FormatEvent(ev Event) string {
	switch ev.Type {
	case EventRunStart:
		return fmt.Sprintf("run %s started", ev.RunID)
	case EventPhaseStart:
		return fmt.Sprintf("  ● phase %s...", ev.PhaseID)
	case EventActionResult:
		if ev.Status == string(ActionSucceeded) {
			return fmt.Sprintf("    ✓ %s", ev.ActionID)
		}
		return fmt.Sprintf("    ✗ %s (%s): %s", ev.ActionID, ev.Status, ev.Message)
	case EventAwaitingReview:
		return fmt.Sprintf("  ⏸ phase %s awaiting review", ev.PhaseID)
	case EventPhaseComplete:
		return fmt.Sprintf("  ✓ phase %s %s", ev.PhaseID, ev.Status)
	case EventRunComplete:
		return fmt.Sprintf("run %s complete", ev.RunID)
	case EventRunFailed:
		return fmt.Sprintf("run %s failed: %s", ev.RunID, ev.Message)
	case EventRunAborted:
		return fmt.Sprintf("run %s aborted", ev.RunID)
	default:
		return fmt.Sprintf("? %s", ev.Type)
	}
}
