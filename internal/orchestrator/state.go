package orchestrator

import (
	"github.com/dusk-indust/conductor/internal/backend"
	"github.com/dusk-indust/conductor/internal/gavel"
	"github.com/dusk-indust/conductor/internal/ledger"
)

// RunStatus is the run-level state machine position.
type RunStatus string

const (
	RunCreated   RunStatus = "created"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether the run has finished.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunAborted, RunFailed:
		return true
	}
	return false
}

// PhaseStatus is the per-phase sub-state.
type PhaseStatus string

const (
	PhasePending        PhaseStatus = "pending"
	PhaseRunning        PhaseStatus = "running"
	PhaseAwaitingReview PhaseStatus = "awaiting-review"
	PhaseDone           PhaseStatus = "done"
	PhaseFailed         PhaseStatus = "failed"
	PhaseSkipped        PhaseStatus = "skipped"
)

// ActionStatus is the per-action state.
type ActionStatus string

const (
	ActionPending   ActionStatus = "pending"
	ActionRunning   ActionStatus = "running"
	ActionSucceeded ActionStatus = "succeeded"
	ActionFailed    ActionStatus = "failed"
	ActionSkipped   ActionStatus = "skipped"
)

// actionOutcome is the settled result of one dispatched action.
type actionOutcome struct {
	actionID string
	content  string
	err      error
}

// FailureReport describes a terminal failure: the failing phase/action, the
// error class, and a bounded tail of the phase's thread for diagnosis.
type FailureReport struct {
	PhaseID    string             `json:"phaseId"`
	ActionID   string             `json:"actionId,omitempty"`
	Class      backend.ErrorClass `json:"class,omitempty"`
	Message    string             `json:"message"`
	ThreadTail []ledger.Entry     `json:"threadTail,omitempty"`
}

// Report is the terminal summary of a run. Output blocks written before a
// failure stay queryable through the Runner; nothing is rolled back.
type Report struct {
	RunID         string                  `json:"runId"`
	Pipeline      string                  `json:"pipeline"`
	Status        RunStatus               `json:"status"`
	PhaseStatus   map[string]PhaseStatus  `json:"phaseStatus"`
	ActionStatus  map[string]ActionStatus `json:"actionStatus"`
	ActionOutputs map[string]string       `json:"actionOutputs,omitempty"`
	Failure       *FailureReport          `json:"failure,omitempty"`
	Reviews       []gavel.Record          `json:"reviews,omitempty"`
}

// Snapshot is a point-in-time view of a run for inspection surfaces.
type Snapshot struct {
	RunID         string                  `json:"runId"`
	Pipeline      string                  `json:"pipeline"`
	Seq           int64                   `json:"seq"`
	Status        RunStatus               `json:"status"`
	CurrentPhase  string                  `json:"currentPhase,omitempty"`
	PhaseStatus   map[string]PhaseStatus  `json:"phaseStatus"`
	ActionStatus  map[string]ActionStatus `json:"actionStatus"`
	PendingReview *gavel.Request          `json:"pendingReview,omitempty"`
}
