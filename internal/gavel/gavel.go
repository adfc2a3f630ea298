// Package gavel implements the human-review suspension gate. A phase that
// requires review opens a request and blocks until a decision arrives; the
// decision (possibly with edits) is substituted back into the run by the
// executor. At most one request is outstanding per run.
package gavel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Decision is a reviewer's verdict on a phase output.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionSkipped  Decision = "skipped"

	// DecisionAborted is synthesized when the run is aborted while a
	// review is pending; it is never submitted by a reviewer.
	DecisionAborted Decision = "aborted"
)

// State is the gate's position in its state machine.
type State string

const (
	StateIdle           State = "idle"
	StateAwaitingReview State = "awaiting-review"
)

// Request describes one pending review. It exists only while its phase is
// suspended.
type Request struct {
	PhaseID        string   `json:"phaseId"`
	Prompt         string   `json:"prompt,omitempty"`
	Output         string   `json:"output"`
	EditableFields []string `json:"editableFields,omitempty"`
	CanSkip        bool     `json:"canSkip"`
}

// Response is the reviewer's decision.
type Response struct {
	Decision     Decision          `json:"decision"`
	EditedValues map[string]string `json:"editedValues,omitempty"`
	Commentary   string            `json:"commentary,omitempty"`

	// FinalOutput is the phase output after edits: the edited value when
	// the reviewer changed it, the original otherwise. Filled by the gate
	// on delivery if the reviewer left it empty.
	FinalOutput string `json:"finalOutput,omitempty"`
}

// Record is one settled review kept in the bounded history.
type Record struct {
	PhaseID    string    `json:"phaseId"`
	Decision   Decision  `json:"decision"`
	Commentary string    `json:"commentary,omitempty"`
	DecidedAt  time.Time `json:"decidedAt"`
}

// DefaultHistoryCap bounds the review history; the oldest record is evicted
// past the cap.
const DefaultHistoryCap = 50

// ErrInvalidTransition is returned for a decision the current state does
// not allow. The gate state is left unchanged.
var ErrInvalidTransition = errors.New("gavel: invalid transition")

// Gate is the per-run review gate. Safe for concurrent use.
type Gate struct {
	mu         sync.Mutex
	state      State
	pending    *Request
	waiter     chan Response
	history    []Record
	historyCap int
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithHistoryCap overrides the review history bound.
func WithHistoryCap(n int) GateOption {
	return func(g *Gate) {
		if n > 0 {
			g.historyCap = n
		}
	}
}

// NewGate creates an idle gate.
func NewGate(opts ...GateOption) *Gate {
	g := &Gate{
		state:      StateIdle,
		historyCap: DefaultHistoryCap,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// State returns the current gate state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Pending returns a copy of the outstanding request, or nil when idle.
func (g *Gate) Pending() *Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return nil
	}
	req := *g.pending
	return &req
}

// Await opens a review request and blocks until a decision is submitted,
// the run is aborted, or ctx is done. The transition Idle -> AwaitingReview
// fails if a request is already outstanding.
func (g *Gate) Await(ctx context.Context, req Request) (Response, error) {
	g.mu.Lock()
	if g.state != StateIdle {
		g.mu.Unlock()
		return Response{}, fmt.Errorf("%w: review already pending for phase %s", ErrInvalidTransition, g.pending.PhaseID)
	}
	g.state = StateAwaitingReview
	g.pending = &req
	g.waiter = make(chan Response, 1)
	waiter := g.waiter
	g.mu.Unlock()

	select {
	case resp := <-waiter:
		return resp, nil
	case <-ctx.Done():
		// Reset so a later retry of the phase can open a new request.
		g.mu.Lock()
		if g.waiter == waiter {
			g.settle(Record{PhaseID: req.PhaseID, Decision: DecisionAborted, DecidedAt: time.Now().UTC()})
		}
		g.mu.Unlock()
		return Response{}, fmt.Errorf("gavel: %w", ctx.Err())
	}
}

// Submit delivers a reviewer decision to the waiting phase. A skip decision
// is rejected when the pending request disallows it, leaving the gate in
// AwaitingReview.
func (g *Gate) Submit(resp Response) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateAwaitingReview {
		return fmt.Errorf("%w: no review pending", ErrInvalidTransition)
	}

	switch resp.Decision {
	case DecisionApproved, DecisionRejected, DecisionSkipped:
	default:
		return fmt.Errorf("%w: unknown decision %q", ErrInvalidTransition, resp.Decision)
	}

	if resp.Decision == DecisionSkipped && !g.pending.CanSkip {
		return fmt.Errorf("%w: phase %s does not allow skip", ErrInvalidTransition, g.pending.PhaseID)
	}

	if resp.FinalOutput == "" {
		resp.FinalOutput = g.pending.Output
	}

	g.waiter <- resp
	g.settle(Record{
		PhaseID:    g.pending.PhaseID,
		Decision:   resp.Decision,
		Commentary: resp.Commentary,
		DecidedAt:  time.Now().UTC(),
	})
	return nil
}

// Abort releases an outstanding wait with a synthetic aborted decision.
// Calling Abort on an idle gate is a no-op; calling it twice resolves the
// waiter exactly once.
func (g *Gate) Abort() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateAwaitingReview {
		return
	}
	g.waiter <- Response{Decision: DecisionAborted}
	g.settle(Record{
		PhaseID:   g.pending.PhaseID,
		Decision:  DecisionAborted,
		DecidedAt: time.Now().UTC(),
	})
}

// History returns a copy of the settled reviews, oldest first.
func (g *Gate) History() []Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Record(nil), g.history...)
}

// settle records the decision and returns the gate to idle.
// Caller must hold g.mu.
func (g *Gate) settle(rec Record) {
	g.history = append(g.history, rec)
	if len(g.history) > g.historyCap {
		g.history = g.history[len(g.history)-g.historyCap:]
	}
	g.state = StateIdle
	g.pending = nil
	g.waiter = nil
}
