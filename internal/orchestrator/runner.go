// Package orchestrator executes pipeline runs: it walks phases in order,
// fans out each phase's actions through the dispatcher, applies failure
// policies, and suspends on review gates. One Runner owns one run and its
// context store, thread ledger, output blocks, and gate; nothing here is
// reached through package globals.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dusk-indust/conductor/internal/backend"
	"github.com/dusk-indust/conductor/internal/dispatch"
	"github.com/dusk-indust/conductor/internal/gavel"
	"github.com/dusk-indust/conductor/internal/ledger"
	"github.com/dusk-indust/conductor/internal/output"
	"github.com/dusk-indust/conductor/internal/pipeline"
	"github.com/dusk-indust/conductor/internal/prompt"
	"github.com/dusk-indust/conductor/internal/scope"
)

// DefaultFailureTail is how many thread entries a failure report carries.
const DefaultFailureTail = 10

// Runner advances one run of a validated pipeline definition. A Runner is
// single-use: Run may be called once.
type Runner struct {
	def        *pipeline.Definition
	dispatcher *dispatch.Dispatcher

	store    *scope.Store
	ledger   *ledger.Ledger
	outputs  *output.Manager
	gate     *gavel.Gate
	events   *Reporter
	resolver *prompt.Resolver

	id          string
	failureTail int

	seq     atomic.Int64 // bumped on every state transition; stale submitters compare against it
	aborted atomic.Bool

	mu           sync.Mutex
	status       RunStatus
	currentPhase string
	phaseStatus  map[string]PhaseStatus
	actionStatus map[string]ActionStatus
	actionOutput map[string]string
}

// Option configures a Runner.
type Option func(*Runner)

// WithDurable attaches a persistence backend for store:<name> scopes.
func WithDurable(d scope.Durable) Option {
	return func(r *Runner) {
		r.store = scope.NewStore(scope.WithDurable(d))
	}
}

// WithEventBuffer overrides the progress channel depth.
func WithEventBuffer(n int) Option {
	return func(r *Runner) {
		r.events = NewReporter(n)
	}
}

// WithFailureTail overrides how many thread entries failure reports carry.
func WithFailureTail(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.failureTail = n
		}
	}
}

// WithReviewHistoryCap overrides the gate's bounded history size.
func WithReviewHistoryCap(n int) Option {
	return func(r *Runner) {
		r.gate = gavel.NewGate(gavel.WithHistoryCap(n))
	}
}

// NewRunner creates a Runner for one execution of def. The definition must
// already be validated; NewRunner re-checks as a last line of defense.
func NewRunner(def *pipeline.Definition, d *dispatch.Dispatcher, opts ...Option) (*Runner, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		def:          def,
		dispatcher:   d,
		store:        scope.NewStore(),
		ledger:       ledger.New(),
		outputs:      output.NewManager(),
		gate:         gavel.NewGate(),
		events:       NewReporter(0),
		id:           uuid.NewString(),
		failureTail:  DefaultFailureTail,
		status:       RunCreated,
		phaseStatus:  make(map[string]PhaseStatus),
		actionStatus: make(map[string]ActionStatus),
		actionOutput: make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.resolver = prompt.NewResolver(r.store, r.ledger)

	for _, p := range def.Phases {
		r.phaseStatus[p.ID] = PhasePending
		for _, a := range p.Actions {
			r.actionStatus[a.ID] = ActionPending
		}
	}
	return r, nil
}

// ID returns the run identifier.
func (r *Runner) ID() string { return r.id }

// Definition returns the pipeline this run executes. Read-only.
func (r *Runner) Definition() *pipeline.Definition { return r.def }

// Seq returns the run's transition counter. A caller holding an old value
// can detect that its view of the run is stale.
func (r *Runner) Seq() int64 { return r.seq.Load() }

// Store returns the run's scoped context store.
func (r *Runner) Store() *scope.Store { return r.store }

// Ledger returns the run's thread ledger.
func (r *Runner) Ledger() *ledger.Ledger { return r.ledger }

// Outputs returns the run's output block manager.
func (r *Runner) Outputs() *output.Manager { return r.outputs }

// Events returns the progress event channel.
func (r *Runner) Events() <-chan Event { return r.events.Subscribe() }

// Run executes the pipeline to a terminal status. The returned error is
// non-nil only for misuse (calling Run twice); pipeline failures terminate
// with a Report whose Status is RunFailed and a nil error.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	r.mu.Lock()
	if r.status != RunCreated {
		r.mu.Unlock()
		return nil, fmt.Errorf("orchestrator: run %s already started", r.id)
	}
	r.status = RunRunning
	r.mu.Unlock()
	r.seq.Add(1)

	r.events.Emit(Event{Type: EventRunStart, RunID: r.id})

	for _, phase := range r.def.Phases {
		// Abort is honored at every phase boundary.
		if r.aborted.Load() || ctx.Err() != nil {
			return r.finishAborted(), nil
		}

		if report := r.runPhase(ctx, phase); report != nil {
			return report, nil
		}
	}

	return r.finish(RunCompleted, nil), nil
}

// runPhase executes one phase. A non-nil return is the run's terminal
// report (failure or abort); nil means advance to the next phase.
func (r *Runner) runPhase(ctx context.Context, phase pipeline.Phase) *Report {
	r.setPhase(phase.ID, PhaseRunning)
	r.events.Emit(Event{Type: EventPhaseStart, RunID: r.id, PhaseID: phase.ID})

	var outcomes []actionOutcome
	if phase.EffectiveParallelism() == pipeline.Parallel {
		outcomes = r.runParallel(ctx, phase)
	} else {
		outcomes = r.runSequential(ctx, phase)
	}

	// An abort during dispatch lets in-flight calls settle, then discards
	// their results.
	if r.aborted.Load() || ctx.Err() != nil {
		return r.finishAborted()
	}

	failed := r.requiredFailure(phase, outcomes)
	if failed != nil {
		return r.failPhase(ctx, phase, failed)
	}

	phaseOutput := r.commitPhaseOutput(phase, outcomes)

	if phase.Review != nil {
		return r.reviewPhase(ctx, phase, phaseOutput)
	}

	if phase.OutputBlock != "" {
		_, _ = r.outputs.Write(phase.OutputBlock, phaseOutput, "phase:"+phase.ID)
	}

	r.setPhase(phase.ID, PhaseDone)
	r.seq.Add(1)
	r.events.Emit(Event{Type: EventPhaseComplete, RunID: r.id, PhaseID: phase.ID, Status: string(PhaseDone)})
	return nil
}

// runSequential dispatches actions one at a time in declared order, so
// later actions observe earlier siblings' context writes. A required
// failure skips the remaining actions.
func (r *Runner) runSequential(ctx context.Context, phase pipeline.Phase) []actionOutcome {
	var outcomes []actionOutcome
	stop := false

	for _, action := range phase.Actions {
		if stop || r.aborted.Load() {
			r.setAction(action.ID, ActionSkipped)
			outcomes = append(outcomes, actionOutcome{actionID: action.ID})
			continue
		}

		req := r.buildRequest(action)
		r.setAction(action.ID, ActionRunning)

		res, err := r.dispatcher.Submit(ctx, req)
		outcome := r.settleAction(phase, action, res, err)
		outcomes = append(outcomes, outcome)

		if outcome.err == nil {
			// Commit immediately: sequential siblings may read it.
			r.commitActionOutput(action, outcome.content)
		} else if !action.Optional {
			stop = true
		}
	}
	return outcomes
}

// runParallel dispatches every action concurrently and joins on all of
// them. Siblings are isolated: context writes are committed only after the
// barrier releases. Thread entries land in completion order.
func (r *Runner) runParallel(ctx context.Context, phase pipeline.Phase) []actionOutcome {
	// Resolve all prompts before dispatch so no sibling sees another's
	// in-flight writes.
	reqs := make([]backend.Request, len(phase.Actions))
	for i, action := range phase.Actions {
		reqs[i] = r.buildRequest(action)
		r.setAction(action.ID, ActionRunning)
	}

	outcomes := make([]actionOutcome, len(phase.Actions))
	var wg sync.WaitGroup
	for i, action := range phase.Actions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.dispatcher.Submit(ctx, reqs[i])
			outcomes[i] = r.settleAction(phase, action, res, err)
		}()
	}
	wg.Wait() // join barrier: every action settles before the phase ends

	if r.aborted.Load() {
		return outcomes
	}

	// Commit context writes after the barrier, in declared order.
	for i, action := range phase.Actions {
		if outcomes[i].err == nil {
			r.commitActionOutput(action, outcomes[i].content)
		}
	}
	return outcomes
}

// settleAction records one action's dispatch result, appends its thread
// entry, and emits the action:result event. Safe for concurrent use.
func (r *Runner) settleAction(phase pipeline.Phase, action pipeline.Action, res *dispatch.Result, err error) actionOutcome {
	if err != nil {
		r.setAction(action.ID, ActionFailed)
		r.events.Emit(Event{
			Type:     EventActionResult,
			RunID:    r.id,
			PhaseID:  phase.ID,
			ActionID: action.ID,
			Status:   string(ActionFailed),
			Message:  err.Error(),
		})
		return actionOutcome{actionID: action.ID, err: err}
	}

	content := res.Response.Content
	r.setAction(action.ID, ActionSucceeded)
	r.mu.Lock()
	r.actionOutput[action.ID] = content
	r.mu.Unlock()

	// Ledger appends happen at completion time, which yields completion
	// order for parallel phases and declared order for sequential ones.
	if content != "" {
		_, _ = r.ledger.Append(phase.EffectiveThreadID(), action.AgentID, ledger.EntryActionOutput, content)
	}

	r.events.Emit(Event{
		Type:     EventActionResult,
		RunID:    r.id,
		PhaseID:  phase.ID,
		ActionID: action.ID,
		Status:   string(ActionSucceeded),
	})
	return actionOutcome{actionID: action.ID, content: content}
}

// buildRequest resolves an action's prompt templates into a dispatchable
// request.
func (r *Runner) buildRequest(action pipeline.Action) backend.Request {
	agent, _ := r.def.AgentByID(action.AgentID)

	system := agent.SystemPrompt
	if agent.SystemPromptKey != "" {
		if sc, key, err := pipeline.SplitRef(agent.SystemPromptKey); err == nil {
			system = r.store.Get(sc, key)
		}
	}

	return backend.Request{
		SystemPrompt: r.resolver.Resolve(system),
		UserPrompt:   r.resolver.Resolve(action.Prompt),
		API:          agent.API,
		Generation:   agent.Generation,
	}
}

// commitActionOutput writes an action's output into its own scope and its
// declared output binding.
func (r *Runner) commitActionOutput(action pipeline.Action, content string) {
	_ = r.store.Set(scope.Action(action.ID), "output", content)
	if action.OutputKey != "" {
		if sc, key, err := pipeline.SplitRef(action.OutputKey); err == nil {
			_ = r.store.Set(sc, key, content)
		}
	}
}

// commitPhaseOutput derives the phase's combined output and writes it under
// the phase scope and the phase's declared output key. Returns the value.
func (r *Runner) commitPhaseOutput(phase pipeline.Phase, outcomes []actionOutcome) string {
	var parts []string
	for _, o := range outcomes {
		if o.err == nil && o.content != "" {
			parts = append(parts, o.content)
		}
	}
	phaseOutput := strings.Join(parts, "\n\n")

	_ = r.store.Set(scope.Phase(phase.ID), "output", phaseOutput)
	if phase.OutputKey != "" {
		if sc, key, err := pipeline.SplitRef(phase.OutputKey); err == nil {
			_ = r.store.Set(sc, key, phaseOutput)
		}
	}
	return phaseOutput
}

// reviewPhase suspends the run on the gate and applies the decision. A
// non-nil return is the run's terminal report.
func (r *Runner) reviewPhase(ctx context.Context, phase pipeline.Phase, phaseOutput string) *Report {
	r.setPhase(phase.ID, PhaseAwaitingReview)
	r.seq.Add(1)
	r.events.Emit(Event{Type: EventAwaitingReview, RunID: r.id, PhaseID: phase.ID})

	resp, err := r.gate.Await(ctx, gavel.Request{
		PhaseID:        phase.ID,
		Prompt:         phase.Review.Prompt,
		Output:         phaseOutput,
		EditableFields: phase.Review.EditableFields,
		CanSkip:        phase.Review.CanSkip,
	})
	if err != nil || resp.Decision == gavel.DecisionAborted || r.aborted.Load() {
		return r.finishAborted()
	}

	if resp.Commentary != "" {
		_, _ = r.ledger.Append(phase.EffectiveThreadID(), "reviewer", ledger.EntryReviewDecision,
			fmt.Sprintf("%s: %s", resp.Decision, resp.Commentary))
	} else {
		_, _ = r.ledger.Append(phase.EffectiveThreadID(), "reviewer", ledger.EntryReviewDecision, string(resp.Decision))
	}

	switch resp.Decision {
	case gavel.DecisionApproved, gavel.DecisionSkipped:
		r.applyReviewOutput(phase, resp)

		status := PhaseDone
		if resp.Decision == gavel.DecisionSkipped {
			status = PhaseSkipped
		}
		r.setPhase(phase.ID, status)
		r.seq.Add(1)
		r.events.Emit(Event{Type: EventPhaseComplete, RunID: r.id, PhaseID: phase.ID, Status: string(status)})
		return nil

	case gavel.DecisionRejected:
		// Rejection carries no implicit retry; the phase fails and the
		// configured failure policy decides what happens next.
		return r.failPhase(ctx, phase, &FailureReport{
			PhaseID: phase.ID,
			Message: "rejected by reviewer",
		})
	}

	return r.finishAborted()
}

// applyReviewOutput substitutes the reviewer's final output into the
// context store, edited fields into the phase scope, and updates the
// phase's output block exactly once.
func (r *Runner) applyReviewOutput(phase pipeline.Phase, resp gavel.Response) {
	_ = r.store.Set(scope.Phase(phase.ID), "output", resp.FinalOutput)
	if phase.OutputKey != "" {
		if sc, key, err := pipeline.SplitRef(phase.OutputKey); err == nil {
			_ = r.store.Set(sc, key, resp.FinalOutput)
		}
	}
	for field, value := range resp.EditedValues {
		_ = r.store.Set(scope.Phase(phase.ID), field, value)
	}

	if phase.OutputBlock != "" {
		content := resp.FinalOutput
		if edited, ok := resp.EditedValues[phase.OutputBlock]; ok {
			content = edited
		}
		_, _ = r.outputs.Write(phase.OutputBlock, content, "reviewer")
	}
}

// requiredFailure returns a failure report when any required action failed.
func (r *Runner) requiredFailure(phase pipeline.Phase, outcomes []actionOutcome) *FailureReport {
	for i, o := range outcomes {
		if o.err == nil {
			continue
		}
		if phase.Actions[i].Optional {
			continue
		}
		return &FailureReport{
			PhaseID:  phase.ID,
			ActionID: o.actionID,
			Class:    backend.ClassOf(o.err),
			Message:  o.err.Error(),
		}
	}
	return nil
}

// failPhase applies the phase's failure policy. A non-nil return is the
// run's terminal report.
func (r *Runner) failPhase(_ context.Context, phase pipeline.Phase, failure *FailureReport) *Report {
	r.setPhase(phase.ID, PhaseFailed)
	r.seq.Add(1)

	switch phase.EffectiveFailurePolicy() {
	case pipeline.FailSkip:
		r.events.Emit(Event{Type: EventPhaseComplete, RunID: r.id, PhaseID: phase.ID, Status: string(PhaseFailed)})
		return nil

	case pipeline.FailUseLastOutput:
		if v, ok := r.outputs.Read(phase.OutputBlock); ok {
			_ = r.store.Set(scope.Phase(phase.ID), "output", v.Content)
			if phase.OutputKey != "" {
				if sc, key, err := pipeline.SplitRef(phase.OutputKey); err == nil {
					_ = r.store.Set(sc, key, v.Content)
				}
			}
		}
		r.events.Emit(Event{Type: EventPhaseComplete, RunID: r.id, PhaseID: phase.ID, Status: string(PhaseFailed)})
		return nil

	default: // FailHalt
		failure.ThreadTail = r.ledger.Tail(phase.EffectiveThreadID(), r.failureTail)
		return r.finish(RunFailed, failure)
	}
}

// Abort requests cancellation. It is honored at the next phase boundary
// and immediately during a gate wait; an in-flight model call is allowed to
// finish or time out, but its result is discarded.
func (r *Runner) Abort() {
	if !r.aborted.CompareAndSwap(false, true) {
		return
	}
	r.seq.Add(1)
	r.gate.Abort()
}

// SubmitGavel delivers a reviewer decision to the run's gate.
func (r *Runner) SubmitGavel(resp gavel.Response) error {
	if r.aborted.Load() {
		return fmt.Errorf("orchestrator: run %s is aborted", r.id)
	}
	return r.gate.Submit(resp)
}

// SubmitGavelAt is SubmitGavel guarded by a sequence check: a submitter
// holding a stale view of the run (for example, after an abort and re-run)
// is rejected instead of resuming the wrong wait.
func (r *Runner) SubmitGavelAt(expectSeq int64, resp gavel.Response) error {
	if got := r.seq.Load(); got != expectSeq {
		return fmt.Errorf("orchestrator: stale gavel response (seq %d, run at %d)", expectSeq, got)
	}
	return r.SubmitGavel(resp)
}

// PendingReview returns the outstanding gavel request, if any.
func (r *Runner) PendingReview() *gavel.Request {
	return r.gate.Pending()
}

// ReviewHistory returns the gate's bounded decision history.
func (r *Runner) ReviewHistory() []gavel.Record {
	return r.gate.History()
}

// Snapshot returns a point-in-time view of the run.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Snapshot{
		RunID:         r.id,
		Pipeline:      r.def.Name,
		Seq:           r.seq.Load(),
		Status:        r.status,
		CurrentPhase:  r.currentPhase,
		PhaseStatus:   copyMap(r.phaseStatus),
		ActionStatus:  copyMap(r.actionStatus),
		PendingReview: r.gate.Pending(),
	}
}

// finish moves the run to a terminal status and builds the report.
// Run-scoped context is discarded; durable stores, output blocks, and the
// ledger survive for inspection.
func (r *Runner) finish(status RunStatus, failure *FailureReport) *Report {
	r.mu.Lock()
	r.status = status
	r.currentPhase = ""
	report := &Report{
		RunID:         r.id,
		Pipeline:      r.def.Name,
		Status:        status,
		PhaseStatus:   copyMap(r.phaseStatus),
		ActionStatus:  copyMap(r.actionStatus),
		ActionOutputs: copyMap(r.actionOutput),
		Failure:       failure,
		Reviews:       r.gate.History(),
	}
	r.mu.Unlock()
	r.seq.Add(1)

	r.store.ClearRunScoped()

	switch status {
	case RunCompleted:
		r.events.Emit(Event{Type: EventRunComplete, RunID: r.id})
	case RunAborted:
		r.events.Emit(Event{Type: EventRunAborted, RunID: r.id})
	case RunFailed:
		msg := ""
		if failure != nil {
			msg = failure.Message
		}
		r.events.Emit(Event{Type: EventRunFailed, RunID: r.id, Message: msg})
	}
	// Terminal event is the last one; let subscribers drain and exit.
	r.events.Close()
	return report
}

func (r *Runner) finishAborted() *Report {
	r.aborted.Store(true)
	r.gate.Abort()
	return r.finish(RunAborted, nil)
}

func (r *Runner) setPhase(id string, status PhaseStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phaseStatus[id] = status
	if status == PhaseRunning || status == PhaseAwaitingReview {
		r.currentPhase = id
	}
}

func (r *Runner) setAction(id string, status ActionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actionStatus[id] = status
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
