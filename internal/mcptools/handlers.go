package mcptools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/conductor/internal/gavel"
	"github.com/dusk-indust/conductor/internal/orchestrator"
)

// RunService handles MCP tool calls against a registry of live runs. One
// process hosts many runs; tools address them by run ID.
type RunService struct {
	mu   sync.RWMutex
	runs map[string]*orchestrator.Runner
}

// NewRunService creates an empty run registry.
func NewRunService() *RunService {
	return &RunService{runs: make(map[string]*orchestrator.Runner)}
}

// Register adds a run to the registry. Terminal runs stay registered so
// their outputs and threads remain queryable.
func (s *RunService) Register(r *orchestrator.Runner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID()] = r
}

// lookup resolves a run ID.
func (s *RunService) lookup(runID string) (*orchestrator.Runner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("mcptools: unknown run %q", runID)
	}
	return r, nil
}

// RunStatus reports a run's current state, including the pending review
// request when the run is suspended.
func (s *RunService) RunStatus(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input RunStatusInput,
) (*mcp.CallToolResult, RunStatusOutput, error) {
	r, err := s.lookup(input.RunID)
	if err != nil {
		return nil, RunStatusOutput{}, err
	}

	snap := r.Snapshot()
	out := RunStatusOutput{
		RunID:        snap.RunID,
		Pipeline:     snap.Pipeline,
		Seq:          snap.Seq,
		Status:       string(snap.Status),
		CurrentPhase: snap.CurrentPhase,
		PhaseStatus:  make(map[string]string, len(snap.PhaseStatus)),
		ActionStatus: make(map[string]string, len(snap.ActionStatus)),
	}
	for id, st := range snap.PhaseStatus {
		out.PhaseStatus[id] = string(st)
	}
	for id, st := range snap.ActionStatus {
		out.ActionStatus[id] = string(st)
	}
	if snap.PendingReview != nil {
		out.PendingPhase = snap.PendingReview.PhaseID
		out.PendingPrompt = snap.PendingReview.Prompt
		out.PendingOutput = snap.PendingReview.Output
		out.CanSkip = snap.PendingReview.CanSkip
	}
	return nil, out, nil
}

// SubmitGavel delivers a reviewer decision to a suspended run. An illegal
// decision leaves the run suspended and is reported in the output rather
// than as a protocol error.
func (s *RunService) SubmitGavel(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SubmitGavelInput,
) (*mcp.CallToolResult, SubmitGavelOutput, error) {
	r, err := s.lookup(input.RunID)
	if err != nil {
		return nil, SubmitGavelOutput{}, err
	}

	resp := gavel.Response{
		Decision:     gavel.Decision(input.Decision),
		EditedValues: input.EditedValues,
		FinalOutput:  input.FinalOutput,
		Commentary:   input.Commentary,
	}

	if input.Seq != 0 {
		err = r.SubmitGavelAt(input.Seq, resp)
	} else {
		err = r.SubmitGavel(resp)
	}
	if err != nil {
		return nil, SubmitGavelOutput{RunID: input.RunID, Accepted: false, Message: err.Error()}, nil
	}
	return nil, SubmitGavelOutput{RunID: input.RunID, Accepted: true}, nil
}

// ReadOutput reads an output block, latest or by version.
func (s *RunService) ReadOutput(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ReadOutputInput,
) (*mcp.CallToolResult, ReadOutputOutput, error) {
	r, err := s.lookup(input.RunID)
	if err != nil {
		return nil, ReadOutputOutput{}, err
	}

	if input.Version > 0 {
		ver, found := r.Outputs().ReadVersion(input.BlockID, input.Version)
		if !found {
			return nil, ReadOutputOutput{}, fmt.Errorf("mcptools: block %q has no version %d", input.BlockID, input.Version)
		}
		return nil, ReadOutputOutput{
			BlockID:   ver.BlockID,
			Version:   ver.Version,
			Content:   ver.Content,
			UpdatedBy: ver.UpdatedBy,
		}, nil
	}

	ver, found := r.Outputs().Read(input.BlockID)
	if !found {
		return nil, ReadOutputOutput{}, fmt.Errorf("mcptools: unknown block %q", input.BlockID)
	}
	return nil, ReadOutputOutput{
		BlockID:   ver.BlockID,
		Version:   ver.Version,
		Content:   ver.Content,
		UpdatedBy: ver.UpdatedBy,
	}, nil
}

// TailThread returns the last entries of a thread.
func (s *RunService) TailThread(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input TailThreadInput,
) (*mcp.CallToolResult, TailThreadOutput, error) {
	r, err := s.lookup(input.RunID)
	if err != nil {
		return nil, TailThreadOutput{}, err
	}

	n := input.Count
	if n <= 0 {
		n = 10
	}

	entries := r.Ledger().Tail(input.ThreadID, n)
	out := TailThreadOutput{ThreadID: input.ThreadID, Entries: make([]ThreadEntry, len(entries))}
	for i, e := range entries {
		out.Entries[i] = ThreadEntry{
			Seq:       e.Seq,
			SpeakerID: e.SpeakerID,
			Type:      string(e.Type),
			Content:   e.Content,
		}
	}
	return nil, out, nil
}

// AbortRun requests cancellation of a run.
func (s *RunService) AbortRun(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input AbortRunInput,
) (*mcp.CallToolResult, AbortRunOutput, error) {
	r, err := s.lookup(input.RunID)
	if err != nil {
		return nil, AbortRunOutput{}, err
	}

	r.Abort()
	return nil, AbortRunOutput{RunID: input.RunID, Status: string(r.Snapshot().Status)}, nil
}

// ListRuns summarizes every registered run, ordered by run ID.
func (s *RunService) ListRuns(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ListRunsInput,
) (*mcp.CallToolResult, ListRunsOutput, error) {
	s.mu.RLock()
	runs := make([]*orchestrator.Runner, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	s.mu.RUnlock()

	out := ListRunsOutput{Runs: make([]RunSummary, 0, len(runs))}
	for _, r := range runs {
		snap := r.Snapshot()
		out.Runs = append(out.Runs, RunSummary{
			RunID:        snap.RunID,
			Pipeline:     snap.Pipeline,
			Status:       string(snap.Status),
			CurrentPhase: snap.CurrentPhase,
			Suspended:    snap.PendingReview != nil,
		})
	}
	sort.Slice(out.Runs, func(i, j int) bool { return out.Runs[i].RunID < out.Runs[j].RunID })
	return nil, out, nil
}
