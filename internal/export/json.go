// Package export renders runs for consumption outside the process: a JSON
// document capturing the run's final state, and a Mermaid diagram of a
// pipeline definition.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dusk-indust/conductor/internal/ledger"
	"github.com/dusk-indust/conductor/internal/orchestrator"
)

// RunExport is the top-level JSON export structure.
type RunExport struct {
	RunID      string                      `json:"runId"`
	Pipeline   string                      `json:"pipeline"`
	Status     string                      `json:"status"`
	ExportedAt string                      `json:"exportedAt"`
	Phases     []PhaseExport               `json:"phases"`
	Blocks     []BlockExport               `json:"blocks,omitempty"`
	Threads    []ThreadExport              `json:"threads,omitempty"`
	Reviews    []ReviewExport              `json:"reviews,omitempty"`
	Failure    *orchestrator.FailureReport `json:"failure,omitempty"`
}

// PhaseExport describes one phase's outcome, actions in declared order.
type PhaseExport struct {
	ID      string         `json:"id"`
	Status  string         `json:"status"`
	Actions []ActionExport `json:"actions"`
}

// ActionExport describes one action's outcome.
type ActionExport struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output string `json:"output,omitempty"`
}

// BlockExport is one output block with its full version history, oldest
// version first.
type BlockExport struct {
	BlockID  string          `json:"blockId"`
	Versions []VersionExport `json:"versions"`
}

// VersionExport is one block version.
type VersionExport struct {
	Version   int       `json:"version"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy"`
}

// ThreadExport is one conversation thread's transcript.
type ThreadExport struct {
	ThreadID string         `json:"threadId"`
	Entries  []ledger.Entry `json:"entries"`
}

// ReviewExport is one settled review decision.
type ReviewExport struct {
	PhaseID    string    `json:"phaseId"`
	Decision   string    `json:"decision"`
	Commentary string    `json:"commentary,omitempty"`
	DecidedAt  time.Time `json:"decidedAt"`
}

// ExportRun assembles the full export document for a finished run. The
// runner supplies the surviving artifacts (definition, blocks, threads);
// the report supplies statuses and outcomes.
func ExportRun(r *orchestrator.Runner, report *orchestrator.Report) *RunExport {
	out := &RunExport{
		RunID:      report.RunID,
		Pipeline:   report.Pipeline,
		Status:     string(report.Status),
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Failure:    report.Failure,
	}

	// Phases and actions follow the definition's declared order.
	for _, phase := range r.Definition().Phases {
		pe := PhaseExport{
			ID:     phase.ID,
			Status: string(report.PhaseStatus[phase.ID]),
		}
		for _, action := range phase.Actions {
			pe.Actions = append(pe.Actions, ActionExport{
				ID:     action.ID,
				Status: string(report.ActionStatus[action.ID]),
				Output: report.ActionOutputs[action.ID],
			})
		}
		out.Phases = append(out.Phases, pe)
	}

	blockIDs := r.Outputs().Blocks()
	sort.Strings(blockIDs)
	for _, blockID := range blockIDs {
		history := r.Outputs().History(blockID, 0)
		be := BlockExport{BlockID: blockID}
		// History is newest first; exports read oldest first.
		for i := len(history) - 1; i >= 0; i-- {
			v := history[i]
			be.Versions = append(be.Versions, VersionExport{
				Version:   v.Version,
				Content:   v.Content,
				UpdatedAt: v.UpdatedAt,
				UpdatedBy: v.UpdatedBy,
			})
		}
		out.Blocks = append(out.Blocks, be)
	}

	threadIDs := r.Ledger().Threads()
	sort.Strings(threadIDs)
	for _, threadID := range threadIDs {
		out.Threads = append(out.Threads, ThreadExport{
			ThreadID: threadID,
			Entries:  r.Ledger().Read(threadID, 0),
		})
	}

	for _, rec := range report.Reviews {
		out.Reviews = append(out.Reviews, ReviewExport{
			PhaseID:    rec.PhaseID,
			Decision:   string(rec.Decision),
			Commentary: rec.Commentary,
			DecidedAt:  rec.DecidedAt,
		})
	}

	return out
}

// WriteJSON writes the export as indented JSON.
func (e *RunExport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("export: encode run %s: %w", e.RunID, err)
	}
	return nil
}
