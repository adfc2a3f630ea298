package mcptools

// --- MCP Tool Types for the run-control server mode (--serve-mcp) ---
// These tools let an MCP client inspect suspended runs and deliver review
// decisions without shelling out to the CLI.

// RunStatusInput is the input for the run_status MCP tool.
type RunStatusInput struct {
	RunID string `json:"runId" jsonschema:"run identifier returned at start"`
}

// RunStatusOutput is the result of the run_status MCP tool.
type RunStatusOutput struct {
	RunID         string            `json:"runId"`
	Pipeline      string            `json:"pipeline"`
	Seq           int64             `json:"seq"`
	Status        string            `json:"status"`
	CurrentPhase  string            `json:"currentPhase,omitempty"`
	PhaseStatus   map[string]string `json:"phaseStatus"`
	ActionStatus  map[string]string `json:"actionStatus"`
	PendingPhase  string            `json:"pendingPhase,omitempty"`
	PendingPrompt string            `json:"pendingPrompt,omitempty"`
	PendingOutput string            `json:"pendingOutput,omitempty"`
	CanSkip       bool              `json:"canSkip,omitempty"`
}

// SubmitGavelInput is the input for the submit_gavel MCP tool.
type SubmitGavelInput struct {
	RunID        string            `json:"runId" jsonschema:"run identifier"`
	Decision     string            `json:"decision" jsonschema:"approved, rejected, or skipped"`
	EditedValues map[string]string `json:"editedValues,omitempty" jsonschema:"field edits applied before resume"`
	FinalOutput  string            `json:"finalOutput,omitempty" jsonschema:"phase output after edits; defaults to the original"`
	Commentary   string            `json:"commentary,omitempty" jsonschema:"reviewer note appended to the phase thread"`

	// Seq, when non-zero, must match the run's current sequence number.
	// A stale value is rejected instead of resuming the wrong wait.
	Seq int64 `json:"seq,omitempty" jsonschema:"expected run sequence number"`
}

// SubmitGavelOutput is the result of the submit_gavel MCP tool.
type SubmitGavelOutput struct {
	RunID    string `json:"runId"`
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}

// ReadOutputInput is the input for the read_output MCP tool.
type ReadOutputInput struct {
	RunID   string `json:"runId" jsonschema:"run identifier"`
	BlockID string `json:"blockId" jsonschema:"output block name"`

	// Version selects a historical version; 0 means latest.
	Version int `json:"version,omitempty" jsonschema:"block version to read (0 = latest)"`
}

// ReadOutputOutput is the result of the read_output MCP tool.
type ReadOutputOutput struct {
	BlockID   string `json:"blockId"`
	Version   int    `json:"version"`
	Content   string `json:"content"`
	UpdatedBy string `json:"updatedBy"`
}

// TailThreadInput is the input for the tail_thread MCP tool.
type TailThreadInput struct {
	RunID    string `json:"runId" jsonschema:"run identifier"`
	ThreadID string `json:"threadId" jsonschema:"thread name, e.g. phase:draft"`
	Count    int    `json:"count,omitempty" jsonschema:"entries to return from the end (default 10)"`
}

// ThreadEntry is one ledger entry in a tail_thread response.
type ThreadEntry struct {
	Seq       int    `json:"seq"`
	SpeakerID string `json:"speakerId"`
	Type      string `json:"type"`
	Content   string `json:"content"`
}

// TailThreadOutput is the result of the tail_thread MCP tool.
type TailThreadOutput struct {
	ThreadID string        `json:"threadId"`
	Entries  []ThreadEntry `json:"entries"`
}

// AbortRunInput is the input for the abort_run MCP tool.
type AbortRunInput struct {
	RunID string `json:"runId" jsonschema:"run identifier"`
}

// AbortRunOutput is the result of the abort_run MCP tool.
type AbortRunOutput struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
}

// ListRunsInput is the input for the list_runs MCP tool.
type ListRunsInput struct{}

// RunSummary is a brief overview of one registered run.
type RunSummary struct {
	RunID        string `json:"runId"`
	Pipeline     string `json:"pipeline"`
	Status       string `json:"status"`
	CurrentPhase string `json:"currentPhase,omitempty"`
	Suspended    bool   `json:"suspended"`
}

// ListRunsOutput is the result of the list_runs MCP tool.
type ListRunsOutput struct {
	Runs []RunSummary `json:"runs"`
}
