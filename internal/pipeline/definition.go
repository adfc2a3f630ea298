// Package pipeline defines the immutable run configuration: agents, teams,
// phases, and actions. Definitions are validated once at load time; a
// malformed definition is rejected before any run starts, never
// mid-execution. The executor treats a Definition as read-only.
package pipeline

import (
	"github.com/dusk-indust/conductor/internal/backend"
)

// Parallelism is a phase's action scheduling policy.
type Parallelism string

const (
	// Sequential runs actions one at a time, in declared order. Later
	// actions see earlier siblings' context writes.
	Sequential Parallelism = "sequential"

	// Parallel runs all actions concurrently. Siblings are isolated from
	// each other's writes until the phase ends.
	Parallel Parallelism = "parallel"
)

// FailurePolicy decides what happens to the run when a phase fails.
type FailurePolicy string

const (
	// FailHalt stops the run with a failure report. The default.
	FailHalt FailurePolicy = "halt"

	// FailSkip marks the phase failed and moves on to the next phase.
	FailSkip FailurePolicy = "skip"

	// FailUseLastOutput substitutes the phase's output block's current
	// value for the phase output and moves on.
	FailUseLastOutput FailurePolicy = "use-last-output"
)

// Definition is one complete pipeline configuration.
type Definition struct {
	Name   string        `yaml:"name"`
	Agents []AgentConfig `yaml:"agents"`
	Teams  []Team        `yaml:"teams,omitempty"`
	Phases []Phase       `yaml:"phases"`
}

// AgentConfig is a named model-call identity: API settings plus a system
// prompt source. One agent may serve many actions.
type AgentConfig struct {
	ID         string                   `yaml:"id"`
	API        backend.APIConfig        `yaml:"api"`
	Generation backend.GenerationConfig `yaml:"generation,omitempty"`

	// SystemPrompt is the inline system prompt. SystemPromptKey, when
	// set, names a context-store reference (e.g. "static.persona") that
	// is resolved at dispatch time instead.
	SystemPrompt    string `yaml:"systemPrompt,omitempty"`
	SystemPromptKey string `yaml:"systemPromptKey,omitempty"`
}

// Team groups agents for shared team-scoped context and threads.
type Team struct {
	ID      string   `yaml:"id"`
	Members []string `yaml:"members"`
}

// ReviewPolicy marks a phase as requiring human review before the run
// proceeds.
type ReviewPolicy struct {
	// Prompt is shown to the reviewer alongside the phase output.
	Prompt string `yaml:"prompt,omitempty"`

	// EditableFields lists the field names a reviewer may edit. Edits to
	// a field that names an output block create a new block version.
	EditableFields []string `yaml:"editableFields,omitempty"`

	// CanSkip allows the reviewer to skip the phase outright.
	CanSkip bool `yaml:"canSkip,omitempty"`
}

// Phase is one ordered step of the pipeline.
type Phase struct {
	ID          string        `yaml:"id"`
	Parallelism Parallelism   `yaml:"parallelism,omitempty"` // default sequential
	Actions     []Action      `yaml:"actions"`
	Review      *ReviewPolicy `yaml:"review,omitempty"`
	OnFailure   FailurePolicy `yaml:"onFailure,omitempty"` // default halt

	// OutputKey is the context-store reference (e.g. "global.outline")
	// the phase's final output is written under. When empty the phase
	// writes only per-action outputs.
	OutputKey string `yaml:"outputKey,omitempty"`

	// OutputBlock, when set, names the output block updated with the
	// phase's final output.
	OutputBlock string `yaml:"outputBlock,omitempty"`

	// ThreadID overrides the thread entries for this phase are appended
	// to. Defaults to "phase:<id>".
	ThreadID string `yaml:"threadId,omitempty"`
}

// Action is one bound model-call unit within a phase.
type Action struct {
	ID      string `yaml:"id"`
	AgentID string `yaml:"agent"`
	TeamID  string `yaml:"team,omitempty"`

	// Prompt is the user-prompt template; {{scope.key}} and
	// {{thread:<id> n}} placeholders are resolved against the context
	// store and thread ledger at dispatch time.
	Prompt string `yaml:"prompt"`

	// OutputKey is the context-store reference the action's output is
	// written under, in addition to its own action scope.
	OutputKey string `yaml:"outputKey,omitempty"`

	// Optional actions may fail without failing their phase.
	Optional bool `yaml:"optional,omitempty"`
}

// EffectiveParallelism returns the phase policy with the default applied.
func (p Phase) EffectiveParallelism() Parallelism {
	if p.Parallelism == "" {
		return Sequential
	}
	return p.Parallelism
}

// EffectiveFailurePolicy returns the failure policy with the default applied.
func (p Phase) EffectiveFailurePolicy() FailurePolicy {
	if p.OnFailure == "" {
		return FailHalt
	}
	return p.OnFailure
}

// EffectiveThreadID returns the thread this phase logs to.
func (p Phase) EffectiveThreadID() string {
	if p.ThreadID != "" {
		return p.ThreadID
	}
	return "phase:" + p.ID
}

// AgentByID looks up an agent configuration.
func (d *Definition) AgentByID(id string) (AgentConfig, bool) {
	for _, a := range d.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return AgentConfig{}, false
}

// TeamByID looks up a team.
func (d *Definition) TeamByID(id string) (Team, bool) {
	for _, t := range d.Teams {
		if t.ID == id {
			return t, true
		}
	}
	return Team{}, false
}
