package pipeline

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/conductor/internal/scope"
)

// Validate checks the definition for structural problems: duplicate or
// empty IDs, dangling agent/team references, unknown policy values, and
// malformed context-store references. It returns the first problem found.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("pipeline: definition has no name")
	}
	if len(d.Agents) == 0 {
		return fmt.Errorf("pipeline %q: no agents declared", d.Name)
	}
	if len(d.Phases) == 0 {
		return fmt.Errorf("pipeline %q: no phases declared", d.Name)
	}

	agentIDs := make(map[string]bool, len(d.Agents))
	for _, a := range d.Agents {
		if a.ID == "" {
			return fmt.Errorf("pipeline %q: agent with empty id", d.Name)
		}
		if agentIDs[a.ID] {
			return fmt.Errorf("pipeline %q: duplicate agent id %q", d.Name, a.ID)
		}
		agentIDs[a.ID] = true

		if a.API.Endpoint == "" {
			return fmt.Errorf("pipeline %q: agent %q has no endpoint", d.Name, a.ID)
		}
		if a.SystemPrompt != "" && a.SystemPromptKey != "" {
			return fmt.Errorf("pipeline %q: agent %q sets both systemPrompt and systemPromptKey", d.Name, a.ID)
		}
		if a.SystemPromptKey != "" {
			if err := validateRef(a.SystemPromptKey); err != nil {
				return fmt.Errorf("pipeline %q: agent %q: %w", d.Name, a.ID, err)
			}
		}
	}

	teamIDs := make(map[string]bool, len(d.Teams))
	for _, t := range d.Teams {
		if t.ID == "" {
			return fmt.Errorf("pipeline %q: team with empty id", d.Name)
		}
		if teamIDs[t.ID] {
			return fmt.Errorf("pipeline %q: duplicate team id %q", d.Name, t.ID)
		}
		teamIDs[t.ID] = true

		for _, m := range t.Members {
			if !agentIDs[m] {
				return fmt.Errorf("pipeline %q: team %q references unknown agent %q", d.Name, t.ID, m)
			}
		}
	}

	// Action IDs must be unique across the whole pipeline, not just within
	// a phase: run bookkeeping and the action scope are keyed by bare ID.
	phaseIDs := make(map[string]bool, len(d.Phases))
	actionIDs := make(map[string]bool)
	for _, p := range d.Phases {
		if p.ID == "" {
			return fmt.Errorf("pipeline %q: phase with empty id", d.Name)
		}
		if phaseIDs[p.ID] {
			return fmt.Errorf("pipeline %q: duplicate phase id %q", d.Name, p.ID)
		}
		phaseIDs[p.ID] = true

		if err := d.validatePhase(p, agentIDs, teamIDs, actionIDs); err != nil {
			return err
		}
	}

	return nil
}

func (d *Definition) validatePhase(p Phase, agentIDs, teamIDs, actionIDs map[string]bool) error {
	switch p.Parallelism {
	case "", Sequential, Parallel:
	default:
		return fmt.Errorf("pipeline %q: phase %q: unknown parallelism %q", d.Name, p.ID, p.Parallelism)
	}

	switch p.OnFailure {
	case "", FailHalt, FailSkip, FailUseLastOutput:
	default:
		return fmt.Errorf("pipeline %q: phase %q: unknown failure policy %q", d.Name, p.ID, p.OnFailure)
	}
	if p.OnFailure == FailUseLastOutput && p.OutputBlock == "" {
		return fmt.Errorf("pipeline %q: phase %q: use-last-output requires outputBlock", d.Name, p.ID)
	}

	if len(p.Actions) == 0 {
		return fmt.Errorf("pipeline %q: phase %q has no actions", d.Name, p.ID)
	}

	if p.OutputKey != "" {
		if err := validateRef(p.OutputKey); err != nil {
			return fmt.Errorf("pipeline %q: phase %q: %w", d.Name, p.ID, err)
		}
	}

	if p.Review != nil {
		for _, f := range p.Review.EditableFields {
			if strings.TrimSpace(f) == "" {
				return fmt.Errorf("pipeline %q: phase %q: empty editable field", d.Name, p.ID)
			}
		}
	}

	for _, a := range p.Actions {
		if a.ID == "" {
			return fmt.Errorf("pipeline %q: phase %q: action with empty id", d.Name, p.ID)
		}
		if actionIDs[a.ID] {
			return fmt.Errorf("pipeline %q: phase %q: duplicate action id %q", d.Name, p.ID, a.ID)
		}
		actionIDs[a.ID] = true

		if !agentIDs[a.AgentID] {
			return fmt.Errorf("pipeline %q: action %q references unknown agent %q", d.Name, a.ID, a.AgentID)
		}
		if a.TeamID != "" && !teamIDs[a.TeamID] {
			return fmt.Errorf("pipeline %q: action %q references unknown team %q", d.Name, a.ID, a.TeamID)
		}
		if strings.TrimSpace(a.Prompt) == "" {
			return fmt.Errorf("pipeline %q: action %q has an empty prompt", d.Name, a.ID)
		}
		if a.OutputKey != "" {
			if err := validateRef(a.OutputKey); err != nil {
				return fmt.Errorf("pipeline %q: action %q: %w", d.Name, a.ID, err)
			}
		}
	}

	return nil
}

// validateRef checks a "scope.key" context-store reference.
func validateRef(ref string) error {
	scopePart, key, ok := strings.Cut(ref, ".")
	if !ok || key == "" {
		return fmt.Errorf("malformed context reference %q (want scope.key)", ref)
	}
	if _, err := scope.Parse(scopePart); err != nil {
		return fmt.Errorf("malformed context reference %q: %w", ref, err)
	}
	return nil
}

// SplitRef parses a validated "scope.key" reference into its parts.
func SplitRef(ref string) (scope.Scope, string, error) {
	scopePart, key, ok := strings.Cut(ref, ".")
	if !ok || key == "" {
		return scope.Scope{}, "", fmt.Errorf("pipeline: malformed context reference %q", ref)
	}
	sc, err := scope.Parse(scopePart)
	if err != nil {
		return scope.Scope{}, "", err
	}
	return sc, key, nil
}
