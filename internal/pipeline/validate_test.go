package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/conductor/internal/backend"
	"github.com/dusk-indust/conductor/internal/scope"
)

// validDefinition returns a minimal definition that passes validation.
// Tests mutate a copy to probe individual checks.
func validDefinition() Definition {
	return Definition{
		Name: "novella",
		Agents: []AgentConfig{
			{ID: "outliner", API: backend.APIConfig{Endpoint: "http://localhost:9001"}},
			{ID: "drafter", API: backend.APIConfig{Endpoint: "http://localhost:9002"}},
		},
		Teams: []Team{
			{ID: "writers", Members: []string{"outliner", "drafter"}},
		},
		Phases: []Phase{
			{
				ID:        "outline",
				OutputKey: "global.outline",
				Actions: []Action{
					{ID: "write-outline", AgentID: "outliner", Prompt: "Outline: {{static.premise}}"},
				},
			},
			{
				ID:          "draft",
				Parallelism: Parallel,
				OutputBlock: "draft",
				Actions: []Action{
					{ID: "draft-a", AgentID: "drafter", Prompt: "Expand: {{global.outline}}"},
					{ID: "draft-b", AgentID: "drafter", Prompt: "Alternate: {{global.outline}}", Optional: true},
				},
				Review: &ReviewPolicy{EditableFields: []string{"draft"}, CanSkip: true},
			},
		},
	}
}

func TestValidate_AcceptsWellFormed(t *testing.T) {
	def := validDefinition()
	require.NoError(t, def.Validate())
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Definition)
		wantSub string
	}{
		{"no name", func(d *Definition) { d.Name = "" }, "no name"},
		{"no agents", func(d *Definition) { d.Agents = nil }, "no agents"},
		{"no phases", func(d *Definition) { d.Phases = nil }, "no phases"},
		{"duplicate agent", func(d *Definition) { d.Agents[1].ID = "outliner" }, "duplicate agent"},
		{"agent without endpoint", func(d *Definition) { d.Agents[0].API.Endpoint = "" }, "no endpoint"},
		{"both prompt sources", func(d *Definition) {
			d.Agents[0].SystemPrompt = "x"
			d.Agents[0].SystemPromptKey = "static.persona"
		}, "both"},
		{"bad system prompt key", func(d *Definition) { d.Agents[0].SystemPromptKey = "nonsense" }, "malformed context reference"},
		{"team unknown member", func(d *Definition) { d.Teams[0].Members = []string{"ghost"} }, "unknown agent"},
		{"duplicate phase", func(d *Definition) { d.Phases[1].ID = "outline" }, "duplicate phase"},
		{"bad parallelism", func(d *Definition) { d.Phases[0].Parallelism = "sideways" }, "unknown parallelism"},
		{"bad failure policy", func(d *Definition) { d.Phases[0].OnFailure = "retry-forever" }, "unknown failure policy"},
		{"use-last-output without block", func(d *Definition) { d.Phases[0].OnFailure = FailUseLastOutput }, "requires outputBlock"},
		{"phase without actions", func(d *Definition) { d.Phases[0].Actions = nil }, "no actions"},
		{"bad phase output key", func(d *Definition) { d.Phases[0].OutputKey = "global" }, "malformed context reference"},
		{"empty editable field", func(d *Definition) { d.Phases[1].Review.EditableFields = []string{" "} }, "empty editable field"},
		{"duplicate action", func(d *Definition) { d.Phases[1].Actions[1].ID = "draft-a" }, "duplicate action"},
		{"duplicate action across phases", func(d *Definition) { d.Phases[1].Actions[0].ID = "write-outline" }, "duplicate action"},
		{"action unknown agent", func(d *Definition) { d.Phases[0].Actions[0].AgentID = "ghost" }, "unknown agent"},
		{"action unknown team", func(d *Definition) { d.Phases[0].Actions[0].TeamID = "ghosts" }, "unknown team"},
		{"empty prompt", func(d *Definition) { d.Phases[0].Actions[0].Prompt = "  " }, "empty prompt"},
		{"bad action output key", func(d *Definition) { d.Phases[0].Actions[0].OutputKey = "bogus:x.k" }, "malformed context reference"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(&def)
			err := def.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantSub)
		})
	}
}

func TestSplitRef(t *testing.T) {
	sc, key, err := SplitRef("global.outline")
	require.NoError(t, err)
	assert.Equal(t, scope.Global(), sc)
	assert.Equal(t, "outline", key)

	sc, key, err = SplitRef("phase:draft.text")
	require.NoError(t, err)
	assert.Equal(t, scope.Phase("draft"), sc)
	assert.Equal(t, "text", key)

	_, _, err = SplitRef("global")
	assert.Error(t, err)
}

func TestPhaseDefaults(t *testing.T) {
	p := Phase{ID: "x"}
	assert.Equal(t, Sequential, p.EffectiveParallelism())
	assert.Equal(t, FailHalt, p.EffectiveFailurePolicy())
	assert.Equal(t, "phase:x", p.EffectiveThreadID())

	p.ThreadID = "team:writers"
	assert.Equal(t, "team:writers", p.EffectiveThreadID())
}

func TestParse_YAML(t *testing.T) {
	src := []byte(`
name: novella
agents:
  - id: outliner
    api:
      endpoint: http://localhost:9001
      model: stub-small
    systemPrompt: You are the outline writer.
phases:
  - id: outline
    outputKey: global.outline
    actions:
      - id: write-outline
        agent: outliner
        prompt: "Outline: {{static.premise}}"
  - id: draft
    parallelism: parallel
    outputBlock: draft
    review:
      editableFields: [draft]
      canSkip: true
    actions:
      - id: expand
        agent: outliner
        prompt: "Expand: {{global.outline}}"
`)
	def, err := Parse(src)
	require.NoError(t, err)
	assert.Equal(t, "novella", def.Name)
	require.Len(t, def.Phases, 2)
	assert.Equal(t, Parallel, def.Phases[1].EffectiveParallelism())
	require.NotNil(t, def.Phases[1].Review)
	assert.True(t, def.Phases[1].Review.CanSkip)

	agent, ok := def.AgentByID("outliner")
	require.True(t, ok)
	assert.Equal(t, "stub-small", agent.API.Model)
}

func TestParse_RejectsInvalid(t *testing.T) {
	_, err := Parse([]byte(`name: broken`))
	require.Error(t, err)

	_, err = Parse([]byte(`{{not yaml`))
	require.Error(t, err)
}
