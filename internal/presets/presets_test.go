package presets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/conductor/internal/pipeline"
)

func TestNames(t *testing.T) {
	names := Names()
	assert.Equal(t, []string{"article", "triage"}, names)
}

func TestLoad_EveryPresetValidates(t *testing.T) {
	for _, name := range Names() {
		def, err := Load(name)
		require.NoError(t, err, "preset %s must parse and validate", name)
		assert.Equal(t, name, def.Name)
		assert.NotEmpty(t, def.Phases)
	}
}

func TestLoad_Article(t *testing.T) {
	def, err := Load("article")
	require.NoError(t, err)

	require.Len(t, def.Phases, 3)
	assert.Equal(t, pipeline.Parallel, def.Phases[1].EffectiveParallelism())
	assert.Equal(t, pipeline.FailSkip, def.Phases[1].EffectiveFailurePolicy())

	draft := def.Phases[2]
	require.NotNil(t, draft.Review)
	assert.Equal(t, []string{"article"}, draft.Review.EditableFields)
	assert.Equal(t, "article", draft.OutputBlock)

	drafter, ok := def.AgentByID("drafter")
	require.True(t, ok)
	assert.Equal(t, "static.drafter-persona", drafter.SystemPromptKey)
	assert.InDelta(t, 0.7, drafter.Generation.Temperature, 0.001)
}

func TestLoad_Unknown(t *testing.T) {
	_, err := Load("nope")
	require.Error(t, err)
}
