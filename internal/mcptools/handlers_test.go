package mcptools

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/conductor/internal/backend"
	"github.com/dusk-indust/conductor/internal/dispatch"
	"github.com/dusk-indust/conductor/internal/orchestrator"
	"github.com/dusk-indust/conductor/internal/pipeline"
)

// suspendedRun starts a one-phase reviewed run and blocks it on the gate.
func suspendedRun(t *testing.T) (*RunService, *orchestrator.Runner, *sync.WaitGroup) {
	t.Helper()

	be := backend.Func(func(_ context.Context, req backend.Request) (*backend.Response, error) {
		return &backend.Response{Content: "draft of " + req.UserPrompt}, nil
	})
	d := dispatch.New(be, dispatch.Config{MaxConcurrent: 2, CallTimeout: time.Second})

	def := &pipeline.Definition{
		Name: "review-me",
		Agents: []pipeline.AgentConfig{
			{ID: "writer", API: backend.APIConfig{Endpoint: "http://local", Model: "m"}},
		},
		Phases: []pipeline.Phase{
			{
				ID:          "draft",
				OutputBlock: "draft",
				Review:      &pipeline.ReviewPolicy{Prompt: "check it", CanSkip: true},
				Actions: []pipeline.Action{
					{ID: "write", AgentID: "writer", Prompt: "the topic"},
				},
			},
		},
	}

	r, err := orchestrator.NewRunner(def, d)
	require.NoError(t, err)

	svc := NewRunService()
	svc.Register(r)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = r.Run(context.Background())
	}()
	require.Eventually(t, func() bool { return r.PendingReview() != nil }, time.Second, 5*time.Millisecond)

	return svc, r, &wg
}

func TestRunService_RunStatus_Suspended(t *testing.T) {
	svc, r, wg := suspendedRun(t)
	defer func() { r.Abort(); wg.Wait() }()

	_, out, err := svc.RunStatus(context.Background(), nil, RunStatusInput{RunID: r.ID()})
	require.NoError(t, err)

	assert.Equal(t, r.ID(), out.RunID)
	assert.Equal(t, "review-me", out.Pipeline)
	assert.Equal(t, "running", out.Status)
	assert.Equal(t, "awaiting-review", out.PhaseStatus["draft"])
	assert.Equal(t, "draft", out.PendingPhase)
	assert.Equal(t, "check it", out.PendingPrompt)
	assert.Equal(t, "draft of the topic", out.PendingOutput)
	assert.True(t, out.CanSkip)
}

func TestRunService_RunStatus_UnknownRun(t *testing.T) {
	svc := NewRunService()
	_, _, err := svc.RunStatus(context.Background(), nil, RunStatusInput{RunID: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown run")
}

func TestRunService_SubmitGavel_ResumesRun(t *testing.T) {
	svc, r, wg := suspendedRun(t)

	_, out, err := svc.SubmitGavel(context.Background(), nil, SubmitGavelInput{
		RunID:    r.ID(),
		Decision: "approved",
	})
	require.NoError(t, err)
	assert.True(t, out.Accepted)

	wg.Wait()
	assert.Equal(t, orchestrator.RunCompleted, r.Snapshot().Status)
}

func TestRunService_SubmitGavel_IllegalDecisionKeepsRunSuspended(t *testing.T) {
	svc, r, wg := suspendedRun(t)
	defer func() { r.Abort(); wg.Wait() }()

	_, out, err := svc.SubmitGavel(context.Background(), nil, SubmitGavelInput{
		RunID:    r.ID(),
		Decision: "maybe",
	})
	require.NoError(t, err, "an illegal decision is reported in-band, not as a protocol error")
	assert.False(t, out.Accepted)
	assert.NotEmpty(t, out.Message)
	assert.NotNil(t, r.PendingReview(), "run must stay suspended")
}

func TestRunService_SubmitGavel_StaleSeq(t *testing.T) {
	svc, r, wg := suspendedRun(t)
	defer func() { r.Abort(); wg.Wait() }()

	_, out, err := svc.SubmitGavel(context.Background(), nil, SubmitGavelInput{
		RunID:    r.ID(),
		Decision: "approved",
		Seq:      r.Seq() + 100,
	})
	require.NoError(t, err)
	assert.False(t, out.Accepted)
	assert.Contains(t, out.Message, "stale")
}

func TestRunService_ReadOutput_And_TailThread(t *testing.T) {
	svc, r, wg := suspendedRun(t)

	_, _, err := svc.SubmitGavel(context.Background(), nil, SubmitGavelInput{
		RunID:       r.ID(),
		Decision:    "approved",
		FinalOutput: "final draft",
	})
	require.NoError(t, err)
	wg.Wait()

	_, out, err := svc.ReadOutput(context.Background(), nil, ReadOutputInput{RunID: r.ID(), BlockID: "draft"})
	require.NoError(t, err)
	assert.Equal(t, "final draft", out.Content)
	assert.Equal(t, 1, out.Version)

	_, _, err = svc.ReadOutput(context.Background(), nil, ReadOutputInput{RunID: r.ID(), BlockID: "missing"})
	require.Error(t, err)

	_, tail, err := svc.TailThread(context.Background(), nil, TailThreadInput{RunID: r.ID(), ThreadID: "phase:draft"})
	require.NoError(t, err)
	require.Len(t, tail.Entries, 2)
	assert.Equal(t, "action-output", tail.Entries[0].Type)
	assert.Equal(t, "review-decision", tail.Entries[1].Type)
}

func TestRunService_AbortRun(t *testing.T) {
	svc, r, wg := suspendedRun(t)

	_, out, err := svc.AbortRun(context.Background(), nil, AbortRunInput{RunID: r.ID()})
	require.NoError(t, err)
	assert.Equal(t, r.ID(), out.RunID)

	wg.Wait()
	assert.Equal(t, orchestrator.RunAborted, r.Snapshot().Status)
}

func TestRunService_ListRuns(t *testing.T) {
	svc, r, wg := suspendedRun(t)
	defer func() { r.Abort(); wg.Wait() }()

	_, out, err := svc.ListRuns(context.Background(), nil, ListRunsInput{})
	require.NoError(t, err)
	require.Len(t, out.Runs, 1)
	assert.Equal(t, r.ID(), out.Runs[0].RunID)
	assert.True(t, out.Runs[0].Suspended)
}

func TestRunControlServer_ToolsList(t *testing.T) {
	server := NewRunControlServer(NewRunService())

	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go server.Run(ctx, serverTransport)

	mcpClient := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "dev"}, nil)
	session, err := mcpClient.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)

	toolNames := make([]string, len(tools.Tools))
	for i, tool := range tools.Tools {
		toolNames[i] = tool.Name
	}

	assert.Contains(t, toolNames, "run_status")
	assert.Contains(t, toolNames, "submit_gavel")
	assert.Contains(t, toolNames, "read_output")
	assert.Contains(t, toolNames, "tail_thread")
	assert.Contains(t, toolNames, "abort_run")
	assert.Contains(t, toolNames, "list_runs")
	assert.Len(t, tools.Tools, 6)
}
