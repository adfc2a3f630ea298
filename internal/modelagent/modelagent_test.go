package modelagent

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/conductor/internal/backend"
)

func TestEchoAgent_HandleInvoke(t *testing.T) {
	ag := NewEchoAgent()

	resp, err := ag.HandleInvoke(context.Background(), backend.Request{
		SystemPrompt: "You are terse.",
		UserPrompt:   "hello there",
		API:          backend.APIConfig{Model: "test-model"},
	})
	require.NoError(t, err)
	assert.Equal(t, "echo: hello there", resp.Content)
	assert.Equal(t, "test-model", resp.ModelID)
	assert.Greater(t, resp.PromptTokens, 0)
	assert.Greater(t, resp.ResponseTokens, 0)
}

func TestEchoAgent_ModelIDFallsBackToStubName(t *testing.T) {
	ag := NewEchoAgent()
	resp, err := ag.HandleInvoke(context.Background(), backend.Request{UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "stub/echo", resp.ModelID)
}

func TestEchoAgent_OverHTTP(t *testing.T) {
	ag := NewEchoAgent()
	srv := httptest.NewServer(ag.Handler())
	defer srv.Close()

	client := backend.NewHTTPBackend(backend.WithTimeout(time.Second))
	resp, err := client.Invoke(context.Background(), backend.Request{
		UserPrompt: "over the wire",
		API:        backend.APIConfig{Endpoint: srv.URL, Model: "m"},
	})
	require.NoError(t, err)
	assert.Equal(t, "echo: over the wire", resp.Content)
}

func TestScriptedAgent_RepliesAndFailures(t *testing.T) {
	ag := NewScriptedAgent("writer")
	ag.Reply("known prompt", "scripted answer")
	ag.Fail("bad prompt", backend.ClassUnavailable, "model offline")

	resp, err := ag.HandleInvoke(context.Background(), backend.Request{UserPrompt: "known prompt"})
	require.NoError(t, err)
	assert.Equal(t, "scripted answer", resp.Content)

	_, err = ag.HandleInvoke(context.Background(), backend.Request{UserPrompt: "bad prompt"})
	require.Error(t, err)
	assert.Equal(t, backend.ClassUnavailable, backend.ClassOf(err))

	// Unscripted prompts fall through to echo.
	resp, err = ag.HandleInvoke(context.Background(), backend.Request{UserPrompt: "anything else"})
	require.NoError(t, err)
	assert.Equal(t, "echo: anything else", resp.Content)
}

func TestScriptedAgent_FailureClassSurvivesHTTP(t *testing.T) {
	ag := NewScriptedAgent("writer")
	ag.Fail("doomed", backend.ClassAuth, "bad credentials")

	srv := httptest.NewServer(ag.Handler())
	defer srv.Close()

	client := backend.NewHTTPBackend(backend.WithTimeout(time.Second))
	_, err := client.Invoke(context.Background(), backend.Request{
		UserPrompt: "doomed",
		API:        backend.APIConfig{Endpoint: srv.URL},
	})
	require.Error(t, err)
	assert.Equal(t, backend.ClassAuth, backend.ClassOf(err))
}

func TestReverseAgent(t *testing.T) {
	ag := NewReverseAgent()
	resp, err := ag.HandleInvoke(context.Background(), backend.Request{UserPrompt: "one two three"})
	require.NoError(t, err)
	assert.Equal(t, "three two one", resp.Content)
}

func TestLoremAgent_NumbersDrafts(t *testing.T) {
	ag := NewLoremAgent()

	first, err := ag.HandleInvoke(context.Background(), backend.Request{UserPrompt: "topic"})
	require.NoError(t, err)
	second, err := ag.HandleInvoke(context.Background(), backend.Request{UserPrompt: "topic"})
	require.NoError(t, err)

	assert.Contains(t, first.Content, "Draft 1")
	assert.Contains(t, second.Content, "Draft 2")
	assert.NotEqual(t, first.Content, second.Content)
}

func TestRegistry_Spawn(t *testing.T) {
	r := NewRegistry()

	ag, err := r.Spawn("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", ag.Name())

	_, err = r.Spawn("unknown")
	require.Error(t, err)
}

func TestRegistry_RegisterCustomFactory(t *testing.T) {
	r := NewRegistry()
	r.Register("custom", func() Agent {
		return NewBaseAgent("custom", func(_ context.Context, _ backend.Request) (string, error) {
			return "fixed", nil
		})
	})

	ag, err := r.Spawn("custom")
	require.NoError(t, err)
	assert.Equal(t, "custom", ag.Name())
}

func TestRegistry_StopAllWithoutStart(t *testing.T) {
	r := NewRegistry()
	_, err := r.Spawn("echo")
	require.NoError(t, err)
	require.NoError(t, r.StopAll(context.Background()))
}
