// Package modelagent provides stub model backends for local development and
// tests. Each agent is a small HTTP server speaking the model/invoke
// protocol; a pipeline pointed at a stub fleet runs end to end with no
// model provider in the loop.
package modelagent

import (
	"context"
	"net/http"

	"github.com/dusk-indust/conductor/internal/backend"
)

// Compile-time interface checks.
var (
	_ Agent           = (*BaseAgent)(nil)
	_ backend.Handler = (*BaseAgent)(nil)
)

// ProcessFunc is the function a stub implements to answer one call. It
// returns the response content for the given request.
type ProcessFunc func(ctx context.Context, req backend.Request) (string, error)

// Agent is one runnable stub backend.
type Agent interface {
	// Name identifies the stub, e.g. "echo".
	Name() string

	// Addr returns the listen address after Start, "" before.
	Addr() string

	Start(ctx context.Context, addr string) error
	Stop(ctx context.Context) error
}

// BaseAgent provides the shared boilerplate: it wraps a ProcessFunc in a
// backend server and fills in the response envelope. Stubs are constructed
// through NewBaseAgent with their ProcessFunc.
type BaseAgent struct {
	name    string
	addr    string
	process ProcessFunc
	server  *backend.Server
}

// NewBaseAgent creates an agent with the given name and process function.
func NewBaseAgent(name string, process ProcessFunc) *BaseAgent {
	b := &BaseAgent{
		name:    name,
		process: process,
	}
	b.server = backend.NewServer(name, b)
	return b
}

// Name returns the stub's name.
func (b *BaseAgent) Name() string { return b.name }

// Addr returns the address passed to Start.
func (b *BaseAgent) Addr() string { return b.addr }

// HandleInvoke runs the stub's process function and wraps the content in a
// response envelope with the estimated token counts.
func (b *BaseAgent) HandleInvoke(ctx context.Context, req backend.Request) (*backend.Response, error) {
	content, err := b.process(ctx, req)
	if err != nil {
		return nil, err
	}

	model := req.API.Model
	if model == "" {
		model = "stub/" + b.name
	}
	return &backend.Response{
		Content:        content,
		ModelID:        model,
		PromptTokens:   (len(req.SystemPrompt) + len(req.UserPrompt) + 3) / 4,
		ResponseTokens: (len(content) + 3) / 4,
	}, nil
}

// Handler returns the agent's HTTP handler for embedding in test fixtures
// without binding a port.
func (b *BaseAgent) Handler() http.Handler {
	return b.server.ServeMux()
}

// Start launches the agent's HTTP server on the given address.
func (b *BaseAgent) Start(ctx context.Context, addr string) error {
	b.addr = addr
	return b.server.Start(ctx, addr)
}

// Stop gracefully shuts down the agent.
func (b *BaseAgent) Stop(ctx context.Context) error {
	return b.server.Stop(ctx)
}
