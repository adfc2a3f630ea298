// Package backend defines the single model-call contract the coordinator
// dispatches against, plus a JSON-RPC/HTTP client and server implementing it.
// The coordinator never talks to a model provider directly; every call goes
// through a Backend supplied by the host.
package backend

import "context"

// Backend issues one model call and returns its response or a typed failure.
// Implementations must honor ctx cancellation and classify failures with
// CallError so the dispatcher can make retry decisions.
type Backend interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// Func adapts a plain function to the Backend interface.
type Func func(ctx context.Context, req Request) (*Response, error)

// Invoke calls f.
func (f Func) Invoke(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
