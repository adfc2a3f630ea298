package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Compile-time interface check.
var _ Backend = (*HTTPBackend)(nil)

// HTTPBackend implements Backend over HTTP/JSON-RPC. The target endpoint
// comes from each request's APIConfig, so one client serves every agent.
type HTTPBackend struct {
	http      *http.Client
	requestID atomic.Int64
}

// ClientOption configures an HTTPBackend.
type ClientOption func(*HTTPBackend)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(b *HTTPBackend) {
		b.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(b *HTTPBackend) {
		b.http = hc
	}
}

// NewHTTPBackend creates a model-backend client.
func NewHTTPBackend(opts ...ClientOption) *HTTPBackend {
	b := &HTTPBackend{
		http: &http.Client{
			Timeout: 150 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Invoke sends a model/invoke JSON-RPC call to the endpoint named in
// req.API. Wire-level error codes are rebuilt into CallErrors so callers
// classify the failure without inspecting message text.
func (b *HTTPBackend) Invoke(ctx context.Context, req Request) (*Response, error) {
	if req.API.Endpoint == "" {
		return nil, NewCallError(ClassMalformed, "request has no endpoint", nil)
	}

	paramsJSON, err := json.Marshal(req)
	if err != nil {
		return nil, NewCallError(ClassMalformed, "marshal params", err)
	}

	rpcReq := JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      b.nextID(),
		Method:  MethodInvoke,
		Params:  paramsJSON,
	}

	body, err := json.Marshal(rpcReq)
	if err != nil {
		return nil, NewCallError(ClassMalformed, "marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.API.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, NewCallError(ClassMalformed, "create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.API.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.API.AuthToken)
	}

	resp, err := b.http.Do(httpReq)
	if err != nil {
		return nil, NewCallError(ClassOf(err), "model/invoke", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewCallError(ClassOf(err), "read response", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, NewCallError(ClassAuth, fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	case http.StatusGone, http.StatusNotImplemented:
		return nil, NewCallError(ClassUnavailable, fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	default:
		return nil, NewCallError(ClassUnknown, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, respBody), nil)
	}

	var rpcResp JSONRPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, NewCallError(ClassUnknown, "decode response", err)
	}

	if rpcResp.Error != nil {
		return nil, NewCallError(classFromCode(rpcResp.Error.Code), rpcResp.Error.Message, nil)
	}

	var result Response
	if err := json.Unmarshal(rpcResp.Result, &result); err != nil {
		return nil, NewCallError(ClassUnknown, "decode result", err)
	}
	return &result, nil
}

// nextID returns a monotonically increasing request ID for JSON-RPC calls.
func (b *HTTPBackend) nextID() int64 {
	return b.requestID.Add(1)
}
