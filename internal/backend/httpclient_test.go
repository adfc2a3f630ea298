package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcHandler is a convenience that decodes a JSONRPCRequest and writes back a JSONRPCResponse.
func rpcHandler(t *testing.T, fn func(req JSONRPCRequest) JSONRPCResponse) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req JSONRPCRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		require.NoError(t, err, "server should be able to decode JSON-RPC request")

		assert.Equal(t, JSONRPCVersion, req.JSONRPC)

		resp := fn(req)
		w.Header().Set("Content-Type", "application/json")
		err = json.NewEncoder(w).Encode(resp)
		require.NoError(t, err)
	}
}

func TestInvoke_HappyPath(t *testing.T) {
	ts := httptest.NewServer(rpcHandler(t, func(req JSONRPCRequest) JSONRPCResponse {
		assert.Equal(t, MethodInvoke, req.Method)

		var params Request
		require.NoError(t, json.Unmarshal(req.Params, &params))
		assert.Equal(t, "You are the outline writer.", params.SystemPrompt)
		assert.Equal(t, "Write an outline.", params.UserPrompt)

		result, err := json.Marshal(Response{
			Content:        "I. Opening\nII. Middle\nIII. End",
			ModelID:        "stub-1",
			PromptTokens:   12,
			ResponseTokens: 9,
		})
		require.NoError(t, err)

		return JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: req.ID, Result: result}
	}))
	defer ts.Close()

	client := NewHTTPBackend()
	resp, err := client.Invoke(context.Background(), Request{
		SystemPrompt: "You are the outline writer.",
		UserPrompt:   "Write an outline.",
		API:          APIConfig{Endpoint: ts.URL},
	})
	require.NoError(t, err)
	assert.Equal(t, "I. Opening\nII. Middle\nIII. End", resp.Content)
	assert.Equal(t, "stub-1", resp.ModelID)
	assert.Equal(t, 12, resp.PromptTokens)
}

func TestInvoke_SendsAuthHeader(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		rpcHandler(t, func(req JSONRPCRequest) JSONRPCResponse {
			result, _ := json.Marshal(Response{Content: "ok"})
			return JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: req.ID, Result: result}
		})(w, r)
	}))
	defer ts.Close()

	client := NewHTTPBackend()
	_, err := client.Invoke(context.Background(), Request{
		UserPrompt: "hi",
		API:        APIConfig{Endpoint: ts.URL, AuthToken: "sekrit"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer sekrit", gotAuth)
}

func TestInvoke_WireErrorClass(t *testing.T) {
	tests := []struct {
		name string
		code int
		want ErrorClass
	}{
		{"auth", ErrCodeAuth, ClassAuth},
		{"unavailable", ErrCodeUnavailable, ClassUnavailable},
		{"timeout", ErrCodeTimeout, ClassTimeout},
		{"invalid params", ErrCodeInvalidParams, ClassMalformed},
		{"internal", ErrCodeInternal, ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(rpcHandler(t, func(req JSONRPCRequest) JSONRPCResponse {
				return JSONRPCResponse{
					JSONRPC: JSONRPCVersion,
					ID:      req.ID,
					Error:   &JSONRPCError{Code: tt.code, Message: "nope"},
				}
			}))
			defer ts.Close()

			client := NewHTTPBackend()
			_, err := client.Invoke(context.Background(), Request{
				UserPrompt: "hi",
				API:        APIConfig{Endpoint: ts.URL},
			})
			require.Error(t, err)

			var ce *CallError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.want, ce.Class)
		})
	}
}

func TestInvoke_HTTPAuthStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "who are you", http.StatusUnauthorized)
	}))
	defer ts.Close()

	client := NewHTTPBackend()
	_, err := client.Invoke(context.Background(), Request{
		UserPrompt: "hi",
		API:        APIConfig{Endpoint: ts.URL},
	})
	require.Error(t, err)
	assert.Equal(t, ClassAuth, ClassOf(err))
	assert.False(t, Retryable(err))
}

func TestInvoke_MissingEndpoint(t *testing.T) {
	client := NewHTTPBackend()
	_, err := client.Invoke(context.Background(), Request{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, ClassMalformed, ClassOf(err))
}

func TestServer_RoundTrip(t *testing.T) {
	handler := handlerFunc(func(_ context.Context, req Request) (*Response, error) {
		return &Response{Content: "echo: " + req.UserPrompt, ModelID: "test"}, nil
	})

	srv := NewServer("test-agent", handler)
	ts := httptest.NewServer(srv.ServeMux())
	defer ts.Close()

	client := NewHTTPBackend()
	resp, err := client.Invoke(context.Background(), Request{
		UserPrompt: "ping",
		API:        APIConfig{Endpoint: ts.URL},
	})
	require.NoError(t, err)
	assert.Equal(t, "echo: ping", resp.Content)
}

func TestServer_CallErrorOnWire(t *testing.T) {
	handler := handlerFunc(func(_ context.Context, _ Request) (*Response, error) {
		return nil, NewCallError(ClassUnavailable, "model retired", nil)
	})

	srv := NewServer("test-agent", handler)
	ts := httptest.NewServer(srv.ServeMux())
	defer ts.Close()

	client := NewHTTPBackend()
	_, err := client.Invoke(context.Background(), Request{
		UserPrompt: "ping",
		API:        APIConfig{Endpoint: ts.URL},
	})
	require.Error(t, err)
	assert.Equal(t, ClassUnavailable, ClassOf(err))
}

// handlerFunc adapts a function to the Handler interface for tests.
type handlerFunc func(ctx context.Context, req Request) (*Response, error)

func (f handlerFunc) HandleInvoke(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
