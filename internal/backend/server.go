package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Handler processes incoming model/invoke requests for an agent backend.
type Handler interface {
	// HandleInvoke runs one model call and returns the response.
	HandleInvoke(ctx context.Context, req Request) (*Response, error)
}

// Server is the HTTP server that exposes a Handler as a model backend.
// It exists for stub agents and tests; production backends live outside
// this repository.
type Server struct {
	name    string
	handler Handler
	http    *http.Server
}

// NewServer creates a backend server for the given handler.
func NewServer(name string, handler Handler) *Server {
	return &Server{
		name:    name,
		handler: handler,
	}
}

// Start creates an HTTP server, registers routes, and begins serving.
// It returns immediately after starting the server in a background goroutine.
func (s *Server) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /", s.handleJSONRPC)

	s.http = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go s.http.ListenAndServe()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// ServeMux returns an http.Handler for embedding the server in a test
// fixture without binding a port.
func (s *Server) ServeMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /", s.handleJSONRPC)
	return mux
}

// handleJSONRPC processes incoming JSON-RPC 2.0 requests.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONRPCError(w, nil, ErrCodeParse, "Parse error: "+err.Error())
		return
	}

	if req.Method != MethodInvoke {
		writeJSONRPCError(w, req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
		return
	}

	var params Request
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeJSONRPCError(w, req.ID, ErrCodeInvalidParams, "Invalid params: "+err.Error())
		return
	}

	result, err := s.handler.HandleInvoke(r.Context(), params)
	if err != nil {
		var ce *CallError
		if errors.As(err, &ce) {
			writeJSONRPCError(w, req.ID, codeFromClass(ce.Class), ce.Message)
			return
		}
		writeJSONRPCError(w, req.ID, ErrCodeInternal, err.Error())
		return
	}

	writeJSONRPCResult(w, req.ID, result)
}

// writeJSONRPCResult marshals result and writes a success envelope.
func writeJSONRPCResult(w http.ResponseWriter, id any, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		writeJSONRPCError(w, id, ErrCodeInternal, "marshal result: "+err.Error())
		return
	}
	resp := JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  raw,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSONRPCError writes an error envelope.
func writeJSONRPCError(w http.ResponseWriter, id any, code int, message string) {
	resp := JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
	}
	_ = json.NewEncoder(w).Encode(resp)
}
