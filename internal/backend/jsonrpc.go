package backend

import "encoding/json"

// JSONRPCVersion is the JSON-RPC protocol version.
const JSONRPCVersion = "2.0"

// JSONRPCRequest is a JSON-RPC 2.0 request envelope.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse is a JSON-RPC 2.0 response envelope.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError is a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Standard JSON-RPC error codes.
const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603

	// Model-backend error codes. These carry the failure class across the
	// wire so the client can rebuild a CallError without string matching.
	ErrCodeAuth        = -32010
	ErrCodeUnavailable = -32011
	ErrCodeTimeout     = -32012
)

// MethodInvoke is the single backend method.
const MethodInvoke = "model/invoke"

// classFromCode maps a JSON-RPC error code to an ErrorClass.
func classFromCode(code int) ErrorClass {
	switch code {
	case ErrCodeAuth:
		return ClassAuth
	case ErrCodeUnavailable:
		return ClassUnavailable
	case ErrCodeTimeout:
		return ClassTimeout
	case ErrCodeInvalidParams, ErrCodeInvalidRequest, ErrCodeParse:
		return ClassMalformed
	default:
		return ClassUnknown
	}
}

// codeFromClass maps an ErrorClass to the JSON-RPC error code used on the wire.
func codeFromClass(class ErrorClass) int {
	switch class {
	case ClassAuth:
		return ErrCodeAuth
	case ClassUnavailable:
		return ErrCodeUnavailable
	case ClassTimeout:
		return ErrCodeTimeout
	case ClassMalformed:
		return ErrCodeInvalidParams
	default:
		return ErrCodeInternal
	}
}
