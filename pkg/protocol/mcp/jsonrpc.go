// Package mcp implements the Model Context Protocol (JSON-RPC 2.0)
// adapter (C7): one request handler shared by the HTTP, WebSocket, SSE,
// and stdio transports, translating wire frames to tools.Dispatcher
// calls and back.
package mcp

import (
	"encoding/json"

	"github.com/pierre-platform/pierre/pkg/errx"
)

// Standard JSON-RPC 2.0 protocol error codes (spec §4.7).
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Application error codes occupy their own space outside the
// reserved JSON-RPC protocol range, one per errx.Type dispatch errors
// can carry.
const (
	CodeToolNotFound         = 1000
	CodeToolDisabled         = 1001
	CodeInvalidArguments     = 1002
	CodeRateLimited          = 1003
	CodeProviderAuthRequired = 1004
	CodeProviderUnavailable  = 1005
	CodeUnauthorized         = 1006
	CodeForbidden            = 1007
	CodeConflict             = 1008
	CodeInternal             = 1009
)

// Request is a single JSON-RPC 2.0 call. A nil ID marks a notification:
// it must never receive a Response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func (r Request) IsNotification() bool { return len(r.ID) == 0 }

// Response is the JSON-RPC 2.0 reply; exactly one of Result/Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func errorResponse(id json.RawMessage, code int, message string, data any) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message, Data: data}}
}

func resultResponse(id json.RawMessage, result any) Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, CodeInternalError, "failed to encode result", nil)
	}
	return Response{JSONRPC: "2.0", ID: id, Result: raw}
}

// dispatchErrorCode maps an errx.Type to this package's application
// error-code space, per spec §7's "propagation: structured values,
// only the top adapter translates" rule.
func dispatchErrorCode(t errx.Type) int {
	switch t {
	case errx.TypeNotFound:
		return CodeToolNotFound
	case errx.TypeAuthorization:
		return CodeForbidden
	case errx.TypeAuthentication:
		return CodeUnauthorized
	case errx.TypeValidation:
		return CodeInvalidArguments
	case errx.TypeRateLimited:
		return CodeRateLimited
	case errx.TypeProviderAuthRequired:
		return CodeProviderAuthRequired
	case errx.TypeProviderUnavailable, errx.TypeProviderRateLimited:
		return CodeProviderUnavailable
	case errx.TypeConflict:
		return CodeConflict
	default:
		return CodeInternal
	}
}

// toRPCError translates any error into a Response error, preferring the
// structured *errx.Error shape when available (its Details survive into
// the JSON-RPC "data" field) and falling back to an opaque internal
// error otherwise — the wire boundary never leaks an unstructured error
// string.
func toRPCError(id json.RawMessage, err error) Response {
	var asErr *errx.Error
	if errx.As(err, &asErr) {
		return errorResponse(id, dispatchErrorCode(asErr.Type), asErr.Message, map[string]any{
			"kind":    string(asErr.Type),
			"code":    asErr.Code,
			"details": asErr.Details,
		})
	}
	return errorResponse(id, CodeInternalError, "internal error", nil)
}
