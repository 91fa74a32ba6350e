package mcp

import (
	"context"
	"encoding/json"

	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/tools"
)

// protocolVersion is advertised in initialize's result, per the MCP
// handshake; bumping it is a deliberate wire-compat decision, not
// something a tool author touches.
const protocolVersion = "2025-06-18"

// Handler is the shared JSON-RPC 2.0 engine: every transport (HTTP, WS,
// SSE, stdio) feeds it Requests and writes back the Responses it
// returns, with the caller's kernel.AuthContext supplied out of band
// (by C8) rather than as a JSON-RPC parameter.
type Handler struct {
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
}

func NewHandler(registry *tools.Registry, dispatcher *tools.Dispatcher) *Handler {
	return &Handler{registry: registry, dispatcher: dispatcher}
}

// toolCallParams is tools/call's params per spec §4.7: {name,
// arguments}. provider_id is this repo's extension carrying which
// upstream connection a provider-backed tool should use — MCP's own
// spec has no notion of "which of several connected accounts," so it
// must travel in params somehow, and the tool name doesn't encode it.
type toolCallParams struct {
	Name       string          `json:"name"`
	Arguments  json.RawMessage `json:"arguments"`
	ProviderID string          `json:"provider_id"`
}

// Handle processes one Request and returns its Response. For a
// notification (IsNotification() true), the caller must discard the
// return value rather than write it back — notifications never get a
// reply, per spec §4.7.
func (h *Handler) Handle(ctx context.Context, auth kernel.AuthContext, req Request) Response {
	switch req.Method {
	case "initialize":
		return h.initialize(req)
	case "ping":
		return resultResponse(req.ID, map[string]any{})
	case "tools/list":
		return h.toolsList(req)
	case "tools/call":
		return h.toolsCall(ctx, auth, req)
	default:
		return errorResponse(req.ID, CodeMethodNotFound, "method not found: "+req.Method, nil)
	}
}

func (h *Handler) initialize(req Request) Response {
	return resultResponse(req.ID, map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{"tools": map[string]any{}},
		"serverInfo":      map[string]any{"name": "pierre", "version": protocolVersion},
	})
}

func (h *Handler) toolsList(req Request) Response {
	descriptors := h.registry.List()
	out := make([]map[string]any, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, map[string]any{
			"name":        d.Name.String(),
			"description": d.Description,
			"inputSchema": d.InputSchema,
		})
	}
	return resultResponse(req.ID, map[string]any{"tools": out})
}

func (h *Handler) toolsCall(ctx context.Context, auth kernel.AuthContext, req Request) Response {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid tools/call params", nil)
	}
	if params.Name == "" {
		return errorResponse(req.ID, CodeInvalidParams, "tools/call requires a name", nil)
	}

	call := tools.Call{
		Auth:       auth,
		ToolName:   kernel.NewToolName(params.Name),
		ProviderID: kernel.NewProviderID(params.ProviderID),
		Args:       params.Arguments,
	}
	result, err := h.dispatcher.Dispatch(ctx, call)
	if err != nil {
		return toRPCError(req.ID, err)
	}
	return resultResponse(req.ID, map[string]any{
		"content": []map[string]any{{"type": "json", "json": result.Data}},
	})
}
