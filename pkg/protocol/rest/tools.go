package rest

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/tools"
)

// ToolsHandler exposes a curated REST surface over the same
// tools.Dispatcher MCP and A2A use: ordinary HTTP resources for the
// dashboard, not a JSON-RPC or task envelope. Auth/admin endpoints
// bypass the dispatcher entirely (per spec §4.7) and live elsewhere
// (pkg/oauth2as, a future admin package) — this handler only ever
// touches tool dispatch.
type ToolsHandler struct {
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
}

func NewToolsHandler(registry *tools.Registry, dispatcher *tools.Dispatcher) *ToolsHandler {
	return &ToolsHandler{registry: registry, dispatcher: dispatcher}
}

func authFromFiberREST(c *fiber.Ctx) (kernel.AuthContext, bool) {
	ac, ok := c.Locals("auth").(*kernel.AuthContext)
	if !ok || ac == nil {
		return kernel.AuthContext{}, false
	}
	return *ac, true
}

// List renders the catalog as plain REST resources: GET /tools.
func (h *ToolsHandler) List() fiber.Handler {
	return func(c *fiber.Ctx) error {
		descriptors := h.registry.List()
		out := make([]fiber.Map, 0, len(descriptors))
		for _, d := range descriptors {
			out = append(out, fiber.Map{
				"name":        d.Name.String(),
				"description": d.Description,
				"category":    string(d.Category),
				"min_plan":    string(d.MinPlan),
				"inputSchema": d.InputSchema,
			})
		}
		return c.JSON(fiber.Map{"tools": out})
	}
}

// Invoke handles POST /tools/:name — the REST analogue of MCP's
// tools/call and A2A's task invocation, same dispatch underneath.
func (h *ToolsHandler) Invoke() fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth, ok := authFromFiberREST(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(envelope{Error: envelopeError{Code: "UNAUTHENTICATED", Message: "missing auth context"}})
		}

		var body struct {
			ProviderID string          `json:"provider_id"`
			Args       json.RawMessage `json:"args"`
		}
		if err := c.BodyParser(&body); err != nil && len(c.Body()) > 0 {
			return c.Status(fiber.StatusBadRequest).JSON(envelope{Error: envelopeError{Code: "INVALID_BODY", Message: "invalid request body"}})
		}

		call := tools.Call{
			Auth:       auth,
			ToolName:   kernel.NewToolName(c.Params("name")),
			ProviderID: kernel.NewProviderID(body.ProviderID),
			Args:       body.Args,
		}
		result, err := h.dispatcher.Dispatch(c.Context(), call)
		if err != nil {
			return writeError(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"tool": result.Tool.String(), "data": result.Data})
	}
}

// RegisterRoutes mounts the curated tool subset.
func (h *ToolsHandler) RegisterRoutes(app fiber.Router) {
	app.Get("/tools", h.List())
	app.Post("/tools/:name", h.Invoke())
}
