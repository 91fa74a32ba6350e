package mcp

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pierre-platform/pierre/pkg/kernel"
)

// authFromFiber reads the kernel.AuthContext that the tenant/auth
// middleware (pkg/iam/authmw) stashes in fiber.Ctx.Locals under "auth".
func authFromFiber(c *fiber.Ctx) (kernel.AuthContext, bool) {
	ac, ok := c.Locals("auth").(*kernel.AuthContext)
	if !ok || ac == nil {
		return kernel.AuthContext{}, false
	}
	return *ac, true
}

// HTTPHandler serves MCP over one-request-per-POST HTTP, per spec
// §4.7's HTTP transport.
func (h *Handler) HTTPHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth, ok := authFromFiber(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing auth context"})
		}

		var req Request
		if err := c.BodyParser(&req); err != nil {
			resp := errorResponse(nil, CodeParseError, "invalid JSON-RPC request body", nil)
			return c.Status(fiber.StatusOK).JSON(resp)
		}
		if req.JSONRPC != "2.0" || req.Method == "" {
			resp := errorResponse(req.ID, CodeInvalidRequest, "not a valid JSON-RPC 2.0 request", nil)
			return c.Status(fiber.StatusOK).JSON(resp)
		}

		resp := h.Handle(c.Context(), auth, req)
		if req.IsNotification() {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Status(fiber.StatusOK).JSON(resp)
	}
}

// RegisterHTTPRoute mounts the HTTP transport at the given path (the
// composition root decides whether that's behind C8's auth middleware).
func (h *Handler) RegisterHTTPRoute(app fiber.Router, path string) {
	app.Post(path, h.HTTPHandler())
}
