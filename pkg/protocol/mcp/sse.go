package mcp

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/pierre-platform/pierre/pkg/logx"
)

// SSEHandler serves MCP over server-push SSE: each POST body (a single
// JSON-RPC request or an array of them) gets its own text/event-stream
// response carrying one `data:` frame per response, matched to its
// request by the id in the JSON-RPC envelope. Notifications get no frame.
//
// Fiber's streaming body writer plays the role the teacher's codebase
// never needed; this is new wiring grounded directly on net/http's SSE
// idiom (text/event-stream, flush-per-frame), translated into fiber's
// SetBodyStreamWriter.
func (h *Handler) SSEHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth, ok := authFromFiber(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing auth context"})
		}

		var requests []Request
		if err := c.BodyParser(&requests); err != nil {
			var single Request
			if err := c.BodyParser(&single); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON-RPC request body"})
			}
			requests = []Request{single}
		}

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")

		fctx := c.Context()
		fctx.SetBodyStreamWriter(func(w *bufio.Writer) {
			for _, req := range requests {
				if req.JSONRPC != "2.0" || req.Method == "" {
					writeSSEFrame(w, errorResponse(req.ID, CodeInvalidRequest, "not a valid JSON-RPC 2.0 request", nil))
					continue
				}
				resp := h.Handle(fctx, auth, req)
				if req.IsNotification() {
					continue
				}
				if err := writeSSEFrame(w, resp); err != nil {
					logx.WithError(err).Warn("mcp: sse write failed")
					return
				}
			}
		})
		return nil
	}
}

func writeSSEFrame(w *bufio.Writer, resp Response) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", raw); err != nil {
		return err
	}
	return w.Flush()
}
