package mcp

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/logx"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// CheckOrigin is the composition root's job: Pierre's MCP clients
	// are native/desktop apps and server-to-server agents, not browser
	// pages, so there is no same-origin policy to enforce here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// AuthResolver recovers the caller's AuthContext for a raw net/http
// request — the WebSocket transport runs outside Fiber's routing (a
// net/http.Handler mountable via fiber's adaptor middleware), so it
// can't read C8's fiber.Ctx.Locals the way HTTPHandler does.
type AuthResolver func(r *http.Request) (kernel.AuthContext, bool)

// WSHandler serves one MCP session per WebSocket connection: every
// text frame is a JSON-RPC Request, handled serially on that
// connection (one client's own requests are ordered; distinct
// connections run fully concurrently).
func (h *Handler) WSHandler(resolveAuth AuthResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth, ok := resolveAuth(r)
		if !ok {
			http.Error(w, "missing auth context", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.WithError(err).Warn("mcp: websocket upgrade failed")
			return
		}
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
			return nil
		})

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var req Request
			if err := json.Unmarshal(raw, &req); err != nil {
				h.writeWS(conn, errorResponse(nil, CodeParseError, "invalid JSON-RPC frame", nil))
				continue
			}
			if req.JSONRPC != "2.0" || req.Method == "" {
				h.writeWS(conn, errorResponse(req.ID, CodeInvalidRequest, "not a valid JSON-RPC 2.0 request", nil))
				continue
			}

			resp := h.Handle(r.Context(), auth, req)
			if req.IsNotification() {
				continue
			}
			if err := h.writeWS(conn, resp); err != nil {
				return
			}
		}
	}
}

func (h *Handler) writeWS(conn *websocket.Conn, resp Response) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(resp)
}
