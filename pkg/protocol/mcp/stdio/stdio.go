// Package stdio bridges MCP's length-delimited stdio transport (for
// desktop clients that spawn the server as a subprocess) onto
// pkg/protocol/mcp's shared JSON-RPC handler. Meant to be driven by a
// thin cmd/pierre-stdio binary.
package stdio

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/logx"
	"github.com/pierre-platform/pierre/pkg/protocol/mcp"
)

// Bridge reads/writes length-delimited JSON-RPC frames over r/w: a
// big-endian uint32 byte length followed by that many bytes of JSON,
// one frame per message in either direction. Every frame on this
// connection is attributed to a single fixed auth context — a stdio
// subprocess is one client, not a multi-tenant listener.
type Bridge struct {
	handler *mcp.Handler
	auth    kernel.AuthContext
}

func NewBridge(handler *mcp.Handler, auth kernel.AuthContext) *Bridge {
	return &Bridge{handler: handler, auth: auth}
}

// Run processes frames from r until EOF or ctx is done, writing
// responses to w. It returns nil on clean EOF.
func (b *Bridge) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := bufio.NewReader(r)
	writer := bufio.NewWriter(w)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		raw, err := readFrame(reader)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var req mcp.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			logx.WithError(err).Warn("mcp/stdio: dropping malformed frame")
			continue
		}

		resp := b.handler.Handle(ctx, b.auth, req)
		if req.IsNotification() {
			continue
		}
		if err := writeFrame(writer, resp); err != nil {
			return err
		}
	}
}

func readFrame(r *bufio.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeFrame(w *bufio.Writer, resp mcp.Response) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(raw))); err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	return w.Flush()
}
