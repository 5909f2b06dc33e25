package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gsc-tools/gsc-mon/internal/logging"
)

const controlTimeout = time.Second

// WebSocketClient receives pushed status as WebSocket messages, one status
// record per message. Heartbeats are ping control frames.
type WebSocketClient struct {
	*pump
	conn     *websocket.Conn
	endpoint string
}

func dialWebSocket(ctx context.Context, ep Endpoint, opts Options) (*WebSocketClient, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: dialTimeout,
		ReadBufferSize:   4096,
		WriteBufferSize:  1024,
	}
	conn, resp, err := dialer.DialContext(ctx, ep.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, &TransportError{Op: "dial", Endpoint: ep.String(), Err: err}
	}
	conn.SetReadLimit(int64(opts.BufferSize))

	c := &WebSocketClient{
		pump:     newPump(),
		conn:     conn,
		endpoint: ep.String(),
	}
	go c.readLoop()

	transportLog.Info("websocket_client_ready", slog.String("endpoint", c.endpoint))
	return c, nil
}

func (c *WebSocketClient) readLoop() {
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.stop(&TransportError{Op: "read", Endpoint: c.endpoint, Err: err})
			return
		}
		logging.Aggregate(logging.CompTransport, "websocket_message_received")
		if !c.deliver(payload) {
			c.stop(nil)
			return
		}
	}
}

// Tick sends a ping. The driver's pong is consumed by the read loop.
func (c *WebSocketClient) Tick() error {
	if c.closed() {
		return ErrClosed
	}
	if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlTimeout)); err != nil {
		return &TransportError{Op: "ping", Endpoint: c.endpoint, Err: err}
	}
	return nil
}

// Close says goodbye to the driver and releases the connection.
func (c *WebSocketClient) Close() error {
	return c.shutdown(func() error {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(controlTimeout))
		return c.conn.Close()
	})
}

func (c *WebSocketClient) Mode() Mode       { return ModePush }
func (c *WebSocketClient) Endpoint() string { return c.endpoint }
