package transport

import (
	"context"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/gsc-tools/gsc-mon/internal/logging"
)

// StreamClient receives pushed status over a persistent TCP connection.
// Every successful read is one message; the client never writes.
type StreamClient struct {
	*pump
	conn     net.Conn
	endpoint string

	lastMessage atomic.Int64 // unix nanos
}

func dialStream(ctx context.Context, ep Endpoint, opts Options) (*StreamClient, error) {
	d := net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlivePeriod}
	conn, err := d.DialContext(ctx, "tcp", ep.Addr)
	if err != nil {
		return nil, &TransportError{Op: "dial", Endpoint: ep.String(), Err: err}
	}

	c := &StreamClient{
		pump:     newPump(),
		conn:     conn,
		endpoint: ep.String(),
	}
	c.lastMessage.Store(time.Now().UnixNano())
	go c.readLoop(opts.BufferSize)

	transportLog.Info("stream_client_ready",
		slog.String("endpoint", c.endpoint),
		slog.String("local", conn.LocalAddr().String()))
	return c, nil
}

func (c *StreamClient) readLoop(size int) {
	buf := make([]byte, size)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.lastMessage.Store(time.Now().UnixNano())
			logging.Aggregate(logging.CompTransport, "stream_message_received")
			if !c.deliver(append([]byte(nil), buf[:n]...)) {
				c.stop(nil)
				return
			}
		}
		if err != nil {
			c.stop(&TransportError{Op: "read", Endpoint: c.endpoint, Err: err})
			return
		}
	}
}

// Tick is the push-mode heartbeat. Liveness of the connection itself is
// left to TCP keep-alive; this only records how long the driver has been quiet.
func (c *StreamClient) Tick() error {
	if c.closed() {
		return ErrClosed
	}
	logging.Aggregate(logging.CompTransport, "heartbeat", slog.Duration("idle", c.Idle()))
	return nil
}

// Idle reports how long ago the last message arrived.
func (c *StreamClient) Idle() time.Duration {
	return time.Since(time.Unix(0, c.lastMessage.Load()))
}

// Close releases the connection.
func (c *StreamClient) Close() error {
	return c.shutdown(c.conn.Close)
}

func (c *StreamClient) Mode() Mode       { return ModePush }
func (c *StreamClient) Endpoint() string { return c.endpoint }
