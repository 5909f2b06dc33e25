package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"golang.org/x/time/rate"

	"github.com/gsc-tools/gsc-mon/internal/logging"
)

// PollClient requests status over an unconnected UDP socket. Each Tick sends
// one request; replies arrive whenever they arrive. Lost requests and replies
// are never retried: the next tick asks again.
type PollClient struct {
	*pump
	conn     net.PacketConn
	addr     net.Addr
	endpoint string
	request  []byte
	limiter  *rate.Limiter
}

func dialPoll(ctx context.Context, ep Endpoint, opts Options) (*PollClient, error) {
	// The driver binds IPv4, so prefer an IPv4 address for names like localhost.
	raddr, err := net.ResolveUDPAddr("udp4", ep.Addr)
	if err != nil {
		raddr, err = net.ResolveUDPAddr("udp", ep.Addr)
	}
	if err != nil {
		return nil, &TransportError{Op: "resolve", Endpoint: ep.String(), Err: err}
	}

	// Unconnected: ICMP port-unreachable must not surface as a read error.
	network := "udp4"
	if raddr.IP.To4() == nil {
		network = "udp6"
	}
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, network, ":0")
	if err != nil {
		return nil, &TransportError{Op: "listen", Endpoint: ep.String(), Err: err}
	}

	limit := rate.Inf
	if opts.Interval > 0 {
		// 90% of the interval absorbs timer jitter.
		limit = rate.Every(opts.Interval * 9 / 10)
	}

	c := &PollClient{
		pump:     newPump(),
		conn:     conn,
		addr:     raddr,
		endpoint: ep.String(),
		request:  []byte(opts.Request),
		limiter:  rate.NewLimiter(limit, 1),
	}
	go c.readLoop(opts.BufferSize)

	transportLog.Info("poll_client_ready",
		slog.String("endpoint", c.endpoint),
		slog.String("local", conn.LocalAddr().String()),
		slog.Duration("interval", opts.Interval))
	return c, nil
}

func (c *PollClient) readLoop(size int) {
	buf := make([]byte, size)
	for {
		n, from, err := c.conn.ReadFrom(buf)
		if err != nil {
			c.stop(&TransportError{Op: "read", Endpoint: c.endpoint, Err: err})
			return
		}
		logging.Aggregate(logging.CompTransport, "datagram_received", slog.String("from", from.String()))
		if !c.deliver(append([]byte(nil), buf[:n]...)) {
			c.stop(nil)
			return
		}
	}
}

// Tick sends one status request unless the limiter says a request already
// went out during this interval.
func (c *PollClient) Tick() error {
	if c.closed() {
		return ErrClosed
	}
	if !c.limiter.Allow() {
		logging.Aggregate(logging.CompTransport, "poll_request_limited")
		return nil
	}
	if _, err := c.conn.WriteTo(c.request, c.addr); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return &TransportError{Op: "write", Endpoint: c.endpoint, Err: err}
		}
		// A failed send is a lost request.
		transportLog.Debug("poll_request_failed", slog.String("error", err.Error()))
		return nil
	}
	logging.Aggregate(logging.CompTransport, "poll_request_sent", slog.String("endpoint", c.endpoint))
	return nil
}

// Close releases the socket.
func (c *PollClient) Close() error {
	return c.shutdown(c.conn.Close)
}

func (c *PollClient) Mode() Mode       { return ModePoll }
func (c *PollClient) Endpoint() string { return c.endpoint }
