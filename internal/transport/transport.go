// Package transport moves raw status messages from the session-driver to the
// monitor. Poll mode sends a request datagram per tick and reads replies;
// push mode keeps a stream (TCP or WebSocket) open and reads whatever the
// driver sends. Every message is delivered as one []byte on Messages().
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gsc-tools/gsc-mon/internal/logging"
)

var transportLog = logging.ForComponent(logging.CompTransport)

// Mode selects who initiates each exchange.
type Mode string

const (
	ModePoll Mode = "poll"
	ModePush Mode = "push"
)

// ParseMode validates a mode name. Empty selects poll.
func ParseMode(name string) (Mode, error) {
	switch Mode(strings.ToLower(name)) {
	case "", ModePoll:
		return ModePoll, nil
	case ModePush:
		return ModePush, nil
	}
	return "", fmt.Errorf("unknown mode %q (want poll or push)", name)
}

// Defaults.
const (
	DefaultEndpoint   = "localhost:3000"
	DefaultRequest    = "update"
	DefaultBufferSize = 64 * 1024
	DefaultInterval   = 100 * time.Millisecond
	dialTimeout       = 5 * time.Second
	keepAlivePeriod   = 15 * time.Second
	queueDepth        = 16
)

// ErrClosed is returned by Tick after Close.
var ErrClosed = errors.New("transport closed")

// TransportError reports a failure that ends the client.
type TransportError struct {
	Op       string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client is a connection to the session-driver.
type Client interface {
	// Messages delivers raw status messages in arrival order. It is closed
	// when the client stops, after which Err reports why.
	Messages() <-chan []byte
	// Err returns nil after a local Close, otherwise the *TransportError
	// that stopped the client.
	Err() error
	// Tick runs the periodic action: a status request in poll mode, a
	// heartbeat in push mode. It never waits for a reply.
	Tick() error
	// Close releases the socket. It is safe to call more than once.
	Close() error
	Mode() Mode
	Endpoint() string
}

// Options configures Dial.
type Options struct {
	// Endpoint is host:port, or a URL with scheme udp, tcp, ws or wss.
	Endpoint string
	Mode     Mode
	// Request is the poll payload. Defaults to "update".
	Request string
	// Interval is the poll cadence; poll requests are rate limited to it.
	// Zero disables the limiter.
	Interval time.Duration
	// BufferSize bounds one read. Defaults to 64 KiB.
	BufferSize int
}

// Endpoint is a parsed driver address.
type Endpoint struct {
	Scheme string // udp, tcp, ws or wss
	Addr   string // host:port for udp and tcp
	URL    string // full URL for ws and wss
}

// ParseEndpoint resolves the transport scheme for mode. A bare host:port
// means udp in poll mode and tcp in push mode.
func ParseEndpoint(raw string, mode Mode) (Endpoint, error) {
	if raw == "" {
		raw = DefaultEndpoint
	}
	if !strings.Contains(raw, "://") {
		if _, _, err := net.SplitHostPort(raw); err != nil {
			return Endpoint{}, fmt.Errorf("endpoint %q: %w", raw, err)
		}
		if mode == ModePush {
			return Endpoint{Scheme: "tcp", Addr: raw}, nil
		}
		return Endpoint{Scheme: "udp", Addr: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("endpoint %q: %w", raw, err)
	}
	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "udp":
		if mode != ModePoll {
			return Endpoint{}, fmt.Errorf("endpoint %q: udp needs poll mode", raw)
		}
		return Endpoint{Scheme: scheme, Addr: u.Host}, nil
	case "tcp":
		if mode != ModePush {
			return Endpoint{}, fmt.Errorf("endpoint %q: tcp needs push mode", raw)
		}
		return Endpoint{Scheme: scheme, Addr: u.Host}, nil
	case "ws", "wss":
		if mode != ModePush {
			return Endpoint{}, fmt.Errorf("endpoint %q: %s needs push mode", raw, scheme)
		}
		return Endpoint{Scheme: scheme, URL: raw}, nil
	}
	return Endpoint{}, fmt.Errorf("endpoint %q: unsupported scheme %q", raw, u.Scheme)
}

func (e Endpoint) String() string {
	if e.URL != "" {
		return e.URL
	}
	return e.Scheme + "://" + e.Addr
}

// Dial connects to the driver using the mode and endpoint in opts.
func Dial(ctx context.Context, opts Options) (Client, error) {
	if opts.Mode == "" {
		opts.Mode = ModePoll
	}
	if opts.Request == "" {
		opts.Request = DefaultRequest
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	ep, err := ParseEndpoint(opts.Endpoint, opts.Mode)
	if err != nil {
		return nil, err
	}

	switch ep.Scheme {
	case "udp":
		return dialPoll(ctx, ep, opts)
	case "tcp":
		return dialStream(ctx, ep, opts)
	default:
		return dialWebSocket(ctx, ep, opts)
	}
}

// pump is the delivery half shared by every client: a reader goroutine
// pushes into msgs until the socket fails or done is closed.
type pump struct {
	msgs      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

func newPump() *pump {
	return &pump{
		msgs: make(chan []byte, queueDepth),
		done: make(chan struct{}),
	}
}

func (p *pump) Messages() <-chan []byte { return p.msgs }

func (p *pump) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *pump) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// deliver hands one message to the consumer. It returns false once the
// client is closing.
func (p *pump) deliver(msg []byte) bool {
	select {
	case p.msgs <- msg:
		return true
	case <-p.done:
		return false
	}
}

// stop records why the reader ended. Errors caused by a local Close are
// not failures.
func (p *pump) stop(err error) {
	if err != nil && !p.closed() {
		p.mu.Lock()
		if p.err == nil {
			p.err = err
		}
		p.mu.Unlock()
	}
	close(p.msgs)
}

// shutdown closes done and runs release exactly once.
func (p *pump) shutdown(release func() error) error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = release()
	})
	return err
}
