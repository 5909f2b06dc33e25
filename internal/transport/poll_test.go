package transport

import (
	"context"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/gsc-tools/gsc-mon/internal/status"
	"github.com/gsc-tools/gsc-mon/internal/status/statustest"
)

// fakePollDriver answers status requests on a loopback UDP socket. reply
// decides, per 1-based request number, whether to answer.
type fakePollDriver struct {
	conn     net.PacketConn
	requests atomic.Int64
}

func startPollDriver(t *testing.T, reply func(n int64) bool) *fakePollDriver {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	d := &fakePollDriver{conn: conn}

	var g errgroup.Group
	t.Cleanup(func() {
		conn.Close()
		_ = g.Wait()
	})

	g.Go(func() error {
		buf := make([]byte, 16)
		for {
			n, from, err := conn.ReadFrom(buf)
			if err != nil {
				return nil
			}
			if string(buf[:n]) != DefaultRequest {
				continue
			}
			count := d.requests.Add(1)
			if !reply(count) {
				continue
			}
			raw, _ := statustest.Snapshot{
				CurrentLine: "echo " + strconv.FormatInt(count, 10),
				InputMode:   "I",
				LineNumber:  strconv.FormatInt(count, 10),
				TotalLines:  "10",
			}.JSON()
			_, _ = conn.WriteTo(raw, from)
		}
	})
	return d
}

func (d *fakePollDriver) addr() string { return d.conn.LocalAddr().String() }

func TestPollEveryOtherReply(t *testing.T) {
	driver := startPollDriver(t, func(n int64) bool { return n%2 == 0 })

	c, err := Dial(context.Background(), Options{Endpoint: driver.addr(), Mode: ModePoll})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, ModePoll, c.Mode())
	assert.Equal(t, "udp://"+driver.addr(), c.Endpoint())

	decoder := status.NewDecoder(status.CodecJSON)
	var lines []int
	for range 10 {
		require.NoError(t, c.Tick())
		select {
		case raw := <-c.Messages():
			ctx, err := decoder.Decode(raw)
			require.NoError(t, err)
			n, _ := ctx.LineNumber()
			lines = append(lines, n)
		case <-time.After(150 * time.Millisecond):
		}
	}

	assert.Equal(t, int64(10), driver.requests.Load())
	assert.Equal(t, []int{2, 4, 6, 8, 10}, lines)
}

func TestPollLimiterAllowsOneRequestPerInterval(t *testing.T) {
	driver := startPollDriver(t, func(int64) bool { return true })

	c, err := Dial(context.Background(), Options{Endpoint: driver.addr(), Mode: ModePoll, Interval: time.Hour})
	require.NoError(t, err)
	defer c.Close()

	for range 5 {
		require.NoError(t, c.Tick())
	}

	select {
	case <-c.Messages():
	case <-time.After(time.Second):
		t.Fatal("expected a reply to the first request")
	}
	select {
	case <-c.Messages():
		t.Fatal("limited ticks must not send requests")
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, int64(1), driver.requests.Load())
}

func TestPollSilentDriverIsNotAnError(t *testing.T) {
	driver := startPollDriver(t, func(int64) bool { return false })

	c, err := Dial(context.Background(), Options{Endpoint: driver.addr(), Mode: ModePoll})
	require.NoError(t, err)
	defer c.Close()

	for range 3 {
		require.NoError(t, c.Tick())
	}
	select {
	case _, ok := <-c.Messages():
		t.Fatalf("unexpected delivery (open=%v)", ok)
	case <-time.After(200 * time.Millisecond):
	}
	assert.NoError(t, c.Err())
}

func TestPollCustomRequest(t *testing.T) {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	c, err := Dial(context.Background(), Options{Endpoint: conn.LocalAddr().String(), Request: "status?"})
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Tick())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 32)
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "status?", string(buf[:n]))
}

func TestPollCloseIsClean(t *testing.T) {
	driver := startPollDriver(t, func(int64) bool { return true })

	c, err := Dial(context.Background(), Options{Endpoint: driver.addr(), Mode: ModePoll})
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	select {
	case _, ok := <-c.Messages():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("messages channel not closed after Close")
	}
	assert.NoError(t, c.Err())
	assert.ErrorIs(t, c.Tick(), ErrClosed)
}
