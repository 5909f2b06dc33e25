package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsc-tools/gsc-mon/internal/status"
	"github.com/gsc-tools/gsc-mon/internal/status/statustest"
)

func receive(t *testing.T, c Client) []byte {
	t.Helper()
	select {
	case msg, ok := <-c.Messages():
		require.True(t, ok, "messages closed early: %v", c.Err())
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a message")
		return nil
	}
}

func TestStreamPushesInOrder(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	modes := []string{"navigation", "typing", "typing"}
	next := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for _, mode := range modes {
			raw, _ := statustest.Snapshot{InputMode: mode}.JSON()
			if _, err := conn.Write(raw); err != nil {
				return
			}
			<-next
		}
	}()

	c, err := Dial(context.Background(), Options{Endpoint: ln.Addr().String(), Mode: ModePush})
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, ModePush, c.Mode())
	assert.Equal(t, "tcp://"+ln.Addr().String(), c.Endpoint())

	decoder := status.NewDecoder(status.CodecJSON)
	for _, want := range modes {
		ctx, err := decoder.Decode(receive(t, c))
		require.NoError(t, err)
		got, _ := ctx.InputMode()
		assert.Equal(t, want, got)
		assert.NoError(t, c.Tick(), "heartbeat never fails on a live stream")
		next <- struct{}{}
	}

	// The driver hung up: the client stops with a TransportError.
	select {
	case _, ok := <-c.Messages():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("messages channel not closed after driver hangup")
	}
	var terr *TransportError
	require.True(t, errors.As(c.Err(), &terr))
	assert.Equal(t, "read", terr.Op)
	assert.ErrorIs(t, c.Err(), io.EOF)
}

func TestStreamIdleTracksLastMessage(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte(`{"input mode":"I"}`))
		time.Sleep(time.Second)
	}()

	c, err := Dial(context.Background(), Options{Endpoint: "tcp://" + ln.Addr().String(), Mode: ModePush})
	require.NoError(t, err)
	defer c.Close()

	receive(t, c)
	stream, ok := c.(*StreamClient)
	require.True(t, ok)
	assert.Less(t, stream.Idle(), time.Second)
}

func TestStreamDialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Dial(context.Background(), Options{Endpoint: addr, Mode: ModePush})
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "dial", terr.Op)
}

func TestStreamCloseIsClean(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.Copy(io.Discard, conn)
	}()

	c, err := Dial(context.Background(), Options{Endpoint: ln.Addr().String(), Mode: ModePush})
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, ok := <-c.Messages()
	assert.False(t, ok)
	assert.NoError(t, c.Err())
	assert.ErrorIs(t, c.Tick(), ErrClosed)
}
