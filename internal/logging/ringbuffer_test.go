package logging

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBufferWrite(t *testing.T) {
	rb := NewRingBuffer(64)

	n, err := rb.Write([]byte("update"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "update", string(rb.Bytes()))
	assert.Equal(t, 6, rb.Len())
}

func TestRingBufferWrap(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		writes []string
		want   string
	}{
		{"exact fill", 8, []string{"AA", "BB", "CC", "DD"}, "AABBCCDD"},
		{"wraps once", 10, []string{"abcdefghij", "12345"}, "fghij12345"},
		{"split write", 8, []string{"AAAAAA", "BBBB"}, "AAAABBBB"},
		{"oversized write", 5, []string{"0123456789"}, "56789"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := NewRingBuffer(tt.size)
			for _, w := range tt.writes {
				_, _ = rb.Write([]byte(w))
			}
			assert.Equal(t, tt.want, string(rb.Bytes()))
			assert.Equal(t, len(tt.want), rb.Len())
		})
	}
}

func TestRingBufferDumpToFile(t *testing.T) {
	rb := NewRingBuffer(32)
	_, _ = rb.Write([]byte(`{"msg":"poll_sent"}`))

	path := filepath.Join(t.TempDir(), "dump.jsonl")
	require.NoError(t, rb.DumpToFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"msg":"poll_sent"}`, string(data))
}

func TestRingBufferConcurrentWriters(t *testing.T) {
	rb := NewRingBuffer(1024)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_, _ = rb.Write([]byte("x"))
			}
		}()
	}
	wg.Wait()

	assert.Len(t, rb.Bytes(), 1000)
}
