package status

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsc-tools/gsc-mon/internal/status/statustest"
)

// driverRecord is what the session-driver's property-tree writer emits.
const driverRecord = `{
    "input mode": "I",
    "current line": "cmake ..",
    "previous line": "cd build",
    "next line": "None",
    "current line progress": "cma",
    "current line number": "2",
    "total number lines": "2"
}
`

func TestDecodeDriverRecord(t *testing.T) {
	ctx, err := NewDecoder(CodecJSON).Decode([]byte(driverRecord))
	require.NoError(t, err)

	remainder, ok := ctx.Remainder()
	require.True(t, ok)
	assert.Equal(t, "ke ..", remainder)

	next, _ := ctx.NextLine()
	assert.Equal(t, "None", next, "boundary markers are displayed as sent")

	mode, _ := ctx.InputMode()
	assert.Equal(t, "I", mode)
	name, _ := ctx.InputModeName()
	assert.Equal(t, "Insert", name)

	n, ok := ctx.LineNumber()
	require.True(t, ok)
	assert.Equal(t, 2, n)
	total, _ := ctx.TotalLines()
	assert.Equal(t, 2, total)

	_, ok = ctx.Message()
	assert.False(t, ok)

	assert.Equal(t, []string{
		FieldPreviousLine, FieldCurrentLine, FieldNextLine, FieldProgress,
		FieldInputMode, FieldLineNumber, FieldTotalLines,
		FieldRemainder, FieldInputModeName,
	}, ctx.Keys())
}

func TestDecodeRemainder(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		progress string
		want     string
	}{
		{"prefix stripped", "echo hello", "echo ", "hello"},
		{"nothing typed", "echo hello", "", "echo hello"},
		{"fully typed", "echo hello", "echo hello", ""},
		{"not a prefix", "echo hello", "hello", "echo hello"},
		{"stripped once", "abab", "ab", "ab"},
		{"stale progress", "ls", "cd /tmp", "ls"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := statustest.Snapshot{CurrentLine: tt.line, Progress: tt.progress}.JSON()
			require.NoError(t, err)

			ctx, err := NewDecoder(CodecJSON).Decode(raw)
			require.NoError(t, err)
			got, ok := ctx.Remainder()
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, Remainder(tt.line, tt.progress))
		})
	}
}

func TestDecodeWithoutCurrentLineHasNoRemainder(t *testing.T) {
	ctx, err := NewDecoder(CodecJSON).Decode([]byte(`{"input mode":"C"}`))
	require.NoError(t, err)
	_, ok := ctx.Remainder()
	assert.False(t, ok)
	name, _ := ctx.InputModeName()
	assert.Equal(t, "Command", name)
}

func TestDecodeNumbers(t *testing.T) {
	ctx, err := NewDecoder(CodecJSON).Decode([]byte(`{"current line number": 12, "total number lines": 3, "ratio": 0.5}`))
	require.NoError(t, err)

	v, _ := ctx.Lookup(FieldLineNumber)
	assert.Equal(t, int64(12), v)
	n, ok := ctx.LineNumber()
	require.True(t, ok)
	assert.Equal(t, 12, n, "out of range positions are kept as sent")

	ratio, _ := ctx.Lookup("ratio")
	assert.Equal(t, 0.5, ratio)
	assert.Equal(t, "ratio", ctx.Keys()[2], "unknown fields follow the wire fields")
}

func TestDecodeUnknownModeKeepsLabel(t *testing.T) {
	ctx, err := NewDecoder(CodecJSON).Decode([]byte(`{"input mode":"navigation"}`))
	require.NoError(t, err)
	name, _ := ctx.InputModeName()
	assert.Equal(t, "navigation", name)
}

func TestDecodeMalformed(t *testing.T) {
	for _, raw := range []string{
		"not json",
		"",
		"null",
		`["a"]`,
		`"text"`,
		`{"input mode":"I"} trailing`,
		`{"input mode":`,
	} {
		t.Run(raw, func(t *testing.T) {
			ctx, err := NewDecoder(CodecJSON).Decode([]byte(raw))
			assert.Nil(t, ctx)

			var derr *DecodeError
			require.True(t, errors.As(err, &derr))
			assert.Equal(t, raw, string(derr.Raw))
			assert.Equal(t, CodecJSON, derr.Codec)
		})
	}
}

func TestDecodeIsPure(t *testing.T) {
	d := NewDecoder(CodecJSON)
	a, err := d.Decode([]byte(driverRecord))
	require.NoError(t, err)
	b, err := d.Decode([]byte(driverRecord))
	require.NoError(t, err)
	assert.Equal(t, a.Map(), b.Map())
	assert.NotSame(t, a, b)
}

func TestDecodeCBOR(t *testing.T) {
	raw, err := statustest.Snapshot{
		Message:     "paused",
		CurrentLine: "make -j8",
		Progress:    "make",
		InputMode:   "SA",
		LineNumber:  "4",
		TotalLines:  "9",
	}.CBOR()
	require.NoError(t, err)

	ctx, err := NewDecoder(CodecCBOR).Decode(raw)
	require.NoError(t, err)

	msg, _ := ctx.Message()
	assert.Equal(t, "paused", msg)
	rest, _ := ctx.Remainder()
	assert.Equal(t, " -j8", rest)
	name, _ := ctx.InputModeName()
	assert.Equal(t, "Semi Auto", name)

	_, err = NewDecoder(CodecCBOR).Decode([]byte(driverRecord))
	var derr *DecodeError
	assert.True(t, errors.As(err, &derr), "JSON is not CBOR")
}

func TestParseCodec(t *testing.T) {
	c, err := ParseCodec("")
	require.NoError(t, err)
	assert.Equal(t, CodecJSON, c)

	c, err = ParseCodec("cbor")
	require.NoError(t, err)
	assert.Equal(t, CodecCBOR, c)

	_, err = ParseCodec("xml")
	assert.Error(t, err)
}
