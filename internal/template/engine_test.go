package template

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureEngine returns an engine whose diagnostics land in the returned buffer.
func captureEngine(opts ...Option) (*Engine, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return New(append([]Option{WithLogger(logger)}, opts...)...), &buf
}

func warnings(buf *bytes.Buffer) int {
	return strings.Count(buf.String(), "substitution_failed")
}

var snapshot = Map{
	"message":                "None",
	"previous line":          "cd build",
	"current line":           "cmake ..",
	"current line progress":  "cma",
	"current line remainder": "ke ..",
	"input mode":             "I",
	"current line number":    "2",
	"total number lines":     int64(7),
}

func TestSubstituteFieldLookup(t *testing.T) {
	e, buf := captureEngine()

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"plain", "Input Mode: {input mode}", "Input Mode: I"},
		{"several", "P: {previous line}\nC: {current line progress}{current line remainder}", "P: cd build\nC: cmake .."},
		{"position", "#: {current line number}/{total number lines}", "#: 2/7"},
		{"no expressions", "Messages:", "Messages:"},
		{"adjacent", "{input mode}{input mode}", "II"},
		{"right align", "[{input mode:>3}]", "[  I]"},
		{"center fill", "[{input mode:*^5}]", "[**I**]"},
		{"int width", "{total number lines:03d}", "007"},
		{"string numeric", "{current line number:03d}", "002"},
		{"repr", "{previous line!r}", "'cd build'"},
		{"truncate", "{current line:.5}", "cmake"},
		{"nested spec", "{input mode:>{current line number}}", " I"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Substitute(tt.template, snapshot)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Zero(t, warnings(buf))
}

func TestSubstituteWarnPolicyEmptiesFailingExpression(t *testing.T) {
	e, buf := captureEngine()

	got, err := e.Substitute("A{missing}B{input mode}C{also missing}D", snapshot)
	require.NoError(t, err)
	assert.Equal(t, "ABICD", got)
	assert.Equal(t, 2, warnings(buf), "one diagnostic per failing expression")
	assert.Contains(t, buf.String(), "expr=missing")
}

func TestSubstituteWarnPolicyBadSpec(t *testing.T) {
	e, buf := captureEngine()

	got, err := e.Substitute("[{input mode:d}] [{input mode:!!}] [{input mode!x}]", snapshot)
	require.NoError(t, err)
	assert.Equal(t, "[] [] []", got)
	assert.Equal(t, 3, warnings(buf))
}

func TestSubstituteOversizedNestedWidth(t *testing.T) {
	values := Map{"input mode": "I", "current line number": "999999999999999999"}

	e, buf := captureEngine()
	got, err := e.Substitute("[{input mode:>{current line number}}]", values)
	require.NoError(t, err)
	assert.Equal(t, "[]", got)
	assert.Equal(t, 1, warnings(buf))

	strict, _ := captureEngine(WithPolicy(PropagateError))
	_, err = strict.Substitute("{input mode:>{current line number}}", values)
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestSubstitutePropagatePolicy(t *testing.T) {
	e, buf := captureEngine(WithPolicy(PropagateError))

	got, err := e.Substitute("ok {input mode} then {missing}", snapshot)
	assert.Empty(t, got)

	var serr *SubstitutionError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "missing", serr.Expr)
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Zero(t, warnings(buf))
}

func TestSubstituteNestedDelimiters(t *testing.T) {
	e, buf := captureEngine()

	got, err := e.Substitute("{a{b}c}", Map{"a{b}c": "X", "b": "wrong"})
	require.NoError(t, err)
	assert.Equal(t, "X", got, "the whole nested body is one expression")
	assert.Zero(t, warnings(buf))
}

func TestSubstituteUnclosedOpenFailsOver(t *testing.T) {
	e, buf := captureEngine()

	tests := []struct {
		template string
		want     string
	}{
		{"{a{b}", "{aB"},
		{"{{b}", "{B"},
		{"trailing {", "trailing {"},
		{"}{b}{", "}B{"},
	}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			got, err := e.Substitute(tt.template, Map{"b": "B"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Zero(t, warnings(buf))
}

func TestSubstituteValuesAreNotRescanned(t *testing.T) {
	e, buf := captureEngine()

	got, err := e.Substitute("line: {current line}", Map{"current line": "echo {HOME} ${PATH}"})
	require.NoError(t, err)
	assert.Equal(t, "line: echo {HOME} ${PATH}", got)
	assert.Zero(t, warnings(buf))
}

func TestSubstituteCustomDelimiters(t *testing.T) {
	e, _ := captureEngine(WithDelimiters("<<", ">>"))

	got, err := e.Substitute("{literal} <<input mode>> <<<<x>>>>", Map{"input mode": "C", "<<x>>": "nested"})
	require.NoError(t, err)
	assert.Equal(t, "{literal} C nested", got)

	open, closing := e.Delimiters()
	assert.Equal(t, "<<", open)
	assert.Equal(t, ">>", closing)
}

func TestSubstituteSymmetricDelimitersDoNotNest(t *testing.T) {
	e, _ := captureEngine(WithDelimiters("%", "%"))

	got, err := e.Substitute("%a% and %b%", Map{"a": "1", "b": "2"})
	require.NoError(t, err)
	assert.Equal(t, "1 and 2", got)
}

func TestSubstituteEmptyExpression(t *testing.T) {
	e, buf := captureEngine()

	got, err := e.Substitute("x{}y", snapshot)
	require.NoError(t, err)
	assert.Equal(t, "xy", got)
	assert.Equal(t, 1, warnings(buf))
}

func TestFailurePolicyString(t *testing.T) {
	assert.Equal(t, "warn", WarnAndContinue.String())
	assert.Equal(t, "propagate", PropagateError.String())
	assert.Equal(t, WarnAndContinue, New().Policy())
}
