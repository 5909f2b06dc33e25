package template

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/gsc-tools/gsc-mon/internal/logging"
)

// FailurePolicy selects what happens when an expression fails to evaluate.
type FailurePolicy int

const (
	// WarnAndContinue logs the failure and substitutes an empty string.
	WarnAndContinue FailurePolicy = iota
	// PropagateError aborts the substitution and returns the error.
	PropagateError
)

func (p FailurePolicy) String() string {
	switch p {
	case WarnAndContinue:
		return "warn"
	case PropagateError:
		return "propagate"
	}
	return fmt.Sprintf("FailurePolicy(%d)", int(p))
}

// Default delimiters.
const (
	DefaultOpen  = "{"
	DefaultClose = "}"
)

// Context resolves field names to values.
type Context interface {
	Lookup(name string) (any, bool)
}

// Map is a Context backed by a plain map.
type Map map[string]any

// Lookup implements Context.
func (m Map) Lookup(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// Engine performs template substitution. It holds no per-template state and
// is safe for concurrent use.
type Engine struct {
	open, close string
	policy      FailurePolicy
	log         *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDelimiters sets the open and close delimiters. Empty values keep the defaults.
func WithDelimiters(open, closing string) Option {
	return func(e *Engine) {
		if open != "" {
			e.open = open
		}
		if closing != "" {
			e.close = closing
		}
	}
}

// WithPolicy sets the failure policy.
func WithPolicy(p FailurePolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithLogger sets the sink for WarnAndContinue diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New returns an engine with "{" "}" delimiters and the WarnAndContinue policy
// unless overridden.
func New(opts ...Option) *Engine {
	e := &Engine{
		open:   DefaultOpen,
		close:  DefaultClose,
		policy: WarnAndContinue,
		log:    logging.ForComponent(logging.CompTemplate),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the engine's failure policy.
func (e *Engine) Policy() FailurePolicy { return e.policy }

// Delimiters returns the open and close delimiters.
func (e *Engine) Delimiters() (string, string) { return e.open, e.close }

// Substitute replaces every delimited expression in text with its value in ctx.
// Under PropagateError the first failure is returned as a *SubstitutionError
// and the output is discarded.
func (e *Engine) Substitute(text string, ctx Context) (string, error) {
	var b strings.Builder
	b.Grow(len(text))

	i := 0
	for i < len(text) {
		at := strings.Index(text[i:], e.open)
		if at < 0 {
			b.WriteString(text[i:])
			break
		}
		at += i
		b.WriteString(text[i:at])

		expr, end, ok := e.match(text, at)
		if !ok {
			// Unclosed: the open delimiter is literal text, resume one
			// character later.
			_, size := utf8.DecodeRuneInString(text[at:])
			b.WriteString(text[at : at+size])
			i = at + size
			continue
		}

		value, err := e.evaluate(expr, ctx)
		if err != nil {
			serr := &SubstitutionError{Expr: expr, Err: err}
			if e.policy == PropagateError {
				return "", serr
			}
			e.log.Warn("substitution_failed",
				slog.String("expr", expr),
				slog.String("error", err.Error()))
			value = ""
		}
		b.WriteString(value)
		i = end
	}
	return b.String(), nil
}

// match finds the close delimiter matching the open delimiter at text[at:].
// Open delimiters met on the way nest, so "{a{b}c}" yields "a{b}c". It
// returns the expression body and the index just past the close delimiter.
func (e *Engine) match(text string, at int) (string, int, bool) {
	start := at + len(e.open)
	nesting := e.open != e.close
	depth := 1
	for j := start; j < len(text); {
		switch {
		case nesting && strings.HasPrefix(text[j:], e.open):
			depth++
			j += len(e.open)
		case strings.HasPrefix(text[j:], e.close):
			depth--
			if depth == 0 {
				return text[start:j], j + len(e.close), true
			}
			j += len(e.close)
		default:
			j++
		}
	}
	return "", 0, false
}
