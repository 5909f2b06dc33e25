package template

import (
	"fmt"
	"strings"
)

// evaluate resolves one expression body to text.
func (e *Engine) evaluate(expr string, ctx Context) (string, error) {
	if ctx == nil {
		ctx = Map(nil)
	}

	// Field names may themselves contain ':' or '!', so the whole body wins
	// when it names a field.
	if v, ok := ctx.Lookup(expr); ok {
		return formatValue(v, formatSpec{precision: -1})
	}

	name, conv, rawSpec, err := splitExpr(expr)
	if err != nil {
		return "", err
	}
	v, ok := ctx.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownField, name)
	}

	switch conv {
	case 0:
	case 's':
		v = stringify(v)
	case 'r':
		v = repr(v)
	default:
		return "", fmt.Errorf("%w: unknown conversion %q", ErrInvalidSpec, string(conv))
	}

	// Nested fields inside the spec ("{line:>{width}}") are expanded first,
	// always failing hard so the enclosing expression reports them.
	if strings.Contains(rawSpec, e.open) {
		inner := &Engine{open: e.open, close: e.close, policy: PropagateError, log: e.log}
		rawSpec, err = inner.Substitute(rawSpec, ctx)
		if err != nil {
			return "", err
		}
	}

	spec, err := parseSpec(rawSpec)
	if err != nil {
		return "", err
	}
	return formatValue(v, spec)
}

// splitExpr splits "name!c:spec" into its parts.
func splitExpr(expr string) (name string, conv byte, spec string, err error) {
	idx := strings.IndexAny(expr, "!:")
	if idx < 0 {
		return expr, 0, "", nil
	}
	name = expr[:idx]
	rest := expr[idx:]
	if rest[0] == '!' {
		if len(rest) < 2 {
			return "", 0, "", fmt.Errorf("%w: missing conversion after '!'", ErrInvalidSpec)
		}
		conv = rest[1]
		rest = rest[2:]
		if rest != "" && rest[0] != ':' {
			return "", 0, "", fmt.Errorf("%w: expected ':' after conversion", ErrInvalidSpec)
		}
	}
	if rest != "" {
		spec = rest[1:]
	}
	return name, conv, spec, nil
}

func stringify(v any) string {
	s, _ := formatValue(v, formatSpec{precision: -1})
	return s
}

func repr(v any) string {
	switch x := v.(type) {
	case string:
		return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\t", `\t`).Replace(x) + "'"
	default:
		return stringify(v)
	}
}
