package template

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// formatSpec is a parsed format mini-language spec.
type formatSpec struct {
	fill      rune // 0 means unset
	align     byte // 0, '<', '>', '^', '='
	sign      byte // 0, '+', '-', ' '
	alt       bool
	zero      bool
	width     int
	grouping  byte // 0, ',', '_'
	precision int  // -1 means unset
	typ       byte // 0 means default for the value
}

// maxSpecNumber bounds width and precision. Nested specs take these from
// status values, so an oversized one must fail instead of allocating.
const maxSpecNumber = 1 << 16

func isAlign(r rune) bool {
	return r == '<' || r == '>' || r == '^' || r == '='
}

func parseSpec(s string) (formatSpec, error) {
	spec := formatSpec{precision: -1}
	if s == "" {
		return spec, nil
	}
	invalid := func() (formatSpec, error) {
		return formatSpec{}, fmt.Errorf("%w %q", ErrInvalidSpec, s)
	}

	rest := s
	first, n1 := utf8.DecodeRuneInString(rest)
	if second, n2 := utf8.DecodeRuneInString(rest[n1:]); n2 > 0 && isAlign(second) {
		spec.fill, spec.align = first, byte(second)
		rest = rest[n1+n2:]
	} else if isAlign(first) {
		spec.align = byte(first)
		rest = rest[n1:]
	}

	if rest != "" && strings.IndexByte("+- ", rest[0]) >= 0 {
		spec.sign = rest[0]
		rest = rest[1:]
	}
	if rest != "" && rest[0] == 'z' {
		rest = rest[1:]
	}
	if rest != "" && rest[0] == '#' {
		spec.alt = true
		rest = rest[1:]
	}
	if rest != "" && rest[0] == '0' {
		spec.zero = true
		rest = rest[1:]
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		w, err := strconv.Atoi(rest[:digits])
		if err != nil || w > maxSpecNumber {
			return invalid()
		}
		spec.width = w
		rest = rest[digits:]
	}

	if rest != "" && (rest[0] == ',' || rest[0] == '_') {
		spec.grouping = rest[0]
		rest = rest[1:]
	}

	if rest != "" && rest[0] == '.' {
		rest = rest[1:]
		digits = 0
		for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
			digits++
		}
		if digits == 0 {
			return invalid()
		}
		p, err := strconv.Atoi(rest[:digits])
		if err != nil || p > maxSpecNumber {
			return invalid()
		}
		spec.precision = p
		rest = rest[digits:]
	}

	switch len(rest) {
	case 0:
	case 1:
		if strings.IndexByte("bcdeEfFgGnosxX%", rest[0]) < 0 {
			return invalid()
		}
		spec.typ = rest[0]
	default:
		return invalid()
	}
	return spec, nil
}

// formatValue renders v according to spec.
func formatValue(v any, spec formatSpec) (string, error) {
	switch x := v.(type) {
	case nil:
		if spec != (formatSpec{precision: -1}) {
			return "", fmt.Errorf("%w: None", ErrTypeMismatch)
		}
		return "None", nil
	case string:
		return formatString(x, spec)
	case bool:
		if spec.typ == 0 || spec.typ == 's' {
			if x {
				return formatString("True", spec)
			}
			return formatString("False", spec)
		}
		if x {
			return formatInt(1, spec)
		}
		return formatInt(0, spec)
	case int:
		return formatInt(int64(x), spec)
	case int32:
		return formatInt(int64(x), spec)
	case int64:
		return formatInt(x, spec)
	case uint64:
		if x > math.MaxInt64 {
			return formatFloat(float64(x), spec)
		}
		return formatInt(int64(x), spec)
	case float32:
		return formatFloat(float64(x), spec)
	case float64:
		return formatFloat(x, spec)
	case fmt.Stringer:
		return formatString(x.String(), spec)
	}
	return formatString(fmt.Sprint(v), spec)
}

func formatString(s string, spec formatSpec) (string, error) {
	switch spec.typ {
	case 0, 's':
	default:
		// Status records carry numbers as strings; numeric types apply to
		// any string that parses as a number.
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return formatInt(i, spec)
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return formatFloat(f, spec)
		}
		return "", fmt.Errorf("%w: %q with type %q", ErrTypeMismatch, s, string(spec.typ))
	}
	if spec.sign != 0 || spec.align == '=' || spec.grouping != 0 || spec.alt {
		return "", fmt.Errorf("%w: sign, '=', grouping and '#' need a number", ErrInvalidSpec)
	}
	if spec.precision >= 0 && utf8.RuneCountInString(s) > spec.precision {
		s = truncateRunes(s, spec.precision)
	}
	return pad("", s, spec, '<'), nil
}

func formatInt(i int64, spec formatSpec) (string, error) {
	switch spec.typ {
	case 'e', 'E', 'f', 'F', 'g', 'G', '%':
		return formatFloat(float64(i), spec)
	case 's':
		return "", fmt.Errorf("%w: integer with type 's'", ErrTypeMismatch)
	}
	if spec.precision >= 0 {
		return "", fmt.Errorf("%w: precision not allowed for integers", ErrInvalidSpec)
	}

	neg := i < 0
	mag := uint64(i)
	if neg {
		mag = uint64(-i)
	}

	var digits, prefix string
	groupEvery := 3
	switch spec.typ {
	case 0, 'd', 'n':
		digits = strconv.FormatUint(mag, 10)
	case 'b':
		digits, prefix, groupEvery = strconv.FormatUint(mag, 2), "0b", 4
	case 'o':
		digits, prefix, groupEvery = strconv.FormatUint(mag, 8), "0o", 4
	case 'x':
		digits, prefix, groupEvery = strconv.FormatUint(mag, 16), "0x", 4
	case 'X':
		digits, prefix, groupEvery = strings.ToUpper(strconv.FormatUint(mag, 16)), "0X", 4
	case 'c':
		if neg || mag > utf8.MaxRune {
			return "", fmt.Errorf("%w: %d is not a code point", ErrTypeMismatch, i)
		}
		if spec.sign != 0 {
			return "", fmt.Errorf("%w: sign not allowed with 'c'", ErrInvalidSpec)
		}
		return pad("", string(rune(mag)), spec, '<'), nil
	}
	if !spec.alt {
		prefix = ""
	}

	if spec.grouping != 0 {
		if groupEvery == 4 && spec.grouping == ',' {
			return "", fmt.Errorf("%w: ',' needs a decimal type", ErrInvalidSpec)
		}
		digits = group(digits, spec.grouping, groupEvery)
	}
	return pad(signOf(neg, spec.sign)+prefix, digits, spec, '>'), nil
}

func formatFloat(f float64, spec formatSpec) (string, error) {
	switch spec.typ {
	case 'b', 'c', 'd', 'o', 'x', 'X':
		return "", fmt.Errorf("%w: float with type %q", ErrTypeMismatch, string(spec.typ))
	case 's':
		return "", fmt.Errorf("%w: float with type 's'", ErrTypeMismatch)
	}

	neg := math.Signbit(f) && !math.IsNaN(f)
	mag := math.Abs(f)

	prec := spec.precision
	var body string
	switch {
	case math.IsInf(mag, 0):
		body = "inf"
	case math.IsNaN(mag):
		body = "nan"
	default:
		switch spec.typ {
		case 'f', 'F':
			if prec < 0 {
				prec = 6
			}
			body = strconv.FormatFloat(mag, 'f', prec, 64)
		case 'e', 'E':
			if prec < 0 {
				prec = 6
			}
			body = strconv.FormatFloat(mag, 'e', prec, 64)
		case 'g', 'G', 'n':
			if prec < 0 {
				prec = 6
			}
			if prec == 0 {
				prec = 1
			}
			body = strconv.FormatFloat(mag, 'g', prec, 64)
		case '%':
			if prec < 0 {
				prec = 6
			}
			body = strconv.FormatFloat(mag*100, 'f', prec, 64) + "%"
		default:
			if prec >= 0 {
				body = strconv.FormatFloat(mag, 'g', max(prec, 1), 64)
			} else {
				body = shortFloat(mag)
			}
		}
	}
	if spec.typ == 'E' || spec.typ == 'F' || spec.typ == 'G' {
		body = strings.ToUpper(body)
	}

	if spec.grouping != 0 {
		intPart, frac := body, ""
		if idx := strings.IndexAny(body, ".e%"); idx >= 0 {
			intPart, frac = body[:idx], body[idx:]
		}
		body = group(intPart, spec.grouping, 3) + frac
	}
	return pad(signOf(neg, spec.sign), body, spec, '>'), nil
}

// shortFloat renders the shortest round-tripping form, switching to
// exponent notation outside [1e-4, 1e16) and always keeping a decimal point.
func shortFloat(f float64) string {
	if f != 0 {
		exp := math.Floor(math.Log10(f))
		if exp < -4 || exp >= 16 {
			return strconv.FormatFloat(f, 'e', -1, 64)
		}
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func signOf(neg bool, sign byte) string {
	switch {
	case neg:
		return "-"
	case sign == '+':
		return "+"
	case sign == ' ':
		return " "
	}
	return ""
}

func group(digits string, sep byte, every int) string {
	if len(digits) <= every {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % every
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += every {
		if b.Len() > 0 {
			b.WriteByte(sep)
		}
		b.WriteString(digits[i : i+every])
	}
	return b.String()
}

// pad applies fill, alignment and width. prefix is the sign and base prefix,
// which '=' alignment keeps ahead of the padding.
func pad(prefix, body string, spec formatSpec, defaultAlign byte) string {
	fill, align := spec.fill, spec.align
	if spec.zero {
		if fill == 0 {
			fill = '0'
		}
		if align == 0 && defaultAlign == '>' {
			align = '='
		}
	}
	if fill == 0 {
		fill = ' '
	}
	if align == 0 {
		align = defaultAlign
	}

	n := spec.width - utf8.RuneCountInString(prefix) - utf8.RuneCountInString(body)
	if n <= 0 {
		return prefix + body
	}
	padding := strings.Repeat(string(fill), n)
	switch align {
	case '<':
		return prefix + body + padding
	case '^':
		left := strings.Repeat(string(fill), n/2)
		right := strings.Repeat(string(fill), n-n/2)
		return left + prefix + body + right
	case '=':
		return prefix + padding + body
	}
	return padding + prefix + body
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
