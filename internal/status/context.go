package status

import (
	"math"
	"slices"
	"strconv"
)

// Wire field names. These are the protocol contract, not display strings.
const (
	FieldMessage      = "message"
	FieldPreviousLine = "previous line"
	FieldCurrentLine  = "current line"
	FieldNextLine     = "next line"
	FieldProgress     = "current line progress"
	FieldInputMode    = "input mode"
	FieldLineNumber   = "current line number"
	FieldTotalLines   = "total number lines"
)

// Derived field names, computed by the decoder.
const (
	FieldRemainder     = "current line remainder"
	FieldInputModeName = "input mode name"
)

var wireFields = []string{
	FieldMessage,
	FieldPreviousLine,
	FieldCurrentLine,
	FieldNextLine,
	FieldProgress,
	FieldInputMode,
	FieldLineNumber,
	FieldTotalLines,
}

var derivedFields = []string{FieldRemainder, FieldInputModeName}

// Context is an ordered, read-only mapping from field name to value. Known
// wire fields come first in protocol order, then any unknown wire fields
// sorted by name, then derived fields.
type Context struct {
	keys   []string
	values map[string]any
}

// NewContext builds a Context from fields. It is used for locally generated
// contexts such as error messages; decoded contexts come from a Decoder.
func NewContext(fields map[string]any) *Context {
	c := &Context{values: make(map[string]any, len(fields))}
	for _, name := range wireFields {
		if v, ok := fields[name]; ok {
			c.set(name, v)
		}
	}
	var extra []string
	for name := range fields {
		if !slices.Contains(wireFields, name) && !slices.Contains(derivedFields, name) {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)
	for _, name := range extra {
		c.set(name, fields[name])
	}
	for _, name := range derivedFields {
		if v, ok := fields[name]; ok {
			c.set(name, v)
		}
	}
	return c
}

// WithDefaults returns a Context holding every field of c plus any field of
// defaults that c lacks. c is not modified.
func (c *Context) WithDefaults(defaults map[string]any) *Context {
	merged := c.Map()
	for k, v := range defaults {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return NewContext(merged)
}

func (c *Context) set(name string, v any) {
	if _, exists := c.values[name]; !exists {
		c.keys = append(c.keys, name)
	}
	c.values[name] = v
}

// Lookup returns the value for name.
func (c *Context) Lookup(name string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.values[name]
	return v, ok
}

// Keys returns the field names in order.
func (c *Context) Keys() []string {
	if c == nil {
		return nil
	}
	return slices.Clone(c.keys)
}

// Len returns the number of fields.
func (c *Context) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Map returns a copy of the fields as a plain map.
func (c *Context) Map() map[string]any {
	out := make(map[string]any, c.Len())
	for _, k := range c.Keys() {
		out[k] = c.values[k]
	}
	return out
}

// Text returns the text form of a field and whether it is present.
func (c *Context) Text(name string) (string, bool) {
	v, ok := c.Lookup(name)
	if !ok {
		return "", false
	}
	return textOf(v), true
}

// Int returns a field as an integer. Numbers sent as strings are parsed.
func (c *Context) Int(name string) (int, bool) {
	v, ok := c.Lookup(name)
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case int64:
		return int(x), true
	case float64:
		if x == math.Trunc(x) {
			return int(x), true
		}
	case string:
		if n, err := strconv.Atoi(x); err == nil {
			return n, true
		}
	}
	return 0, false
}

func (c *Context) Message() (string, bool)       { return c.Text(FieldMessage) }
func (c *Context) PreviousLine() (string, bool)  { return c.Text(FieldPreviousLine) }
func (c *Context) CurrentLine() (string, bool)   { return c.Text(FieldCurrentLine) }
func (c *Context) NextLine() (string, bool)      { return c.Text(FieldNextLine) }
func (c *Context) Progress() (string, bool)      { return c.Text(FieldProgress) }
func (c *Context) Remainder() (string, bool)     { return c.Text(FieldRemainder) }
func (c *Context) InputMode() (string, bool)     { return c.Text(FieldInputMode) }
func (c *Context) InputModeName() (string, bool) { return c.Text(FieldInputModeName) }
func (c *Context) LineNumber() (int, bool)       { return c.Int(FieldLineNumber) }
func (c *Context) TotalLines() (int, bool)       { return c.Int(FieldTotalLines) }

func textOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	b, err := jsonText(v)
	if err != nil {
		return ""
	}
	return b
}
