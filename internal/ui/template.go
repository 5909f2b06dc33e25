package ui

import (
	"fmt"
	"slices"
)

// Fragment is a run of template text rendered in one style.
type Fragment struct {
	Style StyleTag
	Text  string
}

type templateKind int

const (
	plainTemplate templateKind = iota
	styledTemplate
)

// Template is either plain text rendered in the default style, or an ordered
// list of styled fragments. Build one with Plain or Styled.
type Template struct {
	kind      templateKind
	fragments []Fragment
}

// Plain returns a template rendered as a single unstyled fragment.
func Plain(text string) Template {
	return Template{kind: plainTemplate, fragments: []Fragment{{Text: text}}}
}

// Styled returns a template made of fragments, each substituted and styled
// independently.
func Styled(fragments ...Fragment) Template {
	return Template{kind: styledTemplate, fragments: slices.Clone(fragments)}
}

// IsStyled reports whether t was built with Styled.
func (t Template) IsStyled() bool { return t.kind == styledTemplate }

// Fragments returns a copy of the template's fragments.
func (t Template) Fragments() []Fragment { return slices.Clone(t.fragments) }

// Validate rejects fragments with unknown style tags.
func (t Template) Validate() error {
	for i, f := range t.fragments {
		if !ValidStyleTag(f.Style) {
			return fmt.Errorf("fragment %d: unknown style %q", i, f.Style)
		}
	}
	return nil
}

// Templates holds the template of each pane.
type Templates struct {
	Message    Template
	LineStatus Template
	InputMode  Template
}

// DefaultTemplates returns the stock pane layout.
func DefaultTemplates() Templates {
	return Templates{
		Message: Plain("Messages:\n{message}"),
		LineStatus: Styled(
			Fragment{Style: StyleDarkGray, Text: "P: {previous line}\n"},
			Fragment{Style: StyleDarkRed, Text: "C: {current line progress}"},
			Fragment{Style: StyleLightRed, Text: "{current line remainder}\n"},
			Fragment{Style: StyleDarkGray, Text: "N: {next line}\n"},
			Fragment{Text: "\n#: {current line number}/{total number lines}\n"},
		),
		InputMode: Plain("Input Mode: {input mode}"),
	}
}

// Validate checks every pane template.
func (t Templates) Validate() error {
	for name, tmpl := range map[string]Template{
		"message":     t.Message,
		"line_status": t.LineStatus,
		"input_mode":  t.InputMode,
	} {
		if err := tmpl.Validate(); err != nil {
			return fmt.Errorf("%s template: %w", name, err)
		}
	}
	return nil
}
