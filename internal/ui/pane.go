package ui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/gsc-tools/gsc-mon/internal/template"
)

// Segment is rendered text and the style it is displayed in.
type Segment struct {
	Style StyleTag
	Text  string
}

// Pane is a display region bound to a template. Its content changes only when
// a render succeeds or text is set directly.
type Pane struct {
	name     string
	tmpl     Template
	segments []Segment
}

// NewPane returns an empty pane rendering tmpl.
func NewPane(name string, tmpl Template) *Pane {
	return &Pane{name: name, tmpl: tmpl}
}

// Name returns the pane's name, used in logs and errors.
func (p *Pane) Name() string { return p.name }

// Template returns the pane's template.
func (p *Pane) Template() Template { return p.tmpl }

// SetTemplate replaces the template. Content is kept until the next render.
func (p *Pane) SetTemplate(tmpl Template) { p.tmpl = tmpl }

// Render substitutes every fragment against ctx and replaces the content.
// If any fragment fails the content is left unchanged.
func (p *Pane) Render(engine *template.Engine, ctx template.Context) error {
	segments, err := p.Prepare(engine, ctx)
	if err != nil {
		return err
	}
	p.Commit(segments)
	return nil
}

// Prepare substitutes every fragment against ctx without touching the
// content.
func (p *Pane) Prepare(engine *template.Engine, ctx template.Context) ([]Segment, error) {
	frags := p.tmpl.fragments
	segments := make([]Segment, 0, len(frags))
	for _, f := range frags {
		text, err := engine.Substitute(f.Text, ctx)
		if err != nil {
			return nil, err
		}
		segments = append(segments, Segment{Style: f.Style, Text: text})
	}
	return segments, nil
}

// Commit replaces the content with segments returned by Prepare.
func (p *Pane) Commit(segments []Segment) {
	p.segments = segments
}

// SetText replaces the content with text in one style.
func (p *Pane) SetText(style StyleTag, text string) {
	p.segments = []Segment{{Style: style, Text: text}}
}

// Segments returns a copy of the rendered content.
func (p *Pane) Segments() []Segment {
	out := make([]Segment, len(p.segments))
	copy(out, p.segments)
	return out
}

// Text returns the rendered content without styling.
func (p *Pane) Text() string {
	var b strings.Builder
	for _, s := range p.segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Lines returns the number of display lines View produces.
func (p *Pane) Lines() int {
	return strings.Count(p.Text(), "\n") + 1
}

// View returns the styled content. Each segment is styled one line at a time
// so colors never carry across a newline, and display lines wider than width
// are cut. A width of zero or less disables truncation.
func (p *Pane) View(pal Palette, width int) string {
	var b strings.Builder
	col := 0
	for _, seg := range p.segments {
		style := pal.Style(seg.Style)
		for i, piece := range strings.Split(seg.Text, "\n") {
			if i > 0 {
				b.WriteByte('\n')
				col = 0
			}
			if width > 0 {
				room := width - col
				if room <= 0 {
					continue
				}
				piece = runewidth.Truncate(piece, room, "")
			}
			if piece == "" {
				continue
			}
			col += runewidth.StringWidth(piece)
			b.WriteString(style.Render(piece))
		}
	}
	return b.String()
}
