package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/gsc-tools/gsc-mon/internal/logging"
	"github.com/gsc-tools/gsc-mon/internal/status"
	"github.com/gsc-tools/gsc-mon/internal/template"
	"github.com/gsc-tools/gsc-mon/internal/transport"
)

var uiLog = logging.ForComponent(logging.CompUI)

// NoMessage is shown in the message pane when a status carries no message.
const NoMessage = "None"

const defaultWidth = 80

// Settings are the parts of the display that can change while running.
type Settings struct {
	Templates Templates
	Engine    *template.Engine
	Theme     Theme
}

// Options configure a Model.
type Options struct {
	Client   transport.Client
	Decoder  *status.Decoder
	Settings Settings

	// Interval is the tick cadence: the poll interval in poll mode, the
	// heartbeat interval in push mode. Zero sends one tick at start only.
	Interval time.Duration

	// Reloads delivers new settings, typically from the config watcher.
	Reloads <-chan Settings
	// ThemeChanges delivers OS dark mode changes (true = dark).
	ThemeChanges <-chan bool
}

// Messages handled by the model.
type (
	statusMsg       []byte
	transportErrMsg struct{ err error }
	tickMsg         time.Time
	settingsMsg     Settings
	themeChangedMsg bool
)

// Model is the monitor session: it owns the transport client, the decoder,
// the substitution engine and the three panes. bubbletea calls Update on a
// single goroutine, so each render pass sees one status in full.
type Model struct {
	client   transport.Client
	decoder  *status.Decoder
	engine   *template.Engine
	keys     KeyMap
	theme    Theme
	palette  Palette
	interval time.Duration

	reloads      <-chan Settings
	themeChanges <-chan bool

	message    *Pane
	lineStatus *Pane
	inputMode  *Pane

	width, height int
	renders       int
	err           error
	quitting      bool
}

// NewModel builds the session from opts.
func NewModel(opts Options) *Model {
	s := opts.Settings
	if s.Engine == nil {
		s.Engine = template.New()
	}
	if s.Theme == "" {
		s.Theme = ThemeDark
	}
	decoder := opts.Decoder
	if decoder == nil {
		decoder = status.NewDecoder(status.CodecJSON)
	}
	return &Model{
		client:       opts.Client,
		decoder:      decoder,
		engine:       s.Engine,
		keys:         DefaultKeyMap(),
		theme:        s.Theme,
		palette:      NewPalette(s.Theme),
		interval:     opts.Interval,
		reloads:      opts.Reloads,
		themeChanges: opts.ThemeChanges,
		message:      NewPane("message", s.Templates.Message),
		lineStatus:   NewPane("line_status", s.Templates.LineStatus),
		inputMode:    NewPane("input_mode", s.Templates.InputMode),
	}
}

// Init starts the message listener and fires the first tick immediately.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitForStatus(m.client),
		func() tea.Msg { return tickMsg(time.Now()) },
	}
	if m.reloads != nil {
		cmds = append(cmds, listenForSettings(m.reloads))
	}
	if m.themeChanges != nil {
		cmds = append(cmds, listenForThemeChange(m.themeChanges))
	}
	return tea.Batch(cmds...)
}

// Update handles one event.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, m.quit()
		}
		return m, nil

	case statusMsg:
		m.handleStatus([]byte(msg))
		return m, waitForStatus(m.client)

	case transportErrMsg:
		if m.quitting {
			return m, nil
		}
		err := msg.err
		if err == nil {
			err = &transport.TransportError{Op: "read", Endpoint: m.client.Endpoint(), Err: transport.ErrClosed}
		}
		return m, m.fail(err)

	case tickMsg:
		if m.quitting {
			return m, nil
		}
		if err := m.client.Tick(); err != nil {
			if errors.Is(err, transport.ErrClosed) {
				return m, nil
			}
			return m, m.fail(err)
		}
		return m, m.nextTick()

	case settingsMsg:
		m.apply(Settings(msg))
		return m, listenForSettings(m.reloads)

	case themeChangedMsg:
		if m.theme == ThemeSystem {
			resolved := ThemeLight
			if bool(msg) {
				resolved = ThemeDark
			}
			m.palette = NewPalette(resolved)
			uiLog.Info("theme_changed", slog.String("theme", string(resolved)))
		}
		return m, listenForThemeChange(m.themeChanges)
	}
	return m, nil
}

// View draws the message pane at the top, the line status under a divider,
// and the input mode pane at the bottom above the footer.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}

	used := m.message.Lines() + 1 + m.lineStatus.Lines() + m.inputMode.Lines() + 1
	gap := 0
	if m.height > used {
		gap = m.height - used
	}

	var b strings.Builder
	b.WriteString(m.message.View(m.palette, m.width))
	b.WriteByte('\n')
	b.WriteString(m.palette.Style(StyleDivider).Render(strings.Repeat("─", width)))
	b.WriteByte('\n')
	b.WriteString(m.lineStatus.View(m.palette, m.width))
	b.WriteString(strings.Repeat("\n", gap+1))
	b.WriteString(m.inputMode.View(m.palette, m.width))
	b.WriteByte('\n')
	b.WriteString(m.footer(width))
	return b.String()
}

func (m *Model) footer(width int) string {
	text := fmt.Sprintf("%s %s · %d updates · %s %s",
		m.client.Mode(), m.client.Endpoint(), m.renders,
		m.keys.Quit.Help().Key, m.keys.Quit.Help().Desc)
	return m.palette.Style(StyleFooter).Render(runewidth.Truncate(text, width, "…"))
}

// Err returns the transport error that ended the session, if any.
func (m *Model) Err() error { return m.err }

// Renders returns how many status messages have been rendered.
func (m *Model) Renders() int { return m.renders }

// MessagePane returns the pane showing driver messages and errors.
func (m *Model) MessagePane() *Pane { return m.message }

// LineStatusPane returns the pane showing the script lines.
func (m *Model) LineStatusPane() *Pane { return m.lineStatus }

// InputModePane returns the pane showing the input mode.
func (m *Model) InputModePane() *Pane { return m.inputMode }

// Palette returns the active palette.
func (m *Model) Palette() Palette { return m.palette }

// handleStatus decodes one message and renders every pane from it. Panes
// change together or not at all; failures are shown in the message pane.
func (m *Model) handleStatus(raw []byte) {
	m.renders++
	ctx, err := m.decoder.Decode(raw)
	if err != nil {
		m.showError(err, raw)
		return
	}
	if err := m.render(ctx); err != nil {
		m.showError(err, raw)
	}
}

// render prepares all panes from ctx and commits them only if every pane
// succeeded.
func (m *Model) render(ctx *status.Context) error {
	rc := ctx.WithDefaults(map[string]any{status.FieldMessage: NoMessage})
	panes := []*Pane{m.message, m.lineStatus, m.inputMode}
	staged := make([][]Segment, len(panes))
	var errs []error
	for i, p := range panes {
		segments, err := p.Prepare(m.engine, rc)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s pane: %w", p.Name(), err))
			continue
		}
		staged[i] = segments
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	for i, p := range panes {
		p.Commit(staged[i])
	}
	return nil
}

func (m *Model) showError(err error, raw []byte) {
	uiLog.Warn("status_render_failed",
		slog.String("error", err.Error()),
		slog.Int("bytes", len(raw)))

	text := fmt.Sprintf("There was an error:\n%v\n%s", err, printable(raw))
	ectx := status.NewContext(map[string]any{status.FieldMessage: text})
	if rerr := m.message.Render(m.engine, ectx); rerr != nil {
		m.message.SetText(StyleError, text)
	}
}

func (m *Model) apply(s Settings) {
	if s.Engine != nil {
		m.engine = s.Engine
	}
	m.message.SetTemplate(s.Templates.Message)
	m.lineStatus.SetTemplate(s.Templates.LineStatus)
	m.inputMode.SetTemplate(s.Templates.InputMode)
	if s.Theme != "" {
		m.theme = s.Theme
		m.palette = NewPalette(s.Theme)
	}
	open, closing := m.engine.Delimiters()
	uiLog.Info("settings_applied",
		slog.String("theme", string(m.theme)),
		slog.String("policy", m.engine.Policy().String()),
		slog.String("open", open),
		slog.String("close", closing))
}

func (m *Model) nextTick() tea.Cmd {
	if m.interval <= 0 {
		return nil
	}
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) quit() tea.Cmd {
	m.quitting = true
	m.closeClient()
	return tea.Quit
}

func (m *Model) fail(err error) tea.Cmd {
	m.err = err
	uiLog.Error("transport_failed", slog.String("error", err.Error()))
	return m.quit()
}

func (m *Model) closeClient() {
	if err := m.client.Close(); err != nil {
		uiLog.Debug("client_close_failed", slog.String("error", err.Error()))
	}
}

// waitForStatus blocks until the client delivers a message or stops.
func waitForStatus(c transport.Client) tea.Cmd {
	return func() tea.Msg {
		raw, ok := <-c.Messages()
		if !ok {
			return transportErrMsg{err: c.Err()}
		}
		return statusMsg(raw)
	}
}

func listenForSettings(ch <-chan Settings) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return settingsMsg(s)
	}
}

func listenForThemeChange(ch <-chan bool) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		isDark, ok := <-ch
		if !ok {
			return nil
		}
		return themeChangedMsg(isDark)
	}
}

// printable makes raw bytes safe to draw: invalid UTF-8 and control
// characters other than newline and tab are replaced.
func printable(raw []byte) string {
	s := strings.ToValidUTF8(string(raw), "�")
	return strings.Map(func(r rune) rune {
		if r != '\n' && r != '\t' && unicode.IsControl(r) {
			return '�'
		}
		return r
	}, s)
}
