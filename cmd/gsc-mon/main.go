package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/gsc-tools/gsc-mon/internal/config"
	"github.com/gsc-tools/gsc-mon/internal/logging"
	"github.com/gsc-tools/gsc-mon/internal/status"
	"github.com/gsc-tools/gsc-mon/internal/transport"
	"github.com/gsc-tools/gsc-mon/internal/ui"
)

const Version = "0.3.0"

var errNotTerminal = errors.New("gsc-mon needs an interactive terminal")

// flags holds command-line overrides. Only flags the user set are applied.
type flags struct {
	configPath string
	mode       string
	interval   time.Duration
	request    string
	codec      string
	theme      string
	strict     bool
	debug      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "gsc-mon [host:port]",
		Short: "Watch the status of a guided-session driver",
		Long: `gsc-mon shows the live status of a guided-session driver: the message,
the previous, current and next script lines with typing progress, and the
input mode.

The driver is polled over UDP by default. With --mode push the driver's
status stream is read over TCP, or over WebSocket for ws:// endpoints.

Press q to quit.`,
		Args:          cobra.MaximumNArgs(1),
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(cmd.Flags(), f, args)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, path)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.configPath, "config", "c", "", "config file (default $GSC_MON_CONFIG or ~/.config/gsc-mon/config.toml)")
	fs.StringVarP(&f.mode, "mode", "m", "", "transport mode: poll or push")
	fs.DurationVarP(&f.interval, "interval", "i", 0, "poll interval in poll mode, heartbeat interval in push mode")
	fs.StringVar(&f.request, "request", "", "request token sent on each poll")
	fs.StringVar(&f.codec, "codec", "", "status encoding: json or cbor")
	fs.StringVar(&f.theme, "theme", "", "color theme: dark, light or system")
	fs.BoolVar(&f.strict, "strict", false, "treat template substitution failures as errors")
	fs.BoolVar(&f.debug, "debug", false, "write debug logs")
	return cmd
}

// loadConfig reads the config file and applies the positional endpoint and
// any flags that were set explicitly.
func loadConfig(fs *pflag.FlagSet, f flags, args []string) (*config.Config, string, error) {
	path := f.configPath
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return nil, "", err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}

	if len(args) > 0 {
		cfg.Endpoint = args[0]
	}
	if fs.Changed("mode") {
		cfg.Mode = f.mode
	}
	if fs.Changed("request") {
		cfg.Request = f.request
	}
	if fs.Changed("codec") {
		cfg.Codec = f.codec
	}
	if fs.Changed("theme") {
		cfg.Theme = f.theme
	}
	if fs.Changed("strict") {
		cfg.Strict = f.strict
	}
	if fs.Changed("debug") {
		cfg.Logs.Debug = f.debug
		if f.debug && cfg.Logs.Level == "info" {
			cfg.Logs.Level = "debug"
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	if fs.Changed("interval") {
		if f.interval <= 0 {
			return nil, "", fmt.Errorf("--interval must be positive, got %s", f.interval)
		}
		ms := max(int(f.interval/time.Millisecond), 1)
		if transport.Mode(cfg.Mode) == transport.ModePush {
			cfg.HeartbeatIntervalMS = ms
		} else {
			cfg.PollIntervalMS = ms
		}
	}
	return cfg, path, nil
}

// run connects to the driver and runs the monitor until the user quits or
// the transport fails.
func run(ctx context.Context, cfg *config.Config, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errNotTerminal
	}
	initColorProfile()

	logCfg := cfg.LoggingConfig()
	logging.Init(logCfg)
	defer logging.Shutdown()
	log := logging.ForComponent(logging.CompUI)
	if logCfg.Enabled() {
		stopDumps := handleDumpSignal(logCfg.LogDir)
		defer stopDumps()
	}
	log.Info("monitor_started",
		slog.Int("pid", os.Getpid()),
		slog.String("endpoint", cfg.Endpoint),
		slog.String("mode", cfg.Mode),
		slog.String("codec", cfg.Codec))

	settings, err := ui.SettingsFromConfig(cfg)
	if err != nil {
		return err
	}

	client, err := transport.Dial(ctx, transport.Options{
		Endpoint: cfg.Endpoint,
		Mode:     transport.Mode(cfg.Mode),
		Request:  cfg.Request,
		Interval: cfg.PollInterval(),
	})
	if err != nil {
		return err
	}
	defer client.Close()

	opts := ui.Options{
		Client:   client,
		Decoder:  status.NewDecoder(status.Codec(cfg.Codec)),
		Settings: settings,
		Interval: cfg.TickInterval(),
	}

	if w, err := config.NewWatcher(configPath, config.DefaultDebounce); err != nil {
		log.Debug("config_watch_unavailable", slog.String("error", err.Error()))
	} else {
		w.Start()
		defer w.Stop()
		opts.Reloads = ui.SettingsReloads(w.Changes())
	}

	// A reload may switch to the system theme, so OS changes are always
	// watched; the model ignores them for fixed themes.
	if tw, err := ui.NewThemeWatcher(ctx); err != nil {
		log.Debug("theme_watch_unavailable", slog.String("error", err.Error()))
	} else {
		defer tw.Close()
		opts.ThemeChanges = tw.Changes()
	}

	model := ui.NewModel(opts)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("run monitor: %w", err)
	}
	if m, ok := final.(*ui.Model); ok && m.Err() != nil {
		return m.Err()
	}
	return nil
}

// handleDumpSignal writes the in-memory log buffer to dir on SIGUSR1.
func handleDumpSignal(dir string) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	go func() {
		log := logging.ForComponent(logging.CompUI)
		for range ch {
			path := filepath.Join(dir, fmt.Sprintf("gsc-mon-dump-%d.jsonl", time.Now().Unix()))
			if err := logging.DumpRingBuffer(path); err != nil {
				log.Error("log_dump_failed", slog.String("error", err.Error()))
				continue
			}
			log.Info("log_dump_written", slog.String("path", path))
		}
	}()
	return func() {
		signal.Stop(ch)
		close(ch)
	}
}

// initColorProfile configures lipgloss color profile based on terminal capabilities.
// GSC_MON_COLOR overrides detection: truecolor, 256, 16, none.
func initColorProfile() {
	switch strings.ToLower(os.Getenv("GSC_MON_COLOR")) {
	case "truecolor", "true", "24bit":
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	case "256", "ansi256":
		lipgloss.SetColorProfile(termenv.ANSI256)
		return
	case "16", "ansi", "basic":
		lipgloss.SetColorProfile(termenv.ANSI)
		return
	case "none", "off", "ascii":
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}

	colorTerm := os.Getenv("COLORTERM")
	if colorTerm == "truecolor" || colorTerm == "24bit" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}
	lipgloss.SetColorProfile(termenv.EnvColorProfile())
}
