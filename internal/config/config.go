// Package config loads gsc-mon's TOML configuration and watches it for changes.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/gsc-tools/gsc-mon/internal/logging"
	"github.com/gsc-tools/gsc-mon/internal/status"
	"github.com/gsc-tools/gsc-mon/internal/template"
	"github.com/gsc-tools/gsc-mon/internal/transport"
)

var configLog = logging.ForComponent(logging.CompConfig)

// FileName is the config file inside the config directory.
const FileName = "config.toml"

// EnvPath overrides the config file location.
const EnvPath = "GSC_MON_CONFIG"

const (
	DefaultHeartbeatIntervalMS = 1000
	DefaultTheme               = "dark"
)

// Config is the user configuration. Zero values mean "use the default".
type Config struct {
	// Endpoint is host:port, or a udp://, tcp://, ws:// or wss:// URL
	Endpoint string `toml:"endpoint"`

	// Mode is "poll" (default) or "push"
	Mode string `toml:"mode"`

	// PollIntervalMS is the delay between poll requests (default: 100)
	PollIntervalMS int `toml:"poll_interval_ms"`

	// HeartbeatIntervalMS is the push-mode heartbeat period (default: 1000)
	HeartbeatIntervalMS int `toml:"heartbeat_interval_ms"`

	// Request is the token sent on each poll (default: "update")
	Request string `toml:"request"`

	// Codec is the wire format: "json" (default) or "cbor"
	Codec string `toml:"codec"`

	// Strict makes substitution failures errors instead of warnings
	Strict bool `toml:"strict"`

	// Theme is "dark" (default), "light" or "system"
	Theme string `toml:"theme"`

	Delimiters Delimiters `toml:"delimiters"`
	Templates  Templates  `toml:"templates"`
	Logs       Logs       `toml:"logs"`
}

// Delimiters mark substitution expressions in templates.
type Delimiters struct {
	Open  string `toml:"open"`
	Close string `toml:"close"`
}

// Templates override the pane layout. Empty values keep the built-in layout.
type Templates struct {
	Message    string     `toml:"message"`
	InputMode  string     `toml:"input_mode"`
	LineStatus []Fragment `toml:"line_status"`
}

// Fragment is one styled run of the line status template.
type Fragment struct {
	Style string `toml:"style"`
	Text  string `toml:"text"`
}

// Logs configures the debug log file.
type Logs struct {
	Debug          bool   `toml:"debug"`
	Dir            string `toml:"dir"`
	Level          string `toml:"level"`
	Format         string `toml:"format"`
	MaxSizeMB      int    `toml:"max_size_mb"`
	MaxBackups     int    `toml:"max_backups"`
	MaxAgeDays     int    `toml:"max_age_days"`
	Compress       bool   `toml:"compress"`
	RingBufferSize int    `toml:"ring_buffer_size"`
}

// ValidationError reports a config value that cannot be used.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

var (
	errUnknownTheme     = errors.New("must be dark, light or system")
	errNegativeInterval = errors.New("must not be negative")
)

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = transport.DefaultEndpoint
	}
	if c.Mode == "" {
		c.Mode = string(transport.ModePoll)
	}
	if c.PollIntervalMS <= 0 {
		c.PollIntervalMS = int(transport.DefaultInterval / time.Millisecond)
	}
	if c.HeartbeatIntervalMS <= 0 {
		c.HeartbeatIntervalMS = DefaultHeartbeatIntervalMS
	}
	if c.Request == "" {
		c.Request = transport.DefaultRequest
	}
	if c.Codec == "" {
		c.Codec = string(status.CodecJSON)
	}
	if c.Theme == "" {
		c.Theme = DefaultTheme
	}
	if c.Delimiters.Open == "" {
		c.Delimiters.Open = template.DefaultOpen
	}
	if c.Delimiters.Close == "" {
		c.Delimiters.Close = template.DefaultClose
	}
	if c.Logs.Level == "" {
		c.Logs.Level = "info"
	}
	if c.Logs.Format == "" {
		c.Logs.Format = "json"
	}
}

// Path returns the config file location: $GSC_MON_CONFIG if set, otherwise
// ~/.config/gsc-mon/config.toml.
func Path() (string, error) {
	if p := os.Getenv(EnvPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".config", "gsc-mon", FileName), nil
}

// Load reads the config at path. A missing file yields the defaults.
// Unknown keys are logged and ignored.
func Load(path string) (*Config, error) {
	var c Config
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		configLog.Warn("config_unknown_key",
			slog.String("path", path),
			slog.String("key", key.String()))
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks enumerated values and normalizes their case. Callers
// applying flag overrides should validate again afterwards.
func (c *Config) Validate() error {
	mode, err := transport.ParseMode(c.Mode)
	if err != nil {
		return &ValidationError{Field: "mode", Value: c.Mode, Err: err}
	}
	c.Mode = string(mode)
	codec, err := status.ParseCodec(c.Codec)
	if err != nil {
		return &ValidationError{Field: "codec", Value: c.Codec, Err: err}
	}
	c.Codec = string(codec)
	theme := strings.ToLower(strings.TrimSpace(c.Theme))
	switch theme {
	case "dark", "light", "system":
		c.Theme = theme
	default:
		return &ValidationError{Field: "theme", Value: c.Theme, Err: errUnknownTheme}
	}
	if _, err := transport.ParseEndpoint(c.Endpoint, mode); err != nil {
		return &ValidationError{Field: "endpoint", Value: c.Endpoint, Err: err}
	}
	if c.PollIntervalMS < 0 || c.HeartbeatIntervalMS < 0 {
		return &ValidationError{Field: "interval", Value: fmt.Sprint(min(c.PollIntervalMS, c.HeartbeatIntervalMS)), Err: errNegativeInterval}
	}
	return nil
}

// PollInterval returns the poll period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// HeartbeatInterval returns the push-mode heartbeat period.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMS) * time.Millisecond
}

// TickInterval returns the event loop's timer period for the configured mode.
func (c *Config) TickInterval() time.Duration {
	if transport.Mode(c.Mode) == transport.ModePush {
		return c.HeartbeatInterval()
	}
	return c.PollInterval()
}

// Policy returns the substitution failure policy.
func (c *Config) Policy() template.FailurePolicy {
	if c.Strict {
		return template.PropagateError
	}
	return template.WarnAndContinue
}

// LogDir returns the configured log directory, or ~/.local/state/gsc-mon
// when debug logging is on and none is set.
func (c *Config) LogDir() string {
	if c.Logs.Dir != "" || !c.Logs.Debug {
		return c.Logs.Dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "gsc-mon")
}

// LoggingConfig converts the [logs] section for logging.Init.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		LogDir:         c.LogDir(),
		Level:          c.Logs.Level,
		Format:         c.Logs.Format,
		MaxSizeMB:      c.Logs.MaxSizeMB,
		MaxBackups:     c.Logs.MaxBackups,
		MaxAgeDays:     c.Logs.MaxAgeDays,
		Compress:       c.Logs.Compress,
		RingBufferSize: c.Logs.RingBufferSize,
		Debug:          c.Logs.Debug,
	}
}
