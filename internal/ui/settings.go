package ui

import (
	"log/slog"

	"github.com/gsc-tools/gsc-mon/internal/config"
	"github.com/gsc-tools/gsc-mon/internal/template"
)

// SettingsFromConfig builds the display settings described by cfg. Template
// overrides replace the built-in layout pane by pane.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	tmpls := DefaultTemplates()
	if cfg.Templates.Message != "" {
		tmpls.Message = Plain(cfg.Templates.Message)
	}
	if cfg.Templates.InputMode != "" {
		tmpls.InputMode = Plain(cfg.Templates.InputMode)
	}
	if len(cfg.Templates.LineStatus) > 0 {
		frags := make([]Fragment, 0, len(cfg.Templates.LineStatus))
		for _, f := range cfg.Templates.LineStatus {
			frags = append(frags, Fragment{Style: StyleTag(f.Style), Text: f.Text})
		}
		tmpls.LineStatus = Styled(frags...)
	}
	if err := tmpls.Validate(); err != nil {
		return Settings{}, err
	}

	return Settings{
		Templates: tmpls,
		Engine: template.New(
			template.WithDelimiters(cfg.Delimiters.Open, cfg.Delimiters.Close),
			template.WithPolicy(cfg.Policy()),
		),
		Theme: ParseTheme(cfg.Theme),
	}, nil
}

// SettingsReloads converts reloaded configs into settings for the model.
// Configs whose templates are invalid are logged and skipped. The returned
// channel closes when configs closes.
func SettingsReloads(configs <-chan *config.Config) <-chan Settings {
	out := make(chan Settings, 1)
	go func() {
		defer close(out)
		for cfg := range configs {
			s, err := SettingsFromConfig(cfg)
			if err != nil {
				uiLog.Warn("settings_rejected", slog.String("error", err.Error()))
				continue
			}
			out <- s
		}
	}()
	return out
}
