package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	dark "github.com/thiagokokada/dark-mode-go"
)

// ThemeWatcher follows the OS dark mode setting for the "system" theme.
type ThemeWatcher struct {
	changes   chan bool
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewThemeWatcher starts watching OS dark mode. It fails on platforms where
// dark mode cannot be observed; callers keep the theme resolved at startup.
func NewThemeWatcher(parent context.Context) (*ThemeWatcher, error) {
	ctx, cancel := context.WithCancel(parent)
	events, errs, err := dark.WatchDarkMode(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch dark mode: %w", err)
	}
	tw := &ThemeWatcher{
		changes: make(chan bool, 1),
		cancel:  cancel,
	}
	go tw.loop(ctx, events, errs)
	return tw, nil
}

func (tw *ThemeWatcher) loop(ctx context.Context, events <-chan bool, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case isDark, ok := <-events:
			if !ok {
				return
			}
			// Keep only the latest state.
			select {
			case <-tw.changes:
			default:
			}
			tw.changes <- isDark
		case err, ok := <-errs:
			if ok && err != nil {
				uiLog.Warn("theme_watcher_error", slog.String("error", err.Error()))
			}
		}
	}
}

// Changes delivers dark mode changes (true = dark).
func (tw *ThemeWatcher) Changes() <-chan bool {
	return tw.changes
}

// Close stops the watcher. Safe to call multiple times.
func (tw *ThemeWatcher) Close() {
	tw.closeOnce.Do(tw.cancel)
}
