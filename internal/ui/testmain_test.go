package ui

import (
	"os"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/gsc-tools/gsc-mon/internal/logging"
)

// TestMain renders without color so views can be compared as plain text,
// and keeps log output out of the test run.
func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	logging.Init(logging.Config{})

	code := m.Run()

	logging.Shutdown()
	os.Exit(code)
}
