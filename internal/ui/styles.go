package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	dark "github.com/thiagokokada/dark-mode-go"
)

// Theme represents the color scheme
type Theme string

const (
	ThemeDark   Theme = "dark"
	ThemeLight  Theme = "light"
	ThemeSystem Theme = "system"
)

// ParseTheme maps a config value to a Theme. Unknown names fall back to dark.
func ParseTheme(name string) Theme {
	switch Theme(strings.ToLower(strings.TrimSpace(name))) {
	case ThemeLight:
		return ThemeLight
	case ThemeSystem:
		return ThemeSystem
	default:
		return ThemeDark
	}
}

// Resolve turns ThemeSystem into dark or light by asking the OS.
// Detection failure resolves to dark.
func (t Theme) Resolve() Theme {
	if t != ThemeSystem {
		return t
	}
	isDark, err := dark.IsDarkMode()
	if err != nil || isDark {
		return ThemeDark
	}
	return ThemeLight
}

type colors struct {
	Bg, Surface, Text, TextDim lipgloss.Color
	Gray, Comment              lipgloss.Color
	Red, DarkRed, Purple       lipgloss.Color
	Accent                     lipgloss.Color
}

// Dark Theme - Tokyo Night
var darkColors = colors{
	Bg:      lipgloss.Color("#1a1b26"),
	Surface: lipgloss.Color("#24283b"),
	Text:    lipgloss.Color("#c0caf5"),
	TextDim: lipgloss.Color("#787fa0"),
	Gray:    lipgloss.Color("#a9b1d6"),
	Comment: lipgloss.Color("#565f89"),
	Red:     lipgloss.Color("#f7768e"),
	DarkRed: lipgloss.Color("#db4b4b"),
	Purple:  lipgloss.Color("#bb9af7"),
	Accent:  lipgloss.Color("#7aa2f7"),
}

// Light Theme - Tokyo Night Light variant
var lightColors = colors{
	Bg:      lipgloss.Color("#d5d6db"),
	Surface: lipgloss.Color("#e9e9ec"),
	Text:    lipgloss.Color("#343b58"),
	TextDim: lipgloss.Color("#6a6d7c"),
	Gray:    lipgloss.Color("#565a6e"),
	Comment: lipgloss.Color("#9699a3"),
	Red:     lipgloss.Color("#8c4351"),
	DarkRed: lipgloss.Color("#6d2b37"),
	Purple:  lipgloss.Color("#7847bd"),
	Accent:  lipgloss.Color("#34548a"),
}

// StyleTag names a palette entry. The empty tag is the default style.
type StyleTag string

const (
	StyleDefault   StyleTag = ""
	StyleLightGray StyleTag = "light-gray"
	StyleDarkGray  StyleTag = "dark-gray"
	StyleDarkRed   StyleTag = "dark-red"
	StyleLightRed  StyleTag = "light-red"
	StyleDivider   StyleTag = "divider"
	StyleError     StyleTag = "error"
	StyleFooter    StyleTag = "footer"
)

// StyleTags lists the tags a template fragment may use.
var StyleTags = []StyleTag{
	StyleDefault,
	StyleLightGray,
	StyleDarkGray,
	StyleDarkRed,
	StyleLightRed,
	StyleDivider,
	StyleError,
}

// ValidStyleTag reports whether tag names a palette entry.
func ValidStyleTag(tag StyleTag) bool {
	for _, t := range StyleTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Palette maps style tags to lipgloss styles for one theme.
type Palette struct {
	theme  Theme
	styles map[StyleTag]lipgloss.Style
}

// NewPalette builds the palette for theme. ThemeSystem is resolved first.
func NewPalette(theme Theme) Palette {
	theme = theme.Resolve()
	c := darkColors
	if theme == ThemeLight {
		c = lightColors
	}
	return Palette{
		theme: theme,
		styles: map[StyleTag]lipgloss.Style{
			StyleDefault:   lipgloss.NewStyle().Foreground(c.Text),
			StyleLightGray: lipgloss.NewStyle().Foreground(c.Gray),
			StyleDarkGray:  lipgloss.NewStyle().Foreground(c.Comment),
			StyleDarkRed:   lipgloss.NewStyle().Foreground(c.DarkRed).Bold(true),
			StyleLightRed:  lipgloss.NewStyle().Foreground(c.Red),
			StyleDivider:   lipgloss.NewStyle().Foreground(c.Surface).Background(c.Purple),
			StyleError:     lipgloss.NewStyle().Foreground(c.Red).Bold(true),
			StyleFooter:    lipgloss.NewStyle().Foreground(c.TextDim),
		},
	}
}

// Theme returns the resolved theme of the palette.
func (p Palette) Theme() Theme { return p.theme }

// Style returns the style for tag, or the default style for unknown tags.
func (p Palette) Style(tag StyleTag) lipgloss.Style {
	if s, ok := p.styles[tag]; ok {
		return s
	}
	return p.styles[StyleDefault]
}
