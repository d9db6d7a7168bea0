package chatui

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds the ANSI-256 color tokens of the chat view.
type Theme struct {
	Name       string
	Background string
	Foreground string
	Muted      string
	Accent     string
	Header     string
	Own        string
	Other      string
	Selected   string
	Pending    string
	Failed     string
	Toast      string
}

// DefaultTheme is the baseline dark palette.
var DefaultTheme = Theme{
	Name:       "default",
	Background: "234",
	Foreground: "252",
	Muted:      "245",
	Accent:     "75",
	Header:     "111",
	Own:        "81",
	Other:      "147",
	Selected:   "75",
	Pending:    "220",
	Failed:     "203",
	Toast:      "203",
}

// HighContrastTheme favors legibility on low-quality terminals.
var HighContrastTheme = Theme{
	Name:       "high-contrast",
	Background: "16",
	Foreground: "231",
	Muted:      "250",
	Accent:     "51",
	Header:     "117",
	Own:        "87",
	Other:      "225",
	Selected:   "51",
	Pending:    "226",
	Failed:     "196",
	Toast:      "196",
}

var themes = map[string]Theme{
	DefaultTheme.Name:      DefaultTheme,
	HighContrastTheme.Name: HighContrastTheme,
}

// ThemeByName returns the named theme, falling back to DefaultTheme.
func ThemeByName(name string) (Theme, bool) {
	theme, ok := themes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return DefaultTheme, false
	}
	return theme, true
}

// ThemeNames lists the built-in themes.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type styles struct {
	header   lipgloss.Style
	footer   lipgloss.Style
	muted    lipgloss.Style
	own      lipgloss.Style
	other    lipgloss.Style
	handle   lipgloss.Style
	selected lipgloss.Style
	pending  lipgloss.Style
	failed   lipgloss.Style
	toast    lipgloss.Style
	input    lipgloss.Style
}

func newStyles(t Theme) styles {
	bubble := lipgloss.NewStyle().Padding(0, 1)
	return styles{
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(t.Header)).
			Padding(0, 1),
		footer: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)).Padding(0, 1),
		muted:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		own: bubble.Copy().
			Foreground(lipgloss.Color(t.Background)).
			Background(lipgloss.Color(t.Own)),
		other: bubble.Copy().
			Foreground(lipgloss.Color(t.Foreground)).
			Background(lipgloss.Color("238")),
		handle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Other)),
		selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Selected)),
		pending:  lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color(t.Pending)),
		failed:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Failed)),
		toast:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.Toast)).Padding(0, 1),
		input: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Foreground)).
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(lipgloss.Color(t.Accent)).
			Padding(0, 1),
	}
}
