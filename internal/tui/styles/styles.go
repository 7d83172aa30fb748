// Package styles holds the lipgloss palette shared by every TUI view.
package styles

import "github.com/charmbracelet/lipgloss"

// Palette, tuned for dark terminals.
var (
	ColorPrimary   = lipgloss.Color("#8B5CF6")
	ColorSecondary = lipgloss.Color("#10B981")
	ColorError     = lipgloss.Color("#F43F5E")
	ColorWarning   = lipgloss.Color("#F59E0B")
	ColorText      = lipgloss.Color("#F5F5F5")
	ColorSubtle    = lipgloss.Color("#737373")
	ColorBorder    = lipgloss.Color("#404040")
	ColorHighlight = lipgloss.Color("#525252")
	ColorBanner    = lipgloss.Color("#A78BFA")
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func rounded(border lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(border)
}

// underlined draws only a bottom border.
func underlined(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(c)
}

// Text
var (
	Text    = fg(ColorText)
	Subtle  = fg(ColorSubtle)
	Value   = fg(ColorSecondary).Bold(true)
	Active  = fg(ColorPrimary).Bold(true)
	Error   = fg(ColorError)
	Warn    = fg(ColorWarning)
	Success = fg(ColorSecondary).Bold(true)
	KeyKey  = fg(ColorText).Bold(true)
	KeyDesc = fg(ColorSubtle)
)

// Containers
var (
	Panel = rounded(ColorBorder).Padding(1, 2)
	Box   = rounded(ColorBorder).Padding(0, 1).Margin(0, 1)
	Title = underlined(ColorSubtle).Foreground(ColorPrimary).Bold(true).Padding(0, 1)

	InputNormal = rounded(ColorBorder).Padding(0, 1)
	InputActive = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1)

	TabBase    = fg(ColorSubtle).Padding(0, 2)
	TabActive  = underlined(ColorPrimary).Foreground(ColorPrimary).Bold(true).Padding(0, 2)
	FooterBase = lipgloss.NewStyle().Height(1).Padding(0, 1)

	TableHeader = underlined(ColorBorder).Foreground(ColorPrimary).Bold(true)
)

// Agent status colors for the agents table.
var (
	StatusWaiting = Subtle
	StatusRunning = Success
	StatusStopped = Warn
)

// RenderKey renders one "<key> description" footer hint.
func RenderKey(key, desc string) string {
	return lipgloss.JoinHorizontal(lipgloss.Center,
		KeyKey.Render("<"+key+">"),
		" ",
		KeyDesc.Render(desc),
	)
}
