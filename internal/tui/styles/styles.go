// Package styles provides consistent styling for the TUI
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"nids-console/internal/taxonomy"
)

var (
	// Colors
	Primary    = lipgloss.Color("#7C3AED")
	Secondary  = lipgloss.Color("#22c55e")
	Warning    = lipgloss.Color("#f59e0b")
	Error      = lipgloss.Color("#ef4444")
	MutedColor = lipgloss.Color(taxonomy.UnknownColor)
	White      = lipgloss.Color("#FFFFFF")

	// Muted text style
	Muted = lipgloss.NewStyle().Foreground(MutedColor)

	// Base styles
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	// Status styles
	StatusOK = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	StatusWarning = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	StatusError = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	// Tab styles
	TabActive = lipgloss.NewStyle().
			Foreground(White).
			Background(Primary).
			Padding(0, 2).
			Bold(true)

	TabInactive = lipgloss.NewStyle().
			Foreground(MutedColor).
			Padding(0, 2)

	// Help text
	Help = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)

	// Table styles
	TableHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			BorderBottom(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(MutedColor)

	TableRowSelected = lipgloss.NewStyle().
				Foreground(White).
				Background(Primary)

	// Metric card
	MetricCard = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(MutedColor).
			Padding(0, 2).
			Width(18).
			Align(lipgloss.Center)

	MetricValue = lipgloss.NewStyle().
			Bold(true).
			Foreground(Secondary)

	MetricLabel = lipgloss.NewStyle().
			Foreground(MutedColor)

	// Input line for the batch file path
	Input = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(Primary).
		Padding(0, 1)
)

// Colored renders s in a hex color taken from the taxonomy.
func Colored(hex, s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Render(s)
}

// Severity renders a severity label in its color.
func Severity(s taxonomy.Severity) string {
	return Colored(s.Color(), s.String())
}

// Risk renders a risk level label in its color.
func Risk(r taxonomy.RiskLevel) string {
	return Colored(r.Color(), r.String())
}
