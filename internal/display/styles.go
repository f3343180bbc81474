package display

import "github.com/charmbracelet/lipgloss"

const (
	colorPurple = lipgloss.Color("#7C3AED")
	colorBlue   = lipgloss.Color("#3B82F6")
	colorGreen  = lipgloss.Color("#10B981")
	colorRed    = lipgloss.Color("#EF4444")
	colorRose   = lipgloss.Color("#F43F5E")
	colorAmber  = lipgloss.Color("#F59E0B")
	colorGray   = lipgloss.Color("#6B7280")
	colorSlate  = lipgloss.Color("#1F2937")
	colorLight  = lipgloss.Color("#E5E7EB")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPurple).
			Background(colorSlate).
			Padding(0, 1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			Italic(true)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBlue).
			Padding(0, 1)

	cardStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorGray).
			Padding(0, 1)

	errorBannerStyle = lipgloss.NewStyle().
				Foreground(colorRed).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colorRed).
				Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorLight)

	upStyle = lipgloss.NewStyle().
		Foreground(colorGreen).
		Bold(true)

	downStyle = lipgloss.NewStyle().
			Foreground(colorRose).
			Bold(true)

	loadingStyle = lipgloss.NewStyle().
			Foreground(colorAmber).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	activeStyle = lipgloss.NewStyle().
			Foreground(colorPurple).
			Bold(true)

	badgeStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Padding(0, 1)
)
