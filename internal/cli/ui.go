package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// UI styles
var (
	bannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7C3AED")).
			Bold(true).
			Align(lipgloss.Center).
			Width(80)

	taglineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Italic(true).
			Align(lipgloss.Center).
			Width(80).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2).
			Width(80)

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

const banner = `
 __  __            _        _   ____        _
|  \/  | __ _ _ __| | _____| |_|  _ \ _   _| |___  ___
| |\/| |/ _' | '__| |/ / _ \ __| |_) | | | | / __|/ _ \
| |  | | (_| | |  |   <  __/ |_|  __/| |_| | \__ \  __/
|_|  |_|\__,_|_|  |_|\_\___|\__|_|    \__,_|_|___/\___|
`

// DisplayWelcomeBanner shows the welcome banner
func DisplayWelcomeBanner(w io.Writer) {
	fmt.Fprintln(w, bannerStyle.Render(banner))
	fmt.Fprintln(w, taglineStyle.Render("AI-grounded market snapshots, refreshed live"))
}

// ClearScreen clears the terminal screen
func ClearScreen(w io.Writer) {
	fmt.Fprint(w, "\033[2J\033[H")
}

// shouldClear reports whether redraws may clear the terminal.
func shouldClear() bool {
	return os.Getenv("MARKETPULSE_NO_CLEAR") == ""
}

// DisplayError shows an error message
func DisplayError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("✗ Error: "+err.Error()))
}

// DisplayWarning shows a warning message
func DisplayWarning(w io.Writer, message string) {
	fmt.Fprintln(w, warnStyle.Render("! "+message))
}

// DisplayInfo shows an info message
func DisplayInfo(w io.Writer, message string) {
	fmt.Fprintln(w, infoStyle.Render("i "+message))
}

// DisplaySuccess shows a success message
func DisplaySuccess(w io.Writer, message string) {
	fmt.Fprintln(w, completedStyle.Render("✓ "+message))
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
