package cli

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	colorPrimary = lipgloss.Color("#7C3AED")
	colorGreen   = lipgloss.Color("#10B981")
	colorRed     = lipgloss.Color("#EF4444")
	colorYellow  = lipgloss.Color("#F59E0B")
	colorDim     = lipgloss.Color("#6B7280")

	bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).MarginBottom(1)
	boldStyle   = lipgloss.NewStyle().Bold(true)
	upStyle     = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	downStyle   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(colorYellow)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)

	errorBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorRed).
			Foreground(colorRed).
			Padding(0, 1)
)

// statusLabel renders up/down with a coloured dot
func statusLabel(status string) string {
	switch status {
	case "up":
		return upStyle.Render("● up")
	case "down":
		return downStyle.Render("● down")
	default:
		return warnStyle.Render("● " + status)
	}
}

// uptimeCell renders one day of history as a coloured block
func uptimeCell(pct float64, measured bool) string {
	switch {
	case !measured:
		return dimStyle.Render("▪")
	case pct >= 99:
		return upStyle.Render("▮")
	case pct >= 95:
		return warnStyle.Render("▮")
	default:
		return downStyle.Render("▮")
	}
}
