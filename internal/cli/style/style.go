package style

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	Primary = lipgloss.Color("#2563EB")
	Green   = lipgloss.Color("#10B981")
	Red     = lipgloss.Color("#EF4444")
	Yellow  = lipgloss.Color("#F59E0B")
	Cyan    = lipgloss.Color("#06B6D4")
	Dim     = lipgloss.Color("#6B7280")
	White   = lipgloss.Color("#F9FAFB")

	// Text styles
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(Dim).
			Italic(true)

	Bold = lipgloss.NewStyle().Bold(true).Foreground(White)

	Healthy   = lipgloss.NewStyle().Foreground(Green).Bold(true)
	Unhealthy = lipgloss.NewStyle().Foreground(Red).Bold(true)
	Warning   = lipgloss.NewStyle().Foreground(Yellow)

	DimText = lipgloss.NewStyle().Foreground(Dim)

	// Status indicators
	DotHealthy   = Healthy.Render("●")
	DotUnhealthy = Unhealthy.Render("●")
	DotWarning   = Warning.Render("●")
	DotDim       = DimText.Render("●")

	// Badges
	TypeBadge = lipgloss.NewStyle().Foreground(Cyan)

	// Lifecycle stage indicators
	StagePending = DimText
	StageRunning = lipgloss.NewStyle().Foreground(Yellow).Bold(true)
	StageDone    = lipgloss.NewStyle().Foreground(Green)
	StageFailed  = lipgloss.NewStyle().Foreground(Red).Bold(true)

	// Table
	TableHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			PaddingRight(2)

	// Error box
	ErrorBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Red).
			Foreground(Red).
			Padding(0, 1).
			MarginTop(1)

	// Success box
	SuccessBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Green).
			Foreground(Green).
			Padding(0, 1).
			MarginTop(1)

	// Key-value
	Key = lipgloss.NewStyle().Foreground(Dim).Width(14)
	Val = lipgloss.NewStyle().Foreground(White)
)

// ServiceDot maps a service status to a colored indicator.
func ServiceDot(status string) string {
	switch status {
	case "running":
		return DotHealthy
	case "error":
		return DotUnhealthy
	case "stopped":
		return DotDim
	default:
		return DotWarning
	}
}

// StreamDot maps a stream connection state to a colored indicator.
func StreamDot(state string) string {
	switch state {
	case "connected":
		return DotHealthy
	case "connecting":
		return DotWarning
	default:
		return DotUnhealthy
	}
}

// StageStyle maps a lifecycle status to the style for its log line.
func StageStyle(status string) lipgloss.Style {
	switch status {
	case "ready", "deleted":
		return StageDone
	case "failed", "delete_failed":
		return StageFailed
	case "queued":
		return StagePending
	default:
		return StageRunning
	}
}
