package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// Palette used for terminal output.
var (
	colourPrimary = lipgloss.Color("#7C3AED")
	colourMuted   = lipgloss.Color("#6C7086")
	colourSuccess = lipgloss.Color("#A6E3A1")
	colourWarning = lipgloss.Color("#F9E2AF")
	colourError   = lipgloss.Color("#F38BA8")
)

// Pre-configured styles.
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colourPrimary)
	answerStyle  = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(colourPrimary).Padding(0, 1)
	mutedStyle   = lipgloss.NewStyle().Foreground(colourMuted)
	successStyle = lipgloss.NewStyle().Foreground(colourSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colourWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colourError)
)

// statusStyle returns the style for a document status.
func statusStyle(s domain.DocumentStatus) lipgloss.Style {
	switch s {
	case domain.DocumentProcessed:
		return successStyle
	case domain.DocumentPending:
		return warningStyle
	default:
		return errorStyle
	}
}
