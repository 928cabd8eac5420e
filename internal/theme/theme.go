// Package theme provides the Lip Gloss palette and reusable styles shared by
// the TUI and the plain printer. It is a leaf package with no internal
// imports.
package theme

import "github.com/charmbracelet/lipgloss"

// Connection state colors.
var (
	ColorOpen         = lipgloss.Color("#22c55e")
	ColorConnecting   = lipgloss.Color("#d97706")
	ColorClosing      = lipgloss.Color("#854d0e")
	ColorDisconnected = lipgloss.Color("#dc2626")
)

// Track panel colors.
var (
	ColorTitle  = lipgloss.Color("#f472b6")
	ColorArtist = lipgloss.Color("#a855f7")
	ColorAlbum  = lipgloss.Color("#06b6d4")
	ColorFresh  = lipgloss.Color("#facc15")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// StateColor returns the color for a connection state name as reported by
// client.State.String.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "open":
		return ColorOpen
	case "connecting":
		return ColorConnecting
	case "closing":
		return ColorClosing
	default:
		return ColorDisconnected
	}
}

// StateGlyph returns a Unicode glyph for a connection state name.
func StateGlyph(state string) string {
	switch state {
	case "open":
		return "●"
	case "connecting":
		return "◎"
	case "closing":
		return "◌"
	default:
		return "○"
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorTitle)

	StyleArtist = lipgloss.NewStyle().
			Foreground(ColorArtist)

	StyleAlbum = lipgloss.NewStyle().
			Italic(true).
			Foreground(ColorAlbum)

	StyleFresh = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorFresh)

	StyleWarning = lipgloss.NewStyle().
			Foreground(ColorWarning)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorDanger)
)
