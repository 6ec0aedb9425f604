package gate

import "github.com/charmbracelet/lipgloss"

// Color palette - single lime accent for a professional, distinctive look
const (
	ColorLime     = "154" // Primary accent - additions, confirmations
	ColorWhite    = "255" // Headers, important text
	ColorGray     = "245" // Secondary text, labels
	ColorDarkGray = "238" // Separators
	ColorRed      = "196" // Destructive actions
	ColorYellow   = "220" // Asks and skips
)

// Styles holds the styles used when rendering a plan.
type Styles struct {
	Header  lipgloss.Style
	Add     lipgloss.Style
	Change  lipgloss.Style
	Skip    lipgloss.Style
	Delete  lipgloss.Style
	Dim     lipgloss.Style
	Summary lipgloss.Style
}

// DefaultStyles returns styled components for interactive terminals.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorWhite)),
		Add:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)),
		Change:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Skip:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Delete:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Summary: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
	}
}

// NoColorStyles returns unstyled components for plain output.
func NoColorStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle(),
		Add:     lipgloss.NewStyle(),
		Change:  lipgloss.NewStyle(),
		Skip:    lipgloss.NewStyle(),
		Delete:  lipgloss.NewStyle(),
		Dim:     lipgloss.NewStyle(),
		Summary: lipgloss.NewStyle(),
	}
}
