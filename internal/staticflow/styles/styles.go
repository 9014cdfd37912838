// Package styles holds the lipgloss styles shared by the command output.
package styles

import "github.com/charmbracelet/lipgloss/v2"

// Palette, after the VS Code dark theme.
const (
	Foreground = "#D4D4D4"
	Function   = "#DCDCAA"
	Comment    = "#6A9955"
	Heading    = "#569CD6"
	Number     = "#B5CEA8"
	Error      = "#F14C4C"
	LineNumber = "#858585"
)

var (
	Header    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(Heading))
	Address   = lipgloss.NewStyle().Foreground(lipgloss.Color(LineNumber))
	Name      = lipgloss.NewStyle().Foreground(lipgloss.Color(Function))
	Value     = lipgloss.NewStyle().Foreground(lipgloss.Color(Number))
	Note      = lipgloss.NewStyle().Foreground(lipgloss.Color(Comment))
	Undecoded = lipgloss.NewStyle().Foreground(lipgloss.Color(Error))
)

// Render applies s only when color output is on.
func Render(s lipgloss.Style, color bool, text string) string {
	if !color {
		return text
	}
	return s.Render(text)
}
