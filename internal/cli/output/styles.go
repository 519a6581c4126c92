package output

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	subtitleStyle = lipgloss.NewStyle().Bold(true)
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	keyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func headerStyle(level int) lipgloss.Style {
	if level <= 1 {
		return titleStyle
	}
	return subtitleStyle
}

// style renders s with st on a terminal and leaves it plain otherwise.
func (r *Renderer) style(st lipgloss.Style, s string) string {
	if !r.isTTY {
		return s
	}
	return st.Render(s)
}
