package board

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nibzard/taskboard-go/internal/task"
)

var (
	colorMuted  = lipgloss.Color("245")
	colorBorder = lipgloss.Color("240")
	colorAccent = lipgloss.Color("212")
	colorCursor = lipgloss.Color("39")

	columnColors = map[task.Status]lipgloss.Color{
		task.StatusTodo:  lipgloss.Color("250"),
		task.StatusDoing: lipgloss.Color("33"),
		task.StatusDone:  lipgloss.Color("35"),
	}

	teamColors = map[task.Team]lipgloss.Color{
		task.TeamDesign:   lipgloss.Color("135"),
		task.TeamBackend:  lipgloss.Color("33"),
		task.TeamFrontend: lipgloss.Color("35"),
	}

	headerStyle = lipgloss.NewStyle().Bold(true)
	countStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	nameStyle   = lipgloss.NewStyle().Bold(true)
	descStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	metaStyle   = lipgloss.NewStyle().Foreground(colorMuted).Faint(true)
	emptyStyle  = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)

	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	placeholderStyle = lipgloss.NewStyle().
				Border(lipgloss.HiddenBorder()).
				Padding(0, 1)

	overlayStyle = cardStyle.
			Border(lipgloss.ThickBorder()).
			BorderForeground(colorAccent)
)

func badgeStyle(t task.Team) lipgloss.Style {
	c, ok := teamColors[t]
	if !ok {
		c = colorMuted
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(c).Padding(0, 1)
}
