package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nibzard/taskboard-go/internal/notify"
)

var (
	greetingStyle = lipgloss.NewStyle().Bold(true)
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	confirmStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	noticeStyles = map[notify.Level]lipgloss.Style{
		notify.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		notify.LevelSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		notify.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
	noticeIcons = map[notify.Level]string{
		notify.LevelInfo:    "i",
		notify.LevelSuccess: "✓",
		notify.LevelError:   "✗",
	}
)
