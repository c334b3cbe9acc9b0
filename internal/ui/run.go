package ui

import (
	"context"
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrNotTTY is returned when the board is started without a terminal.
var ErrNotTTY = errors.New("the board requires a terminal; use `taskboard ls` instead")

// Run shows the board until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	if !IsTTY(os.Stdout) {
		return ErrNotTTY
	}
	m := NewModel(ctx, opts)
	defer m.Close()

	progOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if opts.Mouse {
		progOpts = append(progOpts, tea.WithMouseCellMotion())
	}
	_, err := tea.NewProgram(m, progOpts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
