package main

import (
	"context"
	"fmt"

	"github.com/ChinoUkaegbu/exportify/internal/shared"
	"github.com/ChinoUkaegbu/exportify/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for playlist export.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	token, err := r.token()
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/exportify-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, r.config.LogLevel())
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, r.library(ctx, token), r.exporter, r.saver(""), token)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
