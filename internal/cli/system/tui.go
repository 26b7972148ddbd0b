package system

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/ididit/internal/cli"
	"github.com/julianstephens/ididit/internal/tui"
)

type TuiCmd struct{}

func (c *TuiCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	if err := ctx.Store.Load(); err != nil {
		return err
	}

	// Perform automatic backup on TUI startup (after successful load)
	ctx.PerformAutomaticBackup(bg)

	session, err := ctx.Session(bg)
	if err != nil {
		return err
	}
	tracker, err := ctx.Tracker(session)
	if err != nil {
		return err
	}

	model := tui.NewModel(tui.Deps{
		Session:     session,
		Tracker:     tracker,
		Dos:         ctx.Dos(),
		Profiles:    ctx.Profiles(),
		Praise:      ctx.Praise(),
		Today:       ctx.Today,
		ConfirmMode: ctx.Config.Confirmation.Mode,
	})
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui exited with error: %w", err)
	}
	return nil
}
