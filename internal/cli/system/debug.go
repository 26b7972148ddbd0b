package system

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/julianstephens/ididit/internal/calendar"
	"github.com/julianstephens/ididit/internal/cli"
	"github.com/julianstephens/ididit/internal/utils"
)

type DebugCmd struct {
	DBPath           *DebugDBPathCmd           `cmd:"" help:"Show database path."`
	DumpDos          *DebugDumpDosCmd          `cmd:"" help:"Dump the signed-in user's Dos as JSON."`
	DumpAchievements *DebugDumpAchievementsCmd `cmd:"" help:"Dump one month of achievements as JSON."`
	DumpProfile      *DebugDumpProfileCmd      `cmd:"" help:"Dump the signed-in user's profile as JSON."`
	DumpSession      *DebugDumpSessionCmd      `cmd:"" help:"Dump the current session state as JSON."`
}

func printJSON(v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(jsonBytes))
	return nil
}

type DebugDBPathCmd struct{}

func (cmd *DebugDBPathCmd) Run(ctx *cli.Context) error {
	return printJSON(map[string]string{"path": ctx.Store.GetConfigPath()})
}

type DebugDumpDosCmd struct{}

func (cmd *DebugDumpDosCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	_, userID, err := ctx.RequireUser(bg)
	if err != nil {
		return err
	}
	list, err := ctx.Dos().List(bg, userID)
	if err != nil {
		return fmt.Errorf("failed to get dos: %w", err)
	}
	return printJSON(list)
}

type DebugDumpAchievementsCmd struct {
	Month string `arg:"" optional:"" help:"Month to dump (YYYY-MM, default current month)."`
}

func (cmd *DebugDumpAchievementsCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	session, _, err := ctx.RequireUser(bg)
	if err != nil {
		return err
	}
	month := cmd.Month
	if month == "" {
		if month, err = utils.MonthOf(ctx.Today()); err != nil {
			return err
		}
	}
	if _, err := calendar.ParseMonth(month); err != nil {
		return err
	}
	tracker, err := ctx.Tracker(session)
	if err != nil {
		return err
	}
	rows, err := tracker.Month(bg, month)
	if err != nil {
		return fmt.Errorf("failed to get achievements: %w", err)
	}
	return printJSON(rows)
}

type DebugDumpProfileCmd struct{}

func (cmd *DebugDumpProfileCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	_, userID, err := ctx.RequireUser(bg)
	if err != nil {
		return err
	}
	p, err := ctx.Profiles().Get(bg, userID)
	if err != nil {
		return fmt.Errorf("failed to get profile: %w", err)
	}
	return printJSON(p)
}

type DebugDumpSessionCmd struct{}

func (cmd *DebugDumpSessionCmd) Run(ctx *cli.Context) error {
	session, err := ctx.Session(context.Background())
	if err != nil {
		return err
	}
	return printJSON(session.State())
}
