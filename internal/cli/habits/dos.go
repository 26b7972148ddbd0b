package habits

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/ididit/internal/cli"
	"github.com/julianstephens/ididit/internal/constants"
	"github.com/julianstephens/ididit/internal/dos"
)

// askFunc asks a yes/no question with custom button labels.
type askFunc func(title, yes, no string) (bool, error)

func huhAsk(title, yes, no string) (bool, error) {
	ok := false
	err := huh.NewConfirm().
		Title(title).
		Affirmative(yes).
		Negative(no).
		Value(&ok).
		Run()
	return ok, err
}

type DoCmd struct {
	Add    DoAddCmd    `cmd:"" help:"Add a Do (at most three)."`
	List   DoListCmd   `cmd:"" help:"List your Dos with today's status."`
	Edit   DoEditCmd   `cmd:"" help:"Edit a Do."`
	Delete DoDeleteCmd `cmd:"" help:"Delete a Do and its achievements."`
}

type DoAddCmd struct {
	Title       string `arg:"" help:"Title of the Do."`
	Description string `short:"d" help:"Optional description."`
}

func (c *DoAddCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	_, userID, err := ctx.RequireUser(bg)
	if err != nil {
		return err
	}
	do, err := ctx.Dos().Add(bg, userID, dos.Input{Title: c.Title, Description: c.Description})
	if err != nil {
		return cli.Fail(err, constants.OpSaveDo)
	}
	fmt.Printf("✓ Doを追加しました: %s (ID: %s)\n", do.Title, do.ID)
	return nil
}

type DoListCmd struct {
	ShowIDs bool   `help:"Show Do IDs." name:"show-ids"`
	Date    string `help:"Date to show the status for (YYYY-MM-DD, default today)."`
}

func (c *DoListCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	session, userID, err := ctx.RequireUser(bg)
	if err != nil {
		return err
	}
	list, err := ctx.Dos().List(bg, userID)
	if err != nil {
		return cli.Fail(err, constants.OpLoadDos)
	}
	if len(list) == 0 {
		fmt.Println("Doがまだありません。'ididit do add' で追加しましょう。")
		return nil
	}
	tracker, err := ctx.Tracker(session)
	if err != nil {
		return err
	}

	date := c.Date
	if date == "" {
		date = ctx.Today()
	}
	fmt.Printf("Dos (%d/%d) - %s:\n", len(list), constants.MaxDosPerUser, date)
	for _, do := range list {
		achieved, err := tracker.IsAchieved(bg, do.ID, date)
		if err != nil {
			return err
		}
		mark := " "
		if achieved {
			mark = "✓"
		}
		idStr := ""
		if c.ShowIDs {
			idStr = fmt.Sprintf(" (ID: %s)", do.ID)
		}
		fmt.Printf("  [%s] %s%s\n", mark, do.Title, idStr)
		if desc := do.DescriptionText(); desc != "" {
			fmt.Printf("      %s\n", desc)
		}
	}
	return nil
}

type DoEditCmd struct {
	Do          string  `arg:"" help:"Do ID or title."`
	Title       *string `help:"New title."`
	Description *string `short:"d" help:"New description (empty clears it)."`
}

func (c *DoEditCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	_, userID, err := ctx.RequireUser(bg)
	if err != nil {
		return err
	}
	mgr := ctx.Dos()
	do, err := mgr.Find(bg, userID, c.Do)
	if err != nil {
		return cli.Fail(err, constants.OpLoadDos)
	}

	in := dos.Input{Title: do.Title, Description: do.DescriptionText()}
	if c.Title != nil {
		in.Title = *c.Title
	}
	if c.Description != nil {
		in.Description = *c.Description
	}
	updated, err := mgr.Update(bg, userID, do.ID, in)
	if err != nil {
		return cli.Fail(err, constants.OpSaveDo)
	}
	fmt.Printf("✓ Doを更新しました: %s\n", updated.Title)
	return nil
}

type DoDeleteCmd struct {
	Do  string `arg:"" help:"Do ID or title."`
	Yes bool   `short:"y" help:"Skip the confirmation prompt."`

	ask askFunc
}

func (c *DoDeleteCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	_, userID, err := ctx.RequireUser(bg)
	if err != nil {
		return err
	}
	mgr := ctx.Dos()
	do, err := mgr.Find(bg, userID, c.Do)
	if err != nil {
		return cli.Fail(err, constants.OpLoadDos)
	}
	if !c.Yes {
		ask := c.ask
		if ask == nil {
			ask = huhAsk
		}
		ok, err := ask(fmt.Sprintf("「%s」: %s", do.Title, constants.MsgDeleteDoConfirm), "削除", "キャンセル")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("キャンセルしました。")
			return nil
		}
	}
	if err := mgr.Delete(bg, userID, do.ID); err != nil {
		return cli.Fail(err, constants.OpDeleteDo)
	}
	fmt.Printf("✓ Doを削除しました: %s\n", do.Title)
	return nil
}
