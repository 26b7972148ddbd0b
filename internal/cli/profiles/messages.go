package profiles

import (
	"context"
	"fmt"

	"github.com/julianstephens/ididit/internal/achievement"
	"github.com/julianstephens/ididit/internal/cli"
	"github.com/julianstephens/ididit/internal/constants"
)

type MessagesCmd struct {
	List   MessagesListCmd   `cmd:"" default:"1" help:"List praise message sets."`
	Show   MessagesShowCmd   `cmd:"" help:"Show the messages of a set."`
	AddSet MessagesAddSetCmd `cmd:"" name:"add-set" help:"Create a custom message set."`
	Add    MessagesAddCmd    `cmd:"" help:"Add a message to a set."`
	Pick   MessagesPickCmd   `cmd:"" help:"Show a random message from your selected set."`
}

type MessagesListCmd struct {
	ShowIDs bool `help:"Show set IDs." name:"show-ids"`
}

func (c *MessagesListCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	sets, err := ctx.Praise().Sets(bg)
	if err != nil {
		return cli.Fail(err, constants.OpLoadMessageSets)
	}

	selected := ""
	if session, err := ctx.Session(bg); err == nil && session.SignedIn() {
		if p, err := ctx.Profiles().Get(bg, session.UserID()); err == nil && p.SelectedMessageSetID != nil {
			selected = *p.SelectedMessageSetID
		}
	}

	fmt.Println("Message sets:")
	for _, set := range sets {
		mark := " "
		if set.ID == selected || (selected == "" && set.Name == constants.DefaultMessageSetName) {
			mark = "*"
		}
		idStr := ""
		if c.ShowIDs {
			idStr = fmt.Sprintf(" (ID: %s)", set.ID)
		}
		fmt.Printf("  %s %s%s\n", mark, set.Name, idStr)
		if set.Description != nil {
			fmt.Printf("      %s\n", *set.Description)
		}
	}
	return nil
}

type MessagesShowCmd struct {
	Set string `arg:"" help:"Set ID or name."`
}

func (c *MessagesShowCmd) Run(ctx *cli.Context) error {
	set, msgs, err := ctx.Praise().Messages(context.Background(), c.Set)
	if err != nil {
		return cli.Fail(err, constants.OpLoadMessageSets)
	}
	fmt.Printf("%s (%d):\n", set.Name, len(msgs))
	for _, m := range msgs {
		fmt.Printf("  - %s\n", m.Message)
	}
	return nil
}

type MessagesAddSetCmd struct {
	Name        string `arg:"" help:"Name of the new set."`
	Description string `short:"d" help:"Optional description."`
}

func (c *MessagesAddSetCmd) Run(ctx *cli.Context) error {
	set, err := ctx.Praise().AddSet(context.Background(), c.Name, c.Description)
	if err != nil {
		return cli.Fail(err, constants.OpLoadMessageSets)
	}
	fmt.Printf("✓ メッセージセットを作成しました: %s (ID: %s)\n", set.Name, set.ID)
	return nil
}

type MessagesAddCmd struct {
	Set     string `arg:"" help:"Set ID or name."`
	Message string `arg:"" help:"Praise message."`
}

func (c *MessagesAddCmd) Run(ctx *cli.Context) error {
	msg, err := ctx.Praise().AddMessage(context.Background(), c.Set, c.Message)
	if err != nil {
		return cli.Fail(err, constants.OpLoadMessageSets)
	}
	fmt.Printf("✓ メッセージを追加しました: %s\n", msg.Message)
	return nil
}

type MessagesPickCmd struct{}

func (c *MessagesPickCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	_, userID, err := ctx.RequireUser(bg)
	if err != nil {
		return err
	}
	fmt.Println(achievement.FetchPraise(bg, ctx.Praise(), userID))
	return nil
}
