package profiles

import (
	"context"
	"fmt"

	"github.com/julianstephens/ididit/internal/cli"
	"github.com/julianstephens/ididit/internal/constants"
	"github.com/julianstephens/ididit/internal/models"
)

type ProfileCmd struct {
	Show ProfileShowCmd `cmd:"" default:"1" help:"Show your profile."`
	Set  ProfileSetCmd  `cmd:"" help:"Update birthday, message set or email."`
}

type ProfileShowCmd struct{}

func (c *ProfileShowCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	_, userID, err := ctx.RequireUser(bg)
	if err != nil {
		return err
	}
	p, err := ctx.Profiles().Ensure(bg, userID)
	if err != nil {
		return cli.Fail(err, constants.OpLoadProfile)
	}
	setName, err := messageSetName(bg, ctx, p)
	if err != nil {
		return cli.Fail(err, constants.OpLoadMessageSets)
	}
	printProfile(p, setName)
	return nil
}

// ProfileSetCmd changes only the fields that were given.
type ProfileSetCmd struct {
	Birthday   *string `help:"Birthday (YYYY-MM-DD); empty clears it."`
	MessageSet *string `name:"message-set" help:"Praise message set by ID or name; empty selects the default."`
	Email      *string `help:"New sign-in email address."`
}

func (c *ProfileSetCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	_, userID, err := ctx.RequireUser(bg)
	if err != nil {
		return err
	}
	if c.Birthday == nil && c.MessageSet == nil && c.Email == nil {
		return fmt.Errorf("nothing to update: pass --birthday, --message-set or --email")
	}

	svc := ctx.Profiles()
	p, err := svc.Ensure(bg, userID)
	if err != nil {
		return cli.Fail(err, constants.OpLoadProfile)
	}
	if c.Birthday != nil {
		if p, err = svc.SetBirthday(bg, userID, *c.Birthday); err != nil {
			return cli.Fail(err, constants.OpSaveProfile)
		}
	}
	if c.MessageSet != nil {
		if p, err = svc.SelectMessageSet(bg, userID, *c.MessageSet); err != nil {
			return cli.Fail(err, constants.OpSaveProfile)
		}
	}
	if c.Email != nil {
		if p, err = svc.ChangeEmail(bg, userID, *c.Email); err != nil {
			return cli.Fail(err, constants.OpSaveProfile)
		}
	}

	setName, err := messageSetName(bg, ctx, p)
	if err != nil {
		return cli.Fail(err, constants.OpLoadMessageSets)
	}
	fmt.Println("✓ プロフィールを更新しました。")
	printProfile(p, setName)
	return nil
}

func messageSetName(ctx context.Context, c *cli.Context, p models.Profile) (string, error) {
	if p.SelectedMessageSetID == nil {
		return constants.DefaultMessageSetName, nil
	}
	set, _, err := c.Praise().Messages(ctx, *p.SelectedMessageSetID)
	if err != nil {
		return "", err
	}
	return set.Name, nil
}

func printProfile(p models.Profile, setName string) {
	birthday := "(未設定)"
	if p.Birthday != nil {
		birthday = *p.Birthday
	}
	fmt.Printf("Email:          %s\n", p.Email)
	fmt.Printf("Birthday:       %s\n", birthday)
	fmt.Printf("Message set:    %s\n", setName)
	fmt.Printf("Member since:   %s\n", p.CreatedAt.Format(constants.DateFormat))
}
