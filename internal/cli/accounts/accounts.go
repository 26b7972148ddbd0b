package accounts

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/ididit/internal/cli"
	"github.com/julianstephens/ididit/internal/constants"
)

// promptPassword asks for a password unless one was given by flag or environment.
func promptPassword(given, title string) (string, error) {
	if given != "" {
		return given, nil
	}
	var pw string
	err := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&pw).
		Run()
	if err != nil {
		return "", err
	}
	return pw, nil
}

type SignupCmd struct {
	Email    string `arg:"" help:"Email address."`
	Password string `env:"IDIDIT_PASSWORD" help:"Password (prompted when omitted)."`
}

func (c *SignupCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	session, err := ctx.Session(bg)
	if err != nil {
		return err
	}
	pw, err := promptPassword(c.Password, "パスワード（6文字以上）")
	if err != nil {
		return err
	}
	if err := session.SignUp(bg, c.Email, pw); err != nil {
		return cli.Fail(err, constants.OpSignUp)
	}
	fmt.Printf("✓ %s で登録しました。\n", session.Email())
	return nil
}

type LoginCmd struct {
	Email    string `arg:"" help:"Email address."`
	Password string `env:"IDIDIT_PASSWORD" help:"Password (prompted when omitted)."`
}

func (c *LoginCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	session, err := ctx.Session(bg)
	if err != nil {
		return err
	}
	pw, err := promptPassword(c.Password, "パスワード")
	if err != nil {
		return err
	}
	if err := session.SignIn(bg, c.Email, pw); err != nil {
		return cli.Fail(err, constants.OpSignIn)
	}
	fmt.Printf("✓ %s でログインしました。\n", session.Email())
	return nil
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	session, err := ctx.Session(bg)
	if err != nil {
		return err
	}
	if !session.SignedIn() {
		fmt.Println("ログインしていません。")
		return nil
	}
	if err := session.Clear(bg); err != nil {
		return cli.Fail(err, constants.OpSignOut)
	}
	fmt.Println("✓ ログアウトしました。")
	return nil
}

type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(ctx *cli.Context) error {
	session, err := ctx.Session(context.Background())
	if err != nil {
		return err
	}
	switch {
	case session.SignedIn():
		fmt.Printf("%s (user %s, session %s)\n", session.Email(), session.UserID(), session.SessionID())
	case session.Expired():
		fmt.Println(constants.MsgSessionExpired)
	default:
		fmt.Println("ログインしていません。")
	}
	return nil
}

type PasswdCmd struct {
	Password string `env:"IDIDIT_NEW_PASSWORD" help:"New password (prompted when omitted)."`
}

func (c *PasswdCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	session, userID, err := ctx.RequireUser(bg)
	if err != nil {
		return err
	}
	pw, err := promptPassword(c.Password, "新しいパスワード")
	if err != nil {
		return err
	}
	if err := session.Service().ChangePassword(bg, userID, pw); err != nil {
		return cli.Fail(err, constants.OpChangePassword)
	}
	fmt.Println("✓ パスワードを変更しました。")
	return nil
}

// DeleteCmd removes the signed-in account with all of its data.
type DeleteCmd struct {
	Yes bool `short:"y" help:"Skip the confirmation prompt."`

	in io.Reader
}

func (c *DeleteCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	session, userID, err := ctx.RequireUser(bg)
	if err != nil {
		return err
	}
	if !c.Yes {
		fmt.Printf("%s のアカウントと全ての Do・達成記録を削除します。よろしいですか？ [y/N]: ", session.Email())
		in := c.in
		if in == nil {
			in = os.Stdin
		}
		answer, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Println("キャンセルしました。")
			return nil
		}
	}
	if err := ctx.Profiles().DeleteAccount(bg, userID, session); err != nil {
		return cli.Fail(err, constants.OpDeleteAccount)
	}
	fmt.Println("✓ アカウントを削除しました。")
	return nil
}
