package system

import (
	"fmt"

	"github.com/julianstephens/ididit/internal/cli"
	"github.com/julianstephens/ididit/internal/config"
)

type ConfigCmd struct {
	Show ConfigShowCmd `cmd:"" help:"Print the effective configuration." default:"1"`
	Path ConfigPathCmd `cmd:"" help:"Print the config file path."`
}

type ConfigShowCmd struct{}

func (c *ConfigShowCmd) Run(ctx *cli.Context) error {
	out := ctx.Config.Redacted()
	if cli.IsPostgres(out.Database) {
		out.Database = maskPassword(out.Database)
	}
	data, err := out.Marshal()
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

type ConfigPathCmd struct{}

func (c *ConfigPathCmd) Run(ctx *cli.Context) error {
	fmt.Println(config.ExpandHome(ctx.ConfigPath))
	return nil
}
