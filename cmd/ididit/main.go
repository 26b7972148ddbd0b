package main

import (
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	_ "github.com/joho/godotenv/autoload"

	"github.com/julianstephens/ididit/internal/cli"
	"github.com/julianstephens/ididit/internal/cli/accounts"
	"github.com/julianstephens/ididit/internal/cli/backups"
	"github.com/julianstephens/ididit/internal/cli/habits"
	"github.com/julianstephens/ididit/internal/cli/profiles"
	"github.com/julianstephens/ididit/internal/cli/system"
	"github.com/julianstephens/ididit/internal/config"
	"github.com/julianstephens/ididit/internal/constants"
	apperrors "github.com/julianstephens/ididit/internal/errors"
	"github.com/julianstephens/ididit/internal/keyring"
	"github.com/julianstephens/ididit/internal/logger"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Config file path." type:"path" default:"${config_path}"`
	DB      string `name:"db" help:"SQLite path or PostgreSQL connection string. PostgreSQL credentials must NOT be embedded; use the OS keyring, IDIDIT_DB_CONNECTION or .pgpass."`
	Debug   bool   `help:"Log debug output to stderr."`

	Init      system.InitCmd    `cmd:"" help:"Initialize ididit storage."`
	Migrate   system.MigrateCmd `cmd:"" help:"Run database migrations."`
	Doctor    system.DoctorCmd  `cmd:"" help:"Run health checks and diagnostics."`
	Tui       system.TuiCmd     `cmd:"" help:"Launch the interactive TUI." default:"1"`
	ConfigCmd system.ConfigCmd  `cmd:"" name:"config" help:"Show the effective configuration."`
	Keyring struct {
		Set    system.KeyringSetCmd    `cmd:"" help:"Store a PostgreSQL connection string in the OS keyring."`
		Get    system.KeyringGetCmd    `cmd:"" help:"Show the stored connection string (password masked)."`
		Delete system.KeyringDeleteCmd `cmd:"" help:"Remove the stored connection string."`
		Status system.KeyringStatusCmd `cmd:"" help:"Check keyring availability."`
	} `cmd:"" help:"Manage credentials in the OS keyring."`
	Backup struct {
		Create  backups.BackupCreateCmd  `cmd:"" help:"Create a manual backup." default:"1"`
		List    backups.BackupListCmd    `cmd:"" help:"List available backups."`
		Restore backups.BackupRestoreCmd `cmd:"" help:"Restore from a backup."`
	} `cmd:"" help:"Manage database backups."`
	Auth struct {
		Signup accounts.SignupCmd `cmd:"" help:"Create an account and sign in."`
		Login  accounts.LoginCmd  `cmd:"" help:"Sign in."`
		Logout accounts.LogoutCmd `cmd:"" help:"Sign out."`
		Whoami accounts.WhoamiCmd `cmd:"" help:"Show the signed-in account." default:"1"`
		Passwd accounts.PasswdCmd `cmd:"" help:"Change your password."`
		Delete accounts.DeleteCmd `cmd:"" help:"Delete your account and all of its data."`
	} `cmd:"" help:"Sign in, sign out and manage your account."`
	Do       habits.DoCmd         `cmd:"" help:"Manage your Dos (up to three)."`
	Mark     habits.MarkCmd       `cmd:"" help:"Toggle a Do for a day: I did it!"`
	Memo     habits.MemoCmd       `cmd:"" help:"Write a memo for a Do on a day."`
	Cal      habits.CalCmd        `cmd:"" help:"Show the achievement calendar."`
	Profile  profiles.ProfileCmd  `cmd:"" help:"Show or update your profile."`
	Messages profiles.MessagesCmd `cmd:"" help:"Manage praise message sets."`
	Serve    system.ServeCmd      `cmd:"" help:"Run the JSON API server."`
	Status   system.StatusCmd     `cmd:"" help:"Show whether the API server is running."`
	DebugCmd system.DebugCmd      `cmd:"" name:"debug" help:"Debug commands for troubleshooting."`
}

// noPreload lists commands that open the store themselves or never need it.
var noPreload = map[string]bool{
	"init":    true,
	"migrate": true,
	"doctor":  true,
	"config":  true,
	"keyring": true,
	"status":  true,
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("I did it! 1日3DO: record up to three daily Dos and celebrate each one."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version":     constants.Version,
			"config_path": config.DefaultPath(),
		},
	)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		apperrors.Fatal(err)
	}
	if CLI.Debug {
		cfg.Debug = true
	}

	command := strings.Fields(ctx.Command())
	if err := logger.Init(logger.Config{
		Debug:     cfg.Debug,
		ConfigDir: filepath.Dir(config.ExpandHome(CLI.Config)),
		Level:     cfg.LogLevel,
		Stderr:    len(command) > 0 && command[0] == "serve",
	}); err != nil {
		apperrors.Fatal(err)
	}

	store, err := cli.OpenStore(cli.ResolveDatabase(CLI.DB, cfg))
	if err != nil {
		apperrors.Fatal(err)
	}
	defer store.Close()

	appCtx, err := cli.NewContext(store, cfg, CLI.Config, keyring.SessionStore{})
	if err != nil {
		apperrors.Fatal(err)
	}

	// Load the store before running the command (init and friends handle their own loading)
	if len(command) > 0 && !noPreload[command[0]] {
		if err := store.Load(); err != nil {
			apperrors.Fatal(err)
		}
	}

	if err := ctx.Run(appCtx); err != nil {
		store.Close()
		apperrors.Fatal(err)
	}
}
