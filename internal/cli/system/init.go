package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/ididit/internal/cli"
	"github.com/julianstephens/ididit/internal/config"
	"github.com/julianstephens/ididit/internal/storage"
)

type InitCmd struct {
	Force  bool   `help:"Force reset by deleting existing database before initialization."`
	Source string `help:"Source database path or connection string to migrate data from."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	bg := context.Background()

	if created, err := config.WriteDefault(ctx.ConfigPath); err != nil {
		return err
	} else if created {
		fmt.Printf("Wrote default config to: %s\n", config.ExpandHome(ctx.ConfigPath))
	}

	// If force flag is provided, delete existing database
	if c.Force {
		if err := c.reset(ctx); err != nil {
			return err
		}
	}

	// Initialize destination store
	if err := ctx.Store.Init(); err != nil {
		return err
	}
	fmt.Printf("Initialized ididit storage at: %s\n", ctx.Store.GetConfigPath())

	// If source is provided, migrate data
	if c.Source != "" {
		fmt.Printf("Migrating data from: %s\n", c.Source)
		if err := c.migrateData(bg, ctx, c.Source); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		fmt.Println("Migration completed successfully!")
	}

	return nil
}

func (c *InitCmd) reset(ctx *cli.Context) error {
	dbPath := ctx.Store.GetConfigPath()
	if !cli.IsSQLite(ctx.Store) {
		return errors.New("--force is only supported for SQLite databases")
	}
	// Don't delete if it's the source (user error protection)
	if c.Source != "" {
		if absDbPath, err := filepath.Abs(dbPath); err == nil {
			dbPath = absDbPath
		}
		if absSource, err := filepath.Abs(c.Source); err == nil && absSource == dbPath {
			return fmt.Errorf("cannot use --force when source and destination are the same: %s", dbPath)
		}
	}

	if _, err := os.Stat(dbPath); err == nil {
		// Database exists, close it first to prevent file locking issues
		if err := ctx.Store.Close(); err != nil {
			return fmt.Errorf("failed to close existing database: %w", err)
		}
		if err := os.Remove(dbPath); err != nil {
			return fmt.Errorf("failed to delete existing database: %w", err)
		}
		fmt.Printf("Deleted existing database at: %s\n", dbPath)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to access existing database: %w", err)
	}
	return nil
}

func (c *InitCmd) migrateData(bg context.Context, ctx *cli.Context, sourcePath string) error {
	sourceStore, err := cli.OpenStore(config.ExpandHome(sourcePath))
	if err != nil {
		return err
	}
	if err := sourceStore.Load(); err != nil {
		return fmt.Errorf("failed to load source database: %w", err)
	}
	defer sourceStore.Close()

	res, err := storage.Copy(bg, sourceStore, ctx.Store, func(msg string) {
		fmt.Println("  " + msg)
	})
	if err != nil {
		return err
	}
	fmt.Printf("    Migrated %d users, %d dos, %d achievements, %d message sets, %d messages\n",
		res.Users, res.Dos, res.Achievements, res.MessageSets, res.PraiseMessages)
	return nil
}
