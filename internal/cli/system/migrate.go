package system

import (
	"fmt"

	"github.com/julianstephens/ididit/internal/cli"
	"github.com/julianstephens/ididit/internal/migration"
)

type MigrateCmd struct {
	Status bool `help:"Only report the schema version and pending migrations."`
}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	runner, err := cli.MigrationRunner(ctx.Store)
	if err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	defer ctx.Store.Close()

	if c.Status {
		st, err := runner.Status()
		if err != nil {
			return err
		}
		printStatus(st)
		return nil
	}

	count, err := runner.ApplyMigrations(func(msg string) {
		fmt.Println(msg)
	})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if count == 0 {
		fmt.Println("No migrations to apply. Database is up to date.")
	} else {
		fmt.Printf("\nSuccessfully applied %d migration(s).\n", count)
	}
	return nil
}

func printStatus(st migration.Status) {
	fmt.Printf("Schema version: %d (latest %d)\n", st.Current, st.Latest)
	if st.UpToDate() {
		fmt.Println("No migrations to apply. Database is up to date.")
		return
	}
	for _, m := range st.Pending {
		fmt.Printf("  pending: %03d %s\n", m.Version, m.Name)
	}
}
