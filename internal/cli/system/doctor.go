package system

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/ididit/internal/backup"
	"github.com/julianstephens/ididit/internal/cli"
	"github.com/julianstephens/ididit/internal/config"
	"github.com/julianstephens/ididit/internal/instance"
	"github.com/julianstephens/ididit/internal/keyring"
	"github.com/julianstephens/ididit/internal/storage"
	"github.com/julianstephens/ididit/internal/utils"
	"github.com/julianstephens/ididit/internal/validation"
)

type DoctorCmd struct {
	Fix bool `help:"Delete duplicate Dos, keeping the oldest of each group."`
}

type check struct {
	name string
	// needsDB checks are skipped when the database is unreachable.
	needsDB bool
	// warnOnly failures do not fail the run.
	warnOnly bool
	run      func(context.Context, *cli.Context) error
}

func (cmd *DoctorCmd) checks() []check {
	return []check{
		{name: "Schema version", needsDB: true, run: checkSchemaVersion},
		{name: "Migrations complete", needsDB: true, run: checkMigrationsComplete},
		{name: "Backups present", warnOnly: true, run: checkBackupsPresent},
		{name: "Data validation", needsDB: true, run: cmd.checkValidation},
		{name: "Clock/timezone", run: checkClockTimezone},
		{name: "OS keyring", warnOnly: true, run: checkKeyring},
		{name: "API server", warnOnly: true, run: checkServer},
	}
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	fmt.Println("Running diagnostics...")
	fmt.Println()

	hasError := false
	dbReachable := true

	if err := checkDBReachable(bg, ctx); err != nil {
		fmt.Printf("❌ Database reachable: FAIL\n")
		fmt.Printf("   Error: %v\n", err)
		hasError = true
		dbReachable = false
	} else {
		fmt.Printf("✓ Database reachable: OK\n")
	}

	for _, c := range cmd.checks() {
		if c.needsDB && !dbReachable {
			fmt.Printf("⊘ %s: SKIPPED (database not reachable)\n", c.name)
			continue
		}
		err := c.run(bg, ctx)
		switch {
		case err == nil:
			fmt.Printf("✓ %s: OK\n", c.name)
		case c.warnOnly:
			fmt.Printf("⚠ %s: WARNING\n", c.name)
			fmt.Printf("   %v\n", err)
		default:
			fmt.Printf("❌ %s: FAIL\n", c.name)
			fmt.Printf("   Error: %v\n", err)
			hasError = true
		}
	}

	fmt.Println()
	if hasError {
		fmt.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}

	fmt.Println("All diagnostics passed!")
	return nil
}

func checkDBReachable(bg context.Context, ctx *cli.Context) error {
	if err := ctx.Store.Load(); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	pingCtx, cancel := storage.WithTimeout(bg, ctx.Timeout())
	defer cancel()
	if err := ctx.Store.Ping(pingCtx); err != nil {
		return fmt.Errorf("failed to query database: %w", err)
	}
	return nil
}

func checkSchemaVersion(_ context.Context, ctx *cli.Context) error {
	runner, err := cli.MigrationRunner(ctx.Store)
	if err != nil {
		return err
	}
	st, err := runner.Status()
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if st.Current == 0 {
		return fmt.Errorf("schema version is 0, database may not be initialized")
	}
	if st.Current > st.Latest {
		return fmt.Errorf("schema version %d is newer than supported version %d", st.Current, st.Latest)
	}
	return nil
}

func checkMigrationsComplete(_ context.Context, ctx *cli.Context) error {
	runner, err := cli.MigrationRunner(ctx.Store)
	if err != nil {
		return err
	}
	st, err := runner.Status()
	if err != nil {
		return err
	}
	if !st.UpToDate() {
		return fmt.Errorf("%d pending migration(s), run 'ididit migrate'", len(st.Pending))
	}
	return nil
}

func checkBackupsPresent(_ context.Context, ctx *cli.Context) error {
	if !cli.IsSQLite(ctx.Store) {
		return nil
	}
	mgr := backup.NewManager(ctx.Store.GetConfigPath())
	backups, err := mgr.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found in %s (run 'ididit backup create')", mgr.Dir())
	}
	if age := time.Since(backups[0].Timestamp); age > 7*24*time.Hour {
		return fmt.Errorf("most recent backup is %d days old", int(age.Hours()/24))
	}
	return nil
}

func (cmd *DoctorCmd) checkValidation(bg context.Context, ctx *cli.Context) error {
	snapCtx, cancel := storage.WithTimeout(bg, ctx.Timeout())
	defer cancel()
	snap, err := ctx.Store.Snapshot(snapCtx)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}

	result := validation.New(ctx.Today()).ValidateSnapshot(snap)
	if !result.HasConflicts() {
		return nil
	}

	if cmd.Fix {
		actions := validation.AutoFixDuplicateDos(result.Conflicts, snap.Dos, func(userID, id string) error {
			return ctx.Dos().Delete(bg, userID, id)
		})
		for _, a := range actions {
			fmt.Printf("   fixed: %s\n", a.Action)
		}
		if len(actions) > 0 {
			return (&DoctorCmd{}).checkValidation(bg, ctx)
		}
	}
	return errors.New(result.FormatReport())
}

func checkClockTimezone(_ context.Context, ctx *cli.Context) error {
	if !utils.ValidateTimezone(ctx.Config.Timezone) {
		return fmt.Errorf("invalid timezone %q in config", ctx.Config.Timezone)
	}
	now := ctx.Now()
	if now.Year() < 2020 {
		return fmt.Errorf("system clock looks wrong: %s", now.Format(time.RFC3339))
	}
	return nil
}

func checkKeyring(_ context.Context, _ *cli.Context) error {
	if !keyring.IsAvailable() {
		return errors.New("OS keyring is not available; sessions are not remembered between runs")
	}
	return nil
}

func checkServer(bg context.Context, ctx *cli.Context) error {
	lock, err := instance.Find(config.Dir(ctx.ConfigPath))
	if errors.Is(err, instance.ErrNotRunning) {
		return nil
	}
	if err != nil {
		return err
	}
	probeCtx, cancel := context.WithTimeout(bg, 3*time.Second)
	defer cancel()
	if _, err := instance.Probe(probeCtx, ctx.Config.Server.Host, lock); err != nil {
		return fmt.Errorf("server pid %d does not answer on port %d: %w", lock.PID, lock.Port, err)
	}
	return nil
}
