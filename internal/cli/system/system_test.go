package system

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/ididit/internal/auth"
	"github.com/julianstephens/ididit/internal/cli"
	"github.com/julianstephens/ididit/internal/config"
	"github.com/julianstephens/ididit/internal/storage/sqlite"
	"github.com/julianstephens/ididit/internal/storage/storagetest"
)

var testNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// newTestContext returns a context over an uninitialized SQLite file in a temp dir.
func newTestContext(t *testing.T) (*cli.Context, string) {
	t.Helper()
	gokeyring.MockInit()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ididit.db")
	store := sqlite.NewStore(dbPath)
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})

	cfg := config.Default()
	cfg.Timezone = "UTC"
	ctx, err := cli.NewContext(store, cfg, filepath.Join(dir, "config.yaml"), &auth.MemoryTokens{})
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	ctx.Now = func() time.Time { return testNow }
	return ctx, dbPath
}

func initialized(t *testing.T) (*cli.Context, string) {
	t.Helper()
	ctx, dbPath := newTestContext(t)
	if err := ctx.Store.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return ctx, dbPath
}

// signIn registers a user through the session so commands see them as signed in.
func signIn(t *testing.T, ctx *cli.Context, email string) string {
	t.Helper()
	bg := context.Background()
	session, err := ctx.Session(bg)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if err := session.SignUp(bg, email, "password123"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	return session.UserID()
}

func TestInitCmd(t *testing.T) {
	ctx, dbPath := newTestContext(t)

	if err := (&InitCmd{}).Run(ctx); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file was not created: %v", err)
	}
	if _, err := os.Stat(ctx.ConfigPath); err != nil {
		t.Errorf("default config was not written: %v", err)
	}

	// A second run is a no-op.
	if err := (&InitCmd{}).Run(ctx); err != nil {
		t.Errorf("second init failed: %v", err)
	}
}

func TestInitCmdForce(t *testing.T) {
	ctx, _ := initialized(t)
	signIn(t, ctx, "gone@example.com")

	if err := (&InitCmd{Force: true}).Run(ctx); err != nil {
		t.Fatalf("init --force failed: %v", err)
	}
	users, err := ctx.Store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 0 {
		t.Errorf("users after reset = %d, want 0", len(users))
	}
}

func TestInitCmdForceRefusesSameSource(t *testing.T) {
	ctx, dbPath := initialized(t)
	if err := (&InitCmd{Force: true, Source: dbPath}).Run(ctx); err == nil {
		t.Error("init --force with source == destination should fail")
	}
}

func TestInitCmdCopiesSource(t *testing.T) {
	bg := context.Background()
	srcPath := filepath.Join(t.TempDir(), "old.db")
	src := sqlite.NewStore(srcPath)
	if err := src.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	f := storagetest.Fixtures{T: t, Store: src, Now: testNow}
	u := f.User("moved@example.com")
	d := f.Do(u.ID, "Read")
	if _, _, err := src.InsertAchievement(bg, storagetest.Achievement(u.ID, d.ID, "2024-04-30", testNow)); err != nil {
		t.Fatalf("InsertAchievement() error = %v", err)
	}
	src.Close()

	ctx, _ := newTestContext(t)
	if err := (&InitCmd{Source: srcPath}).Run(ctx); err != nil {
		t.Fatalf("init --source failed: %v", err)
	}
	n, err := ctx.Store.CountDos(bg, u.ID)
	if err != nil || n != 1 {
		t.Errorf("CountDos() = %d, %v; want 1", n, err)
	}
	rows, err := ctx.Store.ListAchievements(bg, u.ID, "2024-04-01", "2024-04-30")
	if err != nil || len(rows) != 1 {
		t.Errorf("achievements = %d, %v; want 1", len(rows), err)
	}
}

func TestMigrateCmd(t *testing.T) {
	ctx, _ := initialized(t)
	if err := (&MigrateCmd{Status: true}).Run(ctx); err != nil {
		t.Errorf("migrate --status error = %v", err)
	}
	if err := ctx.Store.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := (&MigrateCmd{}).Run(ctx); err != nil {
		t.Errorf("migrate error = %v", err)
	}
}

func TestDoctorCmdHealthy(t *testing.T) {
	ctx, _ := initialized(t)
	// Missing backups and keyring are warnings only.
	if err := (&DoctorCmd{}).Run(ctx); err != nil {
		t.Errorf("doctor failed on healthy database: %v", err)
	}
}

func TestDoctorCmdSchema(t *testing.T) {
	tests := []struct {
		name    string
		version int
	}{
		{name: "newer than supported", version: 999},
		{name: "pending migrations", version: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _ := initialized(t)
			db := ctx.Store.(*sqlite.Store).GetDB()
			if _, err := db.Exec("UPDATE schema_version SET version = ?", tt.version); err != nil {
				t.Fatalf("failed to set version: %v", err)
			}
			if err := (&DoctorCmd{}).Run(ctx); err == nil {
				t.Error("doctor should fail")
			}
		})
	}
}

func TestDoctorCmdFixesDuplicates(t *testing.T) {
	ctx, _ := initialized(t)
	f := storagetest.Fixtures{T: t, Store: ctx.Store, Now: testNow}
	u := f.User("dup@example.com")
	f.Do(u.ID, "Run")
	f.Do(u.ID, "Run")

	if err := (&DoctorCmd{}).Run(ctx); err == nil {
		t.Fatal("doctor should report the duplicate")
	}
	if err := (&DoctorCmd{Fix: true}).Run(ctx); err != nil {
		t.Fatalf("doctor --fix error = %v", err)
	}
	n, err := ctx.Store.CountDos(context.Background(), u.ID)
	if err != nil || n != 1 {
		t.Errorf("CountDos() = %d, %v; want 1", n, err)
	}
}

func TestCheckClockTimezone(t *testing.T) {
	ctx, _ := newTestContext(t)
	if err := checkClockTimezone(context.Background(), ctx); err != nil {
		t.Errorf("valid timezone: %v", err)
	}
	ctx.Config.Timezone = "Mars/Olympus"
	if err := checkClockTimezone(context.Background(), ctx); err == nil {
		t.Error("invalid timezone should fail")
	}
}

func TestDebugCommands(t *testing.T) {
	ctx, _ := initialized(t)

	if err := (&DebugDBPathCmd{}).Run(ctx); err != nil {
		t.Errorf("db-path error = %v", err)
	}
	if err := (&DebugDumpDosCmd{}).Run(ctx); err == nil {
		t.Error("dump-dos without a session should fail")
	}

	userID := signIn(t, ctx, "debug@example.com")
	storagetest.Fixtures{T: t, Store: ctx.Store, Now: testNow}.Do(userID, "Journal")

	for name, cmd := range map[string]interface{ Run(*cli.Context) error }{
		"dump-dos":          &DebugDumpDosCmd{},
		"dump-achievements": &DebugDumpAchievementsCmd{Month: "2024-05"},
		"dump-profile":      &DebugDumpProfileCmd{},
		"dump-session":      &DebugDumpSessionCmd{},
	} {
		if err := cmd.Run(ctx); err != nil {
			t.Errorf("%s error = %v", name, err)
		}
	}
	if err := (&DebugDumpAchievementsCmd{Month: "2024-13"}).Run(ctx); err == nil {
		t.Error("invalid month should fail")
	}
}

func TestConfigAndStatus(t *testing.T) {
	ctx, _ := newTestContext(t)
	ctx.Config.Server.JWTSecret = "secret"
	ctx.Config.Database = "postgres://runner:pw@localhost/ididit"

	if err := (&ConfigShowCmd{}).Run(ctx); err != nil {
		t.Errorf("config show error = %v", err)
	}
	if err := (&ConfigPathCmd{}).Run(ctx); err != nil {
		t.Errorf("config path error = %v", err)
	}
	// No lockfile in the temp config dir.
	if err := (&StatusCmd{}).Run(ctx); err != nil {
		t.Errorf("status error = %v", err)
	}
}

