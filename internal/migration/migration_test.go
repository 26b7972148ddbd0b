package migration

import (
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/ididit/migrations"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestReadMigrationFiles(t *testing.T) {
	tests := []struct {
		name    string
		files   fstest.MapFS
		want    []int
		wantErr string
	}{
		{
			name: "sorted by version",
			files: fstest.MapFS{
				"002_second.sql": {Data: []byte("SELECT 1;")},
				"001_first.sql":  {Data: []byte("SELECT 1;")},
				"README.md":      {Data: []byte("ignored")},
			},
			want: []int{1, 2},
		},
		{
			name:    "bad name",
			files:   fstest.MapFS{"init.sql": {Data: []byte("")}},
			wantErr: "invalid migration filename",
		},
		{
			name:    "zero version",
			files:   fstest.MapFS{"000_zero.sql": {Data: []byte("")}},
			wantErr: "at least 1",
		},
		{
			name: "duplicate version",
			files: fstest.MapFS{
				"001_a.sql": {Data: []byte("")},
				"01_b.sql":  {Data: []byte("")},
			},
			wantErr: "duplicate migration version 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunner(nil, tt.files, DialectSQLite)
			got, err := r.ReadMigrationFiles()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("ReadMigrationFiles() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadMigrationFiles() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d migrations, want %d", len(got), len(tt.want))
			}
			for i, v := range tt.want {
				if got[i].Version != v {
					t.Errorf("migration[%d].Version = %d, want %d", i, got[i].Version, v)
				}
			}
		})
	}
}

func TestApplyMigrationsSQLite(t *testing.T) {
	db := openSQLite(t)
	files := fstest.MapFS{
		"001_init.sql":  {Data: []byte("CREATE TABLE dos (id TEXT PRIMARY KEY);")},
		"002_index.sql": {Data: []byte("CREATE INDEX idx_dos ON dos(id);")},
	}
	r := NewRunner(db, files, DialectSQLite)

	var logs []string
	n, err := r.ApplyMigrations(func(s string) { logs = append(logs, s) })
	if err != nil {
		t.Fatalf("ApplyMigrations() error = %v", err)
	}
	if n != 2 {
		t.Errorf("applied = %d, want 2", n)
	}
	if len(logs) == 0 {
		t.Error("expected progress messages")
	}

	st, err := r.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !st.UpToDate() || st.Current != 2 {
		t.Errorf("Status() = %+v, want up to date at 2", st)
	}

	n, err = r.ApplyMigrations(nil)
	if err != nil || n != 0 {
		t.Errorf("second ApplyMigrations() = %d, %v; want 0, nil", n, err)
	}
}

func TestApplyMigrationsRollsBackFailure(t *testing.T) {
	db := openSQLite(t)
	files := fstest.MapFS{
		"001_init.sql":   {Data: []byte("CREATE TABLE dos (id TEXT PRIMARY KEY);")},
		"002_broken.sql": {Data: []byte("CREATE TABLE nope (;")},
	}
	r := NewRunner(db, files, DialectSQLite)

	n, err := r.ApplyMigrations(nil)
	if err == nil {
		t.Fatal("ApplyMigrations() should fail on broken SQL")
	}
	if n != 1 {
		t.Errorf("applied = %d, want 1", n)
	}
	v, err := r.GetCurrentVersion()
	if err != nil {
		t.Fatalf("GetCurrentVersion() error = %v", err)
	}
	if v != 1 {
		t.Errorf("version = %d, want 1 after failed second migration", v)
	}
}

func TestValidateVersionNewerDatabase(t *testing.T) {
	db := openSQLite(t)
	r := NewRunner(db, fstest.MapFS{"001_init.sql": {Data: []byte("SELECT 1;")}}, DialectSQLite)
	if err := r.EnsureSchemaVersionTable(); err != nil {
		t.Fatalf("EnsureSchemaVersionTable() error = %v", err)
	}
	if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (5)"); err != nil {
		t.Fatalf("failed to seed version: %v", err)
	}

	err := r.ValidateVersion()
	if err == nil || !strings.Contains(err.Error(), "newer than supported") {
		t.Errorf("ValidateVersion() error = %v, want newer-schema error", err)
	}
}

func TestEmbeddedSQLiteMigrations(t *testing.T) {
	db := openSQLite(t)
	sub, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		t.Fatalf("fs.Sub() error = %v", err)
	}
	r := NewRunner(db, sub, DialectSQLite)
	if _, err := r.ApplyMigrations(nil); err != nil {
		t.Fatalf("ApplyMigrations() error = %v", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM message_sets WHERE name = 'デフォルト'").Scan(&n); err != nil {
		t.Fatalf("query default set: %v", err)
	}
	if n != 1 {
		t.Errorf("default message sets = %d, want 1", n)
	}
}
