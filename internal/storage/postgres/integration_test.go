package postgres

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/julianstephens/ididit/internal/storage"
	"github.com/julianstephens/ididit/internal/storage/storagetest"
)

// TestStore_Integration runs the shared provider suite against a real database.
// Set POSTGRES_TEST_URL to run it, for example:
// POSTGRES_TEST_URL="postgres://ididit_user@localhost:5432/ididit_test?sslmode=disable"
func TestStore_Integration(t *testing.T) {
	connStr := os.Getenv("POSTGRES_TEST_URL")
	if connStr == "" {
		t.Skip("POSTGRES_TEST_URL not set, skipping PostgreSQL integration test")
	}

	storagetest.Run(t, func(t *testing.T) storage.Provider {
		store := New(isolatedSchema(t, connStr))
		if err := store.Init(); err != nil {
			t.Fatalf("Failed to initialize store: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return store
	})
}

// isolatedSchema creates a throwaway schema and returns connStr pointing at it.
func isolatedSchema(t *testing.T, connStr string) string {
	t.Helper()
	schema := "ididit_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")

	admin, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("failed to open admin connection: %v", err)
	}
	if _, err := admin.Exec("CREATE SCHEMA " + schema); err != nil {
		admin.Close()
		t.Fatalf("failed to create schema: %v", err)
	}
	t.Cleanup(func() {
		_, _ = admin.Exec(fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		admin.Close()
	})

	u, err := url.Parse(connStr)
	if err != nil || u.Scheme == "" {
		return strings.TrimSpace(connStr) + " search_path=" + schema
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String()
}
