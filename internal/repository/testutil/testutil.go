package testutil

import (
	"path/filepath"
	"testing"

	"database/sql"

	"babelfeed/internal/db"
	"babelfeed/internal/snowflake"
)

// NewTestDB opens a migrated sqlite database in a per-test temp directory.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if err := snowflake.Init(1); err != nil {
		t.Fatalf("init snowflake: %v", err)
	}
	conn, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
