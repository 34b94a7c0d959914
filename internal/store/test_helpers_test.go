package store

import (
	"context"
	"path/filepath"
	"testing"
)

const usersDDL = `CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT,
	visits INTEGER NOT NULL DEFAULT 0,
	avatar BLOB
)`

// createTestStore creates a new file-backed SQLite store for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open("sqlite3", path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createUsersTable creates the users table used by most tests.
func createUsersTable(t *testing.T, s *Store) {
	t.Helper()
	if err := s.Exec(context.Background(), usersDDL); err != nil {
		t.Fatalf("create users: %v", err)
	}
}

// countUsers returns the number of rows in users.
func countUsers(t *testing.T, s *Store) int {
	t.Helper()
	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		t.Fatalf("count users: %v", err)
	}
	return n
}
