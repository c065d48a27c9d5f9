// Package testutil provides shared test helpers for setting up gateways and inbox folders.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/studytrack/internal/gateway/sqlite"
	"github.com/starford/studytrack/internal/storage"
)

// TestGateway creates a temporary SQLite-backed gateway that is automatically cleaned up.
func TestGateway(t *testing.T, opts ...sqlite.Option) *sqlite.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "studytrack-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := sqlite.Open(dbFile.Name(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestInbox creates a temporary inbox directory with a storage.Provider.
func TestInbox(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}
