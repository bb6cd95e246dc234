package server_test

import (
	"path/filepath"
	"testing"

	"github.com/restock-alert/restock-alert/internal/server"
	"github.com/restock-alert/restock-alert/internal/store"
)

func setupTestServer(t *testing.T, opts ...server.Option) (*server.Server, *store.SQLiteStore) {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return server.New(s, 0, opts...), s
}
