// Package backends runs store-backed tests against every backend.
package backends

import (
	"path/filepath"
	"testing"

	"github.com/teenjuna/tvl/internal/bolt"
	"github.com/teenjuna/tvl/internal/sqlite"
	"github.com/teenjuna/tvl/store"
)

// Run calls fn once per backend with a fresh empty store that is closed on cleanup.
func Run(t *testing.T, fn func(t *testing.T, c *store.Client)) {
	t.Helper()
	t.Run("SQLite file", func(t *testing.T) {
		t.Helper()
		fn(t, open(t, func() (store.Backend, error) {
			return sqlite.New(sqlite.WithFile(filepath.Join(t.TempDir(), "tvl.db")))
		}))
	})
	t.Run("SQLite memory", func(t *testing.T) {
		t.Helper()
		fn(t, open(t, func() (store.Backend, error) {
			return sqlite.New()
		}))
	})
	t.Run("Bolt", func(t *testing.T) {
		t.Helper()
		fn(t, open(t, func() (store.Backend, error) {
			return bolt.New(bolt.WithFile(filepath.Join(t.TempDir(), "tvl.bolt")))
		}))
	})
}

func open(t *testing.T, fn func() (store.Backend, error)) *store.Client {
	t.Helper()
	backend, err := fn()
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	c := store.New(backend)
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Fatalf("close backend: %v", err)
		}
	})
	return c
}
