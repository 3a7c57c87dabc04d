package sqlite_test

import (
	"os"
	"path"
	"path/filepath"
	"testing"

	"github.com/teenjuna/tvl/internal/sqlite"
	"github.com/teenjuna/tvl/internal/testing/require"
	"github.com/teenjuna/tvl/store"
	"github.com/teenjuna/tvl/store/storetest"
)

func TestStorage(t *testing.T) {
	run(t, func(t *testing.T, file string) {
		storetest.Run(t, func(t *testing.T) store.Backend {
			if file != ":memory:" {
				file = path.Join(t.TempDir(), "file")
			}
			storage, err := sqlite.New(sqlite.WithFile(file))
			require.Nil(t, err)
			return storage
		})
	})
}

func TestMemoryIsolation(t *testing.T) {
	s1, err := sqlite.New()
	require.Nil(t, err)
	defer s1.Close()

	s2, err := sqlite.New()
	require.Nil(t, err)
	defer s2.Close()

	c1, c2 := store.New(s1), store.New(s2)
	require.Nil(t, c1.SAdd(t.Context(), "s", "a"))

	members, err := c2.SMembers(t.Context(), "s")
	require.Nil(t, err)
	require.Equal(t, len(members), 0)
}

func TestReopen(t *testing.T) {
	file := path.Join(t.TempDir(), "file")

	s, err := sqlite.New(sqlite.WithFile(file))
	require.Nil(t, err)
	require.Nil(t, store.New(s).HSet(t.Context(), "h", store.S("f", "v")))
	require.Nil(t, s.Close())

	s, err = sqlite.New(sqlite.WithFile(file))
	require.Nil(t, err)
	defer s.Close()

	v, ok, err := store.New(s).HGet(t.Context(), "h", "f")
	require.Nil(t, err)
	require.Equal(t, ok, true)
	require.Equal(t, v, []byte("v"))
}

func TestSpecialCharactersInPath(t *testing.T) {
	dir := t.TempDir()
	open := func(name string) *store.Client {
		t.Helper()
		require.Nil(t, os.MkdirAll(filepath.Join(dir, name), 0o755))
		s, err := sqlite.New(sqlite.WithFile(filepath.Join(dir, name, "tvl.db")))
		require.Nil(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return store.New(s)
	}

	a, b, c := open("run#1"), open("run#2"), open("100%41")
	require.Nil(t, a.SAdd(t.Context(), "s", "only-in-a"))

	for _, other := range []*store.Client{b, c} {
		members, err := other.SMembers(t.Context(), "s")
		require.Nil(t, err)
		require.Equal(t, len(members), 0)
	}

	for _, name := range []string{"run#1", "run#2", "100%41"} {
		_, err := os.Stat(filepath.Join(dir, name, "tvl.db"))
		require.Nil(t, err)
	}
	_, err := os.Stat(filepath.Join(dir, "run"))
	require.True(t, os.IsNotExist(err))
}

func TestOptionValidation(t *testing.T) {
	cfg := &sqlite.Config{}

	require.PanicWithError(t, "file can't be blank", func() {
		cfg.File(" ")
	})

	require.PanicWithError(t, "file can't contain ?", func() {
		cfg.File("file?mode=ro")
	})

	require.PanicWithError(t, "conns can't be < 1", func() {
		cfg.Conns(0)
	})
}

func run(t *testing.T, fn func(t *testing.T, file string)) {
	t.Helper()
	t.Run("In file", func(t *testing.T) {
		t.Helper()
		fn(t, path.Join(t.TempDir(), "file"))
	})
	t.Run("In memory", func(t *testing.T) {
		t.Helper()
		fn(t, ":memory:")
	})
}
