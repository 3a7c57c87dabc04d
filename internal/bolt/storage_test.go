package bolt_test

import (
	"path/filepath"
	"testing"

	"github.com/teenjuna/tvl/internal/bolt"
	"github.com/teenjuna/tvl/internal/testing/require"
	"github.com/teenjuna/tvl/store"
	"github.com/teenjuna/tvl/store/storetest"
)

func TestStorage(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend {
		storage, err := bolt.New(bolt.WithFile(filepath.Join(t.TempDir(), "db", "tvl.bolt")))
		require.Nil(t, err)
		return storage
	})
}

func TestNewWithoutFile(t *testing.T) {
	_, err := bolt.New()
	require.NotNil(t, err)
}

func TestOptionValidation(t *testing.T) {
	cfg := &bolt.Config{}

	require.PanicWithError(t, "file can't be blank", func() {
		cfg.File("")
	})

	require.PanicWithError(t, "timeout can't be < 0", func() {
		cfg.Timeout(-1)
	})
}
