package tvl_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/teenjuna/tvl"
	"github.com/teenjuna/tvl/internal/testing/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tvl.toml")
	require.Nil(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	c := tvl.DefaultConfig()
	require.Equal(t, c.Log.Level, "info")
	require.Equal(t, c.Log.Format, "text")
	require.Equal(t, c.Store.Driver, "sqlite")
	require.Equal(t, c.Store.Conns, 4)
	require.Equal(t, c.Ingest.BatchSize, tvl.DefaultBatchSize)
	require.Equal(t, c.Ingest.PaletteLimit, tvl.DefaultPaletteLimit)
	require.Equal(t, c.Ingest.Format, "cbor")
	require.Equal(t, c.Server.CacheEntries, tvl.DefaultCacheEntries)
	require.Equal(t, c.Fetch.Workers, 4)
	require.Equal(t, c.Fetch.Attempts, 5)
	require.Equal(t, c.Fetch.Backoff, "exponential")
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "debug"
format = "json"

[store]
driver = "bolt"
path = "/var/lib/tvl/tvl.bolt"
conns = 8

[ingest]
batch_size = 500

[fetch]
backoff = "linear"
`)

	c, err := tvl.LoadConfig(path)
	require.Nil(t, err)
	require.Equal(t, c.Log.Level, "debug")
	require.Equal(t, c.Log.Format, "json")
	require.Equal(t, c.Store.Driver, "bolt")
	require.Equal(t, c.Store.Path, "/var/lib/tvl/tvl.bolt")
	require.Equal(t, c.Store.Conns, 8)
	require.Equal(t, c.Ingest.BatchSize, 500)
	require.Equal(t, c.Fetch.Backoff, "linear")

	// Omitted values fall back to defaults.
	require.Equal(t, c.Ingest.PaletteLimit, tvl.DefaultPaletteLimit)
	require.Equal(t, c.Server.Addr, ":8000")
	require.Equal(t, c.Fetch.Dir, "export")
	require.Equal(t, c.Server.CacheEntries, tvl.DefaultCacheEntries)
	require.Equal(t, c.Fetch.Attempts, 5)
}

func TestLoadConfigExplicitZero(t *testing.T) {
	path := writeConfig(t, `
[server]
cache_entries = 0

[fetch]
attempts = 0
`)

	c, err := tvl.LoadConfig(path)
	require.Nil(t, err)
	require.Equal(t, c.Server.CacheEntries, 0)
	require.Equal(t, c.Fetch.Attempts, 0)

	// Zero still means default where it has no meaning of its own.
	path = writeConfig(t, "[fetch]\nworkers = 0\n")
	c, err = tvl.LoadConfig(path)
	require.Nil(t, err)
	require.Equal(t, c.Fetch.Workers, 4)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := map[string]string{
		"driver":      "[store]\ndriver = \"redis\"",
		"format":      "[ingest]\nformat = \"json\"",
		"batch size":  "[ingest]\nbatch_size = -1",
		"backoff":     "[fetch]\nbackoff = \"random\"",
		"workers":     "[fetch]\nworkers = -2",
		"syntax":      "[store\ndriver = 1",
		"wrong type":  "[ingest]\nbatch_size = \"big\"",
		"cache":       "[server]\ncache_entries = -1",
		"attempts":    "[fetch]\nattempts = -1",
		"palette cap": "[ingest]\npalette_limit = -5",
		"conns":       "[store]\nconns = -1",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tvl.LoadConfig(writeConfig(t, content))
			require.NotNil(t, err)
		})
	}

	_, err := tvl.LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.NotNil(t, err)
}

func TestLogConfigApply(t *testing.T) {
	logger := logrus.New()

	require.Nil(t, tvl.LogConfig{Level: "warn", Format: "json"}.Apply(logger))
	require.Equal(t, logger.GetLevel(), logrus.WarnLevel)
	_, ok := logger.Formatter.(*logrus.JSONFormatter)
	require.True(t, ok)

	require.Nil(t, tvl.LogConfig{Level: "debug", Format: "text"}.Apply(logger))
	require.Equal(t, logger.GetLevel(), logrus.DebugLevel)

	require.NotNil(t, tvl.LogConfig{Level: "loud"}.Apply(logger))
	require.NotNil(t, tvl.LogConfig{Level: "info", Format: "xml"}.Apply(logger))
}
