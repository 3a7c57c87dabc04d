package tvl

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBatchSize    = 20_000
	DefaultPaletteLimit = 1024 * 1024
	DefaultCacheEntries = 1024
)

// Config is the file configuration of the tvl command. Every section can be omitted.
type Config struct {
	Log    LogConfig    `toml:"log"`
	Store  StoreConfig  `toml:"store"`
	Ingest IngestConfig `toml:"ingest"`
	Server ServerConfig `toml:"server"`
	Fetch  FetchConfig  `toml:"fetch"`
}

type LogConfig struct {
	// Level is one of logrus levels: panic, fatal, error, warn, info, debug, trace.
	Level string `toml:"level"`
	// Format is text or json.
	Format string `toml:"format"`
}

type StoreConfig struct {
	// Driver is sqlite or bolt.
	Driver string `toml:"driver"`
	// Path is the database file. ":memory:" is accepted by the sqlite driver.
	Path string `toml:"path"`
	// Conns is the connection pool size of the sqlite driver.
	Conns int `toml:"conns"`
}

type IngestConfig struct {
	BatchSize    int `toml:"batch_size"`
	PaletteLimit int `toml:"palette_limit"`
	// Format of the decoded image stream: cbor or msgpack.
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr        string `toml:"addr"`
	MetricsAddr string `toml:"metrics_addr"`
	// CacheEntries is the number of renderings kept in memory. 0 disables the memory cache.
	CacheEntries int `toml:"cache_entries"`
}

type FetchConfig struct {
	Dir     string `toml:"dir"`
	Workers int    `toml:"workers"`
	// Attempts per download. 0 retries until the download succeeds.
	Attempts int `toml:"attempts"`
	// Backoff is exponential, linear or fixed.
	Backoff string `toml:"backoff"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	var c Config
	c.fill(func(string) bool { return false })
	return c
}

// LoadConfig reads a TOML file. Missing values are set to their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	tree, err := toml.LoadBytes(data)
	if err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	var c Config
	if err := tree.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	c.fill(tree.Has)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// fill sets defaults for zero values. Keys where zero has a meaning of its own are only set when
// has reports them absent.
func (c *Config) fill(has func(key string) bool) {
	setDefault(&c.Log.Level, "info")
	setDefault(&c.Log.Format, "text")
	setDefault(&c.Store.Driver, "sqlite")
	setDefault(&c.Store.Path, "tvl.db")
	setDefault(&c.Store.Conns, 4)
	setDefault(&c.Ingest.BatchSize, DefaultBatchSize)
	setDefault(&c.Ingest.PaletteLimit, DefaultPaletteLimit)
	setDefault(&c.Ingest.Format, "cbor")
	setDefault(&c.Server.Addr, ":8000")
	setDefault(&c.Server.MetricsAddr, ":9090")
	if !has("server.cache_entries") {
		setDefault(&c.Server.CacheEntries, DefaultCacheEntries)
	}
	setDefault(&c.Fetch.Dir, "export")
	setDefault(&c.Fetch.Workers, 4)
	if !has("fetch.attempts") {
		setDefault(&c.Fetch.Attempts, 5)
	}
	setDefault(&c.Fetch.Backoff, "exponential")
}

// Validate reports the first invalid value.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "bolt":
	default:
		return fmt.Errorf("store driver %q is unknown", c.Store.Driver)
	}
	if strings.TrimSpace(c.Store.Path) == "" || strings.Contains(c.Store.Path, "?") {
		return fmt.Errorf("store path %q is invalid", c.Store.Path)
	}
	if c.Store.Conns < 1 {
		return fmt.Errorf("store conns can't be < 1")
	}
	switch c.Ingest.Format {
	case "cbor", "msgpack":
	default:
		return fmt.Errorf("ingest format %q is unknown", c.Ingest.Format)
	}
	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("ingest batch size can't be < 1")
	}
	if c.Ingest.PaletteLimit < 1 {
		return fmt.Errorf("ingest palette limit can't be < 1")
	}
	if c.Fetch.Workers < 1 {
		return fmt.Errorf("fetch workers can't be < 1")
	}
	if c.Fetch.Attempts < 0 {
		return fmt.Errorf("fetch attempts can't be < 0")
	}
	switch c.Fetch.Backoff {
	case "exponential", "linear", "fixed":
	default:
		return fmt.Errorf("fetch backoff %q is unknown", c.Fetch.Backoff)
	}
	if c.Server.CacheEntries < 0 {
		return fmt.Errorf("server cache entries can't be < 0")
	}
	return nil
}

// Apply configures logger according to c.
func (c LogConfig) Apply(logger *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logger.SetLevel(level)

	switch strings.ToLower(c.Format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("log format %q is unknown", c.Format)
	}

	return nil
}

func setDefault[T comparable](v *T, def T) {
	var zero T
	if *v == zero {
		*v = def
	}
}
