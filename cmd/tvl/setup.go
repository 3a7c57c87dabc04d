package main

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/teenjuna/tvl"
	"github.com/teenjuna/tvl/internal/bolt"
	"github.com/teenjuna/tvl/internal/sqlite"
	"github.com/teenjuna/tvl/retry"
	"github.com/teenjuna/tvl/store"
)

// env is what every command needs: the resolved configuration, a logger and the metrics.
type env struct {
	cfg      tvl.Config
	logger   *logrus.Entry
	registry *prometheus.Registry
	metrics  *tvl.Metrics
}

// setup loads the configuration file, applies flag overrides and configures logging.
func setup(c *cli.Context) (*env, error) {
	cfg := tvl.DefaultConfig()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = tvl.LoadConfig(path); err != nil {
			return nil, err
		}
	}

	override(c, "log-level", &cfg.Log.Level)
	override(c, "log-format", &cfg.Log.Format)
	override(c, "store-driver", &cfg.Store.Driver)
	override(c, "store-path", &cfg.Store.Path)
	override(c, "dir", &cfg.Fetch.Dir)
	override(c, "workers", &cfg.Fetch.Workers)
	override(c, "format", &cfg.Ingest.Format)
	override(c, "palette-limit", &cfg.Ingest.PaletteLimit)
	override(c, "batch-size", &cfg.Ingest.BatchSize)
	override(c, "addr", &cfg.Server.Addr)
	override(c, "metrics-addr", &cfg.Server.MetricsAddr)
	override(c, "cache-entries", &cfg.Server.CacheEntries)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logrus.StandardLogger()
	if err := cfg.Log.Apply(logger); err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &env{
		cfg:      cfg,
		logger:   logrus.NewEntry(logger).WithField("command", c.Command.Name),
		registry: registry,
		metrics:  tvl.Prometheus(registry).Metrics(),
	}, nil
}

func override[T string | int](c *cli.Context, flag string, v *T) {
	if !c.IsSet(flag) {
		return
	}
	switch p := any(v).(type) {
	case *string:
		*p = c.String(flag)
	case *int:
		*p = c.Int(flag)
	}
}

// openStore opens the configured backend. The caller closes the returned client.
func (e *env) openStore() (*store.Client, error) {
	var (
		backend store.Backend
		err     error
	)
	switch e.cfg.Store.Driver {
	case "sqlite":
		backend, err = sqlite.New(
			sqlite.WithFile(e.cfg.Store.Path),
			sqlite.WithConns(e.cfg.Store.Conns),
		)
	case "bolt":
		backend, err = bolt.New(bolt.WithFile(e.cfg.Store.Path))
	default:
		err = fmt.Errorf("store driver %q is unknown", e.cfg.Store.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"driver": e.cfg.Store.Driver,
		"path":   e.cfg.Store.Path,
	}).Debug("Opened store")

	return store.New(backend), nil
}

func (e *env) retryPolicy() retry.Policy {
	attempts := e.cfg.Fetch.Attempts
	switch e.cfg.Fetch.Backoff {
	case "linear":
		return retry.Linear(attempts, time.Second, time.Second*30)
	case "fixed":
		return retry.Fixed(attempts, time.Second*2)
	default:
		return retry.Exponential(attempts, time.Second, time.Second*30)
	}
}
