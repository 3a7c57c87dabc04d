package main

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/teenjuna/tvl/catalog"
	"github.com/teenjuna/tvl/container"
	"github.com/teenjuna/tvl/fetch"
	"github.com/teenjuna/tvl/ingest"
	"github.com/teenjuna/tvl/manifest"
	"github.com/teenjuna/tvl/pack"
	"github.com/teenjuna/tvl/preview"
	"github.com/teenjuna/tvl/server"
	"github.com/teenjuna/tvl/stream"
	"github.com/teenjuna/tvl/transcode"
)

func fetchAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}

	m, err := manifest.Load(c.String("manifest"))
	if err != nil {
		return err
	}

	f := fetch.New(
		fetch.WithWorkers(e.cfg.Fetch.Workers),
		fetch.WithRetryPolicy(e.retryPolicy()),
		fetch.WithLogger(e.logger),
	)
	n, err := f.Fetch(c.Context, m, e.cfg.Fetch.Dir)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(c.App.Writer, "fetched %d files, %d bytes\n", len(m), n)
	return nil
}

func packAction(c *cli.Context) (err error) {
	e, err := setup(c)
	if err != nil {
		return err
	}

	m, err := manifest.Load(c.String("manifest"))
	if err != nil {
		return err
	}

	out := c.String("out")
	w, err := stream.Create(out, stream.CBOR, false)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, w.Close()) }()

	n, err := pack.New(m, pack.WithLogger(e.logger)).Pack(e.cfg.Fetch.Dir, w)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(c.App.Writer, "packed %d containers into %s\n", n, out)
	return nil
}

func parseAction(c *cli.Context) (err error) {
	e, err := setup(c)
	if err != nil {
		return err
	}
	format, err := stream.ParseFormat(e.cfg.Ingest.Format)
	if err != nil {
		return err
	}

	in, err := stream.Open(c.String("in"), stream.CBOR, false)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := stream.Create(c.String("out"), format, true)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, out.Close()) }()

	parser := container.NewParser(
		container.WithPaletteLimit(e.cfg.Ingest.PaletteLimit),
		container.WithLogger(e.logger),
		container.WithMetrics(e.metrics),
	)
	for asset, err := range container.Assets(in) {
		if err != nil {
			return err
		}
		for img, err := range parser.Parse(asset) {
			if err != nil {
				return err
			}
			if err := out.Write(container.ImageMap(img)); err != nil {
				return fmt.Errorf("write image: %w", err)
			}
		}
		if err := c.Context.Err(); err != nil {
			return err
		}
	}

	s := parser.Stats()
	_, _ = fmt.Fprintf(
		c.App.Writer,
		"parsed %d images, skipped %d, unsupported %d\n",
		s.Parsed, s.Skipped, s.Unsupported,
	)
	return nil
}

func syncAction(verify bool) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setup(c)
		if err != nil {
			return err
		}
		format, err := stream.ParseFormat(e.cfg.Ingest.Format)
		if err != nil {
			return err
		}

		in, err := stream.Open(c.String("in"), format, true)
		if err != nil {
			return err
		}
		defer func() { _ = in.Close() }()

		client, err := e.openStore()
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		engine := ingest.New(
			catalog.New(client),
			ingest.WithBatchSize(e.cfg.Ingest.BatchSize),
			ingest.WithLogger(e.logger),
			ingest.WithMetrics(e.metrics),
		)

		run := engine.Import
		if verify {
			run = engine.Verify
		}
		res, err := run(c.Context, container.Images(in))
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(
			c.App.Writer,
			"%d images: %d collections created, %d imported, %d reused, %d pruned in %d batches\n",
			res.Records, res.Created, res.Imported, res.Reused, res.Pruned, res.Batches,
		)
		return nil
	}
}

func serveAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}

	client, err := e.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	cat := catalog.New(client)
	cache := transcode.New(
		cat,
		transcode.WithEntries(e.cfg.Server.CacheEntries),
		transcode.WithLogger(e.logger),
		transcode.WithMetrics(e.metrics),
	)
	api := server.New(cat, cache, server.WithLogger(e.logger))
	metrics := promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})

	g, ctx := errgroup.WithContext(c.Context)
	g.Go(func() error {
		return server.ListenAndServe(ctx, e.cfg.Server.Addr, api, e.logger.WithField("server", "api"))
	})
	g.Go(func() error {
		return server.ListenAndServe(ctx, e.cfg.Server.MetricsAddr, metrics, e.logger.WithField("server", "metrics"))
	})

	err = g.Wait()
	e.logger.WithError(err).Info("Stopped")
	return err
}

func previewAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	format, err := stream.ParseFormat(e.cfg.Ingest.Format)
	if err != nil {
		return err
	}

	in, err := stream.Open(c.String("in"), format, true)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	res, err := preview.Write(
		container.Images(in),
		c.String("out"),
		preview.WithLimit(c.Int("limit")),
		preview.WithLogger(e.logger),
	)
	if err != nil {
		return err
	}

	e.logger.WithFields(logrus.Fields{
		"files":   len(res.Files),
		"skipped": res.Skipped,
		"dir":     c.String("out"),
	}).Info("Wrote previews")
	return nil
}
