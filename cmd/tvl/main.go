// The tvl command runs the packed image pipeline: fetch the listed containers, pack them into one
// asset sequence, parse the asset sequence into a decoded image stream, sync that stream into the
// store and serve the stored images over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "tvl",
		Usage: "Import, store and serve images from packed TVL containers",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", TakesFile: true, Usage: "Read configuration from a TOML file", EnvVars: []string{"TVL_CONFIG"}},
			&cli.StringFlag{Name: "log-level", Usage: "Set log level (panic, fatal, error, warn, info, debug, trace)", EnvVars: []string{"TVL_LOG_LEVEL"}},
			&cli.StringFlag{Name: "log-format", Usage: "Set log format (text, json)", EnvVars: []string{"TVL_LOG_FORMAT"}},
			&cli.StringFlag{Name: "store-driver", Usage: "Store backend (sqlite, bolt)", EnvVars: []string{"TVL_STORE_DRIVER"}},
			&cli.StringFlag{Name: "store-path", TakesFile: true, Usage: "Store database file", EnvVars: []string{"TVL_STORE_PATH"}},
		},
		Commands: []*cli.Command{
			{
				Name:  "fetch",
				Usage: "Download the containers listed in a manifest",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "manifest", Value: "import.json", TakesFile: true, Usage: "JSON array of [url, description] pairs"},
					&cli.StringFlag{Name: "dir", Usage: "Download directory"},
					&cli.IntFlag{Name: "workers", Usage: "Number of parallel downloads"},
				},
				Action: fetchAction,
			},
			{
				Name:  "pack",
				Usage: "Bundle downloaded containers into one asset sequence",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "manifest", Value: "import.json", TakesFile: true, Usage: "JSON array of [url, description] pairs"},
					&cli.StringFlag{Name: "dir", Usage: "Directory with the downloaded containers"},
					&cli.StringFlag{Name: "out", Value: "collection.cbor", TakesFile: true, Usage: "Output CBOR sequence"},
				},
				Action: packAction,
			},
			{
				Name:  "parse",
				Usage: "Decode the images of every packed container",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Value: "collection.cbor", TakesFile: true, Usage: "Packed asset sequence"},
					&cli.StringFlag{Name: "out", Value: "images.zz", TakesFile: true, Usage: "Output decoded image stream"},
					&cli.StringFlag{Name: "format", Usage: "Decoded stream format (cbor, msgpack)"},
					&cli.IntFlag{Name: "palette-limit", Usage: "Largest palette payload in bytes that is decoded"},
				},
				Action: parseAction,
			},
			{
				Name:   "import",
				Usage:  "Store every decoded image as a new record",
				Flags:  syncFlags(),
				Action: syncAction(false),
			},
			{
				Name:   "verify",
				Usage:  "Sync decoded images into the store, reusing and pruning records",
				Flags:  syncFlags(),
				Action: syncAction(true),
			},
			{
				Name:  "serve",
				Usage: "Serve collections and rendered images over HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "API listen address", EnvVars: []string{"TVL_ADDR"}},
					&cli.StringFlag{Name: "metrics-addr", Usage: "Metrics listen address", EnvVars: []string{"TVL_METRICS_ADDR"}},
					&cli.IntFlag{Name: "cache-entries", Usage: "Rendered images kept in memory, 0 disables"},
				},
				Action: serveAction,
			},
			{
				Name:  "preview",
				Usage: "Write decoded images as files for a quick look",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Value: "images.zz", TakesFile: true, Usage: "Decoded image stream"},
					&cli.StringFlag{Name: "out", Value: "preview", TakesFile: true, Usage: "Output directory"},
					&cli.StringFlag{Name: "format", Usage: "Decoded stream format (cbor, msgpack)"},
					&cli.IntFlag{Name: "limit", Usage: "Stop after this many files, 0 writes all"},
				},
				Action: previewAction,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		stop()
		logrus.Fatal(err)
	}
}

func syncFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "in", Value: "images.zz", TakesFile: true, Usage: "Decoded image stream"},
		&cli.StringFlag{Name: "format", Usage: "Decoded stream format (cbor, msgpack)"},
		&cli.IntFlag{Name: "batch-size", Usage: "Images per store pipeline"},
	}
}
