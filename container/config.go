package container

import (
	"github.com/sirupsen/logrus"

	"github.com/teenjuna/tvl"
)

type Option = func(*config)

// WithPaletteLimit sets the largest palette payload that is decoded. Larger ones are skipped.
func WithPaletteLimit(limit int) Option {
	if limit < 1 {
		panic("palette limit can't be < 1")
	}
	return func(c *config) {
		c.paletteLimit = limit
	}
}

func WithLogger(logger *logrus.Entry) Option {
	if logger == nil {
		panic("logger can't be nil")
	}
	return func(c *config) {
		c.logger = logger
	}
}

func WithMetrics(metrics *tvl.Metrics) Option {
	if metrics == nil {
		panic("metrics can't be nil")
	}
	return func(c *config) {
		c.metrics = metrics
	}
}

// WithProgress sets how many parsed records pass between progress log lines.
func WithProgress(every int) Option {
	if every < 1 {
		panic("progress interval can't be < 1")
	}
	return func(c *config) {
		c.progress = every
	}
}

type config struct {
	paletteLimit int
	progress     int
	logger       *logrus.Entry
	metrics      *tvl.Metrics
}

func newConfig(options ...Option) *config {
	options = append([]Option{
		WithPaletteLimit(tvl.DefaultPaletteLimit),
		WithProgress(5000),
		WithLogger(logrus.NewEntry(logrus.StandardLogger())),
		WithMetrics(tvl.Prometheus(nil).Metrics()),
	}, options...)

	cfg := config{}
	for _, opt := range options {
		opt(&cfg)
	}

	return &cfg
}
