package ingest

import (
	"github.com/sirupsen/logrus"

	"github.com/teenjuna/tvl"
)

type Option = func(*config)

// WithBatchSize sets how many image writes are sent to the store in one pipeline. It has no
// effect on the result of a run.
func WithBatchSize(size int) Option {
	if size < 1 {
		panic("batch size can't be < 1")
	}
	return func(c *config) {
		c.batchSize = size
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

// WithProgress sets how many records pass between progress log lines.
func WithProgress(every int) Option {
	if every < 1 {
		panic("progress interval can't be < 1")
	}
	return func(c *config) {
		c.progress = every
	}
}

type config struct {
	batchSize int
	progress  int
	logger    *logrus.Entry
	metrics   *tvl.Metrics
}

func newConfig(options ...Option) *config {
	options = append([]Option{
		WithBatchSize(tvl.DefaultBatchSize),
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
