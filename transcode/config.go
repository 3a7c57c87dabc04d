package transcode

import (
	"github.com/sirupsen/logrus"

	"github.com/teenjuna/tvl"
)

type Option = func(*config)

// WithEntries sets how many renderings are kept in memory. Zero disables the memory layer.
func WithEntries(entries int) Option {
	if entries < 0 {
		panic("entries can't be < 0")
	}
	return func(c *config) {
		c.entries = entries
	}
}

func WithEncoder(encoder Encoder) Option {
	if encoder == nil {
		panic("encoder can't be nil")
	}
	return func(c *config) {
		c.encoder = encoder
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

type config struct {
	entries int
	encoder Encoder
	logger  *logrus.Entry
	metrics *tvl.Metrics
}

func newConfig(options ...Option) *config {
	options = append([]Option{
		WithEntries(tvl.DefaultCacheEntries),
		WithEncoder(WebP{}),
		WithLogger(logrus.NewEntry(logrus.StandardLogger())),
		WithMetrics(tvl.Prometheus(nil).Metrics()),
	}, options...)

	cfg := config{}
	for _, opt := range options {
		opt(&cfg)
	}

	return &cfg
}
