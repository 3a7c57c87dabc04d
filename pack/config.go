package pack

import "github.com/sirupsen/logrus"

type Option = func(*config)

func WithLogger(logger *logrus.Entry) Option {
	if logger == nil {
		panic("logger can't be nil")
	}
	return func(c *config) {
		c.logger = logger
	}
}

// WithExtension sets the suffix that selects container files in the walked directory.
func WithExtension(ext string) Option {
	if ext == "" {
		panic("extension can't be blank")
	}
	return func(c *config) {
		c.ext = ext
	}
}

type config struct {
	ext    string
	logger *logrus.Entry
}

func newConfig(options ...Option) *config {
	options = append([]Option{
		WithExtension("tvl"),
		WithLogger(logrus.NewEntry(logrus.StandardLogger())),
	}, options...)

	cfg := config{}
	for _, opt := range options {
		opt(&cfg)
	}

	return &cfg
}
