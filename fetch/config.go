package fetch

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/teenjuna/tvl/retry"
)

type Option = func(*config)

// WithWorkers sets how many downloads run at once.
func WithWorkers(workers int) Option {
	if workers < 1 {
		panic("workers can't be < 1")
	}
	return func(c *config) {
		c.workers = workers
	}
}

// WithRetryPolicy sets the schedule of repeated download attempts. Each download derives its own
// copy.
func WithRetryPolicy(policy retry.Policy) Option {
	if policy == nil {
		panic("retry policy can't be nil")
	}
	return func(c *config) {
		c.policy = policy
	}
}

func WithClient(client *http.Client) Option {
	if client == nil {
		panic("client can't be nil")
	}
	return func(c *config) {
		c.client = client
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

type config struct {
	workers int
	policy  retry.Policy
	client  *http.Client
	logger  *logrus.Entry
}

func newConfig(options ...Option) *config {
	options = append([]Option{
		WithWorkers(4),
		WithRetryPolicy(retry.Exponential(5, time.Second, time.Second*30)),
		WithClient(http.DefaultClient),
		WithLogger(logrus.NewEntry(logrus.StandardLogger())),
	}, options...)

	cfg := config{}
	for _, opt := range options {
		opt(&cfg)
	}

	return &cfg
}
