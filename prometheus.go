package tvl

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusConfig is a config of the Prometheus metrics provided by the pipeline.
//
// An instance can be created only by the [Prometheus] function. The zero value is invalid.
type PrometheusConfig struct {
	// Namespace of the metrics.
	Namespace string
	// Subsystem of the metrics.
	Subsystem string
	// Options for the parsed records counter.
	RecordsParsed prometheus.CounterOpts
	// Options for the skipped records counter, labeled by reason.
	RecordsSkipped prometheus.CounterOpts
	// Options for the imported records counter.
	RecordsImported prometheus.CounterOpts
	// Options for the counter of records reused by verification.
	RecordsReused prometheus.CounterOpts
	// Options for the counter of records pruned by verification.
	RecordsPruned prometheus.CounterOpts
	// Options for the flushed batches counter.
	BatchesFlushed prometheus.CounterOpts
	// Options for the batch flush duration histogram.
	FlushDuration prometheus.HistogramOpts
	// Options for the transcode lookups counter, labeled by result.
	TranscodeLookups prometheus.CounterOpts
	// Options for the transcode duration histogram.
	TranscodeDuration prometheus.HistogramOpts

	registerer prometheus.Registerer
}

// Prometheus returns a [PrometheusConfig] with the provided registerer. If registerer is nil,
// metrics will not be registered. Many default parameters can be configured by passing
// configuration functions.
func Prometheus(
	registerer prometheus.Registerer,
	configFuncs ...func(c *PrometheusConfig),
) *PrometheusConfig {
	const (
		namespace = "tvl"
		subsystem = ""
	)

	c := PrometheusConfig{
		registerer: registerer,
		Namespace:  namespace,
		Subsystem:  subsystem,
		RecordsParsed: prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "records_parsed",
			Help:      "Number of image records parsed from containers",
		},
		RecordsSkipped: prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "records_skipped",
			Help:      "Number of image records skipped while parsing",
		},
		RecordsImported: prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "records_imported",
			Help:      "Number of image records written to the store",
		},
		RecordsReused: prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "records_reused",
			Help:      "Number of already stored image records matched by verification",
		},
		RecordsPruned: prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "records_pruned",
			Help:      "Number of stale image records deleted by verification",
		},
		BatchesFlushed: prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batches_flushed",
			Help:      "Number of batches flushed to the store",
		},
		FlushDuration: prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "flush_duration",
			Help:      "Duration of batch flushes in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		TranscodeLookups: prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transcode_lookups",
			Help:      "Number of rendered image lookups",
		},
		TranscodeDuration: prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transcode_duration",
			Help:      "Duration of rasterize and encode in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	}

	for _, cf := range configFuncs {
		if cf != nil {
			cf(&c)
		}
	}

	return &c
}

// Metrics builds the collectors and registers them if the config has a registerer.
func (c *PrometheusConfig) Metrics() *Metrics {
	m := Metrics{
		RecordsParsed:     prometheus.NewCounter(c.RecordsParsed),
		RecordsSkipped:    prometheus.NewCounterVec(c.RecordsSkipped, []string{"reason"}),
		RecordsImported:   prometheus.NewCounter(c.RecordsImported),
		RecordsReused:     prometheus.NewCounter(c.RecordsReused),
		RecordsPruned:     prometheus.NewCounter(c.RecordsPruned),
		BatchesFlushed:    prometheus.NewCounter(c.BatchesFlushed),
		FlushDuration:     prometheus.NewHistogram(c.FlushDuration),
		TranscodeLookups:  prometheus.NewCounterVec(c.TranscodeLookups, []string{"result"}),
		TranscodeDuration: prometheus.NewHistogram(c.TranscodeDuration),
	}

	if c.registerer != nil {
		c.registerer.MustRegister(
			m.RecordsParsed,
			m.RecordsSkipped,
			m.RecordsImported,
			m.RecordsReused,
			m.RecordsPruned,
			m.BatchesFlushed,
			m.FlushDuration,
			m.TranscodeLookups,
			m.TranscodeDuration,
		)
	}

	return &m
}

// Metrics are the collectors shared by the pipeline components.
type Metrics struct {
	RecordsParsed     prometheus.Counter
	RecordsSkipped    *prometheus.CounterVec
	RecordsImported   prometheus.Counter
	RecordsReused     prometheus.Counter
	RecordsPruned     prometheus.Counter
	BatchesFlushed    prometheus.Counter
	FlushDuration     prometheus.Histogram
	TranscodeLookups  *prometheus.CounterVec
	TranscodeDuration prometheus.Histogram
}
