package telemetry

// This package is how we write metrics in ntsseed.  By default they are no-ops.
// The CLI provides a prometheus implementation that is dumped to a textfile
// for node_exporter at the end of a run.

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ntsseed"

// Metric names used by the seeder.
const (
	KeysWritten       = "keys_written_total"
	KeysExisting      = "keys_existing_total"
	KeysFailed        = "keys_failed_total"
	KeysPresent       = "keys_present_total"
	KeysMissing       = "keys_missing_total"
	KeysInvalid       = "keys_invalid_total"
	LastRunTimestamp  = "last_run_timestamp_seconds"
	LastRunDuration   = "last_run_duration_seconds"
	LastRunSuccessful = "last_run_success"
)

var help = map[string]string{
	KeysWritten:       "Number of keys written to the backend",
	KeysExisting:      "Number of keys left untouched because they already existed",
	KeysFailed:        "Number of keys that could not be written or read",
	KeysPresent:       "Number of keys found valid during verification",
	KeysMissing:       "Number of keys absent during verification",
	KeysInvalid:       "Number of keys with an unexpected value length during verification",
	LastRunTimestamp:  "Unix time of the last run",
	LastRunDuration:   "Duration of the last run in seconds",
	LastRunSuccessful: "Whether the last run completed without key failures",
}

type Metrics interface {
	AddCount(key string, value int64)
	SetGauge(key string, value float64)
}

type NOPMetrics struct {
}

func (n NOPMetrics) AddCount(key string, value int64) {
}
func (n NOPMetrics) SetGauge(key string, value float64) {
}

// PrometheusMetrics registers collectors lazily, one per metric name.
type PrometheusMetrics struct {
	lock     sync.Mutex
	registry *prometheus.Registry
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
}

func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		counters: map[string]prometheus.Counter{},
		gauges:   map[string]prometheus.Gauge{},
	}
}

func (p *PrometheusMetrics) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusMetrics) AddCount(key string, value int64) {
	if value < 0 {
		return
	}
	p.lock.Lock()
	defer p.lock.Unlock()

	c, ok := p.counters[key]
	if !ok {
		c = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      key,
			Help:      helpFor(key),
		})
		p.registry.MustRegister(c)
		p.counters[key] = c
	}
	c.Add(float64(value))
}

func (p *PrometheusMetrics) SetGauge(key string, value float64) {
	p.lock.Lock()
	defer p.lock.Unlock()

	g, ok := p.gauges[key]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      key,
			Help:      helpFor(key),
		})
		p.registry.MustRegister(g)
		p.gauges[key] = g
	}
	g.Set(value)
}

// WriteTextfile writes the collected metrics in the text exposition format.
func (p *PrometheusMetrics) WriteTextfile(filename string) error {
	if err := prometheus.WriteToTextfile(filename, p.registry); err != nil {
		return errors.Wrapf(err, "can not write metrics to %s", filename)
	}
	return nil
}

func helpFor(key string) string {
	if h, ok := help[key]; ok {
		return h
	}
	return key
}
