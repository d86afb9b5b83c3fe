package observability

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric the PrometheusFactory registers.
const Namespace = "lockup"

var _ MetricFactory = (*PrometheusFactory)(nil)

// PrometheusFactory is a MetricFactory backed by a prometheus registry.
// Meters are created once per name and shared afterwards.
type PrometheusFactory struct {
	registry   *prometheus.Registry
	logger     *slog.Logger
	counters   sync.Map
	histograms sync.Map
}

// NewPrometheusFactory creates a factory with its own registry.
func NewPrometheusFactory(logger *slog.Logger) *PrometheusFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &PrometheusFactory{
		registry: prometheus.NewRegistry(),
		logger:   logger,
	}
}

// Registry returns the registry the meters are registered with.
func (f *PrometheusFactory) Registry() *prometheus.Registry { return f.registry }

// Handler serves the registry in the prometheus exposition format.
func (f *PrometheusFactory) Handler() http.Handler {
	return promhttp.HandlerFor(f.registry, promhttp.HandlerOpts{})
}

// Counter implements MetricFactory.
func (f *PrometheusFactory) Counter(name string) Counter {
	if c, ok := f.counters.Load(name); ok {
		return c.(Counter)
	}
	meter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      metricName(name),
	})
	f.register(name, meter)

	actual, _ := f.counters.LoadOrStore(name, meter)
	return actual.(Counter)
}

// Histogram implements MetricFactory.
func (f *PrometheusFactory) Histogram(name string) Histogram {
	if h, ok := f.histograms.Load(name); ok {
		return h.(Histogram)
	}
	meter := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      metricName(name),
		Buckets:   prometheus.ExponentialBuckets(1, 10, 12),
	})
	f.register(name, meter)

	actual, _ := f.histograms.LoadOrStore(name, meter)
	return actual.(Histogram)
}

func (f *PrometheusFactory) register(name string, c prometheus.Collector) {
	if err := f.registry.Register(c); err != nil {
		f.logger.Warn("observability: unable to register metric", "name", name, "error", err)
	}
}

// metricName maps "lockup.stake.opened" to "stake_opened".
func metricName(name string) string {
	name = strings.TrimPrefix(name, Namespace+".")
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
