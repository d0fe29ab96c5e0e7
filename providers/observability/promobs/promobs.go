// Package promobs implements observability.Metrics on top of the Prometheus
// client library, so that the counters and histograms recorded by the graph
// executor, the model provider and the web boundary can be scraped.
//
// Metric names are derived from the dotted observability names by replacing
// every character Prometheus does not accept with an underscore; counters get
// a "_total" suffix. The label names of a metric are the attribute keys seen
// on its first use and stay fixed afterwards: later observations fill missing
// labels with "" and drop unknown ones.
//
// A metric whose collector cannot be registered, for example because another
// collector already owns its name with different labels, is dropped. The
// loss is logged once per metric through the configured slog logger.
package promobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/leofalp/planner/providers/observability"
)

// Metrics is an observability.Metrics backed by Prometheus collectors
// registered lazily on a prometheus.Registerer.
type Metrics struct {
	registerer prometheus.Registerer
	buckets    []float64
	logger     *slog.Logger

	mutex      sync.RWMutex
	counters   map[string]*counter
	histograms map[string]*histogram
}

// Option configures Metrics.
type Option func(*Metrics)

// WithBuckets sets the histogram buckets. Defaults to prometheus.DefBuckets.
func WithBuckets(buckets []float64) Option {
	return func(metrics *Metrics) {
		metrics.buckets = buckets
	}
}

// WithLogger sets the logger that reports dropped metrics. Without it the
// slog default logger at the time of the loss is used.
func WithLogger(logger *slog.Logger) Option {
	return func(metrics *Metrics) {
		metrics.logger = logger
	}
}

// New returns Metrics registering its collectors on registerer. A nil
// registerer means prometheus.DefaultRegisterer.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	observer := slogobs.New(slogobs.WithMetrics(promobs.New(registry)))
func New(registerer prometheus.Registerer, opts ...Option) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	metrics := &Metrics{
		registerer: registerer,
		buckets:    prometheus.DefBuckets,
		counters:   make(map[string]*counter),
		histograms: make(map[string]*histogram),
	}

	for _, opt := range opts {
		opt(metrics)
	}

	return metrics
}

var _ observability.Metrics = (*Metrics)(nil)

// Counter returns the counter for name, creating it on first call.
func (metrics *Metrics) Counter(name string) observability.Counter {
	metrics.mutex.RLock()
	existing, exists := metrics.counters[name]
	metrics.mutex.RUnlock()
	if exists {
		return existing
	}

	metrics.mutex.Lock()
	defer metrics.mutex.Unlock()

	if existing, exists := metrics.counters[name]; exists {
		return existing
	}

	created := &counter{metrics: metrics, name: MetricName(name) + "_total", help: "Count of " + name}
	metrics.counters[name] = created
	return created
}

// Histogram returns the histogram for name, creating it on first call.
func (metrics *Metrics) Histogram(name string) observability.Histogram {
	metrics.mutex.RLock()
	existing, exists := metrics.histograms[name]
	metrics.mutex.RUnlock()
	if exists {
		return existing
	}

	metrics.mutex.Lock()
	defer metrics.mutex.Unlock()

	if existing, exists := metrics.histograms[name]; exists {
		return existing
	}

	created := &histogram{metrics: metrics, name: MetricName(name), help: "Distribution of " + name}
	metrics.histograms[name] = created
	return created
}

// MetricName converts a dotted observability name to a Prometheus metric name.
func MetricName(name string) string {
	var builder strings.Builder
	for index, char := range name {
		valid := char == '_' || char == ':' ||
			(char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') ||
			(index > 0 && char >= '0' && char <= '9')
		if valid {
			builder.WriteRune(char)
		} else {
			builder.WriteRune('_')
		}
	}
	return strings.TrimSuffix(builder.String(), "_total")
}

// labelName converts an attribute key to a Prometheus label name.
func labelName(key string) string {
	name := MetricName(key)
	if strings.HasPrefix(name, "__") {
		name = "attr" + name
	}
	return name
}

// labelSet fixes the label names of a metric from the attributes of its first
// observation and maps later attributes onto them.
type labelSet struct {
	names []string
	keys  map[string]string
}

func newLabelSet(attrs []observability.Attribute) labelSet {
	set := labelSet{keys: make(map[string]string, len(attrs))}
	for _, attr := range attrs {
		name := labelName(attr.Key)
		if _, seen := set.keys[name]; seen {
			continue
		}
		set.keys[name] = attr.Key
		set.names = append(set.names, name)
	}
	sort.Strings(set.names)
	return set
}

func (set labelSet) values(attrs []observability.Attribute) prometheus.Labels {
	labels := make(prometheus.Labels, len(set.names))
	for _, name := range set.names {
		labels[name] = ""
	}
	for _, attr := range attrs {
		name := labelName(attr.Key)
		if _, known := set.keys[name]; known {
			labels[name] = fmt.Sprint(attr.Value)
		}
	}
	return labels
}

// register registers collector, reusing an identical collector that is
// already registered under the same name.
func (metrics *Metrics) register(collector prometheus.Collector) (prometheus.Collector, error) {
	if err := metrics.registerer.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			return alreadyRegistered.ExistingCollector, nil
		}
		return nil, err
	}
	return collector, nil
}

// dropped logs that observations of metric name are being lost.
func (metrics *Metrics) dropped(name string, err error) {
	logger := metrics.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("Dropping Prometheus metric", slog.String("metric", name), slog.Any("error", err))
}

// errWrongCollector is reported when a collector of another kind already
// owns a metric name.
var errWrongCollector = errors.New("name is registered by a different collector type")

type counter struct {
	metrics *Metrics
	name    string
	help    string

	once     sync.Once
	dropOnce sync.Once
	vec      *prometheus.CounterVec
	labels   labelSet
}

// Add implements observability.Counter. Negative values are ignored because
// Prometheus counters only go up.
func (c *counter) Add(_ context.Context, value int64, attrs ...observability.Attribute) {
	c.once.Do(func() {
		c.labels = newLabelSet(attrs)
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: c.name, Help: c.help}, c.labels.names)
		collector, err := c.metrics.register(vec)
		if err == nil {
			existing, isVec := collector.(*prometheus.CounterVec)
			if isVec {
				c.vec = existing
				return
			}
			err = errWrongCollector
		}
		c.metrics.dropped(c.name, err)
	})

	if c.vec == nil || value < 0 {
		return
	}

	observer, err := c.vec.GetMetricWith(c.labels.values(attrs))
	if err != nil {
		c.dropOnce.Do(func() { c.metrics.dropped(c.name, err) })
		return
	}
	observer.Add(float64(value))
}

type histogram struct {
	metrics *Metrics
	name    string
	help    string

	once     sync.Once
	dropOnce sync.Once
	vec      *prometheus.HistogramVec
	labels   labelSet
}

// Record implements observability.Histogram.
func (h *histogram) Record(_ context.Context, value float64, attrs ...observability.Attribute) {
	h.once.Do(func() {
		h.labels = newLabelSet(attrs)
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    h.name,
			Help:    h.help,
			Buckets: h.metrics.buckets,
		}, h.labels.names)
		collector, err := h.metrics.register(vec)
		if err == nil {
			existing, isVec := collector.(*prometheus.HistogramVec)
			if isVec {
				h.vec = existing
				return
			}
			err = errWrongCollector
		}
		h.metrics.dropped(h.name, err)
	})

	if h.vec == nil {
		return
	}

	observer, err := h.vec.GetMetricWith(h.labels.values(attrs))
	if err != nil {
		h.dropOnce.Do(func() { h.metrics.dropped(h.name, err) })
		return
	}
	observer.Observe(value)
}
