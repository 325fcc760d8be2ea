package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PromMetrics implements Metrics on top of a prometheus registry.
// Counters, gauges and histograms are created lazily per key so callers
// only deal in string keys.
type PromMetrics struct {
	registry   *prometheus.Registry
	namespace  string
	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// NewPromMetrics wires a Metrics implementation into registry. A nil
// registry gets a fresh one; use Registry to expose it over HTTP.
func NewPromMetrics(registry *prometheus.Registry, namespace string) *PromMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return &PromMetrics{
		registry:   registry,
		namespace:  namespace,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Registry returns the backing registry for handler wiring.
func (m *PromMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PromMetrics) Add(key string, delta uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	c, ok := m.counters[key]
	if !ok {
		c = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      key,
		})
		m.registry.MustRegister(c)
		m.counters[key] = c
	}
	m.mu.Unlock()
	c.Add(float64(delta))
}

func (m *PromMetrics) Store(key string, value uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	g, ok := m.gauges[key]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace,
			Name:      key,
		})
		m.registry.MustRegister(g)
		m.gauges[key] = g
	}
	m.mu.Unlock()
	g.Set(float64(value))
}

func (m *PromMetrics) Observe(key string, value float64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	h, ok := m.histograms[key]
	if !ok {
		h = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace,
			Name:      key,
			Buckets:   prometheus.DefBuckets,
		})
		m.registry.MustRegister(h)
		m.histograms[key] = h
	}
	m.mu.Unlock()
	h.Observe(value)
}

// MapMetrics is an in-memory Metrics used by tests.
type MapMetrics struct {
	mu     sync.Mutex
	values map[string]uint64
	obs    map[string][]float64
}

// NewMapMetrics returns an empty in-memory metrics sink.
func NewMapMetrics() *MapMetrics {
	return &MapMetrics{
		values: make(map[string]uint64),
		obs:    make(map[string][]float64),
	}
}

func (m *MapMetrics) Add(key string, delta uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.values[key] += delta
	m.mu.Unlock()
}

func (m *MapMetrics) Store(key string, value uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
}

func (m *MapMetrics) Observe(key string, value float64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.obs[key] = append(m.obs[key], value)
	m.mu.Unlock()
}

// Value returns the current counter or gauge value for key.
func (m *MapMetrics) Value(key string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key]
}

// Observations returns a copy of the recorded samples for key.
func (m *MapMetrics) Observations(key string) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.obs[key]))
	copy(out, m.obs[key])
	return out
}

// Snapshot copies all counter and gauge values.
func (m *MapMetrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) Add(string, uint64)      {}
func (NopMetrics) Store(string, uint64)    {}
func (NopMetrics) Observe(string, float64) {}
