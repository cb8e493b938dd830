// Package metrics records conversion activity as Prometheus metrics.
//
// A Collector owns its registry so several conversions in one process (or
// one test binary) never collide on registration. Batch runs dump the
// registry with WriteTextfile for the node exporter textfile collector.
//
// All Collector methods are safe on a nil receiver, so library code can
// record unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "scdior"

// Directions label conversions.
const (
	DirectionWrite = "write"
	DirectionRead  = "read"
	DirectionToRDS = "to_rds"
	DirectionFrom  = "from_rds"
)

// Collector holds the conversion metrics.
type Collector struct {
	registry    *prometheus.Registry
	conversions *prometheus.CounterVec   // direction, result
	duration    *prometheus.HistogramVec // direction
	entities    *prometheus.CounterVec   // kind
	cells       prometheus.Gauge
	features    prometheus.Gauge
}

// New returns a collector registered on a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Collector{
		registry: reg,
		conversions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Container conversions by direction and result",
		}, []string{"direction", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Wall time of container conversions",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"direction"}),
		entities: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_total",
			Help:      "Encoded or decoded entities by kind",
		}, []string{"kind"}),
		cells: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_observations",
			Help:      "Observation count of the last converted object",
		}),
		features: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_features",
			Help:      "Feature count of the last converted object",
		}),
	}
}

// Registry returns the registry the metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveConversion records one finished conversion.
func (c *Collector) ObserveConversion(direction string, elapsed time.Duration, err error) {
	if c == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	c.conversions.WithLabelValues(direction, result).Inc()
	c.duration.WithLabelValues(direction).Observe(elapsed.Seconds())
}

// AddEntity counts one encoded or decoded entity of the given kind
// (matrix, table, spatial, ...).
func (c *Collector) AddEntity(kind string) {
	if c == nil {
		return
	}
	c.entities.WithLabelValues(kind).Inc()
}

// SetShape records the shape of the last converted object.
func (c *Collector) SetShape(rows, cols int) {
	if c == nil {
		return
	}
	c.cells.Set(float64(rows))
	c.features.Set(float64(cols))
}

// Timer measures one conversion.
type Timer struct {
	c         *Collector
	direction string
	start     time.Time
}

// Start begins timing a conversion.
func (c *Collector) Start(direction string) *Timer {
	return &Timer{c: c, direction: direction, start: time.Now()}
}

// Stop records the conversion with its outcome and returns the elapsed time.
func (t *Timer) Stop(err error) time.Duration {
	elapsed := time.Since(t.start)
	t.c.ObserveConversion(t.direction, elapsed, err)
	return elapsed
}

// WriteTextfile writes the registry in the Prometheus text format,
// atomically replacing path.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, c.registry)
}
