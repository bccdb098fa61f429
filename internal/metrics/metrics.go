// Package metrics exposes Prometheus collectors for the map server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Load outcomes for TableLoaded.
const (
	LoadHit   = "hit"
	LoadMiss  = "miss"
	LoadError = "error"
)

// Collector holds the server's metrics. It registers itself as a single
// collector on the registry given to New.
type Collector struct {
	renders        *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	points         prometheus.Gauge
	coloursAdded   prometheus.Counter
	tableLoads     *prometheus.CounterVec
}

// New creates the collectors and registers them on registry.
func New(registry prometheus.Registerer) (*Collector, error) {
	m := &Collector{
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promedmap_renders_total",
			Help: "Total number of map renders",
		}, []string{"route"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "promedmap_render_duration_seconds",
			Help:    "Time taken to load, annotate and filter the tracker for one render",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"route"}),
		points: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "promedmap_points_rendered",
			Help: "Number of points sent in the most recent render",
		}),
		coloursAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promedmap_colours_assigned_total",
			Help: "Total number of diseases given a new colour",
		}),
		tableLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promedmap_table_loads_total",
			Help: "Tracker loads by outcome (hit, miss, error)",
		}, []string{"result"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements prometheus.Collector.
func (m *Collector) Describe(ch chan<- *prometheus.Desc) {
	m.renders.Describe(ch)
	m.renderDuration.Describe(ch)
	m.points.Describe(ch)
	m.coloursAdded.Describe(ch)
	m.tableLoads.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Collector) Collect(ch chan<- prometheus.Metric) {
	m.renders.Collect(ch)
	m.renderDuration.Collect(ch)
	m.points.Collect(ch)
	m.coloursAdded.Collect(ch)
	m.tableLoads.Collect(ch)
}

// RecordRender counts one render on route.
func (m *Collector) RecordRender(route string, took time.Duration, points int) {
	m.renders.WithLabelValues(route).Inc()
	m.renderDuration.WithLabelValues(route).Observe(took.Seconds())
	m.points.Set(float64(points))
}

// ColoursAssigned adds n newly coloured diseases.
func (m *Collector) ColoursAssigned(n int) {
	if n > 0 {
		m.coloursAdded.Add(float64(n))
	}
}

// TableLoaded counts a tracker load with result LoadHit, LoadMiss or
// LoadError.
func (m *Collector) TableLoaded(result string) {
	m.tableLoads.WithLabelValues(result).Inc()
}
