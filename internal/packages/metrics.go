package packages

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the package lifecycle collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	LoadDuration     *prometheus.HistogramVec
	ActivateDuration *prometheus.HistogramVec
	Errors           *prometheus.CounterVec
	Active           prometheus.Gauge
}

var durationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "packhost_package_load_seconds",
				Help:    "Time spent in package load",
				Buckets: durationBuckets,
			},
			[]string{"package"},
		),
		ActivateDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "packhost_package_activate_seconds",
				Help:    "Time spent activating package main modules",
				Buckets: durationBuckets,
			},
			[]string{"package"},
		),
		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "packhost_package_errors_total",
				Help: "Package failures by stage",
			},
			[]string{"package", "stage"},
		),
		Active: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "packhost_packages_active",
				Help: "Number of packages whose main module is activated",
			},
		),
	}
}

func (m *Metrics) observeLoad(pkg string, d time.Duration) {
	if m == nil {
		return
	}
	m.LoadDuration.WithLabelValues(pkg).Observe(d.Seconds())
}

func (m *Metrics) observeActivate(pkg string, d time.Duration) {
	if m == nil {
		return
	}
	m.ActivateDuration.WithLabelValues(pkg).Observe(d.Seconds())
	m.Active.Inc()
}

func (m *Metrics) countError(pkg, stage string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(pkg, stage).Inc()
}
