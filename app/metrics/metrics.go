package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vehicle_feed"

type Metrics struct {
	registry *prometheus.Registry

	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	VehiclesIncluded prometheus.Gauge
	VehiclesRejected prometheus.Gauge
	RejectionsTotal  *prometheus.CounterVec
	FeedBytes        prometheus.Gauge
	LastSuccess      prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Feed generation runs by final status.",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of feed generation runs.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		VehiclesIncluded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vehicles_included",
			Help:      "Vehicles in the last generated feed.",
		}),
		VehiclesRejected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vehicles_rejected",
			Help:      "Vehicles excluded from the last generated feed.",
		}),
		RejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Vehicles excluded by the inclusion filter, by reason.",
		}, []string{"reason"}),
		FeedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_bytes",
			Help:      "Size of the last generated feed document.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}

	m.registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.VehiclesIncluded,
		m.VehiclesRejected,
		m.RejectionsTotal,
		m.FeedBytes,
		m.LastSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveSuccess records a completed run.
func (m *Metrics) ObserveSuccess(duration time.Duration, included int, rejections map[string]int, feedBytes int) {
	m.RunsTotal.WithLabelValues("success").Inc()
	m.RunDuration.Observe(duration.Seconds())
	m.VehiclesIncluded.Set(float64(included))

	rejected := 0
	for reason, n := range rejections {
		m.RejectionsTotal.WithLabelValues(reason).Add(float64(n))
		rejected += n
	}
	m.VehiclesRejected.Set(float64(rejected))
	m.FeedBytes.Set(float64(feedBytes))
	m.LastSuccess.SetToCurrentTime()
}

func (m *Metrics) ObserveFailure(duration time.Duration) {
	m.RunsTotal.WithLabelValues("failed").Inc()
	m.RunDuration.Observe(duration.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
