package pool

import "github.com/prometheus/client_golang/prometheus"

var (
	tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renderpool_tasks_total",
			Help: "Total number of settled render tasks.",
		},
		[]string{"status"},
	)

	renderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "renderpool_render_duration_seconds",
			Help:    "Render duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"capability"},
	)

	queueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "renderpool_queue_length",
			Help: "Number of tasks waiting for a renderer slot.",
		},
	)

	busyRenderers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "renderpool_busy_renderers",
			Help: "Number of renderer slots currently executing a task.",
		},
	)
)

func init() {
	prometheus.MustRegister(tasksTotal)
	prometheus.MustRegister(renderDuration)
	prometheus.MustRegister(queueLength)
	prometheus.MustRegister(busyRenderers)
}
