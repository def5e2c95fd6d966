package proxmox

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests     *prometheus.CounterVec
	requestTime  *prometheus.HistogramVec
	tasks        *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
}

// newMetrics creates the client collectors and registers them with reg when
// it is non-nil.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "proxmate",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total number of Proxmox API requests by method and status code",
			},
			[]string{"method", "code"},
		),
		requestTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "proxmate",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Duration of Proxmox API requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		tasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "proxmate",
				Subsystem: "task",
				Name:      "completed_total",
				Help:      "Total number of awaited tasks by type and result",
			},
			[]string{"type", "result"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "proxmate",
				Subsystem: "task",
				Name:      "duration_seconds",
				Help:      "Time spent waiting for tasks to finish",
				Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"type"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.requestTime, m.tasks, m.taskDuration)
	}
	return m
}

func (m *metrics) observeRequest(method, code string, d time.Duration) {
	m.requests.WithLabelValues(method, code).Inc()
	m.requestTime.WithLabelValues(method).Observe(d.Seconds())
}

func (m *metrics) observeTask(taskType, result string, d time.Duration) {
	m.tasks.WithLabelValues(taskType, result).Inc()
	m.taskDuration.WithLabelValues(taskType).Observe(d.Seconds())
}
