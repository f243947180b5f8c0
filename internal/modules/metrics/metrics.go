package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/reusedev/detect-hub/internal/modules/observer"
)

// Collector turns detection lifecycle events into prometheus series.
type Collector struct {
	requests *prometheus.CounterVec
	objects  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	deleted  prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "detect_hub",
			Name:      "detections_total",
			Help:      "Detection requests by model and outcome.",
		}, []string{"model", "outcome"}),
		objects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "detect_hub",
			Name:      "objects_detected_total",
			Help:      "Objects kept after threshold filtering, by model and class.",
		}, []string{"model", "class"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "detect_hub",
			Name:      "detection_duration_seconds",
			Help:      "End to end detection latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model"}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "detect_hub",
			Name:      "sessions_deleted_total",
			Help:      "Sessions soft deleted through the API.",
		}),
	}
	reg.MustRegister(c.requests, c.objects, c.duration, c.deleted)
	return c
}

func (c *Collector) Update(event observer.Event, data observer.DetectionData) {
	switch event {
	case observer.EventDetectionCompleted:
		c.requests.WithLabelValues(data.ModelID, "success").Inc()
		c.duration.WithLabelValues(data.ModelID).Observe(data.Duration.Seconds())
		for class, n := range data.Counts {
			c.objects.WithLabelValues(data.ModelID, class).Add(float64(n))
		}
	case observer.EventDetectionFailed:
		c.requests.WithLabelValues(data.ModelID, "failure").Inc()
	case observer.EventSessionDeleted:
		c.deleted.Inc()
	}
}
