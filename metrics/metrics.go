// Package metrics registers the Prometheus instruments shared by the
// gateway and the worker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BroadcastsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rakugaki_broadcast_messages_total",
		Help: "Outbound push messages sent, by command.",
	}, []string{"command"})

	PushGone = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rakugaki_push_gone_total",
		Help: "Push deliveries skipped because the connection was gone.",
	})

	QueuePublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rakugaki_queue_published_total",
		Help: "Sketch submissions handed off to the inference queue.",
	})

	SubmissionsThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rakugaki_submissions_throttled_total",
		Help: "Sketch submissions dropped by the per-connection rate limit.",
	})

	WorkerProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rakugaki_worker_submissions_total",
		Help: "Dequeued submissions processed by the worker, by result.",
	}, []string{"result"})

	InferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rakugaki_inference_duration_seconds",
		Help:    "Wall time of normalize+classify per submission.",
		Buckets: prometheus.DefBuckets,
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
