package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the messaging core. Scraped at /metrics.
var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketsync_messages_sent_total",
		Help: "Messages accepted by the message service.",
	})

	MutationDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketsync_mutation_denied_total",
		Help: "Edit/delete attempts rejected by the mutation policy.",
	}, []string{"reason"})

	WatermarkDiffs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketsync_watermark_diffs_total",
		Help: "Watermark diff computations per collection.",
	}, []string{"collection"})

	PollTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketsync_poll_ticks_total",
		Help: "Polling driver ticks per concern and result.",
	}, []string{"concern", "result"})

	StoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketsync_store_errors_total",
		Help: "Storage-layer failures surfaced as StoreUnavailable.",
	})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketsync_http_request_duration_seconds",
		Help:    "HTTP request latency by method and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request latency and status for every handled request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		requestDuration.WithLabelValues(r.Method, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}
