package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Synchronization metrics
	snapshotRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_refreshes_total",
			Help: "Total number of snapshot refreshes per domain",
		},
		[]string{"domain", "outcome"},
	)

	snapshotRefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapshot_refresh_duration_seconds",
			Help:    "Snapshot fetch duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"domain"},
	)

	staleResponsesDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stale_responses_discarded_total",
			Help: "Fetch results discarded because a newer snapshot already applied",
		},
		[]string{"domain"},
	)

	notificationsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_received_total",
			Help: "Notifications received from the event stream",
		},
		[]string{"type"},
	)

	channelReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_channel_reconnects_total",
			Help: "Total number of event channel reconnect attempts",
		},
	)

	channelDegraded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "event_channel_degraded",
			Help: "1 while the event channel is down and the service polls instead",
		},
	)

	// Operator action metrics
	actionsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actions_dispatched_total",
			Help: "Operator actions dispatched to the HIS",
		},
		[]string{"action", "outcome"},
	)

	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Current number of patients in each derived queue view",
		},
		[]string{"view"},
	)
)

// ObserveRefresh records the outcome and duration of one snapshot refresh.
func ObserveRefresh(domain string, outcome string, d time.Duration) {
	snapshotRefreshes.WithLabelValues(domain, outcome).Inc()
	snapshotRefreshDuration.WithLabelValues(domain).Observe(d.Seconds())
}

// StaleDiscarded records a fetch result dropped by the sequence-stamp rule.
func StaleDiscarded(domain string) {
	staleResponsesDiscarded.WithLabelValues(domain).Inc()
}

// NotificationReceived records one inbound notification.
func NotificationReceived(typ string) {
	notificationsReceived.WithLabelValues(typ).Inc()
}

// ChannelReconnect records a reconnect attempt on the event channel.
func ChannelReconnect() {
	channelReconnects.Inc()
}

// SetChannelDegraded flips the degraded gauge.
func SetChannelDegraded(degraded bool) {
	if degraded {
		channelDegraded.Set(1)
	} else {
		channelDegraded.Set(0)
	}
}

// ActionDispatched records one operator action and its outcome.
func ActionDispatched(action, outcome string) {
	actionsDispatched.WithLabelValues(action, outcome).Inc()
}

// SetQueueDepth publishes the size of a derived queue view.
func SetQueueDepth(view string, n int) {
	queueDepth.WithLabelValues(view).Set(float64(n))
}

// Handler returns the Prometheus metrics endpoint handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware instruments HTTP handlers with request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(wrapped.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
