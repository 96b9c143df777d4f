package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gitbit/gitbit/internal/httpclient"
)

var (
	// Tracks every HTTP attempt against the Fitbit API by status code ("0" = transport error).
	FitbitRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitbit_api_requests_total",
			Help: "Total number of Fitbit API request attempts (by status).",
		},
		[]string{"status"},
	)

	FitbitRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fitbit_api_request_duration_seconds",
			Help:    "Duration of Fitbit API request attempts in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms → ~20s
		},
	)

	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitbit_token_refresh_total",
			Help: "Token refresh attempts by result.",
		},
		[]string{"result"}, // ok | error
	)

	RateLimitWaitSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fitbit_rate_limit_wait_seconds_total",
			Help: "Seconds spent waiting for the Fitbit rate limit to reset.",
		},
	)

	// Tracks export progress per date.
	DaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitbit_export_days_total",
			Help: "Dates processed by the exporter by result.",
		},
		[]string{"result"}, // written | skipped | failed
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitbit_exporter_errors_total",
			Help: "Count of exporter errors by component.",
		},
		[]string{"component", "reason"},
	)
)

// Hooks wires the request engine's callbacks to the collectors above.
// onWait, if non-nil, is chained after the wait counter.
func Hooks(onWait func(remaining time.Duration)) httpclient.Hooks {
	return httpclient.Hooks{
		OnAttempt: func(status int, elapsed time.Duration) {
			FitbitRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
			FitbitRequestDuration.Observe(elapsed.Seconds())
		},
		OnReauth: func(err error) {
			if err != nil {
				TokenRefreshTotal.WithLabelValues("error").Inc()
				return
			}
			TokenRefreshTotal.WithLabelValues("ok").Inc()
		},
		OnRateLimitWait: func(remaining time.Duration) {
			RateLimitWaitSeconds.Add(min(remaining, time.Second).Seconds())
			if onWait != nil {
				onWait(remaining)
			}
		},
	}
}

func IncDay(result string) {
	DaysTotal.WithLabelValues(result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

// WriteTextfile dumps the default registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
