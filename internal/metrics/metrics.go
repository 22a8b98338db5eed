// Package metrics provides Prometheus collectors for the audioreg service.
//
// Metrics are registered on import via promauto and served from the
// /metrics endpoint. Use the exported Record functions rather than touching
// the collectors directly:
//
//	metrics.RecordLoginSuccess()
//	metrics.RecordLoginFailure("upstream_auth")
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "audioreg"

var (
	// LoginAttemptsTotal counts OAuth callback logins by result.
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Total number of OAuth login attempts by result",
		},
		[]string{"result"}, // result: success, failure
	)

	// LoginFailuresTotal counts login failures by reason.
	LoginFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_failures_total",
			Help:      "Total number of OAuth login failures by reason",
		},
		[]string{"reason"}, // reason: missing_state, unknown_state, missing_code, upstream_auth, upstream_profile, malformed_response, upstream_timeout, identity_conflict
	)

	// TokensIssuedTotal counts session tokens minted at login and refresh.
	TokensIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "tokens_issued_total",
			Help:      "Total number of session tokens issued",
		},
	)

	// TokenRejectionsTotal counts bearer tokens rejected by the auth
	// middleware, by reason.
	TokenRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "token_rejections_total",
			Help:      "Total number of rejected session tokens by reason",
		},
		[]string{"reason"}, // reason: missing, malformed, expired, user_vanished
	)

	// UploadsTotal counts accepted audio uploads.
	UploadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audio",
			Name:      "uploads_total",
			Help:      "Total number of accepted audio uploads",
		},
	)

	// UploadBytes observes the size of accepted uploads.
	UploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "audio",
			Name:      "upload_bytes",
			Help:      "Size distribution of accepted audio uploads",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)
)

// RecordLoginSuccess increments the login attempt counter with result success.
func RecordLoginSuccess() {
	LoginAttemptsTotal.WithLabelValues("success").Inc()
}

// RecordLoginFailure increments the attempt and failure counters.
func RecordLoginFailure(reason string) {
	LoginAttemptsTotal.WithLabelValues("failure").Inc()
	LoginFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordTokenIssued increments the issued-token counter.
func RecordTokenIssued() {
	TokensIssuedTotal.Inc()
}

// RecordTokenRejected increments the rejection counter for the given reason.
func RecordTokenRejected(reason string) {
	TokenRejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordUpload increments the upload counter and observes the upload size.
func RecordUpload(sizeBytes int64) {
	UploadsTotal.Inc()
	UploadBytes.Observe(float64(sizeBytes))
}
