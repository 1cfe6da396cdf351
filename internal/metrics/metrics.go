// Package metrics registers the service's prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Token endpoint calls by result: ok, rejected, missing_token, error.
	TokenExchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otpmail_token_exchanges_total",
			Help: "OAuth2 refresh token exchanges by result",
		},
		[]string{"result"},
	)

	ScanRounds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otpmail_scan_rounds_total",
			Help: "Mailbox scan rounds executed",
		},
		[]string{"mode"},
	)

	// Per-item failures absorbed during scanning, by stage: select,
	// search, fetch, decode.
	ScanFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otpmail_scan_failures_total",
			Help: "Folder and message failures skipped during scans",
		},
		[]string{"stage"},
	)

	MessagesScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "otpmail_messages_scanned_total",
			Help: "Messages fetched and decoded",
		},
	)

	Retrievals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otpmail_retrievals_total",
			Help: "Retrieval requests by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	RetrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "otpmail_retrieval_duration_seconds",
			Help:    "Retrieval duration including authentication",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 14), // 250ms to ~34m
		},
		[]string{"mode", "outcome"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "otpmail_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 18),
		},
		[]string{"method", "path", "status"},
	)
)

// RecordTokenExchange counts one token endpoint call.
func RecordTokenExchange(result string) {
	TokenExchanges.WithLabelValues(result).Inc()
}

// RecordScanRound counts one scan round.
func RecordScanRound(mode string) {
	ScanRounds.WithLabelValues(mode).Inc()
}

// RecordScanFailure counts one absorbed failure.
func RecordScanFailure(stage string) {
	ScanFailures.WithLabelValues(stage).Inc()
}

// RecordMessageScanned counts one decoded message.
func RecordMessageScanned() {
	MessagesScanned.Inc()
}

// RecordRetrieval records the outcome and duration of one request.
func RecordRetrieval(mode, outcome string, duration time.Duration) {
	Retrievals.WithLabelValues(mode, outcome).Inc()
	RetrievalDuration.WithLabelValues(mode, outcome).Observe(duration.Seconds())
}

// RecordHTTPRequestDuration records one HTTP request.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
