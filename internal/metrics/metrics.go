// Package metrics holds the Prometheus collectors shared by the capture client and the API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	captureTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelwork_capture_transitions_total",
		Help: "Recording session status transitions",
	}, []string{"from", "to"})

	captureErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelwork_capture_errors_total",
		Help: "Recording session failures by kind",
	}, []string{"kind"}) // kind=permission_denied|device_unavailable|no_supported_format|encoder|...

	uploadStages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelwork_upload_stage_total",
		Help: "Upload coordinator stage attempts by outcome",
	}, []string{"stage", "outcome"}) // stage=credentials|transfer|register

	uploadStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reelwork_upload_stage_duration_seconds",
		Help:    "Upload coordinator stage latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	credentialsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelwork_upload_credentials_issued_total",
		Help: "One-time upload targets requested from the video host",
	}, []string{"provider", "outcome"})

	registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelwork_registrations_total",
		Help: "Asset registrations by outcome",
	}, []string{"outcome"}) // outcome=success|conflict|failure

	unissuedRegistrations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelwork_registrations_unissued_total",
		Help: "Registrations for asset ids the credential ledger did not issue",
	})

	moderationChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelwork_moderation_status_changes_total",
		Help: "Moderation status changes by target status",
	}, []string{"status"})

	outboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelwork_outbox_events_total",
		Help: "Outbox events handled by the publisher",
	}, []string{"outcome"}) // outcome=published|failed

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reelwork_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// RecordCaptureTransition counts one session status change.
func RecordCaptureTransition(from, to string) {
	captureTransitions.WithLabelValues(from, to).Inc()
}

// RecordCaptureError counts one session failure.
func RecordCaptureError(kind string) {
	captureErrors.WithLabelValues(kind).Inc()
}

// ObserveUploadStage records the outcome and latency of one coordinator stage.
func ObserveUploadStage(stage, outcome string, d time.Duration) {
	uploadStages.WithLabelValues(stage, outcome).Inc()
	uploadStageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordCredentialIssued counts a provider call for a one-time upload target.
func RecordCredentialIssued(provider, outcome string) {
	credentialsIssued.WithLabelValues(provider, outcome).Inc()
}

// RecordRegistration counts one registration attempt.
func RecordRegistration(outcome string) {
	registrations.WithLabelValues(outcome).Inc()
}

// RecordUnissuedRegistration counts a registration the ledger could not match.
func RecordUnissuedRegistration() {
	unissuedRegistrations.Inc()
}

// RecordModerationChange counts a status change applied by a moderator.
func RecordModerationChange(status string) {
	moderationChanges.WithLabelValues(status).Inc()
}

// RecordOutbox counts n outbox events with the given outcome.
func RecordOutbox(outcome string, n int) {
	if n <= 0 {
		return
	}
	outboxPublished.WithLabelValues(outcome).Add(float64(n))
}

// ObserveHTTPRequest records one served request. route must be the router pattern, not the raw path.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
