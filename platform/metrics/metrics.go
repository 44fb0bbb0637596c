// Package metrics provides Prometheus metrics for the call pipeline.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// LedgerOpenFailures counts call-ledger writes that were swallowed.
	// Ledger loss degrades fallback coverage but never blocks the call;
	// this counter makes that degraded mode observable.
	LedgerOpenFailures prometheus.Counter

	// NoticesSent counts missed-call notices delivered via SMS.
	NoticesSent prometheus.Counter

	// CaptureOutcomes counts effect-executor results by outcome
	// (captured, duplicate, blocked, unconfigured, send_failed).
	CaptureOutcomes *prometheus.CounterVec

	// ReconcilerEntries counts fallback-reconciler entry results
	// (missed, answered, not_found, provider_error).
	ReconcilerEntries *prometheus.CounterVec

	// CapturesByPath counts successful captures by the resolver that won
	// (callback, reconciler). Fed by the event recorder.
	CapturesByPath *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
// on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers all metrics on the given registerer. Tests use this
// with a fresh registry to avoid duplicate-registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LedgerOpenFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "call_ledger_open_failures_total",
			Help: "Total number of call ledger writes that failed and were skipped",
		}),
		NoticesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "missed_call_notices_sent_total",
			Help: "Total number of missed-call notice SMS messages sent",
		}),
		CaptureOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "missed_call_capture_outcomes_total",
				Help: "Missed-call effect executor results by outcome",
			},
			[]string{"outcome"},
		),
		ReconcilerEntries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconciler_entries_total",
				Help: "Fallback reconciler per-entry results",
			},
			[]string{"result"},
		),
		CapturesByPath: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "missed_call_captures_by_path_total",
				Help: "Successful missed-call captures by resolving path",
			},
			[]string{"path"},
		),
	}
}
