package calls

import (
	"context"

	"callcapture_backend/internal/events"
	"callcapture_backend/platform/logger"
	"callcapture_backend/platform/metrics"
)

// EventRecorder turns call-pipeline events into metrics and log lines.
// It is the observability tail of the pipeline: capture counts per
// resolving path, and a visible trail for ledger writes that were
// swallowed at the call boundary.
type EventRecorder struct {
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewEventRecorder creates the recorder.
func NewEventRecorder(m *metrics.Metrics, log *logger.Logger) *EventRecorder {
	return &EventRecorder{metrics: m, log: log}
}

// RegisterHandlers subscribes the recorder to the pipeline events.
func (r *EventRecorder) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.MissedCallCaptured{}.EventName(), r)
	bus.Subscribe(events.CallLedgerWriteFailed{}.EventName(), r)
}

// Handle implements events.Handler.
func (r *EventRecorder) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.MissedCallCaptured:
		r.metrics.CapturesByPath.WithLabelValues(e.ResolvedBy).Inc()
		r.log.Info("missed call captured",
			"call_id", e.ProviderCallID,
			"client_id", e.ClientID,
			"lead_id", e.LeadID,
			"new_lead", e.NewLead,
			"resolved_by", e.ResolvedBy,
		)
	case events.CallLedgerWriteFailed:
		r.log.Warn("call ledger write failed, fallback coverage degraded",
			"call_id", e.ProviderCallID,
			"reason", e.Reason,
		)
	}
	return nil
}
