// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"callcapture_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Call Pipeline Events
// =============================================================================

// MissedCallCaptured is published after the effect executor completes:
// the notice SMS was sent, the conversation was logged, and stats were
// incremented.
type MissedCallCaptured struct {
	BaseEvent
	ClientID       uuid.UUID `json:"clientId"`
	LeadID         uuid.UUID `json:"leadId"`
	ProviderCallID string    `json:"providerCallId"`
	CallerPhone    string    `json:"callerPhone"`
	NewLead        bool      `json:"newLead"`
	ResolvedBy     string    `json:"resolvedBy"` // "callback" or "reconciler"
}

func (e MissedCallCaptured) EventName() string { return "calls.missed_call.captured" }

// CallLedgerWriteFailed is published when opening a ledger entry fails.
// Ledger loss only degrades fallback coverage, so the call proceeds; the
// event exists to make the degraded mode observable.
type CallLedgerWriteFailed struct {
	BaseEvent
	ProviderCallID string `json:"providerCallId"`
	Reason         string `json:"reason"`
}

func (e CallLedgerWriteFailed) EventName() string { return "calls.ledger.write_failed" }
