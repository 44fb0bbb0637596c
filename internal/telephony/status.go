// Package telephony provides the telephony provider adapter: the REST
// client for call-status queries and SMS sends, and the outcome
// classification shared by both call resolvers.
package telephony

import "strings"

// Provider call status vocabulary. The dial-completion callback and the
// call-status API use the same terminal values.
const (
	StatusQueued     = "queued"
	StatusInitiated  = "initiated"
	StatusRinging    = "ringing"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusBusy       = "busy"
	StatusFailed     = "failed"
	StatusNoAnswer   = "no-answer"
	StatusCanceled   = "canceled"
)

// Outcome is the classification of a terminal call status.
type Outcome int

const (
	// OutcomeIndeterminate means the call has not reached a terminal state.
	OutcomeIndeterminate Outcome = iota
	// OutcomeMissed means the caller was not reached by a human.
	OutcomeMissed
	// OutcomeAnswered means the call was picked up; no effects run.
	OutcomeAnswered
)

// String returns the outcome name for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomeMissed:
		return "missed"
	case OutcomeAnswered:
		return "answered"
	default:
		return "indeterminate"
	}
}

var missedStatuses = map[string]struct{}{
	StatusNoAnswer: {},
	StatusBusy:     {},
	StatusFailed:   {},
	StatusCanceled: {},
}

var nonTerminalStatuses = map[string]struct{}{
	StatusQueued:     {},
	StatusInitiated:  {},
	StatusRinging:    {},
	StatusInProgress: {},
}

// ClassifyOutcome maps a provider call status to an outcome. It is the
// single definition of "missed"; both the dial-callback resolver and the
// polling reconciler must classify through it so the two paths agree.
//
// The answered hint covers the status asymmetry between the two sources:
// the dial callback never reports "completed" for an unanswered leg, so
// that path passes answered=true for completed statuses. The call-status
// API cannot distinguish answered from unanswered completed legs, so the
// polling path passes answered=false and a bare "completed" is treated
// as missed.
func ClassifyOutcome(status string, answered bool) Outcome {
	normalized := strings.ToLower(strings.TrimSpace(status))
	if normalized == "" {
		return OutcomeIndeterminate
	}

	if _, ok := missedStatuses[normalized]; ok {
		return OutcomeMissed
	}

	if _, ok := nonTerminalStatuses[normalized]; ok {
		return OutcomeIndeterminate
	}

	if normalized == StatusCompleted && !answered {
		return OutcomeMissed
	}

	return OutcomeAnswered
}
