package telephony

import "testing"

func TestClassifyOutcomeMissedStatusesAgreeAcrossPaths(t *testing.T) {
	statuses := []string{StatusNoAnswer, StatusBusy, StatusFailed, StatusCanceled}

	for _, status := range statuses {
		// Dial-callback path carries an answered hint, polling path does not.
		// Missed statuses must classify identically regardless.
		if got := ClassifyOutcome(status, true); got != OutcomeMissed {
			t.Fatalf("status %q with hint: expected missed, got %v", status, got)
		}
		if got := ClassifyOutcome(status, false); got != OutcomeMissed {
			t.Fatalf("status %q without hint: expected missed, got %v", status, got)
		}
	}
}

func TestClassifyOutcomeCompletedWithAnsweredHint(t *testing.T) {
	if got := ClassifyOutcome(StatusCompleted, true); got != OutcomeAnswered {
		t.Fatalf("expected answered, got %v", got)
	}
}

func TestClassifyOutcomeCompletedWithoutHintIsMissed(t *testing.T) {
	// The call-status API cannot distinguish a completed-but-unanswered
	// leg from an answered one; bare completed is treated as missed.
	if got := ClassifyOutcome(StatusCompleted, false); got != OutcomeMissed {
		t.Fatalf("expected missed, got %v", got)
	}
}

func TestClassifyOutcomeNonTerminalStatuses(t *testing.T) {
	for _, status := range []string{StatusQueued, StatusInitiated, StatusRinging, StatusInProgress} {
		if got := ClassifyOutcome(status, false); got != OutcomeIndeterminate {
			t.Fatalf("status %q: expected indeterminate, got %v", status, got)
		}
	}
}

func TestClassifyOutcomeUnknownTerminalStatusIsAnswered(t *testing.T) {
	if got := ClassifyOutcome("answered-by-machine", false); got != OutcomeAnswered {
		t.Fatalf("expected answered, got %v", got)
	}
}

func TestClassifyOutcomeNormalizesCase(t *testing.T) {
	if got := ClassifyOutcome("  No-Answer ", false); got != OutcomeMissed {
		t.Fatalf("expected missed, got %v", got)
	}
}

func TestClassifyOutcomeEmptyStatus(t *testing.T) {
	if got := ClassifyOutcome("", false); got != OutcomeIndeterminate {
		t.Fatalf("expected indeterminate, got %v", got)
	}
}
