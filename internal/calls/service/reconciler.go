package service

import (
	"context"
	"errors"
	"time"

	"callcapture_backend/internal/calls/repository"
	"callcapture_backend/internal/telephony"
)

// ReconcileSummary reports what one reconciliation pass did.
type ReconcileSummary struct {
	Scanned  int `json:"scanned"`
	Missed   int `json:"missed"`
	Answered int `json:"answered"`
	NotFound int `json:"notFound"`
	Pending  int `json:"pending"`
	Failed   int `json:"failed"`
}

// ReconcileStale is the fallback resolver. It scans ledger entries older
// than dial timeout plus margin, queries the provider's call-status API
// per entry, and resolves them. Entries are processed independently: one
// entry's provider failure leaves it for the next run and never aborts
// the batch.
func (s *Service) ReconcileStale(ctx context.Context) (ReconcileSummary, error) {
	cutoff := time.Now().Add(-(s.cfg.GetDialTimeout() + s.cfg.GetStaleMargin()))

	entries, err := s.store.FindStale(ctx, cutoff, s.cfg.GetReconcileBatchSize())
	if err != nil {
		s.log.DatabaseError("find stale ledger entries", err)
		return ReconcileSummary{}, err
	}

	summary := ReconcileSummary{Scanned: len(entries)}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		s.reconcileEntry(ctx, entry, &summary)
	}

	if summary.Scanned > 0 {
		s.log.Info("reconcile pass complete",
			"scanned", summary.Scanned,
			"missed", summary.Missed,
			"answered", summary.Answered,
			"not_found", summary.NotFound,
			"pending", summary.Pending,
			"failed", summary.Failed,
		)
	}
	return summary, nil
}

func (s *Service) reconcileEntry(ctx context.Context, entry repository.StaleEntry, summary *ReconcileSummary) {
	entryCtx, cancel := context.WithTimeout(ctx, s.cfg.GetReconcileEntryTimeout())
	defer cancel()

	log := s.log.WithCallID(entry.ProviderCallID).With("client", entry.ClientName)

	if err := s.limiter.Wait(entryCtx); err != nil {
		summary.Failed++
		return
	}

	status, err := s.provider.FetchCallStatus(entryCtx, entry.ProviderCallID)
	if errors.Is(err, telephony.ErrCallNotFound) {
		// Synthetic identifiers and calls the provider never persisted:
		// resolve and discard, this is not an error.
		log.Info("provider has no record of call, discarding ledger entry")
		s.metrics.ReconcilerEntries.WithLabelValues("not_found").Inc()
		s.resolveAndDiscard(ctx, entry.ProviderCallID)
		summary.NotFound++
		return
	}
	if err != nil {
		// Entry stays unresolved; the next scheduled run is the retry.
		s.log.ProviderError("fetch call status", entry.ProviderCallID, err)
		s.metrics.ReconcilerEntries.WithLabelValues("provider_error").Inc()
		summary.Failed++
		return
	}

	// No answered hint is available from the call-status API.
	outcome := telephony.ClassifyOutcome(status, false)
	log.Info("call outcome resolved", "status", status, "outcome", outcome.String(), "path", ResolvedByReconciler)

	switch outcome {
	case telephony.OutcomeIndeterminate:
		// Still in flight at the provider despite its age; leave it for
		// the next pass rather than risk a false missed classification.
		s.metrics.ReconcilerEntries.WithLabelValues("pending").Inc()
		summary.Pending++
		return
	case telephony.OutcomeMissed:
		if _, err := s.CaptureMissedCall(entryCtx, entry.ProviderCallID, entry.CallerPhone, entry.BusinessPhone, ResolvedByReconciler); err != nil {
			// Send failures leave the entry open: the dedup gate only
			// blocks successful repeats, so the next run retries.
			log.Error("missed-call capture failed during reconcile", "error", err)
			s.metrics.ReconcilerEntries.WithLabelValues("capture_failed").Inc()
			summary.Failed++
			return
		}
		s.metrics.ReconcilerEntries.WithLabelValues("missed").Inc()
		summary.Missed++
	default:
		s.metrics.ReconcilerEntries.WithLabelValues("answered").Inc()
		summary.Answered++
	}

	s.resolveAndDiscard(ctx, entry.ProviderCallID)
}
