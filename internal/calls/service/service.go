// Package service implements the call-outcome resolution pipeline: the
// fast-path resolver fed by the dial-completion callback, the fallback
// reconciler, and the missed-call effect executor shared by both.
package service

import (
	"context"
	"errors"
	"time"

	"callcapture_backend/internal/calls/repository"
	"callcapture_backend/internal/events"
	"callcapture_backend/internal/messaging"
	"callcapture_backend/internal/telephony"
	"callcapture_backend/platform/apperr"
	"callcapture_backend/platform/config"
	"callcapture_backend/platform/logger"
	"callcapture_backend/platform/metrics"
	"callcapture_backend/platform/phone"

	"golang.org/x/time/rate"
)

// Resolution paths, recorded on events and logs.
const (
	ResolvedByCallback   = "callback"
	ResolvedByReconciler = "reconciler"
)

// Capture outcomes. Everything except CaptureSendFailed is a structured
// no-op or success, not an error.
const (
	CaptureCaptured     = "captured"
	CaptureDuplicate    = "duplicate"
	CaptureBlocked      = "blocked"
	CaptureUnconfigured = "unconfigured"
	CaptureSendFailed   = "send_failed"
	// CaptureAnswered means the call was classified answered; no effects ran.
	CaptureAnswered = "answered"
)

// CaptureResult reports what the effect executor did for one call.
type CaptureResult struct {
	Outcome string
	LeadID  string
	NewLead bool
}

// Service orchestrates call-outcome resolution.
type Service struct {
	store    Store
	provider CallStatusFetcher
	sender   MessageSender
	renderer NoticeRenderer
	usage    UsageCounter
	bus      events.Bus
	metrics  *metrics.Metrics
	cfg      config.ReconcilerConfig
	limiter  *rate.Limiter
	log      *logger.Logger
}

// New creates the calls service.
func New(store Store, provider CallStatusFetcher, sender MessageSender, renderer NoticeRenderer, usage UsageCounter, bus events.Bus, m *metrics.Metrics, cfg config.ReconcilerConfig, log *logger.Logger) *Service {
	limit := rate.Limit(cfg.GetProviderRateLimit())
	if limit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.GetProviderRateBurst()
	if burst < 1 {
		burst = 1
	}

	return &Service{
		store:    store,
		provider: provider,
		sender:   sender,
		renderer: renderer,
		usage:    usage,
		bus:      bus,
		metrics:  m,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, burst),
		log:      log,
	}
}

// OpenLedger records that a forwarded call leg started. A ledger write
// failure only degrades fallback coverage, so it is logged and counted
// but never surfaced to the caller: the call itself must proceed.
func (s *Service) OpenLedger(ctx context.Context, providerCallID, callerPhone, businessPhone string) {
	caller := phone.NormalizeE164(callerPhone)
	business := phone.NormalizeE164(businessPhone)

	client, err := s.store.GetActiveClientByBusinessPhone(ctx, business)
	if err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			s.log.Info("ledger open skipped: no active client for number", "business_phone", business)
			return
		}
		s.recordLedgerFailure(ctx, providerCallID, err)
		return
	}

	if err := s.store.OpenLedger(ctx, providerCallID, client.ID, caller, business); err != nil {
		s.recordLedgerFailure(ctx, providerCallID, err)
	}
}

func (s *Service) recordLedgerFailure(ctx context.Context, providerCallID string, err error) {
	s.log.DatabaseError("open call ledger", err)
	s.metrics.LedgerOpenFailures.Inc()
	s.bus.Publish(ctx, events.CallLedgerWriteFailed{
		BaseEvent:      events.NewBaseEvent(),
		ProviderCallID: providerCallID,
		Reason:         err.Error(),
	})
}

// HandleDialOutcome is the fast-path resolver, invoked by the provider's
// dial-completion callback. It classifies the terminal dial status, runs
// the effect executor on a missed outcome, and resolves the ledger entry
// regardless. Errors never propagate to the provider-facing response.
func (s *Service) HandleDialOutcome(ctx context.Context, providerCallID, dialStatus, callerPhone, businessPhone string) CaptureResult {
	// The dial callback never reports "completed" for an unanswered leg,
	// so this path carries the answered hint.
	outcome := telephony.ClassifyOutcome(dialStatus, true)
	s.log.CallOutcome(providerCallID, dialStatus, outcome.String(), ResolvedByCallback)

	result := CaptureResult{Outcome: CaptureAnswered}
	if outcome == telephony.OutcomeMissed {
		captured, err := s.CaptureMissedCall(ctx, providerCallID, callerPhone, businessPhone, ResolvedByCallback)
		if err != nil {
			// Not retried inline: the call has already ended and the
			// ledger is resolved below, an accepted gap.
			s.log.Error("missed-call capture failed on fast path", "call_id", providerCallID, "error", err)
		}
		result = captured
	}

	s.resolveAndDiscard(ctx, providerCallID)
	return result
}

// CaptureMissedCall is the effect executor: client lookup, dedup check,
// block-list check, lead upsert, SMS send, conversation log, stats and
// usage increments. Steps 1-3 abort with a structured outcome; only a
// transport failure on the send is surfaced as an error.
func (s *Service) CaptureMissedCall(ctx context.Context, providerCallID, callerPhone, businessPhone, path string) (CaptureResult, error) {
	caller := phone.NormalizeE164(callerPhone)
	business := phone.NormalizeE164(businessPhone)
	log := s.log.WithCallID(providerCallID)

	client, err := s.store.GetActiveClientByBusinessPhone(ctx, business)
	if err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			log.Info("missed call ignored: unconfigured or inactive number", "business_phone", business)
			s.metrics.CaptureOutcomes.WithLabelValues(CaptureUnconfigured).Inc()
			return CaptureResult{Outcome: CaptureUnconfigured}, nil
		}
		return CaptureResult{}, apperr.Wrap(apperr.KindInternal, "client lookup failed", err)
	}

	// Fast-path dedup read; the conversation-log unique constraint below
	// remains the authoritative gate.
	processed, err := s.store.HasMissedCallNotice(ctx, providerCallID)
	if err != nil {
		return CaptureResult{}, apperr.Wrap(apperr.KindInternal, "dedup check failed", err)
	}
	if processed {
		log.Info("missed call already processed")
		s.metrics.CaptureOutcomes.WithLabelValues(CaptureDuplicate).Inc()
		return CaptureResult{Outcome: CaptureDuplicate}, nil
	}

	blocked, err := s.store.IsBlocked(ctx, client.ID, caller)
	if err != nil {
		return CaptureResult{}, apperr.Wrap(apperr.KindInternal, "block-list check failed", err)
	}
	if blocked {
		log.Info("missed call ignored: caller is blocked", "caller_phone", caller)
		s.metrics.CaptureOutcomes.WithLabelValues(CaptureBlocked).Inc()
		return CaptureResult{Outcome: CaptureBlocked}, nil
	}

	lead, newLead, err := s.store.UpsertLead(ctx, client.ID, caller)
	if err != nil {
		return CaptureResult{}, apperr.Wrap(apperr.KindInternal, "lead upsert failed", err)
	}

	override := ""
	if client.MissedCallTemplate != nil {
		override = *client.MissedCallTemplate
	}
	body, err := s.renderer.Render(messaging.TemplateMissedCallNotice, override, messaging.NoticeVars{
		BusinessName: client.Name,
		OwnerName:    client.OwnerName,
		CallerPhone:  caller,
	})
	if err != nil {
		return CaptureResult{}, apperr.Wrap(apperr.KindInternal, "render notice failed", err)
	}

	messageID, err := s.sender.SendMessage(ctx, caller, client.BusinessPhone, body)
	if err != nil {
		// The one retryable failure: nothing was logged or counted yet,
		// so a later duplicate trigger may attempt the send again.
		s.metrics.CaptureOutcomes.WithLabelValues(CaptureSendFailed).Inc()
		return CaptureResult{Outcome: CaptureSendFailed}, apperr.Wrap(apperr.KindUnavailable, "sms send failed", err)
	}

	inserted, err := s.store.InsertMissedCallNotice(ctx, repository.NoticeEntry{
		ClientID:          client.ID,
		LeadID:            lead.ID,
		ProviderCallID:    providerCallID,
		Content:           body,
		ProviderMessageID: messageID,
	})
	if err != nil {
		// Message is out but not logged: a data-quality gap, not
		// compensated transactionally.
		log.Error("notice sent but conversation log failed", "error", err)
	} else if !inserted {
		log.Warn("notice sent but another resolver won the log insert")
		s.metrics.CaptureOutcomes.WithLabelValues(CaptureDuplicate).Inc()
		return CaptureResult{Outcome: CaptureDuplicate}, nil
	}

	if err := s.store.IncrementDailyStats(ctx, client.ID, time.Now().UTC(), boolToCount(newLead)); err != nil {
		log.Error("notice sent but stats increment failed", "error", err)
	}

	if s.usage != nil {
		if _, err := s.usage.IncrementMonthly(ctx, client.ID, time.Now().UTC()); err != nil {
			log.Error("monthly usage increment failed", "error", err)
		}
	}

	s.metrics.NoticesSent.Inc()
	s.metrics.CaptureOutcomes.WithLabelValues(CaptureCaptured).Inc()
	s.bus.Publish(ctx, events.MissedCallCaptured{
		BaseEvent:      events.NewBaseEvent(),
		ClientID:       client.ID,
		LeadID:         lead.ID,
		ProviderCallID: providerCallID,
		CallerPhone:    caller,
		NewLead:        newLead,
		ResolvedBy:     path,
	})

	return CaptureResult{Outcome: CaptureCaptured, LeadID: lead.ID.String(), NewLead: newLead}, nil
}

// resolveAndDiscard marks the ledger entry resolved and removes it.
// Resolved entries are not retained.
func (s *Service) resolveAndDiscard(ctx context.Context, providerCallID string) {
	if err := s.store.MarkResolved(ctx, providerCallID); err != nil {
		s.log.DatabaseError("mark ledger resolved", err)
		return
	}
	if err := s.store.DeleteLedger(ctx, providerCallID); err != nil {
		s.log.DatabaseError("delete ledger entry", err)
	}
}

func boolToCount(b bool) int {
	if b {
		return 1
	}
	return 0
}
