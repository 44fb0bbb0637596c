package service

import (
	"context"
	"time"

	"callcapture_backend/internal/calls/repository"
	"callcapture_backend/internal/messaging"

	"github.com/google/uuid"
)

// Store is the persistence surface the pipeline needs; implemented by
// the calls repository.
type Store interface {
	OpenLedger(ctx context.Context, providerCallID string, clientID uuid.UUID, callerPhone, businessPhone string) error
	MarkResolved(ctx context.Context, providerCallID string) error
	DeleteLedger(ctx context.Context, providerCallID string) error
	FindStale(ctx context.Context, olderThan time.Time, limit int) ([]repository.StaleEntry, error)
	GetActiveClientByBusinessPhone(ctx context.Context, businessPhone string) (repository.Client, error)
	IsBlocked(ctx context.Context, clientID uuid.UUID, callerPhone string) (bool, error)
	HasMissedCallNotice(ctx context.Context, providerCallID string) (bool, error)
	UpsertLead(ctx context.Context, clientID uuid.UUID, callerPhone string) (repository.Lead, bool, error)
	InsertMissedCallNotice(ctx context.Context, entry repository.NoticeEntry) (bool, error)
	IncrementDailyStats(ctx context.Context, clientID uuid.UUID, day time.Time, conversationsStarted int) error
}

// CallStatusFetcher queries the provider's call-status API.
type CallStatusFetcher interface {
	FetchCallStatus(ctx context.Context, providerCallID string) (string, error)
}

// MessageSender delivers an SMS through the provider.
type MessageSender interface {
	SendMessage(ctx context.Context, to, from, body string) (string, error)
}

// NoticeRenderer produces the outbound message body.
type NoticeRenderer interface {
	Render(key string, override string, vars messaging.NoticeVars) (string, error)
}

// UsageCounter tracks the client's rolling monthly message usage.
type UsageCounter interface {
	IncrementMonthly(ctx context.Context, clientID uuid.UUID, at time.Time) (int64, error)
}
