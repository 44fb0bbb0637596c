// Package repository provides data access for the call-outcome pipeline:
// the call ledger, conversation log, leads, and daily stats.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrClientNotFound is returned when no active client owns a number.
	ErrClientNotFound = errors.New("calls: client not found")
)

// Conversation log entry kinds written by this pipeline.
const (
	KindMissedCallNotice = "missed_call_notice"

	DirectionOutbound = "outbound"
)

// DB is the minimal pgx surface the repository needs. It is satisfied by
// *pgxpool.Pool and by pgxmock in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LedgerEntry represents one in-flight call leg awaiting an outcome.
type LedgerEntry struct {
	ID             uuid.UUID
	ProviderCallID string
	ClientID       uuid.UUID
	CallerPhone    string
	BusinessPhone  string
	ReceivedAt     time.Time
	Resolved       bool
	ResolvedAt     *time.Time
}

// StaleEntry is a ledger entry joined with the client data the
// reconciler needs downstream.
type StaleEntry struct {
	LedgerEntry
	ClientName string
}

// Client is the business a call belongs to.
type Client struct {
	ID                 uuid.UUID
	Name               string
	OwnerName          string
	BusinessPhone      string
	Status             string
	MissedCallTemplate *string
}

// Lead is the contact record for a caller.
type Lead struct {
	ID        uuid.UUID
	ClientID  uuid.UUID
	Phone     string
	Source    string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NoticeEntry is the conversation-log row for an outbound missed-call notice.
type NoticeEntry struct {
	ClientID          uuid.UUID
	LeadID            uuid.UUID
	ProviderCallID    string
	Content           string
	ProviderMessageID string
}

// Repository provides data access for the calls bounded context.
type Repository struct {
	db DB
}

// New creates a new calls repository.
func New(db DB) *Repository {
	return &Repository{db: db}
}

// OpenLedger records that a forwarded call leg is in flight. The insert is
// conflict-tolerant so a redelivered inbound webhook does not error.
func (r *Repository) OpenLedger(ctx context.Context, providerCallID string, clientID uuid.UUID, callerPhone, businessPhone string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO call_ledger (provider_call_id, client_id, caller_phone, business_phone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider_call_id) DO NOTHING
	`, providerCallID, clientID, callerPhone, businessPhone)
	return err
}

// MarkResolved flips the ledger entry to resolved. Idempotent: a second
// call for the same provider call identifier is a no-op.
func (r *Repository) MarkResolved(ctx context.Context, providerCallID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE call_ledger SET resolved = true, resolved_at = now()
		WHERE provider_call_id = $1 AND resolved = false
	`, providerCallID)
	return err
}

// DeleteLedger removes the ledger entry; resolved entries are not retained.
func (r *Repository) DeleteLedger(ctx context.Context, providerCallID string) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM call_ledger WHERE provider_call_id = $1
	`, providerCallID)
	return err
}

// FindStale returns unresolved ledger entries received before the cutoff,
// joined with client data, oldest first.
func (r *Repository) FindStale(ctx context.Context, olderThan time.Time, limit int) ([]StaleEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT l.id, l.provider_call_id, l.client_id, l.caller_phone, l.business_phone,
		       l.received_at, l.resolved, l.resolved_at, c.name
		FROM call_ledger l
		JOIN clients c ON c.id = l.client_id
		WHERE l.resolved = false AND l.received_at < $1
		ORDER BY l.received_at ASC
		LIMIT $2
	`, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []StaleEntry
	for rows.Next() {
		var e StaleEntry
		if err := rows.Scan(
			&e.ID, &e.ProviderCallID, &e.ClientID, &e.CallerPhone, &e.BusinessPhone,
			&e.ReceivedAt, &e.Resolved, &e.ResolvedAt, &e.ClientName,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetActiveClientByBusinessPhone finds the active client owning a number.
func (r *Repository) GetActiveClientByBusinessPhone(ctx context.Context, businessPhone string) (Client, error) {
	var c Client
	err := r.db.QueryRow(ctx, `
		SELECT id, name, owner_name, business_phone, status, missed_call_template
		FROM clients
		WHERE business_phone = $1 AND status = 'active'
	`, businessPhone).Scan(
		&c.ID, &c.Name, &c.OwnerName, &c.BusinessPhone, &c.Status, &c.MissedCallTemplate,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrClientNotFound
	}
	return c, err
}

// IsBlocked reports whether the caller is on the client's block list.
func (r *Repository) IsBlocked(ctx context.Context, clientID uuid.UUID, callerPhone string) (bool, error) {
	var blocked bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM blocked_numbers WHERE client_id = $1 AND phone = $2
		)
	`, clientID, callerPhone).Scan(&blocked)
	return blocked, err
}

// HasMissedCallNotice reports whether a missed-call notice was already
// logged for this provider call identifier. This read is a fast-path
// optimization; the unique constraint behind InsertMissedCallNotice is
// the authoritative dedup gate.
func (r *Repository) HasMissedCallNotice(ctx context.Context, providerCallID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM conversation_log WHERE provider_call_id = $1 AND kind = $2
		)
	`, providerCallID, KindMissedCallNotice).Scan(&exists)
	return exists, err
}

// UpsertLead creates the lead for (client, phone) or touches updated_at on
// a repeat caller. The second return value reports whether a new lead row
// was created.
func (r *Repository) UpsertLead(ctx context.Context, clientID uuid.UUID, callerPhone string) (Lead, bool, error) {
	var lead Lead
	var created bool
	err := r.db.QueryRow(ctx, `
		INSERT INTO leads (client_id, phone, source, status)
		VALUES ($1, $2, 'missed_call', 'new')
		ON CONFLICT (client_id, phone) DO UPDATE SET updated_at = now()
		RETURNING id, client_id, phone, source, status, created_at, updated_at, (xmax = 0)
	`, clientID, callerPhone).Scan(
		&lead.ID, &lead.ClientID, &lead.Phone, &lead.Source, &lead.Status,
		&lead.CreatedAt, &lead.UpdatedAt, &created,
	)
	return lead, created, err
}

// InsertMissedCallNotice appends the outbound notice to the conversation
// log. The unique constraint on (provider_call_id, kind) collapses
// duplicate resolutions; the return value reports whether this caller won
// the insert.
func (r *Repository) InsertMissedCallNotice(ctx context.Context, entry NoticeEntry) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO conversation_log (client_id, lead_id, provider_call_id, kind, direction, content, provider_message_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (provider_call_id, kind) DO NOTHING
	`, entry.ClientID, entry.LeadID, entry.ProviderCallID, KindMissedCallNotice, DirectionOutbound, entry.Content, entry.ProviderMessageID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementDailyStats applies the day's counter deltas as a single atomic
// upsert-with-increment; concurrent resolutions for the same client and
// day must not lose updates.
func (r *Repository) IncrementDailyStats(ctx context.Context, clientID uuid.UUID, day time.Time, conversationsStarted int) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO daily_stats (client_id, date, missed_calls_captured, messages_sent, conversations_started)
		VALUES ($1, $2, 1, 1, $3)
		ON CONFLICT (client_id, date) DO UPDATE SET
			missed_calls_captured = daily_stats.missed_calls_captured + 1,
			messages_sent = daily_stats.messages_sent + 1,
			conversations_started = daily_stats.conversations_started + $3
	`, clientID, day.Format("2006-01-02"), conversationsStarted)
	return err
}
