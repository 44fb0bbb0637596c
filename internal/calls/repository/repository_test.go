package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestOpenLedgerIsConflictTolerant(t *testing.T) {
	mock := newMock(t)
	clientID := uuid.New()

	// A redelivered inbound webhook hits the unique index; DO NOTHING
	// reports zero rows affected and no error.
	mock.ExpectExec(`INSERT INTO call_ledger`).
		WithArgs("CA1", clientID, "+14155552671", "+14155550000").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	repo := New(mock)
	if err := repo.OpenLedger(context.Background(), "CA1", clientID, "+14155552671", "+14155550000"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkResolvedSecondCallIsNoOp(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec(`UPDATE call_ledger SET resolved = true`).
		WithArgs("CA1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE call_ledger SET resolved = true`).
		WithArgs("CA1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := New(mock)
	if err := repo.MarkResolved(context.Background(), "CA1"); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if err := repo.MarkResolved(context.Background(), "CA1"); err != nil {
		t.Fatalf("second resolve must be a no-op, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindStaleScansJoinedRows(t *testing.T) {
	mock := newMock(t)
	cutoff := time.Now().Add(-35 * time.Second)
	entryID := uuid.New()
	clientID := uuid.New()
	receivedAt := time.Now().Add(-2 * time.Minute)

	mock.ExpectQuery(`SELECT l\.id, l\.provider_call_id`).
		WithArgs(cutoff, 50).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "provider_call_id", "client_id", "caller_phone", "business_phone",
			"received_at", "resolved", "resolved_at", "name",
		}).AddRow(entryID, "CA1", clientID, "+14155552671", "+14155550000", receivedAt, false, nil, "Ace Plumbing"))

	repo := New(mock)
	entries, err := repo.FindStale(context.Background(), cutoff, 50)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ProviderCallID != "CA1" || entries[0].ClientName != "Ace Plumbing" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetActiveClientByBusinessPhoneNotFound(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT id, name, owner_name`).
		WithArgs("+14155550000").
		WillReturnError(pgx.ErrNoRows)

	repo := New(mock)
	_, err := repo.GetActiveClientByBusinessPhone(context.Background(), "+14155550000")
	if !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}

func TestUpsertLeadReportsCreatedFlag(t *testing.T) {
	mock := newMock(t)
	clientID := uuid.New()
	leadID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO leads`).
		WithArgs(clientID, "+14155552671").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "client_id", "phone", "source", "status", "created_at", "updated_at", "xmax",
		}).AddRow(leadID, clientID, "+14155552671", "missed_call", "new", now, now, true))

	repo := New(mock)
	lead, created, err := repo.UpsertLead(context.Background(), clientID, "+14155552671")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !created {
		t.Fatalf("expected created=true for a new lead")
	}
	if lead.ID != leadID || lead.Source != "missed_call" {
		t.Fatalf("unexpected lead: %+v", lead)
	}
}

func TestInsertMissedCallNoticeLosesRace(t *testing.T) {
	mock := newMock(t)
	entry := NoticeEntry{
		ClientID:          uuid.New(),
		LeadID:            uuid.New(),
		ProviderCallID:    "CA1",
		Content:           "sorry we missed you",
		ProviderMessageID: "SM1",
	}

	mock.ExpectExec(`INSERT INTO conversation_log`).
		WithArgs(entry.ClientID, entry.LeadID, entry.ProviderCallID, KindMissedCallNotice, DirectionOutbound, entry.Content, entry.ProviderMessageID).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	repo := New(mock)
	inserted, err := repo.InsertMissedCallNotice(context.Background(), entry)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if inserted {
		t.Fatalf("expected inserted=false when the unique constraint collapsed the row")
	}
}

func TestIncrementDailyStatsUsesSingleUpsert(t *testing.T) {
	mock := newMock(t)
	clientID := uuid.New()
	day := time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO daily_stats`).
		WithArgs(clientID, "2026-08-29", 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := New(mock)
	if err := repo.IncrementDailyStats(context.Background(), clientID, day, 1); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
