package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"callcapture_backend/internal/calls/repository"
	"callcapture_backend/internal/calls/service"
	"callcapture_backend/internal/messaging"
	"callcapture_backend/platform/config"
	"callcapture_backend/platform/events"
	"callcapture_backend/platform/logger"
	"callcapture_backend/platform/metrics"
	"callcapture_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

type stubStore struct {
	client    repository.Client
	clientErr error

	opened   []string
	resolved []string
	sent     int
}

func (s *stubStore) OpenLedger(ctx context.Context, providerCallID string, clientID uuid.UUID, callerPhone, businessPhone string) error {
	s.opened = append(s.opened, providerCallID)
	return nil
}

func (s *stubStore) MarkResolved(ctx context.Context, providerCallID string) error {
	s.resolved = append(s.resolved, providerCallID)
	return nil
}

func (s *stubStore) DeleteLedger(ctx context.Context, providerCallID string) error { return nil }

func (s *stubStore) FindStale(ctx context.Context, olderThan time.Time, limit int) ([]repository.StaleEntry, error) {
	return nil, nil
}

func (s *stubStore) GetActiveClientByBusinessPhone(ctx context.Context, businessPhone string) (repository.Client, error) {
	return s.client, s.clientErr
}

func (s *stubStore) IsBlocked(ctx context.Context, clientID uuid.UUID, callerPhone string) (bool, error) {
	return false, nil
}

func (s *stubStore) HasMissedCallNotice(ctx context.Context, providerCallID string) (bool, error) {
	return false, nil
}

func (s *stubStore) UpsertLead(ctx context.Context, clientID uuid.UUID, callerPhone string) (repository.Lead, bool, error) {
	return repository.Lead{ID: uuid.New()}, true, nil
}

func (s *stubStore) InsertMissedCallNotice(ctx context.Context, entry repository.NoticeEntry) (bool, error) {
	return true, nil
}

func (s *stubStore) IncrementDailyStats(ctx context.Context, clientID uuid.UUID, day time.Time, conversationsStarted int) error {
	return nil
}

type stubProvider struct{}

func (stubProvider) FetchCallStatus(ctx context.Context, providerCallID string) (string, error) {
	return "completed", nil
}

type stubSender struct{ calls *int }

func (s stubSender) SendMessage(ctx context.Context, to, from, body string) (string, error) {
	*s.calls = *s.calls + 1
	return "SM_test", nil
}

func newTestHandler(t *testing.T, store *stubStore) *Handler {
	t.Helper()

	renderer, err := messaging.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	log := logger.New("development")
	cfg := &config.Config{
		DialTimeout:           30 * time.Second,
		StaleMargin:           5 * time.Second,
		ReconcileBatchSize:    50,
		ReconcileEntryTimeout: 5 * time.Second,
	}
	svc := service.New(store, stubProvider{}, stubSender{calls: &store.sent}, renderer, nil,
		events.NewInMemoryBus(log), metrics.NewWith(prometheus.NewRegistry()), cfg, log)
	return New(svc, validator.New(), log)
}

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/hooks/voice/forwarded", h.HandleForwardStarted)
	engine.POST("/hooks/voice/dial-status", h.HandleDialStatus)
	engine.POST("/internal/reconcile", h.HandleReconcile)
	return engine
}

func postForm(engine *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestHandleForwardStarted_OpensLedger(t *testing.T) {
	store := &stubStore{client: repository.Client{ID: uuid.New(), Name: "Ace", OwnerName: "Sam", BusinessPhone: "+15550001111"}}
	engine := newTestRouter(newTestHandler(t, store))

	rec := postForm(engine, "/hooks/voice/forwarded", url.Values{
		"CallSid": {"CA500"},
		"From":    {"+15552223333"},
		"To":      {"+15550001111"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(store.opened) != 1 || store.opened[0] != "CA500" {
		t.Fatalf("opened = %v, want [CA500]", store.opened)
	}
}

func TestHandleForwardStarted_MalformedPayloadStillAcknowledged(t *testing.T) {
	store := &stubStore{}
	engine := newTestRouter(newTestHandler(t, store))

	rec := postForm(engine, "/hooks/voice/forwarded", url.Values{"CallSid": {"CA501"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 so the provider stops retrying", rec.Code)
	}
	if len(store.opened) != 0 {
		t.Fatalf("opened = %v, want none", store.opened)
	}
}

func TestHandleDialStatus_MissedCallCaptured(t *testing.T) {
	store := &stubStore{client: repository.Client{ID: uuid.New(), Name: "Ace", OwnerName: "Sam", BusinessPhone: "+15550001111"}}
	engine := newTestRouter(newTestHandler(t, store))

	rec := postForm(engine, "/hooks/voice/dial-status", url.Values{
		"CallSid":        {"CA502"},
		"DialCallStatus": {"no-answer"},
		"From":           {"+15552223333"},
		"To":             {"+15550001111"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if store.sent != 1 {
		t.Fatalf("sent = %d, want 1", store.sent)
	}
	if len(store.resolved) != 1 {
		t.Fatalf("resolved = %v, want one entry", store.resolved)
	}
	// Webhook acknowledgments carry no body; outcomes live in logs and metrics.
	if rec.Body.Len() != 0 {
		t.Fatalf("body = %q, want empty acknowledgment", rec.Body.String())
	}
}

func TestHandleDialStatus_AnsweredCallNoSMS(t *testing.T) {
	store := &stubStore{client: repository.Client{ID: uuid.New(), BusinessPhone: "+15550001111"}}
	engine := newTestRouter(newTestHandler(t, store))

	rec := postForm(engine, "/hooks/voice/dial-status", url.Values{
		"CallSid":        {"CA503"},
		"DialCallStatus": {"completed"},
		"From":           {"+15552223333"},
		"To":             {"+15550001111"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if store.sent != 0 {
		t.Fatalf("sent = %d, want 0", store.sent)
	}
}

func TestHandleReconcile_ReturnsSummary(t *testing.T) {
	store := &stubStore{}
	engine := newTestRouter(newTestHandler(t, store))

	rec := postForm(engine, "/internal/reconcile", url.Values{})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"scanned":0`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
