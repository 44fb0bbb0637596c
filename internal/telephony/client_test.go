package telephony

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"callcapture_backend/platform/logger"
)

type stubTelephonyConfig struct {
	baseURL string
}

func (c stubTelephonyConfig) GetTwilioAccountSID() string         { return "AC123" }
func (c stubTelephonyConfig) GetTwilioAuthToken() string          { return "secret" }
func (c stubTelephonyConfig) GetTwilioBaseURL() string            { return c.baseURL }
func (c stubTelephonyConfig) GetTwilioHTTPTimeout() time.Duration { return 2 * time.Second }

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(stubTelephonyConfig{baseURL: server.URL}, logger.New("development"))
	return client, server
}

func TestFetchCallStatusReturnsStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC123/Calls/CA42.json" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			t.Fatalf("expected basic auth credentials")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sid":"CA42","status":"no-answer"}`))
	})

	status, err := client.FetchCallStatus(context.Background(), "CA42")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if status != StatusNoAnswer {
		t.Fatalf("expected no-answer, got %q", status)
	}
}

func TestFetchCallStatusNotFoundByHTTPStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":20404,"message":"not found","status":404}`))
	})

	_, err := client.FetchCallStatus(context.Background(), "CAmissing")
	if !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("expected ErrCallNotFound, got %v", err)
	}
}

func TestFetchCallStatusNotFoundByErrorCode(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":20404,"message":"resource gone"}`))
	})

	_, err := client.FetchCallStatus(context.Background(), "CAgone")
	if !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("expected ErrCallNotFound, got %v", err)
	}
}

func TestSendMessagePostsFormAndReturnsSid(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC123/Messages.json" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostFormValue("To") != "+14155552671" || r.PostFormValue("From") != "+14155550000" {
			t.Fatalf("unexpected form values: %v", r.PostForm)
		}
		if r.PostFormValue("Body") == "" {
			t.Fatalf("expected message body")
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM99"}`))
	})

	sid, err := client.SendMessage(context.Background(), "+14155552671", "+14155550000", "hello")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sid != "SM99" {
		t.Fatalf("expected SM99, got %q", sid)
	}
}

func TestSendMessageSurfacesTransportError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"invalid 'To' number"}`))
	})

	_, err := client.SendMessage(context.Background(), "bogus", "+14155550000", "hello")
	if err == nil {
		t.Fatalf("expected error")
	}
	if errors.Is(err, ErrCallNotFound) {
		t.Fatalf("transport error must not be classified as not-found")
	}
}
