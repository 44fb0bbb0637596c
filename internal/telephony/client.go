package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"callcapture_backend/platform/config"
	"callcapture_backend/platform/logger"
)

// ErrCallNotFound is returned when the provider has no record of the call.
// The reconciler treats this as resolve-and-discard, not as a failure:
// synthetic test identifiers and calls the provider never persisted
// both land here.
var ErrCallNotFound = errors.New("telephony: call not found")

const apiVersion = "2010-04-01"

// Twilio error code for "resource not found".
const errorCodeNotFound = 20404

// Client is a minimal Twilio REST client covering the two operations the
// pipeline needs: fetching a call's status and sending an SMS.
type Client struct {
	accountSID string
	authToken  string
	baseURL    string
	http       *http.Client
	log        *logger.Logger
}

// NewClient creates a provider client from configuration.
func NewClient(cfg config.TelephonyConfig, log *logger.Logger) *Client {
	return &Client{
		accountSID: cfg.GetTwilioAccountSID(),
		authToken:  cfg.GetTwilioAuthToken(),
		baseURL:    strings.TrimRight(cfg.GetTwilioBaseURL(), "/"),
		http:       &http.Client{Timeout: cfg.GetTwilioHTTPTimeout()},
		log:        log,
	}
}

type callResource struct {
	Sid    string `json:"sid"`
	Status string `json:"status"`
}

type messageResource struct {
	Sid string `json:"sid"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// FetchCallStatus queries the call-status API for the call's current
// status. Returns ErrCallNotFound when the provider does not know the call.
func (c *Client) FetchCallStatus(ctx context.Context, providerCallID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/Accounts/%s/Calls/%s.json", c.baseURL, apiVersion, c.accountSID, url.PathEscape(providerCallID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch call status: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrCallNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", c.decodeError(resp)
	}

	var call callResource
	if err := json.NewDecoder(resp.Body).Decode(&call); err != nil {
		return "", fmt.Errorf("decode call resource: %w", err)
	}
	return call.Status, nil
}

// SendMessage sends an SMS and returns the provider message identifier.
func (c *Client) SendMessage(ctx context.Context, to, from, body string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/Accounts/%s/Messages.json", c.baseURL, apiVersion, c.accountSID)

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", c.decodeError(resp)
	}

	var msg messageResource
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return "", fmt.Errorf("decode message resource: %w", err)
	}

	c.log.Info("sms sent", "to", to, "message_sid", msg.Sid)
	return msg.Sid, nil
}

func (c *Client) decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)

	var apiErr apiError
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Code != 0 {
		if apiErr.Code == errorCodeNotFound {
			return ErrCallNotFound
		}
		return fmt.Errorf("provider returned %d (code %d): %s", resp.StatusCode, apiErr.Code, apiErr.Message)
	}

	return fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}
