// Package upstream implements the typed client for the trading-platform
// polling API. All three endpoints share the same envelope shape: an
// error flag plus a human-readable message, with the payload alongside.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "equity_monitor/internal/errors"
	"equity_monitor/internal/models"
)

const defaultTimeout = 20 * time.Second

// Client talks to the upstream polling API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a new upstream Client.
func NewClient(baseURL, userAgent string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// loginEnvelope is the response shape of login.json.
type loginEnvelope struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Session string `json:"session"`
}

// accountsEnvelope is the response shape of get-my-accounts.json.
type accountsEnvelope struct {
	Error    bool             `json:"error"`
	Message  string           `json:"message"`
	Accounts []models.Account `json:"accounts"`
}

// historyEnvelope is the response shape of get-history.json.
type historyEnvelope struct {
	Error   bool                  `json:"error"`
	Message string                `json:"message"`
	History []models.HistoryEntry `json:"history"`
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	params := url.Values{}
	params.Set("email", email)
	params.Set("password", password)

	var envelope loginEnvelope
	if err := c.get(ctx, "/api/login.json", params, &envelope); err != nil {
		return "", err
	}

	if envelope.Error || envelope.Session == "" {
		return "", apperrors.Newf(apperrors.ErrUpstream, "login rejected: %s", envelope.Message)
	}

	return envelope.Session, nil
}

// GetAccounts fetches all accounts visible to the session.
func (c *Client) GetAccounts(ctx context.Context, sessionToken string) ([]models.Account, error) {
	params := url.Values{}
	params.Set("session", sessionToken)

	var envelope accountsEnvelope
	if err := c.get(ctx, "/api/get-my-accounts.json", params, &envelope); err != nil {
		return nil, err
	}

	if envelope.Error {
		return nil, classifyEnvelopeError(envelope.Message)
	}

	return envelope.Accounts, nil
}

// GetHistory fetches the trade history for one account.
func (c *Client) GetHistory(ctx context.Context, sessionToken string, accountID int64) ([]models.HistoryEntry, error) {
	params := url.Values{}
	params.Set("session", sessionToken)
	params.Set("id", strconv.FormatInt(accountID, 10))

	var envelope historyEnvelope
	if err := c.get(ctx, "/api/get-history.json", params, &envelope); err != nil {
		return nil, err
	}

	if envelope.Error {
		return nil, classifyEnvelopeError(envelope.Message)
	}

	return envelope.History, nil
}

// get issues a GET request and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrUpstream, "upstream request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		log.Printf("[Upstream] %s returned 403", path)
		return apperrors.New(apperrors.ErrUpstreamForbidden, "upstream returned 403 Forbidden")
	}
	if resp.StatusCode != http.StatusOK {
		return apperrors.Newf(apperrors.ErrUpstream, "upstream returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrUpstream, "reading upstream response", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.Wrap(apperrors.ErrUpstream, "decoding upstream response", err)
	}

	return nil
}

// classifyEnvelopeError maps an envelope error message to a typed error.
// The upstream reports an expired or revoked token with a message that
// mentions the session; everything else is a generic upstream failure.
func classifyEnvelopeError(message string) error {
	lower := strings.ToLower(message)
	if strings.Contains(lower, "invalid session") || strings.Contains(lower, "session expired") {
		return apperrors.Newf(apperrors.ErrInvalidSession, "upstream rejected session: %s", message)
	}
	return apperrors.Newf(apperrors.ErrUpstream, "upstream error: %s", message)
}
