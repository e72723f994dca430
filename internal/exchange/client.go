// Package exchange fetches the spot balance from a crypto exchange
// whose private endpoints require HMAC-SHA256 request signing.
package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "equity_monitor/internal/errors"
)

const defaultTimeout = 15 * time.Second

// Client signs and issues balance requests.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a new exchange Client.
func NewClient(baseURL, apiKey, apiSecret string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
	}
}

// Configured reports whether credentials are present. An unconfigured
// client is a valid state; the aggregator then skips the exchange leg.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.apiKey != "" && c.apiSecret != ""
}

// Balance is the exchange's reported total balance.
type Balance struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// balanceEnvelope is the response shape of the account endpoint.
type balanceEnvelope struct {
	TotalBalance string `json:"totalBalance"`
	Currency     string `json:"currency"`
	Message      string `json:"msg"`
}

// GetBalance fetches the account's total balance. The request carries a
// millisecond timestamp and an HMAC-SHA256 signature over the query
// string, keyed by the API secret.
func (c *Client) GetBalance(ctx context.Context) (Balance, error) {
	params := url.Values{}
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	params.Set("recvWindow", "5000")

	query := params.Encode()
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(query))
	signature := hex.EncodeToString(mac.Sum(nil))

	reqURL := fmt.Sprintf("%s/api/v1/account/balance?%s&signature=%s", c.baseURL, query, signature)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Balance{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Balance{}, apperrors.Wrap(apperrors.ErrUpstream, "exchange request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return Balance{}, apperrors.Newf(apperrors.ErrUpstreamForbidden, "exchange rejected credentials with status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return Balance{}, apperrors.Newf(apperrors.ErrUpstream, "exchange returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Balance{}, apperrors.Wrap(apperrors.ErrUpstream, "reading exchange response", err)
	}

	var envelope balanceEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Balance{}, apperrors.Wrap(apperrors.ErrUpstream, "decoding exchange response", err)
	}

	amount, err := strconv.ParseFloat(envelope.TotalBalance, 64)
	if err != nil {
		return Balance{}, apperrors.Newf(apperrors.ErrUpstream, "exchange balance %q is not numeric", envelope.TotalBalance)
	}

	return Balance{Amount: amount, Currency: strings.ToUpper(envelope.Currency)}, nil
}

// SetClock overrides the client's clock. Tests only.
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}
