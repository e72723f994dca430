package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "equity_monitor/internal/errors"
)

func TestClient_GetBalance_SignsQueryString(t *testing.T) {
	const secret = "test-api-secret"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-KEY"); got != "test-api-key" {
			t.Errorf("expected api key header, got %q", got)
		}

		query := r.URL.Query()
		signature := query.Get("signature")
		query.Del("signature")

		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(query.Encode()))
		if want := hex.EncodeToString(mac.Sum(nil)); signature != want {
			t.Errorf("signature mismatch: got %q want %q", signature, want)
		}

		w.Write([]byte(`{"totalBalance":"1523.75","currency":"usdt"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-api-key", secret)
	client.SetClock(func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) })

	balance, err := client.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance.Amount != 1523.75 {
		t.Errorf("expected amount 1523.75, got %f", balance.Amount)
	}
	if balance.Currency != "USDT" {
		t.Errorf("expected currency USDT, got %q", balance.Currency)
	}
}

func TestClient_GetBalance_Unauthorized_ReturnsForbiddenError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", "s")
	_, err := client.GetBalance(context.Background())
	if !apperrors.IsForbidden(err) {
		t.Errorf("expected forbidden error, got %v", err)
	}
}

func TestClient_GetBalance_NonNumericBalance_ReturnsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"totalBalance":"n/a","currency":"USDT"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", "s")
	_, err := client.GetBalance(context.Background())
	if !apperrors.Is(err, apperrors.ErrUpstream) {
		t.Errorf("expected upstream error, got %v", err)
	}
}

func TestClient_Configured_MissingCredentials_False(t *testing.T) {
	if NewClient("", "", "").Configured() {
		t.Error("expected unconfigured client")
	}
	if !NewClient("https://api.example.com", "k", "s").Configured() {
		t.Error("expected configured client")
	}
}
