package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	apperrors "equity_monitor/internal/errors"
	"equity_monitor/internal/models"
	"equity_monitor/internal/session"
)

type fakeSource struct {
	tokens []string
	calls  atomic.Int64
	err    error
}

func (f *fakeSource) EnsureSession(ctx context.Context) (string, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	idx := int(n) - 1
	if idx >= len(f.tokens) {
		idx = len(f.tokens) - 1
	}
	return f.tokens[idx], nil
}

type fakeAccountsFetcher struct {
	calls atomic.Int64
	fn    func(call int64, token string) ([]models.Account, error)
}

func (f *fakeAccountsFetcher) GetAccounts(ctx context.Context, token string) ([]models.Account, error) {
	return f.fn(f.calls.Add(1), token)
}

func twoAccounts() []models.Account {
	return []models.Account{
		{ID: 1001, Name: "Alpha", Currency: "USD", Balance: 5000, Equity: 5100},
		{ID: 1002, Name: "Beta", Currency: "EUR", Balance: 300, Equity: 310},
	}
}

func TestSnapshotCache_EnsureFresh_WithinTTL_SingleUpstreamCall(t *testing.T) {
	fetcher := &fakeAccountsFetcher{fn: func(call int64, token string) ([]models.Account, error) {
		return twoAccounts(), nil
	}}
	store := session.NewStore(nil)
	cache := NewSnapshotCache(store, &fakeSource{tokens: []string{"tok"}}, fetcher, 30*time.Second, 5*time.Minute, time.Hour)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })

	for i := 0; i < 5; i++ {
		accounts, err := cache.EnsureFresh(context.Background())
		if err != nil {
			t.Fatalf("EnsureFresh failed: %v", err)
		}
		if len(accounts) != 2 {
			t.Fatalf("expected 2 accounts, got %d", len(accounts))
		}
		now = now.Add(time.Second)
	}

	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("expected 1 upstream call within TTL, got %d", got)
	}
}

func TestSnapshotCache_EnsureFresh_ExpiredTTL_Refetches(t *testing.T) {
	fetcher := &fakeAccountsFetcher{fn: func(call int64, token string) ([]models.Account, error) {
		return twoAccounts(), nil
	}}
	store := session.NewStore(nil)
	cache := NewSnapshotCache(store, &fakeSource{tokens: []string{"tok"}}, fetcher, 30*time.Second, 5*time.Minute, time.Hour)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })

	if _, err := cache.EnsureFresh(context.Background()); err != nil {
		t.Fatalf("EnsureFresh failed: %v", err)
	}

	now = now.Add(31 * time.Second)
	if _, err := cache.EnsureFresh(context.Background()); err != nil {
		t.Fatalf("EnsureFresh failed: %v", err)
	}

	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("expected 2 upstream calls across TTL windows, got %d", got)
	}
}

func TestSnapshotCache_EnsureFresh_InvalidSession_RetriesOnceWithFreshLogin(t *testing.T) {
	fetcher := &fakeAccountsFetcher{fn: func(call int64, token string) ([]models.Account, error) {
		if token == "stale" {
			return nil, apperrors.New(apperrors.ErrInvalidSession, "invalid session")
		}
		return twoAccounts(), nil
	}}
	store := session.NewStore(nil)
	store.Set("ignored") // cleared on rejection; fakeSource hands out the real tokens
	source := &fakeSource{tokens: []string{"stale", "fresh"}}
	cache := NewSnapshotCache(store, source, fetcher, 30*time.Second, 5*time.Minute, time.Hour)

	accounts, err := cache.EnsureFresh(context.Background())
	if err != nil {
		t.Fatalf("EnsureFresh failed: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts after retry, got %d", len(accounts))
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("expected exactly 2 fetch attempts, got %d", got)
	}
	if got := store.Token(); got != "" {
		t.Errorf("expected rejected token cleared from store, got %q", got)
	}
}

func TestSnapshotCache_EnsureFresh_SessionRejectedTwice_GivesUp(t *testing.T) {
	fetcher := &fakeAccountsFetcher{fn: func(call int64, token string) ([]models.Account, error) {
		return nil, apperrors.New(apperrors.ErrInvalidSession, "invalid session")
	}}
	store := session.NewStore(nil)
	cache := NewSnapshotCache(store, &fakeSource{tokens: []string{"a", "b"}}, fetcher, 30*time.Second, 5*time.Minute, time.Hour)

	_, err := cache.EnsureFresh(context.Background())
	if err == nil {
		t.Fatal("expected error after double rejection")
	}
	if !apperrors.Is(err, apperrors.ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("expected exactly 2 fetch attempts, got %d", got)
	}
}

func TestSnapshotCache_EnsureFresh_Forbidden_SetsFetchBackoff(t *testing.T) {
	fetcher := &fakeAccountsFetcher{fn: func(call int64, token string) ([]models.Account, error) {
		return nil, apperrors.New(apperrors.ErrUpstreamForbidden, "403")
	}}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := session.NewStore(nil)
	store.SetClock(func() time.Time { return now })
	cache := NewSnapshotCache(store, &fakeSource{tokens: []string{"tok"}}, fetcher, 30*time.Second, 5*time.Minute, time.Hour)

	_, err := cache.EnsureFresh(context.Background())
	if !apperrors.IsForbidden(err) {
		t.Fatalf("expected forbidden error, got %v", err)
	}

	until, blocked := store.FetchBlocked()
	if !blocked {
		t.Fatal("expected fetch backoff active")
	}
	if want := now.Add(time.Hour); !until.Equal(want) {
		t.Errorf("expected deadline %v, got %v", want, until)
	}
}

func TestSnapshotCache_EnsureFresh_GenericFailure_SetsShortFetchBackoff(t *testing.T) {
	fetcher := &fakeAccountsFetcher{fn: func(call int64, token string) ([]models.Account, error) {
		return nil, apperrors.New(apperrors.ErrUpstream, "connection refused")
	}}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := session.NewStore(nil)
	store.SetClock(func() time.Time { return now })
	cache := NewSnapshotCache(store, &fakeSource{tokens: []string{"tok"}}, fetcher, 30*time.Second, 5*time.Minute, time.Hour)

	_, err := cache.EnsureFresh(context.Background())
	if !apperrors.Is(err, apperrors.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}

	until, blocked := store.FetchBlocked()
	if !blocked {
		t.Fatal("expected fetch backoff active after generic failure")
	}
	if want := now.Add(5 * time.Minute); !until.Equal(want) {
		t.Errorf("expected short-tier deadline %v, got %v", want, until)
	}

	// the deadline, not the tick cadence, now gates the next attempt
	if _, err := cache.EnsureFresh(context.Background()); !apperrors.IsAuthBlocked(err) {
		t.Fatalf("expected ErrAuthBlocked on the next attempt, got %v", err)
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("expected 1 upstream call, got %d", got)
	}
}

func TestSnapshotCache_EnsureFresh_SessionRejectedTwice_SetsShortFetchBackoff(t *testing.T) {
	fetcher := &fakeAccountsFetcher{fn: func(call int64, token string) ([]models.Account, error) {
		return nil, apperrors.New(apperrors.ErrInvalidSession, "invalid session")
	}}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := session.NewStore(nil)
	store.SetClock(func() time.Time { return now })
	cache := NewSnapshotCache(store, &fakeSource{tokens: []string{"a", "b"}}, fetcher, 30*time.Second, 5*time.Minute, time.Hour)

	if _, err := cache.EnsureFresh(context.Background()); err == nil {
		t.Fatal("expected error after double rejection")
	}

	until, blocked := store.FetchBlocked()
	if !blocked {
		t.Fatal("expected fetch backoff active after double rejection")
	}
	if want := now.Add(5 * time.Minute); !until.Equal(want) {
		t.Errorf("expected short-tier deadline %v, got %v", want, until)
	}
}

func TestSnapshotCache_EnsureFresh_BackoffActive_NoUpstreamCall(t *testing.T) {
	fetcher := &fakeAccountsFetcher{fn: func(call int64, token string) ([]models.Account, error) {
		return twoAccounts(), nil
	}}
	store := session.NewStore(nil)
	store.BlockFetch(time.Hour)
	cache := NewSnapshotCache(store, &fakeSource{tokens: []string{"tok"}}, fetcher, 30*time.Second, 5*time.Minute, time.Hour)

	_, err := cache.EnsureFresh(context.Background())
	if !apperrors.IsAuthBlocked(err) {
		t.Fatalf("expected ErrAuthBlocked, got %v", err)
	}
	if got := fetcher.calls.Load(); got != 0 {
		t.Errorf("expected 0 upstream calls during backoff, got %d", got)
	}
}

func TestSnapshotCache_EnsureFresh_RefreshFails_ServesStale(t *testing.T) {
	fetcher := &fakeAccountsFetcher{fn: func(call int64, token string) ([]models.Account, error) {
		if call == 1 {
			return twoAccounts(), nil
		}
		return nil, apperrors.New(apperrors.ErrUpstream, "down")
	}}
	store := session.NewStore(nil)
	cache := NewSnapshotCache(store, &fakeSource{tokens: []string{"tok"}}, fetcher, 30*time.Second, 5*time.Minute, time.Hour)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })

	if _, err := cache.EnsureFresh(context.Background()); err != nil {
		t.Fatalf("seed fetch failed: %v", err)
	}

	now = now.Add(time.Minute)
	accounts, err := cache.EnsureFresh(context.Background())
	if err != nil {
		t.Fatalf("expected stale fallback, got error: %v", err)
	}
	if len(accounts) != 2 {
		t.Errorf("expected stale snapshot, got %d accounts", len(accounts))
	}
}

func TestSnapshotCache_Current_Empty_ReportsMissing(t *testing.T) {
	store := session.NewStore(nil)
	cache := NewSnapshotCache(store, &fakeSource{tokens: []string{"tok"}}, &fakeAccountsFetcher{fn: func(int64, string) ([]models.Account, error) {
		return nil, nil
	}}, 30*time.Second, 5*time.Minute, time.Hour)

	if _, ok := cache.Current(); ok {
		t.Error("expected no snapshot before first fetch")
	}
}
