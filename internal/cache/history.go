package cache

import (
	"context"
	"log"
	"sync"
	"time"

	apperrors "equity_monitor/internal/errors"
	"equity_monitor/internal/models"
	"equity_monitor/internal/session"
)

// HistoryFetcher fetches one account's trade history from the upstream.
type HistoryFetcher interface {
	GetHistory(ctx context.Context, sessionToken string, accountID int64) ([]models.HistoryEntry, error)
}

// historyEntry is one account's cached history.
type historyEntry struct {
	entries     []models.HistoryEntry
	fetchedAt   time.Time
	refreshing  bool
	refreshDone chan struct{}
}

// HistoryCache caches trade history per account id.
type HistoryCache struct {
	sessions session.Blocker
	source   SessionSource
	fetcher  HistoryFetcher

	ttl          time.Duration
	shortBackoff time.Duration
	longBackoff  time.Duration

	mu   sync.Mutex
	byID map[int64]*historyEntry
	now  func() time.Time
}

// NewHistoryCache creates a new HistoryCache.
func NewHistoryCache(sessions session.Blocker, source SessionSource, fetcher HistoryFetcher, ttl, shortBackoff, longBackoff time.Duration) *HistoryCache {
	return &HistoryCache{
		sessions:     sessions,
		source:       source,
		fetcher:      fetcher,
		ttl:          ttl,
		shortBackoff: shortBackoff,
		longBackoff:  longBackoff,
		byID:         make(map[int64]*historyEntry),
		now:          time.Now,
	}
}

// Get returns the account's trade history, refreshing it when the cached
// copy is older than the TTL. A failed refresh falls back to the stale
// copy when one exists.
func (c *HistoryCache) Get(ctx context.Context, accountID int64) ([]models.HistoryEntry, error) {
	for {
		c.mu.Lock()
		entry, ok := c.byID[accountID]
		if !ok {
			entry = &historyEntry{}
			c.byID[accountID] = entry
		}
		if entry.entries != nil && c.now().Sub(entry.fetchedAt) < c.ttl {
			entries := entry.entries
			c.mu.Unlock()
			return entries, nil
		}
		if entry.refreshing {
			if entry.entries != nil {
				entries := entry.entries
				c.mu.Unlock()
				return entries, nil
			}
			done := entry.refreshDone
			c.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		entry.refreshing = true
		entry.refreshDone = make(chan struct{})
		c.mu.Unlock()
		break
	}

	entries, err := c.refresh(ctx, accountID)

	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.byID[accountID]
	entry.refreshing = false
	close(entry.refreshDone)

	if err != nil {
		if entry.entries != nil {
			log.Printf("[Cache] history refresh for account %d failed, serving stale: %v", accountID, err)
			return entry.entries, nil
		}
		return nil, err
	}

	entry.entries = entries
	entry.fetchedAt = c.now()
	return entry.entries, nil
}

// refresh performs one history fetch with the same rejected-session
// retry discipline as the snapshot cache.
func (c *HistoryCache) refresh(ctx context.Context, accountID int64) ([]models.HistoryEntry, error) {
	if until, blocked := c.sessions.FetchBlocked(); blocked {
		return nil, apperrors.Newf(apperrors.ErrAuthBlocked,
			"fetch suppressed until %s", until.Format(time.RFC3339))
	}

	token, err := c.source.EnsureSession(ctx)
	if err != nil {
		return nil, c.backOff(err)
	}

	entries, err := c.fetcher.GetHistory(ctx, token, accountID)
	if err == nil {
		return entries, nil
	}

	if apperrors.IsInvalidSession(err) {
		log.Printf("[Cache] session rejected during history fetch, re-authenticating")
		c.sessions.Clear()

		token, err = c.source.EnsureSession(ctx)
		if err != nil {
			return nil, c.backOff(err)
		}
		entries, err = c.fetcher.GetHistory(ctx, token, accountID)
		if err == nil {
			return entries, nil
		}
		if apperrors.IsInvalidSession(err) {
			c.sessions.Clear()
			err = apperrors.Wrap(apperrors.ErrUpstream, "fresh session rejected twice", err)
		}
	}

	return nil, c.backOff(err)
}

// backOff applies the same failed-refresh tiering as the snapshot
// cache: long for forbidden, short for any other upstream failure.
func (c *HistoryCache) backOff(err error) error {
	switch {
	case apperrors.IsForbidden(err):
		log.Printf("[Cache] history fetch forbidden, backing off %s", c.longBackoff)
		c.sessions.BlockFetch(c.longBackoff)
	case apperrors.IsAuthBlocked(err) || apperrors.IsRateLimited(err):
	default:
		log.Printf("[Cache] history fetch failed, backing off %s: %v", c.shortBackoff, err)
		c.sessions.BlockFetch(c.shortBackoff)
	}
	return err
}

// SetClock overrides the cache's clock. Tests only.
func (c *HistoryCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
