// Package cache holds the TTL-bounded copies of upstream data. Readers
// always get the last good payload; refreshes happen at most once per
// TTL window and never stampede.
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

// SessionSource yields a usable session token, logging in when needed.
type SessionSource interface {
	EnsureSession(ctx context.Context) (string, error)
}

// AccountsFetcher fetches the account snapshot from the upstream.
type AccountsFetcher interface {
	GetAccounts(ctx context.Context, sessionToken string) ([]models.Account, error)
}

// SnapshotCache caches the full account list.
type SnapshotCache struct {
	sessions session.Blocker
	source   SessionSource
	fetcher  AccountsFetcher

	ttl          time.Duration
	shortBackoff time.Duration
	longBackoff  time.Duration

	mu          sync.Mutex
	accounts    []models.Account
	fetchedAt   time.Time
	refreshing  bool
	refreshDone chan struct{}
	now         func() time.Time
}

// NewSnapshotCache creates a new SnapshotCache.
func NewSnapshotCache(sessions session.Blocker, source SessionSource, fetcher AccountsFetcher, ttl, shortBackoff, longBackoff time.Duration) *SnapshotCache {
	return &SnapshotCache{
		sessions:     sessions,
		source:       source,
		fetcher:      fetcher,
		ttl:          ttl,
		shortBackoff: shortBackoff,
		longBackoff:  longBackoff,
		now:          time.Now,
	}
}

// EnsureFresh returns the account snapshot, refreshing it first when the
// cached copy is older than the TTL. When a refresh fails but an earlier
// snapshot exists, the stale snapshot is returned instead of the error.
func (c *SnapshotCache) EnsureFresh(ctx context.Context) ([]models.Account, error) {
	for {
		c.mu.Lock()
		if c.accounts != nil && c.now().Sub(c.fetchedAt) < c.ttl {
			accounts := c.accounts
			c.mu.Unlock()
			return accounts, nil
		}
		if c.refreshing {
			if c.accounts != nil {
				// a refresh is already underway; stale is good enough
				accounts := c.accounts
				c.mu.Unlock()
				return accounts, nil
			}
			done := c.refreshDone
			c.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		c.refreshing = true
		c.refreshDone = make(chan struct{})
		c.mu.Unlock()
		break
	}

	accounts, err := c.refresh(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshing = false
	close(c.refreshDone)

	if err != nil {
		if c.accounts != nil {
			log.Printf("[Cache] snapshot refresh failed, serving stale: %v", err)
			return c.accounts, nil
		}
		return nil, err
	}

	c.accounts = accounts
	c.fetchedAt = c.now()
	return c.accounts, nil
}

// Current returns the cached snapshot without refreshing, plus whether
// any snapshot exists at all.
func (c *SnapshotCache) Current() ([]models.Account, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accounts, c.accounts != nil
}

// FetchedAt returns when the current snapshot was taken.
func (c *SnapshotCache) FetchedAt() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchedAt, c.accounts != nil
}

// refresh performs one fetch cycle. A rejected session is cleared and the
// fetch retried once with a fresh login; a second rejection gives up so a
// broken upstream cannot spin us in a login loop.
func (c *SnapshotCache) refresh(ctx context.Context) ([]models.Account, error) {
	if until, blocked := c.sessions.FetchBlocked(); blocked {
		return nil, apperrors.Newf(apperrors.ErrAuthBlocked,
			"fetch suppressed until %s", until.Format(time.RFC3339))
	}

	token, err := c.source.EnsureSession(ctx)
	if err != nil {
		return nil, c.backOff(err)
	}

	accounts, err := c.fetcher.GetAccounts(ctx, token)
	if err == nil {
		return accounts, nil
	}

	if apperrors.IsInvalidSession(err) {
		log.Printf("[Cache] session rejected, re-authenticating")
		c.sessions.Clear()

		token, err = c.source.EnsureSession(ctx)
		if err != nil {
			return nil, c.backOff(err)
		}
		accounts, err = c.fetcher.GetAccounts(ctx, token)
		if err == nil {
			return accounts, nil
		}
		if apperrors.IsInvalidSession(err) {
			c.sessions.Clear()
			err = apperrors.Wrap(apperrors.ErrUpstream, "fresh session rejected twice", err)
		}
	}

	return nil, c.backOff(err)
}

// backOff sets the fetch backoff tier for a failed refresh: long for
// forbidden, short for any other upstream failure. Suppression signals
// (an already-active backoff, the login attempt spacing) set nothing.
func (c *SnapshotCache) backOff(err error) error {
	switch {
	case apperrors.IsForbidden(err):
		log.Printf("[Cache] snapshot fetch forbidden, backing off %s", c.longBackoff)
		c.sessions.BlockFetch(c.longBackoff)
	case apperrors.IsAuthBlocked(err) || apperrors.IsRateLimited(err):
	default:
		log.Printf("[Cache] snapshot fetch failed, backing off %s: %v", c.shortBackoff, err)
		c.sessions.BlockFetch(c.shortBackoff)
	}
	return err
}

// SetClock overrides the cache's clock. Tests only.
func (c *SnapshotCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
