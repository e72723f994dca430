// Package session owns the shared upstream session token and the backoff
// deadlines that govern re-authentication. All mutation goes through the
// Store; other components only read.
package session

import (
	"log"
	"sync"
	"time"
)

// Recorder persists the session token across restarts.
type Recorder interface {
	Save(rec Record) error
	Load() (*Record, error)
}

// Record is the durable shape of a persisted session.
type Record struct {
	Token   string
	SavedAt time.Time
}

// Blocker is the subset of Store the caches need: dropping a rejected
// token and managing the fetch backoff deadline.
type Blocker interface {
	Clear()
	BlockFetch(d time.Duration)
	FetchBlocked() (time.Time, bool)
}

// Store holds the current session token, its acquisition timestamp, and
// the two independent backoff deadlines.
type Store struct {
	mu         sync.Mutex
	token      string
	acquiredAt time.Time

	loginBlockedUntil time.Time
	fetchBlockedUntil time.Time

	recorder Recorder
	now      func() time.Time
}

// NewStore creates a Store backed by the given recorder. The recorder may
// be nil, in which case persistence is a no-op.
func NewStore(recorder Recorder) *Store {
	return &Store{
		recorder: recorder,
		now:      time.Now,
	}
}

// Token returns the current session token, or "" if none is held.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Set stores a freshly acquired session token.
func (s *Store) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.acquiredAt = s.now()
}

// Clear drops the in-memory token. Called when a downstream call reports
// the token as invalid; the persisted copy is left alone so a restart
// rediscovers validity lazily.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.acquiredAt = time.Time{}
}

// Persist writes the current token to durable storage.
func (s *Store) Persist() error {
	s.mu.Lock()
	token, acquiredAt := s.token, s.acquiredAt
	s.mu.Unlock()

	if s.recorder == nil || token == "" {
		return nil
	}
	return s.recorder.Save(Record{Token: token, SavedAt: acquiredAt})
}

// Load populates the in-memory token from durable storage, if a record
// exists. Validity is not checked here; it is discovered on first use.
// Invoked once at process start.
func (s *Store) Load() error {
	if s.recorder == nil {
		return nil
	}
	rec, err := s.recorder.Load()
	if err != nil {
		return err
	}
	if rec == nil || rec.Token == "" {
		return nil
	}

	s.mu.Lock()
	s.token = rec.Token
	s.acquiredAt = rec.SavedAt
	s.mu.Unlock()

	log.Printf("[Session] restored persisted session from %s", rec.SavedAt.Format(time.RFC3339))
	return nil
}

// BlockLogin sets the login backoff deadline.
func (s *Store) BlockLogin(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginBlockedUntil = s.now().Add(d)
}

// BlockFetch sets the fetch backoff deadline.
func (s *Store) BlockFetch(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchBlockedUntil = s.now().Add(d)
}

// LoginBlocked reports whether a login backoff deadline is active, and
// the deadline itself.
func (s *Store) LoginBlocked() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginBlockedUntil, s.now().Before(s.loginBlockedUntil)
}

// FetchBlocked reports whether a fetch backoff deadline is active, and
// the deadline itself.
func (s *Store) FetchBlocked() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchBlockedUntil, s.now().Before(s.fetchBlockedUntil)
}

// Blocked reports whether either backoff deadline is active and returns
// the later of the active deadlines.
func (s *Store) Blocked() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var until time.Time
	if now.Before(s.loginBlockedUntil) {
		until = s.loginBlockedUntil
	}
	if now.Before(s.fetchBlockedUntil) && s.fetchBlockedUntil.After(until) {
		until = s.fetchBlockedUntil
	}
	return until, !until.IsZero()
}

// ClearBackoffs resets both backoff deadlines. Only the manual
// set-session override calls this; successful logins do not.
func (s *Store) ClearBackoffs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginBlockedUntil = time.Time{}
	s.fetchBlockedUntil = time.Time{}
}

// SetClock overrides the store's clock. Tests only.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
