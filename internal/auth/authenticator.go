// Package auth acquires upstream sessions. At most one login call is in
// flight at any time; concurrent callers share its outcome.
package auth

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"

	apperrors "equity_monitor/internal/errors"
	"equity_monitor/internal/session"
)

// LoginClient performs the credential exchange against the upstream.
type LoginClient interface {
	Login(ctx context.Context, email, password string) (string, error)
}

// Options tune the authenticator's rate limiting and backoff tiers.
type Options struct {
	// MinLoginInterval is the minimum spacing between login attempts.
	MinLoginInterval time.Duration
	// ShortBackoff is applied after a generic login failure.
	ShortBackoff time.Duration
	// LongBackoff is applied after the upstream answers 403.
	LongBackoff time.Duration
}

// loginCall is one in-flight login shared by all waiters.
type loginCall struct {
	done  chan struct{}
	token string
	err   error
}

// Authenticator owns the login flow: existing-session reuse, backoff
// deadlines, attempt spacing, and single-flight coalescing.
type Authenticator struct {
	client   LoginClient
	store    *session.Store
	email    string
	password string
	opts     Options

	limiter *rate.Limiter

	mu       chan struct{} // buffered size 1, guards inflight
	inflight *loginCall
}

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(client LoginClient, store *session.Store, email, password string, opts Options) *Authenticator {
	a := &Authenticator{
		client:   client,
		store:    store,
		email:    email,
		password: password,
		opts:     opts,
		limiter:  rate.NewLimiter(rate.Every(opts.MinLoginInterval), 1),
		mu:       make(chan struct{}, 1),
	}
	a.mu <- struct{}{}
	return a
}

// EnsureSession returns a usable session token, reusing the stored one
// when present and logging in otherwise. Concurrent callers during a
// login share the single attempt's outcome.
func (a *Authenticator) EnsureSession(ctx context.Context) (string, error) {
	if token := a.store.Token(); token != "" {
		return token, nil
	}

	if until, blocked := a.store.LoginBlocked(); blocked {
		return "", apperrors.Newf(apperrors.ErrAuthBlocked,
			"login suppressed until %s", until.Format(time.RFC3339))
	}

	call, owner := a.joinOrStartCall()
	if owner {
		a.runLogin(ctx, call)
	}

	select {
	case <-call.done:
		return call.token, call.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// joinOrStartCall returns the in-flight call if one exists, or registers
// a new one with the caller as its owner.
func (a *Authenticator) joinOrStartCall() (*loginCall, bool) {
	<-a.mu
	defer func() { a.mu <- struct{}{} }()

	if a.inflight != nil {
		return a.inflight, false
	}
	call := &loginCall{done: make(chan struct{})}
	a.inflight = call
	return call, true
}

// runLogin executes the login attempt and publishes the result to all
// waiters. Only the call's owner runs this.
func (a *Authenticator) runLogin(ctx context.Context, call *loginCall) {
	defer func() {
		close(call.done)
		<-a.mu
		a.inflight = nil
		a.mu <- struct{}{}
	}()

	// spacing between attempts, independent of the backoff tiers
	if !a.limiter.Allow() {
		call.err = apperrors.New(apperrors.ErrRateLimited,
			"minimum interval between login attempts not elapsed")
		return
	}

	// the token may have appeared while we queued behind the lock
	if token := a.store.Token(); token != "" {
		call.token = token
		return
	}

	log.Printf("[Auth] logging in as %s", a.email)
	token, err := a.client.Login(ctx, a.email, a.password)
	if err != nil {
		call.err = err
		if apperrors.IsForbidden(err) {
			log.Printf("[Auth] login forbidden, backing off %s", a.opts.LongBackoff)
			a.store.BlockLogin(a.opts.LongBackoff)
		} else {
			log.Printf("[Auth] login failed, backing off %s: %v", a.opts.ShortBackoff, err)
			a.store.BlockLogin(a.opts.ShortBackoff)
		}
		return
	}

	a.store.Set(token)
	if err := a.store.Persist(); err != nil {
		log.Printf("[Auth] persisting session failed: %v", err)
	}
	log.Printf("[Auth] session acquired")
	call.token = token
}
