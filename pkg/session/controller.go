// Package session owns the client-side stream session lifecycle.
//
// The controller is the single source of truth for "do we currently have a
// valid stream token". Every start request is a launch attempt identified
// by a monotonically increasing id; the result of an asynchronous token
// fetch is applied only if its originating attempt id is still current
// when it completes. A stale result is silently discarded, never applied,
// so rapid start/stop alternation can never resurrect an abandoned session.
package session

import (
	"context"
	"sync"

	"github.com/lumenwave/go-host/internal/log"
	"github.com/lumenwave/go-host/pkg/anam"
)

// Status is the controller's connection status.
type Status int

const (
	// StatusDisconnected means no token is held and no launch is pending.
	StatusDisconnected Status = iota

	// StatusConnecting means a token fetch is in flight.
	StatusConnecting

	// StatusAwaitingStream means a token is held and the stream bridge
	// has not yet reported a live connection.
	StatusAwaitingStream
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusAwaitingStream:
		return "awaiting-stream"
	default:
		return "disconnected"
	}
}

// TokenFetcher exchanges a persona configuration for a stream token.
type TokenFetcher interface {
	FetchToken(ctx context.Context, persona anam.PersonaConfig) (string, error)
}

// TokenFetcherFunc adapts a function to the TokenFetcher interface.
type TokenFetcherFunc func(ctx context.Context, persona anam.PersonaConfig) (string, error)

// FetchToken calls the wrapped function.
func (f TokenFetcherFunc) FetchToken(ctx context.Context, persona anam.PersonaConfig) (string, error) {
	return f(ctx, persona)
}

// Controller sequences token acquisition for stream sessions.
type Controller struct {
	fetcher TokenFetcher

	// OnTokenReady fires when a launch attempt completes while still
	// current. It runs outside the controller lock.
	OnTokenReady func(token string)

	mu        sync.Mutex
	attemptID uint64
	token     string
	status    Status
	lastErr   error
}

// NewController creates a controller that fetches tokens via the fetcher.
func NewController(fetcher TokenFetcher) *Controller {
	return &Controller{fetcher: fetcher}
}

// RequestStart begins a new launch attempt.
//
// Any prior in-flight attempt is invalidated immediately: its eventual
// result will compare against the new attempt id and be discarded. Callers
// are responsible for not invoking this redundantly for the same
// appearance event.
func (c *Controller) RequestStart(ctx context.Context, persona anam.PersonaConfig) {
	c.mu.Lock()
	c.attemptID++
	id := c.attemptID
	c.lastErr = nil
	c.status = StatusConnecting
	c.mu.Unlock()

	log.Debug("launch attempt started", "attempt", id)

	go c.fetch(ctx, id, persona)
}

// fetch performs the token exchange and applies the result iff the
// attempt is still current on completion.
func (c *Controller) fetch(ctx context.Context, id uint64, persona anam.PersonaConfig) {
	token, err := c.fetcher.FetchToken(ctx, persona)

	var ready func(string)

	c.mu.Lock()
	if c.attemptID != id {
		// Superseded by a newer start or a stop: discard silently.
		c.mu.Unlock()
		log.Debug("stale launch attempt discarded", "attempt", id)
		return
	}

	if err != nil {
		c.lastErr = err
		c.token = ""
		c.status = StatusDisconnected
		c.mu.Unlock()
		log.Warn("token fetch failed", "attempt", id, "error", err)
		return
	}

	c.token = token
	c.status = StatusAwaitingStream
	ready = c.OnTokenReady
	c.mu.Unlock()

	log.Info("stream token acquired", "attempt", id)

	if ready != nil {
		ready(token)
	}
}

// RequestStop tears down the session state and invalidates any in-flight
// launch attempt. Idempotent.
func (c *Controller) RequestStop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.attemptID++
	c.token = ""
	c.status = StatusDisconnected
	c.lastErr = nil
}

// Status returns the current connection status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Token returns the held stream token, empty when none.
func (c *Controller) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Err returns the error from the most recent still-current attempt,
// nil when the last attempt succeeded or was stopped.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}
