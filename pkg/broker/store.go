// Package broker issues and validates ephemeral server sessions.
//
// Sessions are opaque random identifiers held in a process-local table
// with a sliding expiration. Nothing is persisted: a restart invalidates
// every session by design. All table access is serialized under one mutex
// because validation performs a read-then-write expiry slide that must be
// atomic per key.
package broker

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// SessionTTL is the sliding session lifetime.
const SessionTTL = 24 * time.Hour

// idBytes is the entropy of a session id. 24 bytes = 192 bits.
const idBytes = 24

// Session is a server-side login session record.
type Session struct {
	ID        string
	ExpiresAt time.Time
	Username  string
}

// Store is the in-memory session table.
// Create one at startup and pass it to request handlers.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration

	// now is replaceable for expiry tests.
	now func() time.Time
}

// NewStore creates an empty session store with the default TTL.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      SessionTTL,
		now:      time.Now,
	}
}

// newSessionID generates a cryptographically random opaque id.
func newSessionID() string {
	buf := make([]byte, idBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic("broker: entropy source unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

// Create issues a new session for the optional username and returns its id.
func (s *Store) Create(username string) string {
	id := newSessionID()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[id] = &Session{
		ID:        id,
		ExpiresAt: s.now().Add(s.ttl),
		Username:  username,
	}
	return id
}

// Validate reports whether the id names a live session.
// A live session has its expiry slid forward by the full TTL; an expired
// session is purged on this check and can never validate again.
func (s *Store) Validate(id string) bool {
	if id == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	if sess.ExpiresAt.Before(s.now()) {
		delete(s.sessions, id)
		return false
	}

	sess.ExpiresAt = s.now().Add(s.ttl)
	return true
}

// Lookup returns a copy of the session record without sliding its expiry.
// Expired records are reported as absent.
func (s *Store) Lookup(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.ExpiresAt.Before(s.now()) {
		return Session{}, false
	}
	return *sess, true
}

// Delete removes the session if present.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of stored sessions, including not-yet-purged
// expired entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
