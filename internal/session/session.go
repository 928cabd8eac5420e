// Package session holds the per-connection state of the feed client: the
// server-assigned client id, the reconnect attempt counter, the backoff
// table and an on-disk store for the client id.
package session

import "sync"

// Session is the mutable state owned by one connection manager. Only the
// manager's worker writes it; reads are safe from any goroutine.
type Session struct {
	mu       sync.RWMutex
	clientID int
	hasID    bool
	attempt  int
}

func New() *Session {
	return &Session{}
}

// ClientID returns the id from the last welcome frame, if any.
func (s *Session) ClientID() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientID, s.hasID
}

// SetClientID records the id carried by a welcome frame. It reports whether
// the stored value changed.
func (s *Session) SetClientID(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := !s.hasID || s.clientID != id
	s.clientID = id
	s.hasID = true
	return changed
}

// ClearClientID forgets the id. Called when a new socket opens so a ping is
// never answered with the id of a previous connection.
func (s *Session) ClearClientID() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientID = 0
	s.hasID = false
}

func (s *Session) Attempt() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attempt
}

// NextAttempt increments the attempt counter and returns the new value.
func (s *Session) NextAttempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt++
	return s.attempt
}

// ResetAttempt sets the attempt counter back to zero after a successful open.
func (s *Session) ResetAttempt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt = 0
}
