// Package gateway exposes the booking and reschedule wizards as a
// session-scoped HTTP API for thin mobile clients. Sessions live only in
// memory: wizard state is transient by contract and owned by exactly one
// client, so there is nothing to persist or share.
package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-booking/internal/wizard"
)

// session holds exactly one wizard, booking or reschedule.
type session struct {
	id         string
	booking    *wizard.BookingWizard
	reschedule *wizard.RescheduleWizard
	lastUsed   time.Time
}

// SessionStore keeps live wizard sessions with an idle TTL. Expired
// sessions are purged lazily on access.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a store with the given idle TTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// PutBooking registers a booking wizard and returns its session ID.
func (s *SessionStore) PutBooking(w *wizard.BookingWizard) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()
	id := uuid.NewString()
	s.sessions[id] = &session{id: id, booking: w, lastUsed: s.now()}
	return id
}

// PutReschedule registers a reschedule wizard and returns its session ID.
func (s *SessionStore) PutReschedule(w *wizard.RescheduleWizard) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()
	id := uuid.NewString()
	s.sessions[id] = &session{id: id, reschedule: w, lastUsed: s.now()}
	return id
}

// Booking returns the booking wizard for a session, if it exists and has
// not expired.
func (s *SessionStore) Booking(id string) (*wizard.BookingWizard, bool) {
	sess, ok := s.touch(id)
	if !ok || sess.booking == nil {
		return nil, false
	}
	return sess.booking, true
}

// Reschedule returns the reschedule wizard for a session.
func (s *SessionStore) Reschedule(id string) (*wizard.RescheduleWizard, bool) {
	sess, ok := s.touch(id)
	if !ok || sess.reschedule == nil {
		return nil, false
	}
	return sess.reschedule, true
}

// Drop removes a session; used when a flow completes or is abandoned.
func (s *SessionStore) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()
	return len(s.sessions)
}

func (s *SessionStore) touch(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.lastUsed = s.now()
	return sess, true
}

func (s *SessionStore) purgeLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}
