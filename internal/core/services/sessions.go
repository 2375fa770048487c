// internal/core/services/sessions.go
package services

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ammerola/inventory-bot/internal/core/domain"
	"github.com/ammerola/inventory-bot/internal/core/ports"
)

// MemorySessionStore keeps sessions in process memory, keyed by requester.
// A session idle for longer than ttl is treated as absent.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]*domain.Session

	locksMu sync.Mutex
	locks   map[int64]*requesterLock

	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

type requesterLock struct {
	mu   sync.Mutex
	refs int
}

var _ ports.SessionStore = (*MemorySessionStore)(nil)

// SessionOption configures a MemorySessionStore
type SessionOption func(*MemorySessionStore)

// WithClock overrides the time source
func WithClock(now func() time.Time) SessionOption {
	return func(s *MemorySessionStore) {
		s.now = now
	}
}

// NewMemorySessionStore creates a session store. A zero ttl disables expiry.
func NewMemorySessionStore(ttl time.Duration, logger *slog.Logger, opts ...SessionOption) *MemorySessionStore {
	s := &MemorySessionStore{
		sessions: make(map[int64]*domain.Session),
		locks:    make(map[int64]*requesterLock),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger.With(slog.String("service", "sessions")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store's current time
func (s *MemorySessionStore) Now() time.Time {
	return s.now()
}

// Get returns a copy of the live session for the requester, or nil
func (s *MemorySessionStore) Get(requesterID int64) *domain.Session {
	s.mu.RLock()
	sess, ok := s.sessions[requesterID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	if sess.Expired(s.now(), s.ttl) {
		s.mu.Lock()
		if cur, ok := s.sessions[requesterID]; ok && cur == sess {
			delete(s.sessions, requesterID)
		}
		s.mu.Unlock()
		return nil
	}
	return sess.Clone()
}

// Put stores the session and refreshes its idle timer
func (s *MemorySessionStore) Put(sess *domain.Session) {
	stored := sess.Clone()
	stored.UpdatedAt = s.now()

	s.mu.Lock()
	s.sessions[sess.RequesterID] = stored
	s.mu.Unlock()
}

// Delete drops the requester's session
func (s *MemorySessionStore) Delete(requesterID int64) {
	s.mu.Lock()
	delete(s.sessions, requesterID)
	s.mu.Unlock()
}

// Lock serializes work for one requester. Locks for distinct requesters are independent.
func (s *MemorySessionStore) Lock(requesterID int64) func() {
	s.locksMu.Lock()
	l, ok := s.locks[requesterID]
	if !ok {
		l = &requesterLock{}
		s.locks[requesterID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			s.locksMu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(s.locks, requesterID)
			}
			s.locksMu.Unlock()
		})
	}
}

// EvictExpired removes every session idle for longer than the ttl
func (s *MemorySessionStore) EvictExpired(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if sess.Expired(now, s.ttl) {
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Debug("evicted expired sessions", slog.Int("count", evicted))
	}
	return evicted
}

// Len returns the number of stored sessions, including ones not yet evicted
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
