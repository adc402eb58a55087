package repoinmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/medflow/medflow-auth/sessions"
)

var _ sessions.Store = (*Store)(nil)

// Store is an in-memory sessions.Store. The map is guarded by a read-write
// lock while each session carries its own mutex, so mutations of the same
// session serialize without blocking operations on distinct sessions.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	nowTime func() time.Time
}

type entry struct {
	mu      sync.Mutex
	session sessions.Session
}

// Option modifies the Store instance.
type Option func(*Store)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

func New(options ...Option) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Store) Create(_ context.Context, session sessions.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if !session.ExpiresAt.After(session.IssuedAt) {
		return fmt.Errorf("session expiry must be after issue time")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[session.ID]; ok {
		return fmt.Errorf("session %q already exists", session.ID)
	}
	s.entries[session.ID] = &entry{session: session}
	return nil
}

func (s *Store) Get(_ context.Context, sessionID string) (sessions.Session, error) {
	e, ok := s.lookup(sessionID)
	if !ok {
		return sessions.Session{}, sessions.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s.expireLazily(e)
	return e.session, nil
}

func (s *Store) Touch(_ context.Context, sessionID string, at time.Time) error {
	e, ok := s.lookup(sessionID)
	if !ok {
		return sessions.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.LastSeenAt = at
	return nil
}

func (s *Store) Transition(_ context.Context, sessionID string, to sessions.State) (sessions.Session, error) {
	e, ok := s.lookup(sessionID)
	if !ok {
		return sessions.Session{}, sessions.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s.expireLazily(e)

	if !e.session.State.CanTransition(to) {
		return e.session, sessions.ErrIllegalTransition
	}
	e.session.State = to
	return e.session, nil
}

func (s *Store) Revoke(_ context.Context, sessionID string) error {
	e, ok := s.lookup(sessionID)
	if !ok {
		return sessions.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s.expireLazily(e)

	switch e.session.State {
	case sessions.StateRevoked, sessions.StateExpired:
		return nil // already unusable, logout is idempotent
	}
	e.session.State = sessions.StateRevoked
	return nil
}

func (s *Store) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, e := range s.entries {
		// Take the entry lock for the read: Touch and Transition write
		// e.session under it after releasing the map lock.
		e.mu.Lock()
		expired := e.session.ExpiredAt(now)
		e.mu.Unlock()
		if expired {
			delete(s.entries, id)
			purged++
		}
	}
	return purged, nil
}

func (s *Store) lookup(sessionID string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[sessionID]
	return e, ok
}

// expireLazily records the time-driven active -> expired edge. Caller holds
// the entry lock.
func (s *Store) expireLazily(e *entry) {
	if e.session.State == sessions.StateActive && e.session.ExpiredAt(s.nowTime()) {
		e.session.State = sessions.StateExpired
	}
}
