// Package session holds the authenticated identity of one browser and notifies
// dependents when it changes.
package session

import (
	"context"
	"sync"
	"time"
)

// Session is the identity of the signed-in user.
type Session struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	ExpiresAt    time.Time `json:"expires_at"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
}

// Expired reports whether the session is past its expiry at now.
// A zero ExpiresAt never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Restorer resolves the session persisted by a previous page load.
// A nil session with a nil error means there is nothing to restore.
type Restorer func(ctx context.Context) (*Session, error)

// Store is the single source of truth for one browser's identity.
// It starts in the loading state until the first restore attempt completes.
type Store struct {
	mu        sync.Mutex
	current   *Session
	loading   bool
	restoring bool
	restored  chan struct{}
	version   int
	subs      map[int]func(*Session)
	nextSubID int
	nowFunc   func() time.Time
}

// NewStore returns a store in the loading state.
func NewStore() *Store {
	return &Store{
		loading:  true,
		restored: make(chan struct{}),
		subs:     make(map[int]func(*Session)),
		nowFunc:  time.Now,
	}
}

// Loading reports whether the first restore attempt is still pending.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Current returns a copy of the active session or nil. An expired session is
// destroyed on observation and subscribers are told about it.
func (s *Store) Current() *Session {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil
	}
	if s.current.Expired(s.nowFunc()) {
		s.current = nil
		s.version++
		subs := s.snapshotSubs()
		s.mu.Unlock()
		notify(subs, nil)
		return nil
	}
	cp := *s.current
	s.mu.Unlock()
	return &cp
}

// Subscribe registers fn for every change, including the end of loading.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(*Session)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Restore runs restorer once. Callers arriving while a restore is in flight
// return immediately and keep seeing Loading() == true until it finishes.
// A failing restorer ends loading without a session.
func (s *Store) Restore(ctx context.Context, restorer Restorer) error {
	s.mu.Lock()
	if !s.loading || s.restoring {
		s.mu.Unlock()
		return nil
	}
	s.restoring = true
	startVersion := s.version
	s.mu.Unlock()

	sess, err := restorer(ctx)
	if err != nil {
		sess = nil
	}
	if sess != nil && sess.Expired(s.nowFunc()) {
		sess = nil
	}

	s.mu.Lock()
	if s.version == startVersion {
		s.current = cloneSession(sess)
	} else {
		// a sign-in or sign-out landed while restoring; it wins
		sess = cloneSession(s.current)
	}
	s.loading = false
	s.restoring = false
	close(s.restored)
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs, sess)
	return err
}

// Restored is closed once the first restore attempt has completed.
func (s *Store) Restored() <-chan struct{} {
	return s.restored
}

// Set records a signed-in session. It also ends loading when no restore ran.
func (s *Store) Set(sess *Session) {
	s.mu.Lock()
	s.current = cloneSession(sess)
	s.version++
	s.endLoadingLocked()
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs, cloneSession(sess))
}

// Clear drops the session (sign-out, account deletion).
func (s *Store) Clear() {
	s.Set(nil)
}

func (s *Store) endLoadingLocked() {
	if s.loading && !s.restoring {
		s.loading = false
		close(s.restored)
	}
}

func (s *Store) snapshotSubs() []func(*Session) {
	subs := make([]func(*Session), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(*Session), sess *Session) {
	for _, fn := range subs {
		fn(cloneSession(sess))
	}
}

func cloneSession(sess *Session) *Session {
	if sess == nil {
		return nil
	}
	cp := *sess
	return &cp
}
