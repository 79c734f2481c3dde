// Package guard gates protected views on the state of a session store.
package guard

import (
	"sync"

	"github.com/abduss/mediadrive/internal/session"
)

// State of the route guard.
type State int

const (
	// Loading is the initial state, held until the store's first restore completes.
	Loading State = iota
	// Authenticated renders the protected content.
	Authenticated
	// Unauthenticated redirects to the sign-in view.
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Evaluate derives the guard state from a store.
func Evaluate(store *session.Store) State {
	if store == nil {
		return Unauthenticated
	}
	if store.Loading() {
		return Loading
	}
	if store.Current() == nil {
		return Unauthenticated
	}
	return Authenticated
}

// Guard tracks a store and re-evaluates on every change. It has no terminal state.
type Guard struct {
	mu          sync.RWMutex
	store       *session.Store
	state       State
	unsubscribe func()
}

// New attaches a guard to store.
func New(store *session.Store) *Guard {
	g := &Guard{store: store, state: Loading}
	g.unsubscribe = store.Subscribe(func(*session.Session) {
		g.refresh()
	})
	g.refresh()
	return g
}

// State returns the latest evaluated state. Session expiry is picked up here
// because Evaluate observes the store.
func (g *Guard) State() State {
	g.refresh()
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Close detaches the guard from its store.
func (g *Guard) Close() {
	if g.unsubscribe != nil {
		g.unsubscribe()
	}
}

func (g *Guard) refresh() {
	next := Evaluate(g.store)
	g.mu.Lock()
	g.state = next
	g.mu.Unlock()
}
