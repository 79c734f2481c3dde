package workspace

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/abduss/mediadrive/internal/config"
	"github.com/abduss/mediadrive/internal/guard"
	"github.com/abduss/mediadrive/internal/session"
	"github.com/abduss/mediadrive/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, ttl time.Duration) *Registry {
	t.Helper()
	r, err := NewRegistry(config.SessionConfig{IdleTTL: ttl, AnonymousTTL: ttl}, storage.Unconfigured{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func signInTo(t *testing.T, ws *Workspace, userID string) {
	t.Helper()
	require.NoError(t, ws.Session.Restore(context.Background(), func(context.Context) (*session.Session, error) {
		return &session.Session{UserID: userID}, nil
	}))
}

func TestOpenCreatesOnceAndReuses(t *testing.T) {
	r := newTestRegistry(t, time.Hour)

	ws, created, err := r.Open("")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, ws.ID)
	assert.Equal(t, guard.Loading, ws.Guard.State())

	again, created, err := r.Open(ws.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, ws, again)
	assert.Equal(t, 1, r.Len())

	got, ok := r.Get(ws.ID)
	assert.True(t, ok)
	assert.Same(t, ws, got)
}

func TestOpenNeverAdoptsUnknownID(t *testing.T) {
	r := newTestRegistry(t, time.Hour)

	ws, created, err := r.Open("chosen-by-client")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, "chosen-by-client", ws.ID)

	_, ok := r.Get("chosen-by-client")
	assert.False(t, ok)
}

func TestConcurrentOpenYieldsOneWorkspace(t *testing.T) {
	r := newTestRegistry(t, time.Hour)
	first, _, err := r.Open("")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Workspace, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ws, _, err := r.Open(first.ID)
			if err == nil {
				results[i] = ws
			}
		}(i)
	}
	wg.Wait()

	for _, ws := range results {
		assert.Same(t, first, ws)
	}
	assert.Equal(t, 1, r.Len())
}

func TestWorkspaceWiresGuardToSession(t *testing.T) {
	r := newTestRegistry(t, time.Hour)
	ws, _, err := r.Open("")
	require.NoError(t, err)

	signInTo(t, ws, "u1")
	assert.Equal(t, guard.Authenticated, ws.Guard.State())

	ws.Session.Clear()
	assert.Equal(t, guard.Unauthenticated, ws.Guard.State())
}

func TestRotateMovesSessionAndDropsOldID(t *testing.T) {
	r := newTestRegistry(t, time.Hour)
	old, _, err := r.Open("")
	require.NoError(t, err)
	signInTo(t, old, "u1")

	next, err := r.Rotate(old)
	require.NoError(t, err)

	assert.NotEqual(t, old.ID, next.ID)
	require.NotNil(t, next.Session.Current())
	assert.Equal(t, "u1", next.Session.Current().UserID)
	assert.Equal(t, guard.Authenticated, next.Guard.State())

	_, ok := r.Get(old.ID)
	assert.False(t, ok)
	reopened, created, err := r.Open(old.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, old.ID, reopened.ID)
}

func TestIdleWorkspacesExpire(t *testing.T) {
	r := newTestRegistry(t, 50*time.Millisecond)
	_, _, err := r.Open("")
	require.NoError(t, err)

	// Len does not touch entries, so polling it leaves the idle timer alone.
	assert.Eventually(t, func() bool { return r.Len() == 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestAnonymousWorkspacesExpireFirst(t *testing.T) {
	r, err := NewRegistry(config.SessionConfig{IdleTTL: time.Hour, AnonymousTTL: 50 * time.Millisecond}, storage.Unconfigured{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	anon, _, err := r.Open("")
	require.NoError(t, err)
	kept, _, err := r.Open("")
	require.NoError(t, err)
	signInTo(t, kept, "u1")
	require.NoError(t, r.Keep(kept))

	assert.Eventually(t, func() bool { return r.Len() == 1 }, 2*time.Second, 20*time.Millisecond)
	_, ok := r.Get(kept.ID)
	assert.True(t, ok)
	_, ok = r.Get(anon.ID)
	assert.False(t, ok)
}

func TestWorkspaceCountIsCapped(t *testing.T) {
	r, err := NewRegistry(config.SessionConfig{IdleTTL: time.Hour, AnonymousTTL: time.Minute, MaxWorkspaces: 3}, storage.Unconfigured{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	kept, _, err := r.Open("")
	require.NoError(t, err)
	signInTo(t, kept, "u1")
	require.NoError(t, r.Keep(kept))

	for i := 0; i < 10; i++ {
		_, _, err := r.Open("")
		require.NoError(t, err)
	}

	assert.LessOrEqual(t, r.Len(), 3)
	_, ok := r.Get(kept.ID)
	assert.True(t, ok, "signed-in workspace outlives anonymous ones")
}

func TestRemoveAndGetMissing(t *testing.T) {
	r := newTestRegistry(t, time.Hour)
	ws, _, err := r.Open("")
	require.NoError(t, err)

	r.Remove(ws.ID)
	_, ok := r.Get(ws.ID)
	assert.False(t, ok)
	_, ok = r.Get("")
	assert.False(t, ok)
}

func TestCloseIsIdempotent(t *testing.T) {
	r := newTestRegistry(t, time.Hour)
	ws, _, err := r.Open("")
	require.NoError(t, err)

	ws.Close()
	ws.Close()
}
