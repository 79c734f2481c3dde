package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreStartsLoading(t *testing.T) {
	store := NewStore()

	assert.True(t, store.Loading())
	assert.Nil(t, store.Current())
}

func TestRestoreDeliversSessionToSubscribers(t *testing.T) {
	store := NewStore()

	var got []*Session
	store.Subscribe(func(s *Session) { got = append(got, s) })

	err := store.Restore(context.Background(), func(ctx context.Context) (*Session, error) {
		return &Session{UserID: "u1", Email: "a@example.com"}, nil
	})
	require.NoError(t, err)

	assert.False(t, store.Loading())
	require.Len(t, got, 1)
	require.NotNil(t, got[0])
	assert.Equal(t, "u1", got[0].UserID)
	assert.Equal(t, "u1", store.Current().UserID)

	select {
	case <-store.Restored():
	default:
		t.Fatalf("expected restored channel to be closed")
	}
}

func TestRestoreFailureEndsLoadingWithoutSession(t *testing.T) {
	store := NewStore()

	var calls int
	var last *Session
	store.Subscribe(func(s *Session) { calls++; last = s })

	err := store.Restore(context.Background(), func(ctx context.Context) (*Session, error) {
		return nil, errors.New("identity service down")
	})

	require.Error(t, err)
	assert.False(t, store.Loading())
	assert.Nil(t, store.Current())
	assert.Equal(t, 1, calls)
	assert.Nil(t, last)
}

func TestRestoreRunsOnce(t *testing.T) {
	store := NewStore()
	var runs int

	restorer := func(ctx context.Context) (*Session, error) {
		runs++
		return nil, nil
	}
	require.NoError(t, store.Restore(context.Background(), restorer))
	require.NoError(t, store.Restore(context.Background(), restorer))

	assert.Equal(t, 1, runs)
}

func TestConcurrentCallerSeesLoadingWhileRestoring(t *testing.T) {
	store := NewStore()
	entered := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = store.Restore(context.Background(), func(ctx context.Context) (*Session, error) {
			close(entered)
			<-release
			return &Session{UserID: "u1"}, nil
		})
	}()

	<-entered
	require.NoError(t, store.Restore(context.Background(), func(ctx context.Context) (*Session, error) {
		t.Fatalf("second restore must not run")
		return nil, nil
	}))
	assert.True(t, store.Loading())

	close(release)
	wg.Wait()
	assert.False(t, store.Loading())
	assert.Equal(t, "u1", store.Current().UserID)
}

func TestSignInDuringRestoreWins(t *testing.T) {
	store := NewStore()
	entered := make(chan struct{})
	release := make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = store.Restore(context.Background(), func(ctx context.Context) (*Session, error) {
			close(entered)
			<-release
			return nil, nil
		})
	}()

	<-entered
	store.Set(&Session{UserID: "fresh"})
	close(release)
	<-done

	require.NotNil(t, store.Current())
	assert.Equal(t, "fresh", store.Current().UserID)
}

func TestSetAndClearNotify(t *testing.T) {
	store := NewStore()
	var seen []string
	store.Subscribe(func(s *Session) {
		if s == nil {
			seen = append(seen, "none")
			return
		}
		seen = append(seen, s.UserID)
	})

	store.Set(&Session{UserID: "u1"})
	assert.False(t, store.Loading())
	store.Clear()

	assert.Equal(t, []string{"u1", "none"}, seen)
	assert.Nil(t, store.Current())
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	store := NewStore()
	var calls int
	unsubscribe := store.Subscribe(func(*Session) { calls++ })

	store.Set(&Session{UserID: "u1"})
	unsubscribe()
	unsubscribe()
	store.Clear()

	assert.Equal(t, 1, calls)
}

func TestExpiredSessionIsDestroyedOnObservation(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore()
	store.nowFunc = func() time.Time { return now }

	var cleared bool
	store.Subscribe(func(s *Session) {
		if s == nil {
			cleared = true
		}
	})

	store.Set(&Session{UserID: "u1", ExpiresAt: now.Add(time.Minute)})
	require.NotNil(t, store.Current())

	now = now.Add(2 * time.Minute)
	assert.Nil(t, store.Current())
	assert.True(t, cleared)
}

func TestCurrentReturnsCopy(t *testing.T) {
	store := NewStore()
	store.Set(&Session{UserID: "u1"})

	s := store.Current()
	s.UserID = "mutated"

	assert.Equal(t, "u1", store.Current().UserID)
}
