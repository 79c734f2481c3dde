// Package workspace keeps the per-browser state: its session store, route
// guard and gallery controller.
package workspace

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abduss/mediadrive/internal/config"
	"github.com/abduss/mediadrive/internal/gallery"
	"github.com/abduss/mediadrive/internal/guard"
	"github.com/abduss/mediadrive/internal/session"
	"github.com/abduss/mediadrive/internal/storage"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v2"
	"go.uber.org/zap"
)

// Workspace is everything one browser owns.
type Workspace struct {
	ID      string
	Session *session.Store
	Guard   *guard.Guard
	Gallery *gallery.Controller

	closeOnce sync.Once
}

func newWorkspace(id string, objects storage.Gateway, logger *zap.Logger) *Workspace {
	store := session.NewStore()
	return &Workspace{
		ID:      id,
		Session: store,
		Guard:   guard.New(store),
		Gallery: gallery.NewController(store, objects, logger.With(zap.String("workspace", id))),
	}
}

// Close detaches the guard and the controller from the store.
func (w *Workspace) Close() {
	w.closeOnce.Do(func() {
		w.Guard.Close()
		w.Gallery.Close()
	})
}

// Registry maps workspace ids to workspaces and evicts idle ones. Ids are
// only ever minted here; an id the registry does not know is never adopted.
type Registry struct {
	mu           sync.Mutex
	cache        *ttlcache.Cache
	idleTTL      time.Duration
	anonymousTTL time.Duration
	objects      storage.Gateway
	logger       *zap.Logger
}

// NewRegistry creates a registry. Workspaces without a session expire after
// cfg.AnonymousTTL, the others after cfg.IdleTTL without access. When
// cfg.MaxWorkspaces is reached the workspace closest to expiry is evicted.
func NewRegistry(cfg config.SessionConfig, objects storage.Gateway, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	anonymousTTL := cfg.AnonymousTTL
	if anonymousTTL <= 0 || anonymousTTL > cfg.IdleTTL {
		anonymousTTL = cfg.IdleTTL
	}

	cache := ttlcache.NewCache()
	if err := cache.SetTTL(cfg.IdleTTL); err != nil {
		return nil, fmt.Errorf("set workspace ttl: %w", err)
	}
	cache.SkipTTLExtensionOnHit(false)
	if cfg.MaxWorkspaces > 0 {
		cache.SetCacheSizeLimit(cfg.MaxWorkspaces)
	}
	cache.SetExpirationReasonCallback(func(id string, reason ttlcache.EvictionReason, value interface{}) {
		if ws, ok := value.(*Workspace); ok {
			ws.Close()
		}
		logger.Debug("workspace evicted", zap.String("workspace", id), zap.Int("reason", int(reason)))
	})

	return &Registry{
		cache:        cache,
		idleTTL:      cfg.IdleTTL,
		anonymousTTL: anonymousTTL,
		objects:      objects,
		logger:       logger,
	}, nil
}

// NewID returns a fresh opaque workspace id.
func NewID() string {
	return uuid.NewString()
}

// Get returns the workspace for id and refreshes its idle timer.
func (r *Registry) Get(id string) (*Workspace, bool) {
	if id == "" {
		return nil, false
	}
	value, err := r.cache.Get(id)
	if err != nil {
		return nil, false
	}
	ws, ok := value.(*Workspace)
	return ws, ok
}

// Open returns the workspace for id. When id is empty or unknown a new
// anonymous workspace is made under a fresh id; created reports that case,
// and a new workspace still has to restore its session.
func (r *Registry) Open(id string) (ws *Workspace, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id != "" {
		value, err := r.cache.Get(id)
		if err == nil {
			if ws, ok := value.(*Workspace); ok {
				return ws, false, nil
			}
		} else if !errors.Is(err, ttlcache.ErrNotFound) {
			return nil, false, fmt.Errorf("lookup workspace: %w", err)
		}
	}

	ws, err = r.addLocked(r.anonymousTTL)
	if err != nil {
		return nil, false, err
	}
	return ws, true, nil
}

// Keep moves ws onto the signed-in idle TTL once it holds a session.
func (r *Registry) Keep(ws *Workspace) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.cache.Get(ws.ID); err != nil {
		return fmt.Errorf("lookup workspace: %w", err)
	}
	if err := r.cache.SetWithTTL(ws.ID, ws, r.idleTTL); err != nil {
		return fmt.Errorf("store workspace: %w", err)
	}
	return nil
}

// Rotate moves the session of ws into a workspace under a fresh id and drops
// ws, so an id known before sign-in is worthless afterwards.
func (r *Registry) Rotate(ws *Workspace) (*Workspace, error) {
	sess := ws.Session.Current()

	r.mu.Lock()
	next, err := r.addLocked(r.idleTTL)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	next.Session.Set(sess)
	r.Remove(ws.ID)
	ws.Close()
	return next, nil
}

func (r *Registry) addLocked(ttl time.Duration) (*Workspace, error) {
	ws := newWorkspace(NewID(), r.objects, r.logger)
	if err := r.cache.SetWithTTL(ws.ID, ws, ttl); err != nil {
		ws.Close()
		return nil, fmt.Errorf("store workspace: %w", err)
	}
	return ws, nil
}

// Remove drops a workspace immediately.
func (r *Registry) Remove(id string) {
	_ = r.cache.Remove(id)
}

// Len reports the number of live workspaces.
func (r *Registry) Len() int {
	return r.cache.Count()
}

// Close evicts every workspace and stops the expiry loop.
func (r *Registry) Close() error {
	return r.cache.Close()
}
