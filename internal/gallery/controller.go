// Package gallery drives the upload, listing and deletion of a user's media.
package gallery

import (
	"context"
	"sync"
	"time"

	"github.com/abduss/mediadrive/internal/metrics"
	"github.com/abduss/mediadrive/internal/session"
	"github.com/abduss/mediadrive/internal/storage"
	"go.uber.org/zap"
)

// StatusDisplay is how long a finished upload status stays visible.
const StatusDisplay = 3 * time.Second

// Controller holds the gallery state of one browser workspace.
type Controller struct {
	store   *session.Store
	objects storage.Gateway
	logger  *zap.Logger

	mu          sync.Mutex
	userID      string
	items       []storage.Object
	loaded      bool
	status      *UploadStatus
	statusSeq   uint64
	statusTimer *time.Timer
	openMenu    string
	clearAfter  time.Duration
	unsubscribe func()
}

// NewController binds a controller to store and follows its changes: a
// different user resets the gallery.
func NewController(store *session.Store, objects storage.Gateway, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		store:      store,
		objects:    objects,
		logger:     logger,
		clearAfter: StatusDisplay,
	}
	c.unsubscribe = store.Subscribe(c.onSession)
	return c
}

func (c *Controller) onSession(sess *session.Session) {
	userID := ""
	if sess != nil {
		userID = sess.UserID
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if userID == c.userID {
		return
	}
	c.userID = userID
	c.items = nil
	c.loaded = false
	c.openMenu = ""
	c.setStatusLocked(nil)
}

// Mount resolves the signed-in user and lists their files.
func (c *Controller) Mount(ctx context.Context) error {
	sess := c.store.Current()
	if sess == nil {
		return ErrNoSession
	}
	c.onSession(sess)
	return c.refresh(ctx, sess.UserID)
}

// refresh re-lists userID's files. A result for a user who is no longer
// current is dropped.
func (c *Controller) refresh(ctx context.Context, userID string) error {
	listed, err := c.objects.List(ctx, storage.UserPrefix(userID))
	if err != nil {
		c.logger.Warn("list media failed", zap.String("user_id", userID), zap.Error(err))
		return err
	}

	owned := make([]storage.Object, 0, len(listed))
	for _, o := range listed {
		if storage.OwnedBy(o.Key, userID) {
			owned = append(owned, o)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID != userID {
		return nil
	}
	c.items = owned
	c.loaded = true
	return nil
}

// View returns the gallery, listing first when it has not been loaded for the
// current user. Items whose URL cannot be derived are shown without one.
func (c *Controller) View(ctx context.Context) (View, error) {
	sess := c.store.Current()
	if sess == nil {
		return View{}, ErrNoSession
	}
	c.onSession(sess)

	c.mu.Lock()
	loaded := c.loaded
	c.mu.Unlock()
	if !loaded {
		if err := c.refresh(ctx, sess.UserID); err != nil {
			return View{}, err
		}
	}

	c.mu.Lock()
	objects := append([]storage.Object(nil), c.items...)
	view := View{
		UserID:   c.userID,
		Status:   copyStatus(c.status),
		OpenMenu: c.openMenu,
	}
	c.mu.Unlock()

	view.Items = make([]MediaItem, 0, len(objects))
	for _, o := range objects {
		u, err := c.objects.URL(ctx, o.Key)
		if err != nil {
			c.logger.Warn("resolve media url failed", zap.String("key", o.Key), zap.Error(err))
		}
		name := DisplayName(o.Key)
		view.Items = append(view.Items, MediaItem{
			Key:  o.Key,
			Name: name,
			ID:   o.ETag,
			URL:  u,
			Kind: Classify(name),
		})
	}
	return view, nil
}

// Upload stores one file under a fresh key and re-lists the gallery.
func (c *Controller) Upload(ctx context.Context, f File) (string, error) {
	sess := c.store.Current()
	if sess == nil {
		return "", ErrNoSession
	}
	if f.Body == nil {
		return "", ErrNoFile
	}
	c.onSession(sess)

	c.setStatus(&UploadStatus{Kind: StatusUploading, Message: MsgUploading})

	key := c.objects.Key(sess.UserID, f.Name)
	err := c.objects.Upload(ctx, key, f.Body, f.Size, f.ContentType)
	metrics.ObserveUpload(string(c.objects.Strategy()), err)
	if err != nil {
		c.logger.Warn("upload failed", zap.String("user_id", sess.UserID), zap.String("key", key), zap.Error(err))
		c.setStatus(&UploadStatus{Kind: StatusError, Message: MsgUploadFailed})
		return "", err
	}

	if err := c.refresh(ctx, sess.UserID); err != nil {
		c.logger.Warn("re-list after upload failed", zap.String("user_id", sess.UserID), zap.Error(err))
	}
	c.setStatus(&UploadStatus{Kind: StatusSuccess, Message: MsgUploadSuccess})
	return key, nil
}

type uploadSigner interface {
	SignUpload(ctx context.Context, key, contentType string) (storage.SignedRequest, error)
}

// SignUpload issues a presigned PUT so the browser can upload name itself.
// The caller refreshes the gallery once the PUT has finished.
func (c *Controller) SignUpload(ctx context.Context, name, contentType string) (storage.SignedRequest, error) {
	sess := c.store.Current()
	if sess == nil {
		return storage.SignedRequest{}, ErrNoSession
	}
	signer, ok := c.objects.(uploadSigner)
	if !ok {
		return storage.SignedRequest{}, ErrSigningUnsupported
	}
	return signer.SignUpload(ctx, c.objects.Key(sess.UserID, name), contentType)
}

// Refresh re-lists the current user's files.
func (c *Controller) Refresh(ctx context.Context) error {
	sess := c.store.Current()
	if sess == nil {
		return ErrNoSession
	}
	c.onSession(sess)
	return c.refresh(ctx, sess.UserID)
}

// Delete removes key after an explicit confirmation. On success the item leaves
// the gallery at once; on failure the gallery is untouched.
func (c *Controller) Delete(ctx context.Context, key string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	sess := c.store.Current()
	if sess == nil {
		return ErrNoSession
	}
	if !storage.OwnedBy(key, sess.UserID) {
		return ErrForeignKey
	}

	err := c.objects.Delete(ctx, key)
	metrics.ObserveDelete(err)
	if err != nil {
		c.logger.Warn("delete failed", zap.String("key", key), zap.Error(err))
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, o := range c.items {
		if o.Key == key {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			break
		}
	}
	if c.openMenu == key {
		c.openMenu = ""
	}
	return nil
}

// OpenMenu opens the action menu of key, closing any other.
func (c *Controller) OpenMenu(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range c.items {
		if o.Key == key {
			c.openMenu = key
			return nil
		}
	}
	return ErrUnknownItem
}

// CloseMenu closes the open menu, if any.
func (c *Controller) CloseMenu() {
	c.mu.Lock()
	c.openMenu = ""
	c.mu.Unlock()
}

// Status returns the current upload status or nil.
func (c *Controller) Status() *UploadStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyStatus(c.status)
}

// Close detaches the controller from its session store.
func (c *Controller) Close() {
	c.unsubscribe()
	c.mu.Lock()
	if c.statusTimer != nil {
		c.statusTimer.Stop()
	}
	c.mu.Unlock()
}

func (c *Controller) setStatus(s *UploadStatus) {
	c.mu.Lock()
	c.setStatusLocked(s)
	c.mu.Unlock()
}

// setStatusLocked replaces the status. Terminal statuses clear themselves after
// clearAfter unless a newer status replaced them first.
func (c *Controller) setStatusLocked(s *UploadStatus) {
	c.statusSeq++
	c.status = s
	if c.statusTimer != nil {
		c.statusTimer.Stop()
		c.statusTimer = nil
	}
	if s == nil || s.Kind == StatusUploading {
		return
	}

	seq := c.statusSeq
	c.statusTimer = time.AfterFunc(c.clearAfter, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.statusSeq == seq {
			c.status = nil
		}
	})
}

func copyStatus(s *UploadStatus) *UploadStatus {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
