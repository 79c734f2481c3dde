package server

import (
	"context"
	"net/http"
	"time"

	"github.com/abduss/mediadrive/internal/auth"
	"github.com/abduss/mediadrive/internal/config"
	"github.com/abduss/mediadrive/internal/gallery"
	"github.com/abduss/mediadrive/internal/guard"
	"github.com/abduss/mediadrive/internal/logger"
	"github.com/abduss/mediadrive/internal/result"
	"github.com/abduss/mediadrive/internal/session"
	"github.com/abduss/mediadrive/internal/workspace"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	workspaceCookie = "md_sid"
	accessCookie    = "md_access"

	workspaceKey   = "workspace"
	restoreTimeout = 10 * time.Second
)

// workspaceEnv binds each request to the workspace named by its cookie and
// persists the access token so a new workspace can restore its session.
type workspaceEnv struct {
	registry *workspace.Registry
	auth     *auth.Gateway
	cfg      config.SessionConfig
	logger   *zap.Logger
}

func newWorkspaceEnv(registry *workspace.Registry, gateway *auth.Gateway, cfg config.SessionConfig, l *zap.Logger) *workspaceEnv {
	return &workspaceEnv{registry: registry, auth: gateway, cfg: cfg, logger: l}
}

func (e *workspaceEnv) attach(c *gin.Context) {
	id, _ := c.Cookie(workspaceCookie)
	ws, created, err := e.registry.Open(id)
	if err != nil {
		e.logger.Error("open workspace", zap.Error(err), zap.String("correlation_id", logger.CorrelationID(c)))
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			result.Fail[any](result.KindUnknown, "Something went wrong. Please try again."))
		return
	}
	e.setCookie(c, workspaceCookie, ws.ID, e.cfg.IdleTTL)

	if created {
		e.restore(c, ws)
	}
	if e.auth.Refresh(c.Request.Context(), ws.Session) {
		e.persistToken(c, ws.Session.Current())
	}

	c.Set(workspaceKey, ws)
	if sess := ws.Session.Current(); sess != nil {
		c.Set(logger.UserIDKey, sess.UserID)
	}
	c.Next()
}

// restore runs the first restore of a fresh workspace. It outlives a client
// that disconnects mid-request so the store never stays loading.
func (e *workspaceEnv) restore(c *gin.Context, ws *workspace.Workspace) {
	token, _ := c.Cookie(accessCookie)
	if token == "" {
		token = auth.BearerToken(c.GetHeader("Authorization"))
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), restoreTimeout)
	defer cancel()

	if err := ws.Session.Restore(ctx, e.auth.Restorer(token)); err != nil {
		e.logger.Warn("restore session", zap.Error(err), zap.String("workspace", ws.ID))
		return
	}
	if ws.Session.Current() == nil {
		if token != "" {
			e.Forget(c)
		}
		return
	}
	if err := e.registry.Keep(ws); err != nil {
		e.logger.Warn("keep workspace", zap.Error(err), zap.String("workspace", ws.ID))
	}
}

func (e *workspaceEnv) workspace(c *gin.Context) *workspace.Workspace {
	value, ok := c.Get(workspaceKey)
	if !ok {
		return nil
	}
	ws, _ := value.(*workspace.Workspace)
	return ws
}

func (e *workspaceEnv) guard(c *gin.Context) *guard.Guard {
	if ws := e.workspace(c); ws != nil {
		return ws.Guard
	}
	return nil
}

// Store implements auth.Env.
func (e *workspaceEnv) Store(c *gin.Context) *session.Store {
	return e.workspace(c).Session
}

// Controller implements gallery.Env.
func (e *workspaceEnv) Controller(c *gin.Context) *gallery.Controller {
	return e.workspace(c).Gallery
}

// Remember moves a freshly signed-in session into a workspace with a new id
// and persists its access token.
func (e *workspaceEnv) Remember(c *gin.Context, sess *session.Session) {
	if sess == nil || sess.AccessToken == "" {
		e.Forget(c)
		return
	}

	if ws := e.workspace(c); ws != nil {
		next, err := e.registry.Rotate(ws)
		if err != nil {
			e.logger.Error("rotate workspace", zap.Error(err), zap.String("workspace", ws.ID))
		} else {
			c.Set(workspaceKey, next)
			e.setCookie(c, workspaceCookie, next.ID, e.cfg.IdleTTL)
		}
	}
	e.persistToken(c, sess)
}

// persistToken keeps the access token until the session expires.
func (e *workspaceEnv) persistToken(c *gin.Context, sess *session.Session) {
	if sess == nil || sess.AccessToken == "" {
		return
	}
	c.Set(logger.UserIDKey, sess.UserID)

	ttl := e.cfg.IdleTTL
	if !sess.ExpiresAt.IsZero() {
		ttl = time.Until(sess.ExpiresAt)
	}
	e.setCookie(c, accessCookie, sess.AccessToken, ttl)
}

// Forget drops the persisted access token.
func (e *workspaceEnv) Forget(c *gin.Context) {
	e.setCookie(c, accessCookie, "", -1)
}

func (e *workspaceEnv) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	maxAge := -1
	if ttl > 0 {
		maxAge = int(ttl.Seconds())
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", e.cfg.CookieDomain, e.cfg.CookieSecure, true)
}
