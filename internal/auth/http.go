package auth

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/abduss/mediadrive/internal/result"
	"github.com/abduss/mediadrive/internal/session"
	"github.com/gin-gonic/gin"
)

// Env is what the handlers need from the hosting server: the caller's session
// store and a place to persist the access token between page loads.
type Env interface {
	Store(c *gin.Context) *session.Store
	Remember(c *gin.Context, sess *session.Session)
	Forget(c *gin.Context)
}

// RegisterRoutes mounts authentication endpoints under /auth. throttle guards
// the credential endpoints and protect the ones that need a session.
func RegisterRoutes(router *gin.RouterGroup, gateway *Gateway, env Env, throttle, protect gin.HandlerFunc) {
	handler := &httpHandler{gateway: gateway, env: env}
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/signup", throttle, handler.signUp)
		authGroup.POST("/signin", throttle, handler.signIn)
		authGroup.POST("/signout", handler.signOut)
		authGroup.PUT("/password", protect, handler.updatePassword)
		authGroup.DELETE("/account", protect, handler.deleteAccount)
	}
}

type httpHandler struct {
	gateway *Gateway
	env     Env
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type passwordRequest struct {
	Password string `json:"password" binding:"required"`
}

type deleteAccountRequest struct {
	Confirm bool `json:"confirm"`
}

func (h *httpHandler) signUp(c *gin.Context) {
	var req credentialsRequest
	if !bind(c, &req) {
		return
	}

	store := h.env.Store(c)
	res := h.gateway.SignUp(c.Request.Context(), store, req.Email, req.Password)
	if res.Success && !res.Data.ConfirmationPending {
		h.env.Remember(c, store.Current())
	}
	respond(c, res, http.StatusCreated)
}

func (h *httpHandler) signIn(c *gin.Context) {
	var req credentialsRequest
	if !bind(c, &req) {
		return
	}

	store := h.env.Store(c)
	res := h.gateway.SignIn(c.Request.Context(), store, req.Email, req.Password)
	if res.Success {
		h.env.Remember(c, store.Current())
	}
	respond(c, res, http.StatusOK)
}

func (h *httpHandler) signOut(c *gin.Context) {
	res := h.gateway.SignOut(c.Request.Context(), h.env.Store(c))
	if res.Success {
		h.env.Forget(c)
	}
	respond(c, res, http.StatusOK)
}

func (h *httpHandler) updatePassword(c *gin.Context) {
	var req passwordRequest
	if !bind(c, &req) {
		return
	}
	respond(c, h.gateway.UpdatePassword(c.Request.Context(), h.env.Store(c), req.Password), http.StatusOK)
}

func (h *httpHandler) deleteAccount(c *gin.Context) {
	var req deleteAccountRequest
	// an empty body is an unconfirmed request
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, result.Fail[Empty](result.KindBadRequest, err.Error()))
		return
	}
	if !req.Confirm {
		respond(c, result.Fail[Empty](result.KindConfirmationRequired, "Confirm account deletion to continue."), http.StatusOK)
		return
	}

	res := h.gateway.DeleteAccount(c.Request.Context(), h.env.Store(c))
	if res.Success {
		h.env.Forget(c)
	}
	respond(c, res, http.StatusOK)
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, result.Fail[Empty](result.KindBadRequest, err.Error()))
		return false
	}
	return true
}

func respond[T any](c *gin.Context, res result.Result[T], okStatus int) {
	if _, err := res.Unwrap(); err != nil {
		c.JSON(err.HTTPStatus(), res)
		return
	}
	c.JSON(okStatus, res)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
