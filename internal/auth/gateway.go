package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/abduss/mediadrive/internal/metrics"
	"github.com/abduss/mediadrive/internal/result"
	"github.com/abduss/mediadrive/internal/session"
	"go.uber.org/zap"
)

// RefreshWindow is how close to expiry a session gets renewed.
const RefreshWindow = time.Minute

// Empty is the payload of operations that only succeed or fail.
type Empty struct{}

// Gateway wraps a Provider so that every operation yields a result.Result and
// session changes land in the caller's session.Store.
type Gateway struct {
	provider   Provider
	procedures Procedures
	logger     *zap.Logger
	onDeleted  []func(ctx context.Context, userID string)
}

// NewGateway creates a Gateway. procedures may be nil, in which case account
// deletion reports a configuration error.
func NewGateway(provider Provider, procedures Procedures, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{provider: provider, procedures: procedures, logger: logger}
}

// OnAccountDeleted registers fn to run after a successful account deletion.
func (g *Gateway) OnAccountDeleted(fn func(ctx context.Context, userID string)) {
	g.onDeleted = append(g.onDeleted, fn)
}

// SignUp registers an account. When the provider confirms immediately the new
// session is stored; otherwise the identity reports a pending confirmation.
func (g *Gateway) SignUp(ctx context.Context, store *session.Store, email, password string) result.Result[Identity] {
	email, err := normalizeEmail(email)
	if err != nil {
		return g.fail("signup", err)
	}
	if password == "" {
		return g.fail("signup", ErrWeakPassword)
	}

	sess, err := g.provider.SignUp(ctx, email, password)
	if err != nil {
		return g.fail("signup", err)
	}
	metrics.ObserveAuth("signup", true)
	if sess == nil {
		return result.Ok(Identity{Email: email, ConfirmationPending: true})
	}
	store.Set(sess)
	return result.Ok(identityOf(sess))
}

// SignIn authenticates and stores the session.
func (g *Gateway) SignIn(ctx context.Context, store *session.Store, email, password string) result.Result[Identity] {
	email, err := normalizeEmail(email)
	if err != nil {
		return g.fail("signin", err)
	}
	if password == "" {
		return g.fail("signin", ErrInvalidCredentials)
	}

	sess, err := g.provider.SignIn(ctx, email, password)
	if err != nil {
		return g.fail("signin", err)
	}
	metrics.ObserveAuth("signin", true)
	store.Set(sess)
	return result.Ok(identityOf(sess))
}

// SignOut ends the session. Signing out without a session succeeds.
func (g *Gateway) SignOut(ctx context.Context, store *session.Store) result.Result[Empty] {
	sess := store.Current()
	if sess == nil {
		return result.Ok(Empty{})
	}
	if err := g.provider.SignOut(ctx, sess); err != nil {
		return result.FailWith[Empty](g.translate("signout", err))
	}
	metrics.ObserveAuth("signout", true)
	store.Clear()
	return result.Ok(Empty{})
}

// UpdatePassword changes the password of the signed-in user. The session is left as is.
func (g *Gateway) UpdatePassword(ctx context.Context, store *session.Store, newPassword string) result.Result[Empty] {
	sess := store.Current()
	if sess == nil {
		return result.FailWith[Empty](g.translate("update_password", ErrUnauthorized))
	}
	if len(newPassword) < minPasswordLength {
		return result.FailWith[Empty](g.translate("update_password", ErrWeakPassword))
	}
	if err := g.provider.UpdatePassword(ctx, sess, newPassword); err != nil {
		return result.FailWith[Empty](g.translate("update_password", err))
	}
	metrics.ObserveAuth("update_password", true)
	return result.Ok(Empty{})
}

// DeleteAccount calls the privileged delete_user procedure and clears the session.
func (g *Gateway) DeleteAccount(ctx context.Context, store *session.Store) result.Result[Empty] {
	sess := store.Current()
	if sess == nil {
		return result.FailWith[Empty](g.translate("delete_account", ErrUnauthorized))
	}
	if g.procedures == nil {
		return result.FailWith[Empty](g.translate("delete_account", ErrProcedureMissing))
	}
	if err := g.procedures.DeleteUser(ctx, sess); err != nil {
		return result.FailWith[Empty](g.translate("delete_account", err))
	}
	metrics.ObserveAuth("delete_account", true)
	g.logger.Info("account deleted", zap.String("user_id", sess.UserID))

	store.Clear()
	for _, fn := range g.onDeleted {
		fn(ctx, sess.UserID)
	}
	return result.Ok(Empty{})
}

// Refresh renews the session in store with its refresh token once it is
// within RefreshWindow of expiring. It reports whether the store now holds a
// renewed session. Providers without refresh support never renew.
func (g *Gateway) Refresh(ctx context.Context, store *session.Store) bool {
	r, ok := g.provider.(Refresher)
	if !ok {
		return false
	}
	sess := store.Current()
	if sess == nil || sess.RefreshToken == "" || sess.ExpiresAt.IsZero() {
		return false
	}
	if time.Until(sess.ExpiresAt) > RefreshWindow {
		return false
	}

	next, err := r.Refresh(ctx, sess.RefreshToken)
	if err != nil || next == nil || next.UserID != sess.UserID {
		metrics.ObserveAuth("refresh", false)
		g.logger.Warn("session refresh failed", zap.String("user_id", sess.UserID), zap.Error(err))
		return false
	}
	metrics.ObserveAuth("refresh", true)
	store.Set(next)
	return true
}

// Restorer resolves a persisted access token back into a session. A token the
// provider rejects restores nothing.
func (g *Gateway) Restorer(accessToken string) session.Restorer {
	return func(ctx context.Context) (*session.Session, error) {
		if accessToken == "" {
			return nil, nil
		}
		sess, err := g.provider.User(ctx, accessToken)
		if errors.Is(err, ErrUnauthorized) {
			return nil, nil
		}
		if err != nil {
			g.logger.Warn("session restore failed", zap.Error(err))
			return nil, err
		}
		return sess, nil
	}
}

func (g *Gateway) fail(op string, err error) result.Result[Identity] {
	return result.FailWith[Identity](g.translate(op, err))
}

func (g *Gateway) translate(op string, err error) *result.Error {
	rerr := Translate(err)
	metrics.ObserveAuth(op, false)
	if rerr.Kind == result.KindUnknown || rerr.Kind == result.KindConfigurationError {
		g.logger.Warn("auth operation failed", zap.String("operation", op), zap.String("kind", string(rerr.Kind)), zap.Error(err))
	} else {
		g.logger.Debug("auth operation rejected", zap.String("operation", op), zap.String("kind", string(rerr.Kind)))
	}
	return rerr
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func identityOf(sess *session.Session) Identity {
	return Identity{UserID: sess.UserID, Email: sess.Email, ExpiresAt: sess.ExpiresAt}
}
