package auth

import (
	"context"

	"github.com/abduss/mediadrive/internal/session"
)

// Provider is the identity service boundary.
type Provider interface {
	// SignUp returns a nil session when the account awaits email confirmation.
	SignUp(ctx context.Context, email, password string) (*session.Session, error)
	SignIn(ctx context.Context, email, password string) (*session.Session, error)
	SignOut(ctx context.Context, sess *session.Session) error
	UpdatePassword(ctx context.Context, sess *session.Session, newPassword string) error
	// User resolves the session behind an access token.
	User(ctx context.Context, accessToken string) (*session.Session, error)
}

// Refresher is implemented by providers that can renew a session from its
// refresh token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*session.Session, error)
}

// Procedures invokes privileged server-side procedures on behalf of a session.
type Procedures interface {
	// DeleteUser removes the account. It returns ErrProcedureMissing when the
	// procedure is not installed.
	DeleteUser(ctx context.Context, sess *session.Session) error
}
