package auth

import (
	"time"

	"github.com/google/uuid"
)

// User is an account held by the local provider.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenPair bundles access and refresh tokens.
type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// Identity is the public view of a signed-in or freshly registered user.
type Identity struct {
	UserID              string    `json:"user_id,omitempty"`
	Email               string    `json:"email"`
	ExpiresAt           time.Time `json:"expires_at"`
	ConfirmationPending bool      `json:"confirmation_pending,omitempty"`
}
