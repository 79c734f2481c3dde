package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abduss/mediadrive/internal/result"
)

var (
	// ErrEmailAlreadyExists indicates the email is already registered.
	ErrEmailAlreadyExists = errors.New("user already registered")
	// ErrInvalidCredentials is returned when authentication fails.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrWeakPassword rejects passwords below the provider's minimum.
	ErrWeakPassword = fmt.Errorf("password should be at least %d characters", minPasswordLength)
	// ErrRateLimited is returned when the provider throttles the caller.
	ErrRateLimited = errors.New("rate limited, retry after a short wait")
	// ErrProcedureMissing signals that the privileged delete_user procedure is absent.
	ErrProcedureMissing = errors.New("function public.delete_user not found")
	// ErrUserNotFound signals that the user could not be located.
	ErrUserNotFound = errors.New("user not found")
	// ErrUnauthorized represents missing or invalid authentication tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidEmail rejects input that is not an email address.
	ErrInvalidEmail = errors.New("invalid email address")
)

// Messages shown to users for the known failure kinds.
const (
	MsgAlreadyRegistered  = "User already registered."
	MsgInvalidCredentials = "Invalid credentials."
	MsgWeakPassword       = "Password must be at least 6 characters."
	MsgRateLimited        = "Too many attempts. Try again later."
	MsgConfiguration      = "Configuration error: account deletion function not found."
	MsgInvalidEmail       = "Enter a valid email address."
	MsgSignedOut          = "You are not signed in."
)

// ProviderError is a non-2xx answer from the identity service.
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("identity service returned status %d", e.Status)
}

// Translate converts any provider or transport error into a user-facing failure.
// Unknown messages are echoed with an "Error: " prefix.
func Translate(err error) *result.Error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrEmailAlreadyExists):
		return &result.Error{Kind: result.KindAlreadyRegistered, Message: MsgAlreadyRegistered}
	case errors.Is(err, ErrInvalidCredentials):
		return &result.Error{Kind: result.KindInvalidCredentials, Message: MsgInvalidCredentials}
	case errors.Is(err, ErrWeakPassword):
		return &result.Error{Kind: result.KindWeakPassword, Message: MsgWeakPassword}
	case errors.Is(err, ErrRateLimited):
		return &result.Error{Kind: result.KindRateLimited, Message: MsgRateLimited}
	case errors.Is(err, ErrProcedureMissing):
		return &result.Error{Kind: result.KindConfigurationError, Message: MsgConfiguration}
	case errors.Is(err, ErrInvalidEmail):
		return &result.Error{Kind: result.KindBadRequest, Message: MsgInvalidEmail}
	case errors.Is(err, ErrUnauthorized):
		return &result.Error{Kind: result.KindUnauthenticated, Message: MsgSignedOut}
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.Code {
		case "user_already_exists", "email_exists":
			return Translate(ErrEmailAlreadyExists)
		case "invalid_credentials":
			return Translate(ErrInvalidCredentials)
		case "weak_password":
			return Translate(ErrWeakPassword)
		case "over_request_rate_limit", "over_email_send_rate_limit":
			return Translate(ErrRateLimited)
		case "PGRST202":
			return Translate(ErrProcedureMissing)
		}
		if pe.Status == 429 {
			return Translate(ErrRateLimited)
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "User already registered"):
		return Translate(ErrEmailAlreadyExists)
	case strings.Contains(msg, "Invalid login credentials"):
		return Translate(ErrInvalidCredentials)
	case strings.Contains(msg, "Password should be at least"):
		return Translate(ErrWeakPassword)
	case strings.Contains(msg, "Retry after"), strings.Contains(strings.ToLower(msg), "rate limit"):
		return Translate(ErrRateLimited)
	case strings.Contains(msg, "function public.delete_user"), strings.Contains(msg, "Could not find the function"):
		return Translate(ErrProcedureMissing)
	}
	return &result.Error{Kind: result.KindUnknown, Message: "Error: " + msg}
}
