// Package result defines the uniform success/error shape returned by the gateways.
package result

import "net/http"

// Kind classifies a failure.
type Kind string

const (
	KindAlreadyRegistered    Kind = "already_registered"
	KindInvalidCredentials   Kind = "invalid_credentials"
	KindWeakPassword         Kind = "weak_password"
	KindRateLimited          Kind = "rate_limited"
	KindConfigurationError   Kind = "configuration_error"
	KindUnknown              Kind = "unknown"
	KindUploadFailed         Kind = "upload_failed"
	KindDeleteFailed         Kind = "delete_failed"
	KindListFailed           Kind = "list_failed"
	KindURLFailed            Kind = "url_failed"
	KindConfirmationRequired Kind = "confirmation_required"
	KindForbidden            Kind = "forbidden"
	KindBadRequest           Kind = "bad_request"
	KindUnauthenticated      Kind = "unauthenticated"
)

// Error is the failure payload of a Result.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Error implements the error interface so a failure can travel as a plain error.
func (e *Error) Error() string {
	return e.Message
}

// Result is either {success: true, data} or {success: false, error}.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Err     *Error `json:"error,omitempty"`
}

// Ok wraps data in a successful result.
func Ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// Fail builds a failed result.
func Fail[T any](kind Kind, message string) Result[T] {
	return Result[T]{Err: &Error{Kind: kind, Message: message}}
}

// FailWith builds a failed result from an existing error payload.
func FailWith[T any](err *Error) Result[T] {
	if err == nil {
		err = &Error{Kind: KindUnknown, Message: "unknown error"}
	}
	return Result[T]{Err: err}
}

// Unwrap returns the data or the failure; exactly one of them is meaningful.
func (r Result[T]) Unwrap() (T, *Error) {
	if r.Success {
		return r.Data, nil
	}
	var zero T
	if r.Err == nil {
		return zero, &Error{Kind: KindUnknown, Message: "unknown error"}
	}
	return zero, r.Err
}

// Match dispatches to exactly one of the handlers.
func Match[T, R any](r Result[T], onOk func(T) R, onErr func(*Error) R) R {
	data, err := r.Unwrap()
	if err != nil {
		return onErr(err)
	}
	return onOk(data)
}

// HTTPStatus maps a failure kind to the status code the API answers with.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindAlreadyRegistered:
		return http.StatusConflict
	case KindInvalidCredentials, KindUnauthenticated:
		return http.StatusUnauthorized
	case KindWeakPassword:
		return http.StatusUnprocessableEntity
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindConfigurationError:
		return http.StatusServiceUnavailable
	case KindConfirmationRequired:
		return http.StatusPreconditionRequired
	case KindForbidden:
		return http.StatusForbidden
	case KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
