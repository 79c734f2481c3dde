package storage

import (
	"errors"
	"fmt"
)

// Kind classifies a storage failure.
type Kind string

const (
	KindUploadFailed Kind = "upload_failed"
	KindDeleteFailed Kind = "delete_failed"
	KindListFailed   Kind = "list_failed"
	KindURLFailed    Kind = "url_failed"
)

// ErrNotConfigured is wrapped by every error of the unconfigured gateway.
var ErrNotConfigured = errors.New("object storage is not configured")

// Error is returned by every Gateway operation.
type Error struct {
	Kind Kind
	Key  string
	Err  error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Kind, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a storage error, or "" for any other error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

func wrap(kind Kind, key string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Key: key, Err: err}
}
