package storage

import (
	"context"
	"io"
)

// Unconfigured stands in when the store settings are missing. The service keeps
// running and every operation fails with its usual error kind.
type Unconfigured struct{}

func (Unconfigured) Strategy() Strategy { return StrategyNone }

func (Unconfigured) Key(userID, _ string) string { return directKey(userID) }

func (Unconfigured) List(_ context.Context, prefix string) ([]Object, error) {
	return nil, wrap(KindListFailed, prefix, ErrNotConfigured)
}

func (Unconfigured) Upload(_ context.Context, key string, _ io.Reader, _ int64, _ string) error {
	return wrap(KindUploadFailed, key, ErrNotConfigured)
}

func (Unconfigured) Delete(_ context.Context, key string) error {
	return wrap(KindDeleteFailed, key, ErrNotConfigured)
}

func (Unconfigured) URL(_ context.Context, key string) (string, error) {
	return "", wrap(KindURLFailed, key, ErrNotConfigured)
}
