package gallery

import (
	"context"
	"errors"
	"fmt"

	"github.com/abduss/mediadrive/internal/storage"
)

// Purge deletes every object under userID's prefix and reports how many went.
func Purge(ctx context.Context, objects storage.Gateway, userID string) (int, error) {
	if userID == "" {
		return 0, ErrNoSession
	}

	listed, err := objects.List(ctx, storage.UserPrefix(userID))
	if err != nil {
		return 0, fmt.Errorf("list objects for purge: %w", err)
	}

	var (
		removed int
		errs    []error
	)
	for _, o := range listed {
		if !storage.OwnedBy(o.Key, userID) {
			continue
		}
		if err := objects.Delete(ctx, o.Key); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
