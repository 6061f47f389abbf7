package services

import (
	"context"
	"errors"

	"github.com/tbourn/karigpt-broker/internal/domain"
)

// RecordStore is the persistence contract of the pipeline. Lookups that
// match nothing return an error satisfying errors.Is(err, domain.ErrNotFound)
// or a nil record with a nil error.
type RecordStore interface {
	Insert(ctx context.Context, rec *domain.RequestRecord) error
	FindByKey(ctx context.Context, key string) (*domain.RequestRecord, error)
	FindLatestByUser(ctx context.Context, userID string) (*domain.RequestRecord, error)
	FindLatest(ctx context.Context) (*domain.RequestRecord, error)
	ScanAll(ctx context.Context) ([]domain.RequestRecord, error)
}

// absent folds "no record" into (nil, nil).
func absent(rec *domain.RequestRecord, err error) (*domain.RequestRecord, error) {
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}
