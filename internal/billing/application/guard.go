package application

import (
	"context"
	"errors"

	billing "water-billing/internal/billing/domain"
)

// LiveBatchGuard admits at most one live batch per
// (region, financial year, scheme, batch type). The check and the create
// that follows must be treated as a single admission step; the storage
// layer is expected to hold a unique constraint on the same tuple.
type LiveBatchGuard struct {
	batches billing.BatchRepository
}

// NewLiveBatchGuard constructs a guard.
func NewLiveBatchGuard(batches billing.BatchRepository) (*LiveBatchGuard, error) {
	if batches == nil {
		return nil, errors.New("live batch guard: nil batch repository")
	}
	return &LiveBatchGuard{batches: batches}, nil
}

// LiveBatchExists reports whether a batch in a live status already exists
// for the tuple.
func (g *LiveBatchGuard) LiveBatchExists(ctx context.Context, regionID string, toFinancialYearEnding int, scheme billing.Scheme, batchType billing.BatchType) (bool, error) {
	if regionID == "" {
		return false, billing.ErrEmptyRegionID
	}
	count, err := g.batches.CountLive(ctx, regionID, toFinancialYearEnding, scheme, batchType)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
