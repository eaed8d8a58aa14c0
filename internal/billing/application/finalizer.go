package application

import (
	"context"
	"errors"
	"fmt"
	"log"

	billing "water-billing/internal/billing/domain"
)

// BatchFinalizer closes out a batch once every period has been
// processed: licences that produced no charges are unflagged, billing
// progress is recorded on charge versions, and the engine is asked to
// finalize totals. The batch is left in processing for the engine and
// legacy systems to advance it.
type BatchFinalizer struct {
	batches        billing.BatchRepository
	licences       billing.LicenceRepository
	chargeVersions billing.ChargeVersionRepository
	engine         ChargingEngine
	legacy         LegacyNotifier
	logger         *log.Logger
}

// NewBatchFinalizer constructs a finalizer.
func NewBatchFinalizer(batches billing.BatchRepository, licences billing.LicenceRepository, chargeVersions billing.ChargeVersionRepository, engine ChargingEngine, legacy LegacyNotifier, logger *log.Logger) (*BatchFinalizer, error) {
	if batches == nil {
		return nil, errors.New("batch finalizer: nil batch repository")
	}
	if licences == nil {
		return nil, errors.New("batch finalizer: nil licence repository")
	}
	if chargeVersions == nil {
		return nil, errors.New("batch finalizer: nil charge version repository")
	}
	if engine == nil {
		return nil, errors.New("batch finalizer: nil charging engine")
	}
	return &BatchFinalizer{
		batches:        batches,
		licences:       licences,
		chargeVersions: chargeVersions,
		engine:         engine,
		legacy:         legacy,
		logger:         logger,
	}, nil
}

// FinalizeInput gathers the accumulated outcome of all periods.
type FinalizeInput struct {
	TouchedLicenceIDs []string
	BilledLicenceIDs  []string
	Billed            []billing.BilledChargeVersion
	Populated         bool
	Reissued          bool
}

// Finalize runs the close-out. When nothing was populated and reissuing
// produced no changes the batch ends empty and the engine is never
// called.
func (f *BatchFinalizer) Finalize(ctx context.Context, batch *billing.Batch, input FinalizeInput) error {
	if batch == nil {
		return billing.ErrNilBatch
	}

	unbilled := subtract(input.TouchedLicenceIDs, input.BilledLicenceIDs)
	if len(unbilled) > 0 {
		if err := f.licences.ClearSupplementaryFlags(ctx, unbilled); err != nil {
			return err
		}
	}

	if !input.Populated && !input.Reissued {
		batch.Status = billing.BatchStatusEmpty
		return f.batches.UpdateStatus(ctx, batch.ID, billing.BatchStatusEmpty)
	}

	if len(input.Billed) > 0 {
		if err := f.chargeVersions.MarkBilled(ctx, input.Billed); err != nil {
			return err
		}
	}

	generate := f.engine.Generate(ctx, batch.ExternalID)
	if !generate.Succeeded {
		return billing.WithCode(billing.ErrorCodeGetBillRunSummary,
			fmt.Errorf("billing: generate bill run %s: %s", batch.ExternalID, generate.Detail))
	}

	if f.legacy != nil {
		if err := f.legacy.NotifyRefresh(ctx, batch.ID); err != nil && f.logger != nil {
			f.logger.Printf("billing: legacy refresh failed: batch=%s err=%v", batch.ID, err)
		}
	}
	return nil
}

func subtract(all, remove []string) []string {
	removed := make(map[string]struct{}, len(remove))
	for _, id := range remove {
		removed[id] = struct{}{}
	}
	seen := make(map[string]struct{}, len(all))
	var remaining []string
	for _, id := range all {
		if _, ok := removed[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		remaining = append(remaining, id)
	}
	return remaining
}
