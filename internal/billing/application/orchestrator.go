package application

import (
	"context"
	"errors"
	"log"
	"time"

	billing "water-billing/internal/billing/domain"
	"water-billing/internal/observability/metrics"
)

// BatchOrchestrator drives a batch through its state machine:
// queued -> processing -> empty | error, or externally advanced. It runs
// detached, so it never propagates an error to its caller; failures are
// written to the batch and logged. There is no automatic retry.
type BatchOrchestrator struct {
	batches        billing.BatchRepository
	chargeVersions billing.ChargeVersionRepository
	processor      *BillingPeriodProcessor
	finalizer      *BatchFinalizer
	reissuer       InvoiceReissuer
	clock          Clock
	logger         *log.Logger
}

// NewBatchOrchestrator constructs an orchestrator. A nil reissuer leaves
// invoice reissuing disabled.
func NewBatchOrchestrator(batches billing.BatchRepository, chargeVersions billing.ChargeVersionRepository, processor *BillingPeriodProcessor, finalizer *BatchFinalizer, reissuer InvoiceReissuer, clock Clock, logger *log.Logger) (*BatchOrchestrator, error) {
	if batches == nil {
		return nil, errors.New("batch orchestrator: nil batch repository")
	}
	if chargeVersions == nil {
		return nil, errors.New("batch orchestrator: nil charge version repository")
	}
	if processor == nil {
		return nil, errors.New("batch orchestrator: nil processor")
	}
	if finalizer == nil {
		return nil, errors.New("batch orchestrator: nil finalizer")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &BatchOrchestrator{
		batches:        batches,
		chargeVersions: chargeVersions,
		processor:      processor,
		finalizer:      finalizer,
		reissuer:       reissuer,
		clock:          clock,
		logger:         logger,
	}, nil
}

// Run processes every billing period of the batch, newest first, then
// finalizes. Safe to call from a detached goroutine.
func (o *BatchOrchestrator) Run(ctx context.Context, batch *billing.Batch, periods []billing.BillingPeriod) {
	if batch == nil {
		return
	}
	started := o.clock.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveBatchRun(result, time.Since(started))
	}()

	if err := o.batches.UpdateStatus(ctx, batch.ID, billing.BatchStatusProcessing); err != nil {
		result = metrics.ResultError
		o.fail(ctx, batch, err)
		return
	}
	batch.Status = billing.BatchStatusProcessing

	reissued := false
	if o.reissuer != nil {
		changed, err := o.reissuer.Reissue(ctx, batch)
		if err != nil {
			result = metrics.ResultError
			o.fail(ctx, batch, billing.WithCode(billing.ErrorCodeProcessRebilling, err))
			return
		}
		reissued = changed
	}

	input := FinalizeInput{Reissued: reissued}
	for _, period := range periods {
		chargeVersions, err := o.chargeVersions.ListForRegionAndPeriod(ctx, batch.RegionID, period)
		if err != nil {
			result = metrics.ResultError
			o.fail(ctx, batch, billing.WithCode(billing.ErrorCodeProcessChargeVersions, err))
			return
		}
		for _, cv := range chargeVersions {
			input.TouchedLicenceIDs = append(input.TouchedLicenceIDs, cv.LicenceID)
		}

		periodResult, err := o.processor.Process(ctx, batch, period, chargeVersions)
		if err != nil {
			result = metrics.ResultError
			o.fail(ctx, batch, err)
			return
		}
		if periodResult.Populated {
			input.Populated = true
		}
		input.BilledLicenceIDs = append(input.BilledLicenceIDs, periodResult.BilledLicenceIDs...)
		input.Billed = append(input.Billed, periodResult.Billed...)
	}

	if err := o.finalizer.Finalize(ctx, batch, input); err != nil {
		result = metrics.ResultError
		o.fail(ctx, batch, err)
		return
	}
	if o.logger != nil {
		o.logger.Printf("billing: batch complete: batch=%s status=%s populated=%t", batch.ID, batch.Status, input.Populated)
	}
}

// fail patches the batch to error with whatever code the failure
// carries, then logs. Errors are never re-raised; retry is an operator
// concern.
func (o *BatchOrchestrator) fail(ctx context.Context, batch *billing.Batch, err error) {
	code := billing.CodeOf(err)
	batch.Status = billing.BatchStatusError
	batch.ErrorCode = code
	if patchErr := o.batches.MarkErrored(ctx, batch.ID, code); patchErr != nil && o.logger != nil {
		o.logger.Printf("billing: mark errored failed: batch=%s err=%v", batch.ID, patchErr)
	}
	if o.logger != nil {
		o.logger.Printf("billing: batch failed: batch=%s code=%d err=%v", batch.ID, code, err)
	}
}
