package application

import (
	"context"
	"errors"
	"log"

	billing "water-billing/internal/billing/domain"
)

// BatchRunner is the entry point the HTTP layer and the scheduler drive:
// it initiates a batch synchronously and starts the processing pipeline
// detached, returning the queued batch immediately.
type BatchRunner struct {
	initiator    *BatchInitiator
	orchestrator *BatchOrchestrator
	clock        Clock
	logger       *log.Logger
}

// NewBatchRunner constructs a runner.
func NewBatchRunner(initiator *BatchInitiator, orchestrator *BatchOrchestrator, clock Clock, logger *log.Logger) (*BatchRunner, error) {
	if initiator == nil {
		return nil, errors.New("batch runner: nil initiator")
	}
	if orchestrator == nil {
		return nil, errors.New("batch runner: nil orchestrator")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &BatchRunner{
		initiator:    initiator,
		orchestrator: orchestrator,
		clock:        clock,
		logger:       logger,
	}, nil
}

// Create initiates a batch and, when initiation produced a workable
// batch, starts period processing without awaiting it. A zero
// financialYearEnding derives the periods from today; annual batches
// cover only the current financial year.
func (r *BatchRunner) Create(ctx context.Context, regionID string, batchType billing.BatchType, issuer string, financialYearEnding int) (*billing.Batch, error) {
	periods, err := billing.CalculateBillingPeriods(r.clock.Now(), financialYearEnding)
	if err != nil {
		return nil, err
	}
	if batchType == billing.BatchTypeAnnual && financialYearEnding == 0 {
		periods = periods[:1]
	}

	batch, err := r.initiator.Initiate(ctx, regionID, batchType, issuer, periods)
	if err != nil {
		return nil, err
	}
	if batch.Status == billing.BatchStatusError {
		// Created for audit only; there is no external bill run to fill.
		return batch, nil
	}

	runDetached(r.logger, "billing.batch."+batch.ID, func(ctx context.Context) {
		r.orchestrator.Run(ctx, batch, periods)
	})
	return batch, nil
}
