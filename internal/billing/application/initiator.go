package application

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	billing "water-billing/internal/billing/domain"
	"water-billing/internal/observability/metrics"
)

// BatchInitiator creates a batch, its audit event and the external bill
// run. Initiation is synchronous and returns before any period is
// processed.
type BatchInitiator struct {
	guard   *LiveBatchGuard
	batches billing.BatchRepository
	events  billing.EventRepository
	engine  ChargingEngine
	ruleset string
	clock   Clock
	logger  *log.Logger
}

// NewBatchInitiator constructs an initiator.
func NewBatchInitiator(guard *LiveBatchGuard, batches billing.BatchRepository, events billing.EventRepository, engine ChargingEngine, ruleset string, clock Clock, logger *log.Logger) (*BatchInitiator, error) {
	if guard == nil {
		return nil, errors.New("batch initiator: nil guard")
	}
	if batches == nil {
		return nil, errors.New("batch initiator: nil batch repository")
	}
	if events == nil {
		return nil, errors.New("batch initiator: nil event repository")
	}
	if engine == nil {
		return nil, errors.New("batch initiator: nil charging engine")
	}
	if ruleset == "" {
		ruleset = string(billing.SchemeSROC)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &BatchInitiator{
		guard:   guard,
		batches: batches,
		events:  events,
		engine:  engine,
		ruleset: ruleset,
		clock:   clock,
		logger:  logger,
	}, nil
}

// Initiate admits and creates a batch covering the given periods, newest
// first. On a live-batch conflict no batch is created. On an engine
// failure the batch is still created, flagged status=error with the
// create-bill-run code, so the failed attempt stays auditable.
func (i *BatchInitiator) Initiate(ctx context.Context, regionID string, batchType billing.BatchType, issuer string, periods []billing.BillingPeriod) (*billing.Batch, error) {
	if regionID == "" {
		return nil, billing.ErrEmptyRegionID
	}
	if _, ok := billing.NormalizeBatchType(string(batchType)); !ok {
		return nil, billing.ErrInvalidBatchType
	}
	if len(periods) == 0 {
		return nil, billing.ErrInvalidFinancialYear
	}

	scheme := billing.SchemeSROC
	toYear := periods[0].FinancialYearEnding()
	fromYear := periods[len(periods)-1].FinancialYearEnding()

	exists, err := i.guard.LiveBatchExists(ctx, regionID, toYear, scheme, batchType)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &billing.DuplicateBatchError{RegionID: regionID}
	}

	now := i.clock.Now()
	batch := &billing.Batch{
		ID:                      uuid.NewString(),
		RegionID:                regionID,
		BatchType:               batchType,
		Scheme:                  scheme,
		Status:                  billing.BatchStatusQueued,
		FromFinancialYearEnding: fromYear,
		ToFinancialYearEnding:   toYear,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	result := i.engine.CreateBillRun(ctx, regionID, i.ruleset)
	if result.Succeeded {
		batch.ExternalID = result.ExternalID
		batch.BillRunNumber = result.BillRunNumber
	} else {
		batch.Status = billing.BatchStatusError
		batch.ErrorCode = billing.ErrorCodeCreateBillRun
		if i.logger != nil {
			i.logger.Printf("billing: create bill run failed: region=%s detail=%s", regionID, result.Detail)
		}
	}

	if err := i.batches.Create(ctx, batch); err != nil {
		return nil, err
	}
	metrics.IncBatchesCreated(string(batchType), string(batch.Status))

	event, err := billing.NewBatchEvent(uuid.NewString(), batch, issuer, now)
	if err != nil {
		return nil, err
	}
	if err := i.events.Create(ctx, event); err != nil {
		return nil, err
	}
	return batch, nil
}
