package application

import (
	"context"
	"errors"
	"testing"
	"time"

	billing "water-billing/internal/billing/domain"
	"water-billing/internal/billing/infrastructure/memory"
)

func newInitiator(t *testing.T, store *memory.Store, engine ChargingEngine) *BatchInitiator {
	t.Helper()
	guard, err := NewLiveBatchGuard(store.Batches())
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	initiator, err := NewBatchInitiator(guard, store.Batches(), store.Events(), engine, "sroc",
		fixedClock{now: time.Date(2023, time.June, 1, 9, 0, 0, 0, time.UTC)}, nil)
	if err != nil {
		t.Fatalf("initiator: %v", err)
	}
	return initiator
}

func supplementaryPeriods(t *testing.T) []billing.BillingPeriod {
	t.Helper()
	periods, err := billing.CalculateBillingPeriods(time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC), 0)
	if err != nil {
		t.Fatalf("periods: %v", err)
	}
	return periods
}

func TestInitiateCreatesQueuedBatchAndEvent(t *testing.T) {
	store := memory.NewStore()
	engine := &stubEngine{}
	initiator := newInitiator(t, store, engine)

	batch, err := initiator.Initiate(context.Background(), "region-1", billing.BatchTypeSupplementary, "operator@example.com", supplementaryPeriods(t))
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if batch.Status != billing.BatchStatusQueued {
		t.Fatalf("status = %s, want queued", batch.Status)
	}
	if batch.ExternalID != "external-1" || batch.BillRunNumber != 10001 {
		t.Fatalf("external identity not recorded: %q %d", batch.ExternalID, batch.BillRunNumber)
	}
	if batch.Scheme != billing.SchemeSROC {
		t.Fatalf("scheme = %s", batch.Scheme)
	}
	if batch.ToFinancialYearEnding != 2024 || batch.FromFinancialYearEnding != 2023 {
		t.Fatalf("year range = %d..%d", batch.FromFinancialYearEnding, batch.ToFinancialYearEnding)
	}

	stored, err := store.Batches().GetByID(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != billing.BatchStatusQueued {
		t.Fatalf("stored status = %s", stored.Status)
	}

	events, err := store.Events().ListForBatch(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(events))
	}
	if events[0].Type != billing.EventTypeBillingBatch || events[0].Issuer != "operator@example.com" {
		t.Fatalf("event = %+v", events[0])
	}
}

func TestInitiateRejectsWhileLiveBatchExists(t *testing.T) {
	store := memory.NewStore()
	engine := &stubEngine{}
	initiator := newInitiator(t, store, engine)
	periods := supplementaryPeriods(t)

	first, err := initiator.Initiate(context.Background(), "region-1", billing.BatchTypeSupplementary, "system", periods)
	if err != nil {
		t.Fatalf("first initiate: %v", err)
	}
	if err := store.Batches().UpdateStatus(context.Background(), first.ID, billing.BatchStatusProcessing); err != nil {
		t.Fatalf("update: %v", err)
	}

	_, err = initiator.Initiate(context.Background(), "region-1", billing.BatchTypeSupplementary, "system", periods)
	var duplicate *billing.DuplicateBatchError
	if !errors.As(err, &duplicate) {
		t.Fatalf("expected DuplicateBatchError, got %v", err)
	}

	// A different region or batch type is unaffected.
	if _, err := initiator.Initiate(context.Background(), "region-2", billing.BatchTypeSupplementary, "system", periods); err != nil {
		t.Fatalf("other region: %v", err)
	}
	if _, err := initiator.Initiate(context.Background(), "region-1", billing.BatchTypeAnnual, "system", periods[:1]); err != nil {
		t.Fatalf("other type: %v", err)
	}
}

func TestInitiateAdmitsAfterTerminalStatus(t *testing.T) {
	store := memory.NewStore()
	engine := &stubEngine{}
	initiator := newInitiator(t, store, engine)
	periods := supplementaryPeriods(t)

	first, err := initiator.Initiate(context.Background(), "region-1", billing.BatchTypeSupplementary, "system", periods)
	if err != nil {
		t.Fatalf("first initiate: %v", err)
	}
	if err := store.Batches().UpdateStatus(context.Background(), first.ID, billing.BatchStatusSent); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := initiator.Initiate(context.Background(), "region-1", billing.BatchTypeSupplementary, "system", periods); err != nil {
		t.Fatalf("initiate after sent: %v", err)
	}
}

func TestInitiateEngineFailureKeepsAuditTrail(t *testing.T) {
	store := memory.NewStore()
	engine := &stubEngine{failCreateBillRun: true}
	initiator := newInitiator(t, store, engine)

	batch, err := initiator.Initiate(context.Background(), "region-1", billing.BatchTypeSupplementary, "system", supplementaryPeriods(t))
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if batch.Status != billing.BatchStatusError {
		t.Fatalf("status = %s, want error", batch.Status)
	}
	if batch.ErrorCode != billing.ErrorCodeCreateBillRun {
		t.Fatalf("error code = %d, want %d", batch.ErrorCode, billing.ErrorCodeCreateBillRun)
	}
	if batch.ExternalID != "" {
		t.Fatalf("external id must stay empty, got %q", batch.ExternalID)
	}

	stored, err := store.Batches().GetByID(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != billing.BatchStatusError || stored.ErrorCode != billing.ErrorCodeCreateBillRun {
		t.Fatalf("stored = %s/%d", stored.Status, stored.ErrorCode)
	}

	events, err := store.Events().ListForBatch(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(events))
	}
}

func TestInitiateValidatesInput(t *testing.T) {
	store := memory.NewStore()
	initiator := newInitiator(t, store, &stubEngine{})
	periods := supplementaryPeriods(t)

	if _, err := initiator.Initiate(context.Background(), "", billing.BatchTypeSupplementary, "system", periods); !errors.Is(err, billing.ErrEmptyRegionID) {
		t.Fatalf("empty region: %v", err)
	}
	if _, err := initiator.Initiate(context.Background(), "region-1", billing.BatchType("quarterly"), "system", periods); !errors.Is(err, billing.ErrInvalidBatchType) {
		t.Fatalf("bad type: %v", err)
	}
	if _, err := initiator.Initiate(context.Background(), "region-1", billing.BatchTypeSupplementary, "system", nil); !errors.Is(err, billing.ErrInvalidFinancialYear) {
		t.Fatalf("no periods: %v", err)
	}
}
