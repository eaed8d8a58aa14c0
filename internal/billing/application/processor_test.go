package application

import (
	"context"
	"testing"
	"time"

	billing "water-billing/internal/billing/domain"
	"water-billing/internal/billing/infrastructure/memory"
)

func newProcessor(t *testing.T, store *memory.Store, engine ChargingEngine, cleanser TransactionCleanser) *BillingPeriodProcessor {
	t.Helper()
	processor, err := NewBillingPeriodProcessor(store.Invoices(), store.Transactions(), engine, cleanser,
		fixedClock{now: time.Date(2023, time.June, 1, 9, 0, 0, 0, time.UTC)}, nil)
	if err != nil {
		t.Fatalf("processor: %v", err)
	}
	return processor
}

func queuedBatch() *billing.Batch {
	return &billing.Batch{
		ID:                      "batch-1",
		RegionID:                "region-1",
		BatchType:               billing.BatchTypeSupplementary,
		Scheme:                  billing.SchemeSROC,
		Status:                  billing.BatchStatusQueued,
		ExternalID:              "external-1",
		BillRunNumber:           10001,
		FromFinancialYearEnding: 2023,
		ToFinancialYearEnding:   2024,
	}
}

func TestProcessSubmitsAndPersists(t *testing.T) {
	store := memory.NewStore()
	engine := &stubEngine{}
	processor := newProcessor(t, store, engine, nil)
	batch := queuedBatch()
	period := period2024()

	result, err := processor.Process(context.Background(), batch, period, []billing.ChargeVersion{fullYearChargeVersion("region-1")})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !result.Populated {
		t.Fatal("period must be populated")
	}
	if len(result.BilledLicenceIDs) != 1 || result.BilledLicenceIDs[0] != "licence-1" {
		t.Fatalf("billed licences = %v", result.BilledLicenceIDs)
	}
	if len(result.Billed) != 1 || !result.Billed[0].BilledUpToDate.Equal(period.EndDate) {
		t.Fatalf("billed charge versions = %+v", result.Billed)
	}

	transactions := store.StoredTransactions()
	if len(transactions) != 2 {
		t.Fatalf("expected 2 persisted transactions, got %d", len(transactions))
	}
	for _, tx := range transactions {
		if tx.Status != billing.TransactionStatusChargeCreated {
			t.Fatalf("transaction status = %s", tx.Status)
		}
		if tx.ExternalID == "" || tx.InvoiceLicenceID == "" || tx.ChargeVersionID != "charge-version-1" {
			t.Fatalf("transaction linkage incomplete: %+v", tx)
		}
	}

	invoices := store.StoredInvoices()
	if len(invoices) != 1 {
		t.Fatalf("expected 1 invoice, got %d", len(invoices))
	}
	if invoices[0].BillingAccountID != "account-1" || invoices[0].FinancialYearEnding != 2024 {
		t.Fatalf("invoice = %+v", invoices[0])
	}
	invoiceLicences := store.StoredInvoiceLicences()
	if len(invoiceLicences) != 1 {
		t.Fatalf("expected 1 invoice licence, got %d", len(invoiceLicences))
	}
	if invoiceLicences[0].InvoiceID != invoices[0].ID || invoiceLicences[0].LicenceID != "licence-1" {
		t.Fatalf("invoice licence = %+v", invoiceLicences[0])
	}

	if len(engine.payloads) != 2 {
		t.Fatalf("engine payloads = %d", len(engine.payloads))
	}
	if engine.payloads[0].CompensationCharge || !engine.payloads[1].CompensationCharge {
		t.Fatal("payload compensation flags wrong")
	}
	if engine.payloads[0].LicenceNumber != "01/123" || engine.payloads[0].AccountNumber != "A00000001A" {
		t.Fatalf("payload identity = %+v", engine.payloads[0])
	}
}

func TestProcessReusesExistingInvoice(t *testing.T) {
	store := memory.NewStore()
	engine := &stubEngine{}
	processor := newProcessor(t, store, engine, nil)
	batch := queuedBatch()
	period := period2024()

	existing := billing.Invoice{
		ID:                  "invoice-existing",
		BatchID:             batch.ID,
		BillingAccountID:    "account-1",
		AccountNumber:       "A00000001A",
		FinancialYearEnding: 2024,
	}
	if err := store.Invoices().CreateMany(context.Background(), []billing.Invoice{existing}); err != nil {
		t.Fatalf("seed invoice: %v", err)
	}

	if _, err := processor.Process(context.Background(), batch, period, []billing.ChargeVersion{fullYearChargeVersion("region-1")}); err != nil {
		t.Fatalf("process: %v", err)
	}

	invoices := store.StoredInvoices()
	if len(invoices) != 1 {
		t.Fatalf("existing invoice must be reused, got %d invoices", len(invoices))
	}
	invoiceLicences := store.StoredInvoiceLicences()
	if len(invoiceLicences) != 1 || invoiceLicences[0].InvoiceID != "invoice-existing" {
		t.Fatalf("invoice licences = %+v", invoiceLicences)
	}
}

func TestProcessSubmissionFailureCommitsNothing(t *testing.T) {
	store := memory.NewStore()
	engine := &stubEngine{failCreateTransacton: true}
	processor := newProcessor(t, store, engine, nil)
	batch := queuedBatch()

	_, err := processor.Process(context.Background(), batch, period2024(), []billing.ChargeVersion{fullYearChargeVersion("region-1")})
	if err == nil {
		t.Fatal("expected an error")
	}
	if code := billing.CodeOf(err); code != billing.ErrorCodeCreateCharge {
		t.Fatalf("error code = %d, want %d", code, billing.ErrorCodeCreateCharge)
	}
	if len(store.StoredTransactions()) != 0 {
		t.Fatal("no transaction may be persisted after a failed submission")
	}
	if len(store.StoredInvoices()) != 0 || len(store.StoredInvoiceLicences()) != 0 {
		t.Fatal("no invoice rows may be persisted after a failed submission")
	}
}

func TestProcessSupersededChargeVersionGeneratesNothing(t *testing.T) {
	store := memory.NewStore()
	engine := &stubEngine{}
	processor := newProcessor(t, store, engine, nil)

	superseded := fullYearChargeVersion("region-1")
	superseded.Status = billing.ChargeVersionStatusSuperseded

	result, err := processor.Process(context.Background(), queuedBatch(), period2024(), []billing.ChargeVersion{superseded})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Populated {
		t.Fatal("a superseded charge version must not populate the period")
	}
	if engine.transactionCalls != 0 {
		t.Fatalf("engine was called %d times", engine.transactionCalls)
	}
	if len(store.StoredInvoices()) != 0 || len(store.StoredInvoiceLicences()) != 0 {
		t.Fatal("unused invoice rows must not be persisted")
	}
}

type dropAllCleanser struct{}

func (dropAllCleanser) Cleanse(ctx context.Context, batch *billing.Batch, licenceID string, candidates []billing.Transaction) ([]billing.Transaction, error) {
	_ = ctx
	_ = batch
	_ = licenceID
	_ = candidates
	return nil, nil
}

func TestProcessCleanserCanEmptyAGroup(t *testing.T) {
	store := memory.NewStore()
	engine := &stubEngine{}
	processor := newProcessor(t, store, engine, dropAllCleanser{})

	result, err := processor.Process(context.Background(), queuedBatch(), period2024(), []billing.ChargeVersion{fullYearChargeVersion("region-1")})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Populated {
		t.Fatal("a fully cleansed period must not be populated")
	}
	if engine.transactionCalls != 0 {
		t.Fatal("nothing may be submitted after cleansing removed everything")
	}
}
