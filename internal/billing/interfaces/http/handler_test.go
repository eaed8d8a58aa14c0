package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"water-billing/internal/billing/application"
	billing "water-billing/internal/billing/domain"
	"water-billing/internal/billing/infrastructure/memory"
)

type fakeEngine struct{}

func (fakeEngine) CreateBillRun(ctx context.Context, regionCode, ruleset string) application.BillRunResult {
	_ = ctx
	_ = regionCode
	_ = ruleset
	return application.BillRunResult{Succeeded: true, ExternalID: "external-1", BillRunNumber: 10001}
}

func (fakeEngine) Generate(ctx context.Context, externalID string) application.GenerateResult {
	_ = ctx
	_ = externalID
	return application.GenerateResult{Succeeded: true}
}

func (fakeEngine) CreateTransaction(ctx context.Context, externalBatchID string, payload application.TransactionPayload) application.TransactionResult {
	_ = ctx
	_ = externalBatchID
	return application.TransactionResult{Succeeded: true, TransactionID: payload.ClientID}
}

func newTestHandler(t *testing.T, store *memory.Store) *Handler {
	t.Helper()
	engine := fakeEngine{}
	guard, err := application.NewLiveBatchGuard(store.Batches())
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	initiator, err := application.NewBatchInitiator(guard, store.Batches(), store.Events(), engine, "sroc", nil, nil)
	if err != nil {
		t.Fatalf("initiator: %v", err)
	}
	processor, err := application.NewBillingPeriodProcessor(store.Invoices(), store.Transactions(), engine, nil, nil, nil)
	if err != nil {
		t.Fatalf("processor: %v", err)
	}
	finalizer, err := application.NewBatchFinalizer(store.Batches(), store.Licences(), store.ChargeVersions(), engine, nil, nil)
	if err != nil {
		t.Fatalf("finalizer: %v", err)
	}
	orchestrator, err := application.NewBatchOrchestrator(store.Batches(), store.ChargeVersions(), processor, finalizer, nil, nil, nil)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	runner, err := application.NewBatchRunner(initiator, orchestrator, nil, nil)
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	handler, err := NewHandler(runner, store.Batches(), store.Invoices(), store.Transactions(), nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return handler
}

func TestCreateBillRunAcknowledgesImmediately(t *testing.T) {
	store := memory.NewStore()
	handler := newTestHandler(t, store)

	body := `{"region_id":"region-1","batch_type":"supplementary","user":"operator@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bill-runs", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", resp.Code, resp.Body.String())
	}
	var view batchView
	if err := json.Unmarshal(resp.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.ID == "" || view.RegionID != "region-1" || view.BatchType != "supplementary" {
		t.Fatalf("view = %+v", view)
	}
	if view.Scheme != "sroc" {
		t.Fatalf("scheme = %s", view.Scheme)
	}
	if view.ExternalID != "external-1" || view.BillRunNumber != 10001 {
		t.Fatalf("external identity = %q %d", view.ExternalID, view.BillRunNumber)
	}
}

func TestCreateBillRunConflictOnLiveBatch(t *testing.T) {
	store := memory.NewStore()
	handler := newTestHandler(t, store)

	year := billing.CurrentFinancialYearEnding(time.Now().UTC())
	live := &billing.Batch{
		ID:                    "live-1",
		RegionID:              "region-1",
		BatchType:             billing.BatchTypeSupplementary,
		Scheme:                billing.SchemeSROC,
		Status:                billing.BatchStatusProcessing,
		ToFinancialYearEnding: year,
	}
	if err := store.Batches().Create(context.Background(), live); err != nil {
		t.Fatalf("seed: %v", err)
	}

	body := `{"region_id":"region-1","batch_type":"supplementary"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bill-runs", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.Code)
	}
}

func TestCreateBillRunValidation(t *testing.T) {
	store := memory.NewStore()
	handler := newTestHandler(t, store)

	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"unknown type", `{"region_id":"region-1","batch_type":"quarterly"}`},
		{"empty region", `{"region_id":"","batch_type":"supplementary"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/bill-runs", strings.NewReader(tc.body))
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.Code)
			}
		})
	}
}

func TestGetBillRun(t *testing.T) {
	store := memory.NewStore()
	handler := newTestHandler(t, store)

	batch := &billing.Batch{
		ID:        "batch-1",
		RegionID:  "region-1",
		BatchType: billing.BatchTypeSupplementary,
		Scheme:    billing.SchemeSROC,
		Status:    billing.BatchStatusEmpty,
	}
	if err := store.Batches().Create(context.Background(), batch); err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bill-runs/batch-1", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	var view batchView
	if err := json.Unmarshal(resp.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Status != "empty" {
		t.Fatalf("status = %s", view.Status)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/bill-runs/missing", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Code)
	}
}

func TestExportBillRun(t *testing.T) {
	store := memory.NewStore()
	handler := newTestHandler(t, store)

	batch := &billing.Batch{
		ID:        "batch-1",
		RegionID:  "region-1",
		BatchType: billing.BatchTypeSupplementary,
		Scheme:    billing.SchemeSROC,
		Status:    billing.BatchStatusReady,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Batches().Create(context.Background(), batch); err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	invoice := billing.Invoice{ID: "invoice-1", BatchID: "batch-1", BillingAccountID: "account-1", AccountNumber: "A1", FinancialYearEnding: 2024}
	if err := store.Invoices().CreateMany(context.Background(), []billing.Invoice{invoice}); err != nil {
		t.Fatalf("seed invoice: %v", err)
	}

	cases := []struct {
		path        string
		contentType string
	}{
		{"/api/v1/bill-runs/batch-1/export.pdf", "application/pdf"},
		{"/api/v1/bill-runs/batch-1/export.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", tc.path, resp.Code)
		}
		if got := resp.Header().Get("Content-Type"); got != tc.contentType {
			t.Fatalf("%s: content type = %s", tc.path, got)
		}
		if resp.Body.Len() == 0 {
			t.Fatalf("%s: empty body", tc.path)
		}
	}
}
