package application

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	billing "water-billing/internal/billing/domain"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// stubEngine records charging engine calls and replays canned outcomes.
type stubEngine struct {
	mu sync.Mutex

	failCreateBillRun    bool
	failCreateTransacton bool
	failGenerate         bool

	billRunCalls     int
	generateCalls    int
	transactionCalls int
	payloads         []TransactionPayload
}

func (e *stubEngine) CreateBillRun(ctx context.Context, regionCode, ruleset string) BillRunResult {
	_ = ctx
	e.mu.Lock()
	defer e.mu.Unlock()
	e.billRunCalls++
	if e.failCreateBillRun {
		return BillRunResult{Detail: "engine unavailable"}
	}
	return BillRunResult{Succeeded: true, ExternalID: "external-1", BillRunNumber: 10001}
}

func (e *stubEngine) Generate(ctx context.Context, externalID string) GenerateResult {
	_ = ctx
	_ = externalID
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generateCalls++
	if e.failGenerate {
		return GenerateResult{Detail: "generate refused"}
	}
	return GenerateResult{Succeeded: true}
}

func (e *stubEngine) CreateTransaction(ctx context.Context, externalBatchID string, payload TransactionPayload) TransactionResult {
	_ = ctx
	_ = externalBatchID
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transactionCalls++
	if e.failCreateTransacton {
		return TransactionResult{Detail: "charge rejected"}
	}
	e.payloads = append(e.payloads, payload)
	return TransactionResult{Succeeded: true, TransactionID: fmt.Sprintf("engine-tx-%d", e.transactionCalls)}
}

// runDetachedSync swaps the detached runner for a synchronous one for
// the duration of a test.
func runDetachedSync() func() {
	prev := runDetached
	runDetached = func(_ *log.Logger, _ string, fn func(ctx context.Context)) {
		fn(context.Background())
	}
	return func() { runDetached = prev }
}

func fullYearChargeVersion(regionID string) billing.ChargeVersion {
	return billing.ChargeVersion{
		ID:               "charge-version-1",
		LicenceID:        "licence-1",
		BillingAccountID: "account-1",
		AccountNumber:    "A00000001A",
		Status:           billing.ChargeVersionStatusCurrent,
		StartDate:        time.Date(2023, time.April, 1, 0, 0, 0, 0, time.UTC),
		Licence: billing.Licence{
			ID:                   "licence-1",
			Ref:                  "01/123",
			RegionID:             regionID,
			StartDate:            time.Date(2019, time.June, 1, 0, 0, 0, 0, time.UTC),
			IncludeInSrocBilling: true,
		},
		Elements: []billing.ChargeElement{allYearElement()},
	}
}
