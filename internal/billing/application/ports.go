package application

import (
	"context"
	"time"

	billing "water-billing/internal/billing/domain"
)

// BillRunResult is the structured outcome of creating a bill run on the
// charging engine. Failures are data, so callers decide how the batch
// degrades.
type BillRunResult struct {
	Succeeded     bool
	ExternalID    string
	BillRunNumber int64
	Detail        string
}

// GenerateResult is the outcome of asking the engine to finalize a bill
// run's totals.
type GenerateResult struct {
	Succeeded bool
	Detail    string
}

// TransactionResult is the outcome of submitting one charge line.
type TransactionResult struct {
	Succeeded     bool
	TransactionID string
	Detail        string
}

// TransactionPayload is the wire shape of one charge line submission.
type TransactionPayload struct {
	ClientID             string    `json:"clientId"`
	LicenceNumber        string    `json:"licenceNumber"`
	AccountNumber        string    `json:"customerReference"`
	ChargeCategoryCode   string    `json:"chargeCategoryCode"`
	ChargeType           string    `json:"chargeType"`
	Description          string    `json:"lineDescription"`
	PeriodStart          time.Time `json:"periodStart"`
	PeriodEnd            time.Time `json:"periodEnd"`
	AuthorisedDays       int       `json:"authorisedDays"`
	BillableDays         int       `json:"billableDays"`
	Volume               float64   `json:"actualVolume"`
	Loss                 string    `json:"loss"`
	Credit               bool      `json:"credit"`
	NewLicence           bool      `json:"newLicence"`
	WaterCompanyCharge   bool      `json:"waterCompanyCharge"`
	SupportedSource      bool      `json:"supportedSource"`
	SupportedSourceName  string    `json:"supportedSourceName,omitempty"`
	WinterOnly           bool      `json:"winterOnly"`
	Section127Agreement  bool      `json:"section127Agreement"`
	Section130Agreement  bool      `json:"section130Agreement"`
	CompensationCharge   bool      `json:"compensationCharge"`
	AggregateProportion  float64   `json:"aggregateProportion"`
	AdjustmentProportion float64   `json:"adjustmentProportion"`
}

// ChargingEngine is the wire boundary to the external charging engine.
// All operations return structured success/failure rather than faults.
type ChargingEngine interface {
	CreateBillRun(ctx context.Context, regionCode, ruleset string) BillRunResult
	Generate(ctx context.Context, externalID string) GenerateResult
	CreateTransaction(ctx context.Context, externalBatchID string, payload TransactionPayload) TransactionResult
}

// TransactionCleanser removes candidate transactions that were already
// billed in previous runs, to avoid double charging.
type TransactionCleanser interface {
	Cleanse(ctx context.Context, batch *billing.Batch, licenceID string, candidates []billing.Transaction) ([]billing.Transaction, error)
}

// InvoiceReissuer reissues previously-issued invoices flagged for
// rebilling. Feature gated; a nil reissuer means the feature is off.
type InvoiceReissuer interface {
	Reissue(ctx context.Context, batch *billing.Batch) (bool, error)
}

// LegacyNotifier tells the legacy system to refresh its view of a batch.
// Best effort, fire and forget.
type LegacyNotifier interface {
	NotifyRefresh(ctx context.Context, batchID string) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
