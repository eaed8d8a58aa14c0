package billing

import (
	"context"
	"time"
)

// BatchRepository persists bill run batches.
type BatchRepository interface {
	Create(ctx context.Context, batch *Batch) error
	GetByID(ctx context.Context, id string) (*Batch, error)
	CountLive(ctx context.Context, regionID string, toFinancialYearEnding int, scheme Scheme, batchType BatchType) (int, error)
	UpdateStatus(ctx context.Context, id string, status BatchStatus) error
	MarkErrored(ctx context.Context, id string, code ErrorCode) error
}

// EventRepository persists batch audit events.
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	ListForBatch(ctx context.Context, batchID string) ([]Event, error)
}

// ChargeVersionRepository reads charge configuration and records billing
// progress against it.
type ChargeVersionRepository interface {
	// ListForRegionAndPeriod returns charge versions whose effective range
	// intersects the period and whose licence is flagged for inclusion,
	// with nested elements, purposes and licence.
	ListForRegionAndPeriod(ctx context.Context, regionID string, period BillingPeriod) ([]ChargeVersion, error)
	MarkBilled(ctx context.Context, billed []BilledChargeVersion) error
}

// InvoiceRepository persists invoices and their licence groupings.
type InvoiceRepository interface {
	FindByBatchAndAccount(ctx context.Context, batchID, billingAccountID string, financialYearEnding int) (*Invoice, error)
	FindLicence(ctx context.Context, invoiceID, licenceID string) (*InvoiceLicence, error)
	CreateMany(ctx context.Context, invoices []Invoice) error
	CreateManyLicences(ctx context.Context, invoiceLicences []InvoiceLicence) error
	ListForBatch(ctx context.Context, batchID string) ([]Invoice, error)
}

// TransactionRepository persists computed charge lines.
type TransactionRepository interface {
	CreateMany(ctx context.Context, transactions []Transaction) error
	// ListBilledForLicence returns charge lines already billed against a
	// licence in sent batches on or after from, used to avoid double
	// charging in supplementary runs.
	ListBilledForLicence(ctx context.Context, licenceID string, from time.Time) ([]Transaction, error)
	ListForBatch(ctx context.Context, batchID string) ([]Transaction, error)
}

// LicenceRepository updates billing flags on licences.
type LicenceRepository interface {
	ClearSupplementaryFlags(ctx context.Context, licenceIDs []string) error
}
