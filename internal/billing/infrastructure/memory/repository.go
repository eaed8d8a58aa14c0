package memory

import (
	"context"
	"sync"
	"time"

	billing "water-billing/internal/billing/domain"
)

// Store holds billing state in memory. It backs the per-aggregate
// repository views below and is used by unit and scenario tests.
type Store struct {
	mu              sync.RWMutex
	batches         map[string]*billing.Batch
	events          []billing.Event
	chargeVersions  []billing.ChargeVersion
	billedUpTo      map[string]time.Time
	invoices        map[string]billing.Invoice
	invoiceLicences map[string]billing.InvoiceLicence
	transactions    []billing.Transaction
	clearedLicences map[string]bool
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		batches:         make(map[string]*billing.Batch),
		billedUpTo:      make(map[string]time.Time),
		invoices:        make(map[string]billing.Invoice),
		invoiceLicences: make(map[string]billing.InvoiceLicence),
		clearedLicences: make(map[string]bool),
	}
}

// SeedChargeVersions loads charge configuration into the store.
func (s *Store) SeedChargeVersions(chargeVersions ...billing.ChargeVersion) {
	s.mu.Lock()
	s.chargeVersions = append(s.chargeVersions, chargeVersions...)
	s.mu.Unlock()
}

// Batches returns a BatchRepository view.
func (s *Store) Batches() *BatchRepository { return &BatchRepository{store: s} }

// Events returns an EventRepository view.
func (s *Store) Events() *EventRepository { return &EventRepository{store: s} }

// ChargeVersions returns a ChargeVersionRepository view.
func (s *Store) ChargeVersions() *ChargeVersionRepository {
	return &ChargeVersionRepository{store: s}
}

// Invoices returns an InvoiceRepository view.
func (s *Store) Invoices() *InvoiceRepository { return &InvoiceRepository{store: s} }

// Transactions returns a TransactionRepository view.
func (s *Store) Transactions() *TransactionRepository {
	return &TransactionRepository{store: s}
}

// Licences returns a LicenceRepository view.
func (s *Store) Licences() *LicenceRepository { return &LicenceRepository{store: s} }

// BatchRepository is the in-memory batch store.
type BatchRepository struct {
	store *Store
}

var _ billing.BatchRepository = (*BatchRepository)(nil)

func (r *BatchRepository) Create(ctx context.Context, batch *billing.Batch) error {
	_ = ctx
	if batch == nil {
		return billing.ErrNilBatch
	}
	clone := *batch
	r.store.mu.Lock()
	r.store.batches[batch.ID] = &clone
	r.store.mu.Unlock()
	return nil
}

func (r *BatchRepository) GetByID(ctx context.Context, id string) (*billing.Batch, error) {
	_ = ctx
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	batch, ok := r.store.batches[id]
	if !ok {
		return nil, billing.ErrBatchNotFound
	}
	clone := *batch
	return &clone, nil
}

func (r *BatchRepository) CountLive(ctx context.Context, regionID string, toFinancialYearEnding int, scheme billing.Scheme, batchType billing.BatchType) (int, error) {
	_ = ctx
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	count := 0
	for _, batch := range r.store.batches {
		if batch.RegionID != regionID || batch.ToFinancialYearEnding != toFinancialYearEnding {
			continue
		}
		if batch.Scheme != scheme || batch.BatchType != batchType {
			continue
		}
		for _, status := range billing.LiveStatuses {
			if batch.Status == status {
				count++
				break
			}
		}
	}
	return count, nil
}

func (r *BatchRepository) UpdateStatus(ctx context.Context, id string, status billing.BatchStatus) error {
	_ = ctx
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	batch, ok := r.store.batches[id]
	if !ok {
		return billing.ErrBatchNotFound
	}
	batch.Status = status
	batch.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *BatchRepository) MarkErrored(ctx context.Context, id string, code billing.ErrorCode) error {
	_ = ctx
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	batch, ok := r.store.batches[id]
	if !ok {
		return billing.ErrBatchNotFound
	}
	batch.Status = billing.BatchStatusError
	batch.ErrorCode = code
	batch.UpdatedAt = time.Now().UTC()
	return nil
}

// EventRepository is the in-memory event store.
type EventRepository struct {
	store *Store
}

var _ billing.EventRepository = (*EventRepository)(nil)

func (r *EventRepository) Create(ctx context.Context, event *billing.Event) error {
	_ = ctx
	r.store.mu.Lock()
	r.store.events = append(r.store.events, *event)
	r.store.mu.Unlock()
	return nil
}

func (r *EventRepository) ListForBatch(ctx context.Context, batchID string) ([]billing.Event, error) {
	_ = ctx
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var events []billing.Event
	for _, event := range r.store.events {
		if event.BatchID == batchID {
			events = append(events, event)
		}
	}
	return events, nil
}

// ChargeVersionRepository is the in-memory charge configuration store.
type ChargeVersionRepository struct {
	store *Store
}

var _ billing.ChargeVersionRepository = (*ChargeVersionRepository)(nil)

func (r *ChargeVersionRepository) ListForRegionAndPeriod(ctx context.Context, regionID string, period billing.BillingPeriod) ([]billing.ChargeVersion, error) {
	_ = ctx
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var matched []billing.ChargeVersion
	for _, cv := range r.store.chargeVersions {
		if cv.Licence.RegionID != regionID || !cv.Licence.IncludeInSrocBilling {
			continue
		}
		if cv.Status != billing.ChargeVersionStatusCurrent && cv.Status != billing.ChargeVersionStatusSuperseded {
			continue
		}
		if cv.StartDate.After(period.EndDate) {
			continue
		}
		if !cv.EndDate.IsZero() && cv.EndDate.Before(period.StartDate) {
			continue
		}
		matched = append(matched, cv)
	}
	return matched, nil
}

func (r *ChargeVersionRepository) MarkBilled(ctx context.Context, billed []billing.BilledChargeVersion) error {
	_ = ctx
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, entry := range billed {
		r.store.billedUpTo[entry.ChargeVersionID] = entry.BilledUpToDate
	}
	return nil
}

// BilledUpTo returns the recorded billed-up-to date for a charge version.
func (s *Store) BilledUpTo(chargeVersionID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	date, ok := s.billedUpTo[chargeVersionID]
	return date, ok
}

// InvoiceRepository is the in-memory invoice store.
type InvoiceRepository struct {
	store *Store
}

var _ billing.InvoiceRepository = (*InvoiceRepository)(nil)

func (r *InvoiceRepository) FindByBatchAndAccount(ctx context.Context, batchID, billingAccountID string, financialYearEnding int) (*billing.Invoice, error) {
	_ = ctx
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, invoice := range r.store.invoices {
		if invoice.BatchID == batchID && invoice.BillingAccountID == billingAccountID && invoice.FinancialYearEnding == financialYearEnding {
			clone := invoice
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *InvoiceRepository) FindLicence(ctx context.Context, invoiceID, licenceID string) (*billing.InvoiceLicence, error) {
	_ = ctx
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, il := range r.store.invoiceLicences {
		if il.InvoiceID == invoiceID && il.LicenceID == licenceID {
			clone := il
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *InvoiceRepository) CreateMany(ctx context.Context, invoices []billing.Invoice) error {
	_ = ctx
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, invoice := range invoices {
		r.store.invoices[invoice.ID] = invoice
	}
	return nil
}

func (r *InvoiceRepository) CreateManyLicences(ctx context.Context, invoiceLicences []billing.InvoiceLicence) error {
	_ = ctx
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, il := range invoiceLicences {
		r.store.invoiceLicences[il.ID] = il
	}
	return nil
}

func (r *InvoiceRepository) ListForBatch(ctx context.Context, batchID string) ([]billing.Invoice, error) {
	_ = ctx
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var invoices []billing.Invoice
	for _, invoice := range r.store.invoices {
		if invoice.BatchID == batchID {
			invoices = append(invoices, invoice)
		}
	}
	return invoices, nil
}

// StoredInvoices returns all stored invoices.
func (s *Store) StoredInvoices() []billing.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var invoices []billing.Invoice
	for _, invoice := range s.invoices {
		invoices = append(invoices, invoice)
	}
	return invoices
}

// StoredInvoiceLicences returns all stored invoice licences.
func (s *Store) StoredInvoiceLicences() []billing.InvoiceLicence {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var invoiceLicences []billing.InvoiceLicence
	for _, il := range s.invoiceLicences {
		invoiceLicences = append(invoiceLicences, il)
	}
	return invoiceLicences
}

// TransactionRepository is the in-memory charge line store.
type TransactionRepository struct {
	store *Store
}

var _ billing.TransactionRepository = (*TransactionRepository)(nil)

func (r *TransactionRepository) CreateMany(ctx context.Context, transactions []billing.Transaction) error {
	_ = ctx
	r.store.mu.Lock()
	r.store.transactions = append(r.store.transactions, transactions...)
	r.store.mu.Unlock()
	return nil
}

func (r *TransactionRepository) ListBilledForLicence(ctx context.Context, licenceID string, from time.Time) ([]billing.Transaction, error) {
	_ = ctx
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var billed []billing.Transaction
	for _, t := range r.store.transactions {
		il, ok := r.store.invoiceLicences[t.InvoiceLicenceID]
		if !ok || il.LicenceID != licenceID {
			continue
		}
		invoice, ok := r.store.invoices[il.InvoiceID]
		if !ok {
			continue
		}
		batch, ok := r.store.batches[invoice.BatchID]
		if !ok || batch.Status != billing.BatchStatusSent {
			continue
		}
		if t.StartDate.Before(from) {
			continue
		}
		billed = append(billed, t)
	}
	return billed, nil
}

func (r *TransactionRepository) ListForBatch(ctx context.Context, batchID string) ([]billing.Transaction, error) {
	_ = ctx
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var transactions []billing.Transaction
	for _, t := range r.store.transactions {
		il, ok := r.store.invoiceLicences[t.InvoiceLicenceID]
		if !ok {
			continue
		}
		invoice, ok := r.store.invoices[il.InvoiceID]
		if !ok || invoice.BatchID != batchID {
			continue
		}
		transactions = append(transactions, t)
	}
	return transactions, nil
}

// StoredTransactions returns all stored transactions.
func (s *Store) StoredTransactions() []billing.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]billing.Transaction(nil), s.transactions...)
}

// LicenceRepository is the in-memory licence flag store.
type LicenceRepository struct {
	store *Store
}

var _ billing.LicenceRepository = (*LicenceRepository)(nil)

func (r *LicenceRepository) ClearSupplementaryFlags(ctx context.Context, licenceIDs []string) error {
	_ = ctx
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, id := range licenceIDs {
		r.store.clearedLicences[id] = true
	}
	return nil
}

// LicenceFlagCleared reports whether a licence was unflagged.
func (s *Store) LicenceFlagCleared(licenceID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clearedLicences[licenceID]
}
