package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	billing "water-billing/internal/billing/domain"
)

// InvoiceRepository persists invoices and their licence groupings.
type InvoiceRepository struct {
	db *sql.DB
}

// NewInvoiceRepository constructs a repository.
func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// FindByBatchAndAccount returns the invoice for an account within a
// batch run, or nil.
func (r *InvoiceRepository) FindByBatchAndAccount(ctx context.Context, batchID, billingAccountID string, financialYearEnding int) (*billing.Invoice, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("invoice repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, batch_id, billing_account_id, account_number, financial_year_ending, created_at
FROM billing_invoices
WHERE batch_id = $1 AND billing_account_id = $2 AND financial_year_ending = $3
LIMIT 1`, batchID, billingAccountID, financialYearEnding)

	var invoice billing.Invoice
	err := row.Scan(&invoice.ID, &invoice.BatchID, &invoice.BillingAccountID,
		&invoice.AccountNumber, &invoice.FinancialYearEnding, &invoice.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindLicence returns the invoice licence for a pair, or nil.
func (r *InvoiceRepository) FindLicence(ctx context.Context, invoiceID, licenceID string) (*billing.InvoiceLicence, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("invoice repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, invoice_id, licence_id, licence_ref, created_at
FROM billing_invoice_licences
WHERE invoice_id = $1 AND licence_id = $2
LIMIT 1`, invoiceID, licenceID)

	var il billing.InvoiceLicence
	err := row.Scan(&il.ID, &il.InvoiceID, &il.LicenceID, &il.LicenceRef, &il.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &il, nil
}

// CreateMany bulk-inserts invoices.
func (r *InvoiceRepository) CreateMany(ctx context.Context, invoices []billing.Invoice) error {
	if r == nil || r.db == nil {
		return errors.New("invoice repo: nil db")
	}
	if len(invoices) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, invoice := range invoices {
		createdAt := invoice.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO billing_invoices (
	id, batch_id, billing_account_id, account_number, financial_year_ending, created_at
) VALUES ($1,$2,$3,$4,$5,$6)`,
			invoice.ID, invoice.BatchID, invoice.BillingAccountID,
			invoice.AccountNumber, invoice.FinancialYearEnding, createdAt)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ListForBatch returns all invoices of a batch, oldest first.
func (r *InvoiceRepository) ListForBatch(ctx context.Context, batchID string) ([]billing.Invoice, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("invoice repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, batch_id, billing_account_id, account_number, financial_year_ending, created_at
FROM billing_invoices
WHERE batch_id = $1
ORDER BY created_at, id`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []billing.Invoice
	for rows.Next() {
		var invoice billing.Invoice
		if err := rows.Scan(&invoice.ID, &invoice.BatchID, &invoice.BillingAccountID,
			&invoice.AccountNumber, &invoice.FinancialYearEnding, &invoice.CreatedAt); err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

// CreateManyLicences bulk-inserts invoice licences.
func (r *InvoiceRepository) CreateManyLicences(ctx context.Context, invoiceLicences []billing.InvoiceLicence) error {
	if r == nil || r.db == nil {
		return errors.New("invoice repo: nil db")
	}
	if len(invoiceLicences) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, il := range invoiceLicences {
		createdAt := il.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO billing_invoice_licences (
	id, invoice_id, licence_id, licence_ref, created_at
) VALUES ($1,$2,$3,$4,$5)`,
			il.ID, il.InvoiceID, il.LicenceID, il.LicenceRef, createdAt)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
