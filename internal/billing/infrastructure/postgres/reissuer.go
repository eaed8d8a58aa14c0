package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"water-billing/internal/billing/application"
	billing "water-billing/internal/billing/domain"
)

// Reissuer copies invoices flagged for rebilling into a new batch and
// marks the originals as reissued. Feature gated; wired only when
// reissuing is enabled.
type Reissuer struct {
	db *sql.DB
}

var _ application.InvoiceReissuer = (*Reissuer)(nil)

// NewReissuer constructs a reissuer.
func NewReissuer(db *sql.DB) (*Reissuer, error) {
	if db == nil {
		return nil, errors.New("reissuer: nil db")
	}
	return &Reissuer{db: db}, nil
}

// Reissue moves every invoice flagged for rebilling in the batch's
// region into the batch. Returns whether anything was reissued; either
// all flagged invoices move or none do.
func (r *Reissuer) Reissue(ctx context.Context, batch *billing.Batch) (bool, error) {
	if batch == nil {
		return false, billing.ErrNilBatch
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
SELECT i.id, i.billing_account_id, i.account_number, i.financial_year_ending
FROM billing_invoices i
JOIN billing_batches b ON b.id = i.batch_id
WHERE b.region_id = $1 AND b.status = 'sent' AND i.rebilling_state = 'rebill'`,
		batch.RegionID)
	if err != nil {
		return false, err
	}

	type flagged struct {
		id                  string
		billingAccountID    string
		accountNumber       string
		financialYearEnding int
	}
	var originals []flagged
	for rows.Next() {
		var f flagged
		if err := rows.Scan(&f.id, &f.billingAccountID, &f.accountNumber, &f.financialYearEnding); err != nil {
			rows.Close()
			return false, err
		}
		originals = append(originals, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, err
	}
	if len(originals) == 0 {
		return false, nil
	}

	for _, original := range originals {
		_, err := tx.ExecContext(ctx, `
INSERT INTO billing_invoices (
	id, batch_id, billing_account_id, account_number, financial_year_ending,
	original_invoice_id, created_at
) VALUES ($1,$2,$3,$4,$5,$6,NOW())`,
			uuid.NewString(), batch.ID, original.billingAccountID,
			original.accountNumber, original.financialYearEnding, original.id)
		if err != nil {
			return false, err
		}
		_, err = tx.ExecContext(ctx, `
UPDATE billing_invoices SET rebilling_state = 'rebilled' WHERE id = $1`, original.id)
		if err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
