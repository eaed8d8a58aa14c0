package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	billing "water-billing/internal/billing/domain"
)

// TransactionRepository persists computed charge lines.
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository constructs a repository.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// CreateMany bulk-inserts transactions.
func (r *TransactionRepository) CreateMany(ctx context.Context, transactions []billing.Transaction) error {
	if r == nil || r.db == nil {
		return errors.New("transaction repo: nil db")
	}
	if len(transactions) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, t := range transactions {
		_, err := tx.ExecContext(ctx, `
INSERT INTO billing_transactions (
	id, invoice_licence_id, charge_version_id, charge_element_id, charge_type,
	description, charge_category_code, charge_category_description,
	start_date, end_date, authorised_days, billable_days, volume, loss,
	is_credit, is_new_licence, is_water_company_charge, is_supported_source,
	supported_source_name, is_winter_only, section_126_factor,
	section_127_agreement, section_130_agreement, aggregate_factor,
	adjustment_factor, status, external_id, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,
	$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28
)`,
			t.ID, t.InvoiceLicenceID, t.ChargeVersionID, t.ChargeElementID, t.ChargeType,
			t.Description, t.ChargeCategoryCode, t.ChargeCategoryDescription,
			t.StartDate, t.EndDate, t.AuthorisedDays, t.BillableDays, t.Volume, t.Loss,
			t.IsCredit, t.IsNewLicence, t.IsWaterCompanyCharge, t.IsSupportedSource,
			nullableString(t.SupportedSourceName), t.IsWinterOnly, t.Section126Factor,
			t.Section127Agreement, t.Section130Agreement, t.AggregateFactor,
			t.AdjustmentFactor, t.Status, nullableString(t.ExternalID), t.CreatedAt)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ListBilledForLicence returns charge lines billed against a licence in
// sent batches since from.
func (r *TransactionRepository) ListBilledForLicence(ctx context.Context, licenceID string, from time.Time) ([]billing.Transaction, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("transaction repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT t.id, t.invoice_licence_id, t.charge_version_id, t.charge_element_id, t.charge_type,
	t.start_date, t.end_date, t.authorised_days, t.billable_days,
	t.volume, t.is_credit, t.status
FROM billing_transactions t
JOIN billing_invoice_licences il ON il.id = t.invoice_licence_id
JOIN billing_invoices i ON i.id = il.invoice_id
JOIN billing_batches b ON b.id = i.batch_id
WHERE il.licence_id = $1 AND b.status = 'sent' AND t.start_date >= $2
ORDER BY t.start_date`, licenceID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []billing.Transaction
	for rows.Next() {
		var t billing.Transaction
		if err := rows.Scan(
			&t.ID, &t.InvoiceLicenceID, &t.ChargeVersionID, &t.ChargeElementID, &t.ChargeType,
			&t.StartDate, &t.EndDate, &t.AuthorisedDays, &t.BillableDays,
			&t.Volume, &t.IsCredit, &t.Status,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// ListForBatch returns every charge line of a batch, in submission order.
func (r *TransactionRepository) ListForBatch(ctx context.Context, batchID string) ([]billing.Transaction, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("transaction repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT t.id, t.invoice_licence_id, t.charge_version_id, t.charge_element_id, t.charge_type,
	t.description, t.charge_category_code,
	t.start_date, t.end_date, t.authorised_days, t.billable_days,
	t.volume, t.loss, t.is_credit, t.status
FROM billing_transactions t
JOIN billing_invoice_licences il ON il.id = t.invoice_licence_id
JOIN billing_invoices i ON i.id = il.invoice_id
WHERE i.batch_id = $1
ORDER BY t.created_at, t.id`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []billing.Transaction
	for rows.Next() {
		var t billing.Transaction
		if err := rows.Scan(
			&t.ID, &t.InvoiceLicenceID, &t.ChargeVersionID, &t.ChargeElementID, &t.ChargeType,
			&t.Description, &t.ChargeCategoryCode,
			&t.StartDate, &t.EndDate, &t.AuthorisedDays, &t.BillableDays,
			&t.Volume, &t.Loss, &t.IsCredit, &t.Status,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}
