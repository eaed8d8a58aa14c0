package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	billing "water-billing/internal/billing/domain"
)

// BatchRepository persists bill run batches.
type BatchRepository struct {
	db *sql.DB
}

// NewBatchRepository constructs a repository.
func NewBatchRepository(db *sql.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create inserts a batch.
func (r *BatchRepository) Create(ctx context.Context, batch *billing.Batch) error {
	if r == nil || r.db == nil {
		return errors.New("batch repo: nil db")
	}
	if batch == nil {
		return billing.ErrNilBatch
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO billing_batches (
	id, region_id, batch_type, scheme, status, error_code, external_id,
	bill_run_number, from_financial_year_ending, to_financial_year_ending,
	created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)`,
		batch.ID, batch.RegionID, batch.BatchType, batch.Scheme, batch.Status,
		nullableCode(batch.ErrorCode), nullableString(batch.ExternalID),
		batch.BillRunNumber, batch.FromFinancialYearEnding, batch.ToFinancialYearEnding,
		batch.CreatedAt, batch.UpdatedAt,
	)
	return err
}

// GetByID fetches a batch.
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*billing.Batch, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("batch repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, region_id, batch_type, scheme, status, error_code, external_id,
	bill_run_number, from_financial_year_ending, to_financial_year_ending,
	created_at, updated_at
FROM billing_batches
WHERE id = $1
LIMIT 1`, id)
	return scanBatch(row)
}

// CountLive counts batches in a live status for the admission tuple.
func (r *BatchRepository) CountLive(ctx context.Context, regionID string, toFinancialYearEnding int, scheme billing.Scheme, batchType billing.BatchType) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("batch repo: nil db")
	}
	var count int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM billing_batches
WHERE region_id = $1 AND to_financial_year_ending = $2 AND scheme = $3 AND batch_type = $4
	AND status IN ('processing','ready','review')`,
		regionID, toFinancialYearEnding, scheme, batchType).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateStatus patches the batch status.
func (r *BatchRepository) UpdateStatus(ctx context.Context, id string, status billing.BatchStatus) error {
	if r == nil || r.db == nil {
		return errors.New("batch repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE billing_batches SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, time.Now().UTC())
	if err != nil {
		return err
	}
	return requireRow(result)
}

// MarkErrored patches the batch to error with the carried code. A zero
// code is stored as null.
func (r *BatchRepository) MarkErrored(ctx context.Context, id string, code billing.ErrorCode) error {
	if r == nil || r.db == nil {
		return errors.New("batch repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE billing_batches SET status = 'error', error_code = $2, updated_at = $3 WHERE id = $1`,
		id, nullableCode(code), time.Now().UTC())
	if err != nil {
		return err
	}
	return requireRow(result)
}

func scanBatch(row *sql.Row) (*billing.Batch, error) {
	var batch billing.Batch
	var errorCode sql.NullInt64
	var externalID sql.NullString
	err := row.Scan(
		&batch.ID, &batch.RegionID, &batch.BatchType, &batch.Scheme, &batch.Status,
		&errorCode, &externalID, &batch.BillRunNumber,
		&batch.FromFinancialYearEnding, &batch.ToFinancialYearEnding,
		&batch.CreatedAt, &batch.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, billing.ErrBatchNotFound
	}
	if err != nil {
		return nil, err
	}
	if errorCode.Valid {
		batch.ErrorCode = billing.ErrorCode(errorCode.Int64)
	}
	if externalID.Valid {
		batch.ExternalID = externalID.String
	}
	return &batch, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrBatchNotFound
	}
	return nil
}

func nullableCode(code billing.ErrorCode) sql.NullInt64 {
	if code == billing.ErrorCodeNone {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(code), Valid: true}
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
