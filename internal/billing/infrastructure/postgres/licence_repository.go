package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// LicenceRepository updates billing flags on licences.
type LicenceRepository struct {
	db *sql.DB
}

// NewLicenceRepository constructs a repository.
func NewLicenceRepository(db *sql.DB) *LicenceRepository {
	return &LicenceRepository{db: db}
}

// ClearSupplementaryFlags unflags licences that ended up with no charges
// in the run, so the next supplementary batch does not pick them up
// again for nothing.
func (r *LicenceRepository) ClearSupplementaryFlags(ctx context.Context, licenceIDs []string) error {
	if r == nil || r.db == nil {
		return errors.New("licence repo: nil db")
	}
	if len(licenceIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE licences SET include_in_sroc_billing = FALSE, updated_at = $2 WHERE id = ANY($1)`,
		licenceIDs, time.Now().UTC())
	return err
}
