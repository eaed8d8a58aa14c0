package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	billing "water-billing/internal/billing/domain"
)

// ChargeVersionRepository reads charge configuration for a region and
// records billing progress against charge versions.
type ChargeVersionRepository struct {
	db *sql.DB
}

// NewChargeVersionRepository constructs a repository.
func NewChargeVersionRepository(db *sql.DB) *ChargeVersionRepository {
	return &ChargeVersionRepository{db: db}
}

// ListForRegionAndPeriod returns qualifying charge versions with nested
// elements, purposes and licence. A charge version qualifies when its
// effective range intersects the period, its licence is flagged for
// supplementary billing, and its status is current or superseded.
func (r *ChargeVersionRepository) ListForRegionAndPeriod(ctx context.Context, regionID string, period billing.BillingPeriod) ([]billing.ChargeVersion, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("charge version repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT cv.id, cv.licence_id, cv.billing_account_id, cv.account_number, cv.status,
	cv.start_date, cv.end_date,
	l.ref, l.region_id, l.start_date, l.is_water_undertaker, l.include_in_sroc_billing
FROM charge_versions cv
JOIN licences l ON l.id = cv.licence_id
WHERE l.region_id = $1
	AND l.include_in_sroc_billing = TRUE
	AND cv.status IN ('current','superseded')
	AND cv.start_date <= $3
	AND (cv.end_date IS NULL OR cv.end_date >= $2)
ORDER BY cv.licence_id, cv.start_date`, regionID, period.StartDate, period.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chargeVersions []billing.ChargeVersion
	index := make(map[string]int)
	var ids []string
	for rows.Next() {
		var cv billing.ChargeVersion
		var endDate sql.NullTime
		if err := rows.Scan(
			&cv.ID, &cv.LicenceID, &cv.BillingAccountID, &cv.AccountNumber, &cv.Status,
			&cv.StartDate, &endDate,
			&cv.Licence.Ref, &cv.Licence.RegionID, &cv.Licence.StartDate,
			&cv.Licence.IsWaterUndertaker, &cv.Licence.IncludeInSrocBilling,
		); err != nil {
			return nil, err
		}
		if endDate.Valid {
			cv.EndDate = endDate.Time
		}
		cv.Licence.ID = cv.LicenceID
		index[cv.ID] = len(chargeVersions)
		chargeVersions = append(chargeVersions, cv)
		ids = append(ids, cv.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(chargeVersions) == 0 {
		return nil, nil
	}

	if err := r.attachElements(ctx, chargeVersions, index, ids); err != nil {
		return nil, err
	}
	return chargeVersions, nil
}

func (r *ChargeVersionRepository) attachElements(ctx context.Context, chargeVersions []billing.ChargeVersion, index map[string]int, ids []string) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT ce.id, ce.charge_version_id, ce.volume, ce.loss,
	ce.charge_category_code, ce.charge_category_description,
	ce.section_126_factor, ce.section_127_agreement, ce.section_130_agreement,
	ce.aggregate_factor, ce.adjustment_factor,
	ce.is_supported_source, ce.supported_source_name,
	ce.is_water_company_charge, ce.is_winter_only
FROM charge_elements ce
WHERE ce.charge_version_id = ANY($1)
ORDER BY ce.charge_version_id, ce.id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	elementIndex := make(map[string]struct {
		cv int
		el int
	})
	for rows.Next() {
		var el billing.ChargeElement
		var chargeVersionID string
		var supportedSourceName sql.NullString
		if err := rows.Scan(
			&el.ID, &chargeVersionID, &el.Volume, &el.Loss,
			&el.ChargeCategoryCode, &el.ChargeCategoryDescription,
			&el.Section126Factor, &el.Section127Agreement, &el.Section130Agreement,
			&el.AggregateFactor, &el.AdjustmentFactor,
			&el.IsSupportedSource, &supportedSourceName,
			&el.IsWaterCompanyCharge, &el.IsWinterOnly,
		); err != nil {
			return err
		}
		if supportedSourceName.Valid {
			el.SupportedSourceName = supportedSourceName.String
		}
		cvIdx, ok := index[chargeVersionID]
		if !ok {
			continue
		}
		chargeVersions[cvIdx].Elements = append(chargeVersions[cvIdx].Elements, el)
		elementIndex[el.ID] = struct {
			cv int
			el int
		}{cv: cvIdx, el: len(chargeVersions[cvIdx].Elements) - 1}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	return r.attachPurposes(ctx, chargeVersions, elementIndex, ids)
}

func (r *ChargeVersionRepository) attachPurposes(ctx context.Context, chargeVersions []billing.ChargeVersion, elementIndex map[string]struct {
	cv int
	el int
}, ids []string) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT cp.id, cp.charge_element_id,
	cp.abstraction_period_start_day, cp.abstraction_period_start_month,
	cp.abstraction_period_end_day, cp.abstraction_period_end_month
FROM charge_purposes cp
JOIN charge_elements ce ON ce.id = cp.charge_element_id
WHERE ce.charge_version_id = ANY($1)
ORDER BY cp.charge_element_id, cp.id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var purpose billing.ChargePurpose
		var chargeElementID string
		if err := rows.Scan(
			&purpose.ID, &chargeElementID,
			&purpose.AbstractionPeriodStartDay, &purpose.AbstractionPeriodStartMon,
			&purpose.AbstractionPeriodEndDay, &purpose.AbstractionPeriodEndMon,
		); err != nil {
			return err
		}
		at, ok := elementIndex[chargeElementID]
		if !ok {
			continue
		}
		element := &chargeVersions[at.cv].Elements[at.el]
		element.Purposes = append(element.Purposes, purpose)
	}
	return rows.Err()
}

// MarkBilled records the billed-up-to date on charge versions.
func (r *ChargeVersionRepository) MarkBilled(ctx context.Context, billed []billing.BilledChargeVersion) error {
	if r == nil || r.db == nil {
		return errors.New("charge version repo: nil db")
	}
	if len(billed) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, entry := range billed {
		_, err := tx.ExecContext(ctx, `
UPDATE charge_versions SET billed_up_to_date = $2, updated_at = $3 WHERE id = $1`,
			entry.ChargeVersionID, entry.BilledUpToDate, now)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
