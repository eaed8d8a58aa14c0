package application

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	billing "water-billing/internal/billing/domain"
)

// Fixed description used on every compensation line.
const compensationChargeDescription = "Compensation charge: calculated from the charge reference, activities and regional environmental improvement charge"

// GeneratorInput carries everything the transaction generator needs for
// one charge element. The charge period is the intersection of the
// charge version's validity and the billing period, supplied by the
// caller.
type GeneratorInput struct {
	Element           billing.ChargeElement
	BillingPeriod     billing.BillingPeriod
	ChargePeriodStart time.Time
	ChargePeriodEnd   time.Time
	IsNewLicence      bool
	IsWaterUndertaker bool
}

// GenerateTransactions computes the candidate charge lines for one
// charge element: none when no day of the abstraction window falls in
// the charge period, a standard line otherwise, and a mirrored
// compensation line unless the account is a water undertaker. Pure; no
// I/O.
func GenerateTransactions(in GeneratorInput) ([]billing.Transaction, error) {
	authorisedDays, err := countAbstractionDays(in.Element.Purposes, in.BillingPeriod.StartDate, in.BillingPeriod.EndDate)
	if err != nil {
		return nil, err
	}
	billableDays, err := countAbstractionDays(in.Element.Purposes, in.ChargePeriodStart, in.ChargePeriodEnd)
	if err != nil {
		return nil, err
	}
	if billableDays == 0 {
		return nil, nil
	}

	standard := buildTransaction(in, authorisedDays, billableDays)
	if in.IsWaterUndertaker {
		return []billing.Transaction{standard}, nil
	}

	compensation := standard
	compensation.ID = uuid.NewString()
	compensation.ChargeType = billing.ChargeTypeCompensation
	compensation.Description = compensationChargeDescription
	return []billing.Transaction{standard, compensation}, nil
}

func buildTransaction(in GeneratorInput, authorisedDays, billableDays int) billing.Transaction {
	el := in.Element
	return billing.Transaction{
		ID:                        uuid.NewString(),
		ChargeElementID:           el.ID,
		ChargeType:                billing.ChargeTypeStandard,
		Description:               fmt.Sprintf("Water abstraction charge: %s", el.ChargeCategoryDescription),
		ChargeCategoryCode:        el.ChargeCategoryCode,
		ChargeCategoryDescription: el.ChargeCategoryDescription,
		StartDate:                 in.ChargePeriodStart,
		EndDate:                   in.ChargePeriodEnd,
		AuthorisedDays:            authorisedDays,
		BillableDays:              billableDays,
		Volume:                    el.Volume,
		Loss:                      el.Loss,
		IsCredit:                  false,
		IsNewLicence:              in.IsNewLicence,
		IsWaterCompanyCharge:      el.IsWaterCompanyCharge,
		IsSupportedSource:         el.IsSupportedSource,
		SupportedSourceName:       el.SupportedSourceName,
		IsWinterOnly:              el.IsWinterOnly,
		Section126Factor:          factorOrOne(el.Section126Factor),
		Section127Agreement:       el.Section127Agreement,
		Section130Agreement:       el.Section130Agreement,
		AggregateFactor:           factorOrOne(el.AggregateFactor),
		AdjustmentFactor:          factorOrOne(el.AdjustmentFactor),
		Status:                    billing.TransactionStatusCandidate,
	}
}

func factorOrOne(value float64) float64 {
	if value == 0 {
		return 1
	}
	return value
}

type dateRange struct {
	start time.Time
	end   time.Time
}

// countAbstractionDays counts the distinct days inside [from, to] on
// which any of the element's abstraction windows applies. Windows are
// recurring day/month boundaries and may wrap the calendar year
// (for example 1 Oct to 31 Mar).
func countAbstractionDays(purposes []billing.ChargePurpose, from, to time.Time) (int, error) {
	if to.Before(from) {
		return 0, nil
	}

	var ranges []dateRange
	for _, purpose := range purposes {
		concrete, err := abstractionRanges(purpose, from, to)
		if err != nil {
			return 0, err
		}
		ranges = append(ranges, concrete...)
	}
	return countDays(mergeRanges(ranges)), nil
}

// abstractionRanges expands a recurring abstraction window into the
// concrete date ranges that intersect [from, to].
func abstractionRanges(purpose billing.ChargePurpose, from, to time.Time) ([]dateRange, error) {
	if err := validateWindow(purpose); err != nil {
		return nil, err
	}

	wraps := purpose.AbstractionPeriodEndMon < purpose.AbstractionPeriodStartMon ||
		(purpose.AbstractionPeriodEndMon == purpose.AbstractionPeriodStartMon &&
			purpose.AbstractionPeriodEndDay < purpose.AbstractionPeriodStartDay)

	var ranges []dateRange
	for year := from.Year() - 1; year <= to.Year(); year++ {
		start := time.Date(year, time.Month(purpose.AbstractionPeriodStartMon), purpose.AbstractionPeriodStartDay, 0, 0, 0, 0, time.UTC)
		endYear := year
		if wraps {
			endYear++
		}
		end := time.Date(endYear, time.Month(purpose.AbstractionPeriodEndMon), purpose.AbstractionPeriodEndDay, 0, 0, 0, 0, time.UTC)

		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		if !start.After(end) {
			ranges = append(ranges, dateRange{start: start, end: end})
		}
	}
	return ranges, nil
}

func validateWindow(purpose billing.ChargePurpose) error {
	if purpose.AbstractionPeriodStartMon < 1 || purpose.AbstractionPeriodStartMon > 12 ||
		purpose.AbstractionPeriodEndMon < 1 || purpose.AbstractionPeriodEndMon > 12 {
		return fmt.Errorf("billing: invalid abstraction month on purpose %s", purpose.ID)
	}
	if purpose.AbstractionPeriodStartDay < 1 || purpose.AbstractionPeriodStartDay > 31 ||
		purpose.AbstractionPeriodEndDay < 1 || purpose.AbstractionPeriodEndDay > 31 {
		return fmt.Errorf("billing: invalid abstraction day on purpose %s", purpose.ID)
	}
	return nil
}

// mergeRanges collapses overlapping or adjacent ranges so each day is
// counted once even when purposes overlap.
func mergeRanges(ranges []dateRange) []dateRange {
	if len(ranges) < 2 {
		return ranges
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].start.Before(ranges[j].start) })

	merged := []dateRange{ranges[0]}
	for _, r := range ranges[1:] {
		last := &merged[len(merged)-1]
		if !r.start.After(last.end.AddDate(0, 0, 1)) {
			if r.end.After(last.end) {
				last.end = r.end
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

func countDays(ranges []dateRange) int {
	total := 0
	for _, r := range ranges {
		total += int(r.end.Sub(r.start).Hours()/24) + 1
	}
	return total
}
