package billing

import "time"

// Billing periods follow the UK financial year, 1 April to 31 March.
// SROC billing starts with the year ending 2023, and at most six years
// can be billed in one supplementary run.
const (
	financialYearStartMonth = time.April
	minFinancialYearEnding  = 2023
	maxBillingPeriods       = 6
)

// BillingPeriod is one UK financial year under consideration. It is
// derived, never persisted.
type BillingPeriod struct {
	StartDate time.Time
	EndDate   time.Time
}

// FinancialYearEnding returns the calendar year the period ends in.
func (p BillingPeriod) FinancialYearEnding() int {
	return p.EndDate.Year()
}

// Contains reports whether date falls within the period.
func (p BillingPeriod) Contains(date time.Time) bool {
	return !date.Before(p.StartDate) && !date.After(p.EndDate)
}

// NewBillingPeriod builds the period for a financial year ending.
func NewBillingPeriod(financialYearEnding int) (BillingPeriod, error) {
	if financialYearEnding <= 0 {
		return BillingPeriod{}, ErrInvalidFinancialYear
	}
	return BillingPeriod{
		StartDate: time.Date(financialYearEnding-1, time.April, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(financialYearEnding, time.March, 31, 0, 0, 0, 0, time.UTC),
	}, nil
}

// CurrentFinancialYearEnding derives the financial year ending from now,
// with the boundary at 1 April.
func CurrentFinancialYearEnding(now time.Time) int {
	if now.Month() >= financialYearStartMonth {
		return now.Year() + 1
	}
	return now.Year()
}

// CalculateBillingPeriods returns the applicable billing periods, newest
// first. With an explicit financial year ending it returns exactly that
// period. Otherwise it returns the current period plus every prior year
// back to max(currentYear-5, 2023) inclusive.
func CalculateBillingPeriods(now time.Time, financialYearEnding int) ([]BillingPeriod, error) {
	if financialYearEnding != 0 {
		period, err := NewBillingPeriod(financialYearEnding)
		if err != nil {
			return nil, err
		}
		return []BillingPeriod{period}, nil
	}

	currentYear := CurrentFinancialYearEnding(now)
	earliest := currentYear - (maxBillingPeriods - 1)
	if earliest < minFinancialYearEnding {
		earliest = minFinancialYearEnding
	}

	var periods []BillingPeriod
	for year := currentYear; year >= earliest; year-- {
		period, err := NewBillingPeriod(year)
		if err != nil {
			return nil, err
		}
		periods = append(periods, period)
	}
	return periods, nil
}
