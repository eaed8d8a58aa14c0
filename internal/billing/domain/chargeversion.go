package billing

import "time"

// ChargeVersionStatus marks whether a charge version is in force.
type ChargeVersionStatus string

const (
	ChargeVersionStatusCurrent    ChargeVersionStatus = "current"
	ChargeVersionStatusSuperseded ChargeVersionStatus = "superseded"
)

// Licence is the abstraction licence a charge version belongs to.
type Licence struct {
	ID                   string
	Ref                  string
	RegionID             string
	StartDate            time.Time
	IsWaterUndertaker    bool
	IncludeInSrocBilling bool
}

// IsNewFor reports whether the licence started inside the billing period.
func (l Licence) IsNewFor(period BillingPeriod) bool {
	return l.StartDate.After(period.StartDate)
}

// ChargeVersion is a licence's effective charging configuration for a
// date range. Read-only input to the billing pipeline.
type ChargeVersion struct {
	ID               string
	LicenceID        string
	Licence          Licence
	BillingAccountID string
	AccountNumber    string
	Status           ChargeVersionStatus
	StartDate        time.Time
	EndDate          time.Time // zero when open-ended
	Elements         []ChargeElement
}

// ChargePeriod intersects the charge version's validity with the billing
// period. ok is false when the two do not overlap.
func (cv ChargeVersion) ChargePeriod(period BillingPeriod) (start, end time.Time, ok bool) {
	start = period.StartDate
	if cv.StartDate.After(start) {
		start = cv.StartDate
	}
	end = period.EndDate
	if !cv.EndDate.IsZero() && cv.EndDate.Before(end) {
		end = cv.EndDate
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// ChargeElement describes a charge reference within a charge version:
// authorised volume, loss category, adjustments and the charge category.
type ChargeElement struct {
	ID                        string
	Volume                    float64
	Loss                      string
	ChargeCategoryCode        string
	ChargeCategoryDescription string
	Section126Factor          float64 // defaults to 1
	Section127Agreement       bool
	Section130Agreement       bool
	AggregateFactor           float64 // defaults to 1
	AdjustmentFactor          float64 // defaults to 1
	IsSupportedSource         bool
	SupportedSourceName       string
	IsWaterCompanyCharge      bool
	IsWinterOnly              bool
	Purposes                  []ChargePurpose
}

// ChargePurpose carries the abstraction window of a charge element,
// expressed as day/month boundaries that recur each year.
type ChargePurpose struct {
	ID                        string
	AbstractionPeriodStartDay int
	AbstractionPeriodStartMon int
	AbstractionPeriodEndDay   int
	AbstractionPeriodEndMon   int
}
