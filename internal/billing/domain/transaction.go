package billing

import "time"

// ChargeType distinguishes the standard charge line from its mirrored
// regional compensation line.
type ChargeType string

const (
	ChargeTypeStandard     ChargeType = "standard"
	ChargeTypeCompensation ChargeType = "compensation"
)

// Transaction statuses. A transaction is a candidate until the charging
// engine accepts it.
type TransactionStatus string

const (
	TransactionStatusCandidate     TransactionStatus = "candidate"
	TransactionStatusChargeCreated TransactionStatus = "charge_created"
)

// Transaction is one computed charge line. It belongs to exactly one
// invoice licence once submitted.
type Transaction struct {
	ID                        string
	InvoiceLicenceID          string
	ChargeVersionID           string
	ChargeElementID           string
	ChargeType                ChargeType
	Description               string
	ChargeCategoryCode        string
	ChargeCategoryDescription string
	StartDate                 time.Time
	EndDate                   time.Time
	AuthorisedDays            int
	BillableDays              int
	Volume                    float64
	Loss                      string
	IsCredit                  bool
	IsNewLicence              bool
	IsWaterCompanyCharge      bool
	IsSupportedSource         bool
	SupportedSourceName       string
	IsWinterOnly              bool
	Section126Factor          float64
	Section127Agreement       bool
	Section130Agreement       bool
	AggregateFactor           float64
	AdjustmentFactor          float64
	Status                    TransactionStatus
	ExternalID                string
	CreatedAt                 time.Time
}

// BilledChargeVersion records that a charge version was billed up to a
// date by a batch, so later supplementary runs do not double charge.
type BilledChargeVersion struct {
	ChargeVersionID string
	BilledUpToDate  time.Time
}
