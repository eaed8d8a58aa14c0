package billing

import "time"

// BatchType classifies a bill run.
type BatchType string

const (
	BatchTypeSupplementary BatchType = "supplementary"
	BatchTypeAnnual        BatchType = "annual"
	BatchTypeTwoPartTariff BatchType = "two_part_tariff"
)

// Scheme identifies the charging scheme a batch bills under.
type Scheme string

const (
	SchemeSROC    Scheme = "sroc"
	SchemePresroc Scheme = "presroc"
)

// Batch statuses. A batch moves queued -> processing and from there to
// empty or error, or is advanced externally to ready/review/sent.
type BatchStatus string

const (
	BatchStatusQueued     BatchStatus = "queued"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusReady      BatchStatus = "ready"
	BatchStatusReview     BatchStatus = "review"
	BatchStatusSent       BatchStatus = "sent"
	BatchStatusEmpty      BatchStatus = "empty"
	BatchStatusError      BatchStatus = "error"
)

// LiveStatuses are the statuses that block creation of another batch for
// the same region, year, scheme and type.
var LiveStatuses = []BatchStatus{BatchStatusProcessing, BatchStatusReady, BatchStatusReview}

// Batch is the aggregate root of one bill run. Batches are created once,
// mutated in place by the orchestrator, and never deleted.
type Batch struct {
	ID                      string
	RegionID                string
	BatchType               BatchType
	Scheme                  Scheme
	Status                  BatchStatus
	ErrorCode               ErrorCode
	ExternalID              string
	BillRunNumber           int64
	FromFinancialYearEnding int
	ToFinancialYearEnding   int
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// NormalizeBatchType validates a batch type string.
func NormalizeBatchType(value string) (BatchType, bool) {
	switch BatchType(value) {
	case BatchTypeSupplementary, BatchTypeAnnual, BatchTypeTwoPartTariff:
		return BatchType(value), true
	default:
		return "", false
	}
}
