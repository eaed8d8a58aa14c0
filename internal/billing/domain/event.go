package billing

import (
	"encoding/json"
	"time"
)

// Event is the append-only audit record written when a batch is
// initiated. Owned by exactly one batch, immutable after creation.
type Event struct {
	ID        string
	BatchID   string
	Type      string
	Subtype   string
	Issuer    string
	Metadata  json.RawMessage
	CreatedAt time.Time
}

// EventTypeBillingBatch is the type recorded for batch initiation events.
const EventTypeBillingBatch = "billing-batch"

// NewBatchEvent snapshots a freshly created batch into an audit event.
func NewBatchEvent(id string, batch *Batch, issuer string, createdAt time.Time) (*Event, error) {
	if batch == nil {
		return nil, ErrNilBatch
	}
	metadata, err := json.Marshal(map[string]any{
		"batchId":                 batch.ID,
		"regionId":                batch.RegionID,
		"scheme":                  batch.Scheme,
		"status":                  batch.Status,
		"errorCode":               batch.ErrorCode,
		"externalId":              batch.ExternalID,
		"billRunNumber":           batch.BillRunNumber,
		"fromFinancialYearEnding": batch.FromFinancialYearEnding,
		"toFinancialYearEnding":   batch.ToFinancialYearEnding,
	})
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        id,
		BatchID:   batch.ID,
		Type:      EventTypeBillingBatch,
		Subtype:   string(batch.BatchType),
		Issuer:    issuer,
		Metadata:  metadata,
		CreatedAt: createdAt,
	}, nil
}
