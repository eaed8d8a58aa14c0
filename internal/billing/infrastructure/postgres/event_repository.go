package postgres

import (
	"context"
	"database/sql"
	"errors"

	billing "water-billing/internal/billing/domain"
)

// EventRepository persists batch audit events.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository constructs a repository.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create appends an audit event. Events are never updated or deleted.
func (r *EventRepository) Create(ctx context.Context, event *billing.Event) error {
	if r == nil || r.db == nil {
		return errors.New("event repo: nil db")
	}
	if event == nil {
		return errors.New("event repo: nil event")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO billing_events (
	id, batch_id, type, subtype, issuer, metadata, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		event.ID, event.BatchID, event.Type, event.Subtype, event.Issuer,
		[]byte(event.Metadata), event.CreatedAt)
	return err
}

// ListForBatch returns the events referencing a batch, oldest first.
func (r *EventRepository) ListForBatch(ctx context.Context, batchID string) ([]billing.Event, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("event repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, batch_id, type, subtype, issuer, metadata, created_at
FROM billing_events
WHERE batch_id = $1
ORDER BY created_at ASC`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []billing.Event
	for rows.Next() {
		var event billing.Event
		var metadata []byte
		if err := rows.Scan(&event.ID, &event.BatchID, &event.Type, &event.Subtype, &event.Issuer, &metadata, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.Metadata = metadata
		events = append(events, event)
	}
	return events, rows.Err()
}
