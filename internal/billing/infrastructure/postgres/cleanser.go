package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"water-billing/internal/billing/application"
	billing "water-billing/internal/billing/domain"
)

type billedTransactionLister interface {
	ListBilledForLicence(ctx context.Context, licenceID string, from time.Time) ([]billing.Transaction, error)
}

// HistoryCleanser removes candidate transactions that match a charge
// line already billed for the licence in a sent batch, so supplementary
// runs never double charge.
type HistoryCleanser struct {
	transactions billedTransactionLister
}

// NewHistoryCleanser constructs a cleanser.
func NewHistoryCleanser(transactions billedTransactionLister) (*HistoryCleanser, error) {
	if transactions == nil {
		return nil, errors.New("history cleanser: nil transaction repository")
	}
	return &HistoryCleanser{transactions: transactions}, nil
}

var _ application.TransactionCleanser = (*HistoryCleanser)(nil)

// Cleanse drops candidates whose element, charge type, period and day
// counts match an already-billed debit.
func (c *HistoryCleanser) Cleanse(ctx context.Context, batch *billing.Batch, licenceID string, candidates []billing.Transaction) ([]billing.Transaction, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	from := candidates[0].StartDate
	for _, candidate := range candidates[1:] {
		if candidate.StartDate.Before(from) {
			from = candidate.StartDate
		}
	}

	billed, err := c.transactions.ListBilledForLicence(ctx, licenceID, from)
	if err != nil {
		return nil, err
	}
	if len(billed) == 0 {
		return candidates, nil
	}

	history := make(map[string]int)
	for _, t := range billed {
		if t.IsCredit {
			history[cleanseKey(t)]--
			continue
		}
		history[cleanseKey(t)]++
	}

	var remaining []billing.Transaction
	for _, candidate := range candidates {
		key := cleanseKey(candidate)
		if history[key] > 0 {
			history[key]--
			continue
		}
		remaining = append(remaining, candidate)
	}
	return remaining, nil
}

func cleanseKey(t billing.Transaction) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		t.ChargeElementID, t.ChargeType,
		t.StartDate.Format("2006-01-02"), t.EndDate.Format("2006-01-02"),
		t.AuthorisedDays, t.BillableDays)
}
