package application

import (
	"context"
	"errors"
	"log"
	"time"

	billing "water-billing/internal/billing/domain"
)

// Scheduler triggers annual bill runs for the configured regions at a
// daily time. A region whose admission is refused by the live batch
// guard is skipped and logged; nothing is retried until the next day.
type Scheduler struct {
	runner  *BatchRunner
	regions []string
	dailyAt string
	issuer  string
	logger  *log.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(runner *BatchRunner, regions []string, dailyAt, issuer string, logger *log.Logger) *Scheduler {
	return &Scheduler{
		runner:  runner,
		regions: regions,
		dailyAt: dailyAt,
		issuer:  issuer,
		logger:  logger,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.runner == nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now.UTC()) {
				continue
			}
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	return now.Hour() == hour && now.Minute() == minute
}

func (s *Scheduler) runOnce(ctx context.Context) {
	for _, regionID := range s.regions {
		if regionID == "" {
			continue
		}
		batch, err := s.runner.Create(ctx, regionID, billing.BatchTypeAnnual, s.issuer, 0)
		if err != nil {
			var duplicate *billing.DuplicateBatchError
			if errors.As(err, &duplicate) {
				if s.logger != nil {
					s.logger.Printf("billing: annual run skipped, live batch exists: region=%s", regionID)
				}
				continue
			}
			if s.logger != nil {
				s.logger.Printf("billing: annual run failed: region=%s err=%v", regionID, err)
			}
			continue
		}
		if s.logger != nil {
			s.logger.Printf("billing: annual run started: region=%s batch=%s", regionID, batch.ID)
		}
	}
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
