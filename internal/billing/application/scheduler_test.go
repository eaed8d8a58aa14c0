package application

import (
	"context"
	"testing"
	"time"

	billing "water-billing/internal/billing/domain"
	"water-billing/internal/billing/infrastructure/memory"
)

func TestSchedulerShouldRun(t *testing.T) {
	scheduler := NewScheduler(nil, nil, "06:30", "system", nil)

	cases := []struct {
		now  time.Time
		want bool
	}{
		{time.Date(2023, time.June, 1, 6, 30, 0, 0, time.UTC), true},
		{time.Date(2023, time.June, 1, 6, 30, 59, 0, time.UTC), true},
		{time.Date(2023, time.June, 1, 6, 31, 0, 0, time.UTC), false},
		{time.Date(2023, time.June, 1, 18, 30, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		if got := scheduler.shouldRun(tc.now); got != tc.want {
			t.Fatalf("shouldRun(%v) = %t, want %t", tc.now, got, tc.want)
		}
	}
}

func TestSchedulerShouldRunBadTime(t *testing.T) {
	scheduler := NewScheduler(nil, nil, "half past six", "system", nil)
	if scheduler.shouldRun(time.Date(2023, time.June, 1, 6, 30, 0, 0, time.UTC)) {
		t.Fatal("an unparseable daily time must never fire")
	}
}

func TestSchedulerRunOnceCreatesAnnualBatches(t *testing.T) {
	defer runDetachedSync()()

	store := memory.NewStore()
	engine := &stubEngine{}
	runner := newRunner(t, store, engine)
	scheduler := NewScheduler(runner, []string{"region-1", "", "region-2"}, "06:30", "system", nil)

	scheduler.runOnce(context.Background())

	if engine.billRunCalls != 2 {
		t.Fatalf("bill run calls = %d, want one per non-empty region", engine.billRunCalls)
	}
}

func TestSchedulerRunOnceSkipsLiveRegions(t *testing.T) {
	defer runDetachedSync()()

	store := memory.NewStore()
	engine := &stubEngine{}
	runner := newRunner(t, store, engine)

	live := &billing.Batch{
		ID:                    "live-1",
		RegionID:              "region-1",
		BatchType:             billing.BatchTypeAnnual,
		Scheme:                billing.SchemeSROC,
		Status:                billing.BatchStatusProcessing,
		ToFinancialYearEnding: 2024,
	}
	if err := store.Batches().Create(context.Background(), live); err != nil {
		t.Fatalf("seed: %v", err)
	}

	scheduler := NewScheduler(runner, []string{"region-1", "region-2"}, "06:30", "system", nil)
	scheduler.runOnce(context.Background())

	if engine.billRunCalls != 1 {
		t.Fatalf("bill run calls = %d, want the live region skipped", engine.billRunCalls)
	}
}
