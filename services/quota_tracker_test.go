package services

import (
	"context"
	"testing"
	"time"
)

func TestQuotaTrackerCountsCalls(t *testing.T) {
	tracker := NewQuotaTracker(nil)

	if got := tracker.Today(); got != 0 {
		t.Errorf("Expected 0 calls initially, got %d", got)
	}

	tracker.Increment()
	tracker.Increment()
	tracker.Increment()

	if got := tracker.Today(); got != 3 {
		t.Errorf("Expected 3 calls, got %d", got)
	}
}

func TestQuotaTrackerRollsOverAtUTCMidnight(t *testing.T) {
	current := time.Date(2024, 5, 1, 23, 50, 0, 0, time.UTC)
	tracker := NewQuotaTracker(nil)
	tracker.now = func() time.Time { return current }
	tracker.day = current.Format("2006-01-02")

	tracker.Increment()
	tracker.Increment()
	if got := tracker.Today(); got != 2 {
		t.Fatalf("Expected 2 calls before midnight, got %d", got)
	}

	// 跨 UTC 午夜后计数归零
	current = time.Date(2024, 5, 2, 0, 10, 0, 0, time.UTC)
	if got := tracker.Today(); got != 0 {
		t.Errorf("Expected 0 calls after rollover, got %d", got)
	}

	tracker.Increment()
	if got := tracker.Today(); got != 1 {
		t.Errorf("Expected 1 call on the new day, got %d", got)
	}
}

func TestQuotaTrackerReconcileWithoutRedis(t *testing.T) {
	tracker := NewQuotaTracker(nil)
	tracker.Increment()

	// 未配置 Redis 时对齐就是本地计数
	if got := tracker.Reconcile(context.Background()); got != 1 {
		t.Errorf("Expected local count 1, got %d", got)
	}
}
