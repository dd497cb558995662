package services

import (
	"context"
	"testing"
	"time"
)

func newTestNegativeCache(store *fakeCheckStore, now time.Time) (*NegativeCache, *time.Time) {
	current := now
	cache := NewNegativeCache(store)
	cache.now = func() time.Time { return current }
	return cache, &current
}

func TestNegativeCacheSuppressesRepeatQueries(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cache, _ := newTestNegativeCache(newFakeCheckStore(), now)
	ctx := context.Background()

	// 无记录时不压制
	if cache.ShouldSkipUpstream(ctx, 39, "2024-05-01") {
		t.Error("Expected no suppression without a record")
	}

	// 记录"无比赛"后压制
	cache.RecordResult(ctx, 39, "2024-05-01", false)
	if !cache.ShouldSkipUpstream(ctx, 39, "2024-05-01") {
		t.Error("Expected suppression after negative result")
	}

	// 记录"有比赛"不压制
	cache.RecordResult(ctx, 140, "2024-05-01", true)
	if cache.ShouldSkipUpstream(ctx, 140, "2024-05-01") {
		t.Error("Expected no suppression after positive result")
	}
}

func TestNegativeCacheSuppressionExpires(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cache, current := newTestNegativeCache(newFakeCheckStore(), now)
	ctx := context.Background()

	cache.RecordResult(ctx, 39, "2024-05-01", false)

	// 阈值内仍压制
	*current = now.Add(12 * time.Hour)
	if !cache.ShouldSkipUpstream(ctx, 39, "2024-05-01") {
		t.Error("Expected suppression within threshold")
	}

	// 近期日期的记录超过 24 小时后失效
	*current = now.Add(25 * time.Hour)
	if cache.ShouldSkipUpstream(ctx, 39, "2024-05-01") {
		t.Error("Expected suppression to expire after threshold")
	}
}

func TestNegativeCacheFarDatesUseLongThreshold(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cache, current := newTestNegativeCache(newFakeCheckStore(), now)
	ctx := context.Background()

	// 两个月前的日期不会再有新增比赛
	cache.RecordResult(ctx, 39, "2024-03-01", false)

	*current = now.Add(72 * time.Hour)
	if !cache.ShouldSkipUpstream(ctx, 39, "2024-03-01") {
		t.Error("Expected far-past date to stay suppressed beyond 24h")
	}
}

func TestNegativeCacheFallsBackToPersistedRecord(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeCheckStore()
	ctx := context.Background()

	// 第一个实例写入持久化记录
	first, _ := newTestNegativeCache(store, now)
	first.RecordResult(ctx, 39, "2024-05-01", false)

	// 新实例内存为空，应从持久化记录恢复压制
	second, _ := newTestNegativeCache(store, now.Add(1*time.Hour))
	if !second.ShouldSkipUpstream(ctx, 39, "2024-05-01") {
		t.Error("Expected persisted record to suppress on a fresh instance")
	}
}

func TestNegativeCacheMemoryEviction(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cache, _ := newTestNegativeCache(newFakeCheckStore(), now)
	ctx := context.Background()

	// 超过容量后内存条目数不增长
	for i := 0; i < memoryCheckCapacity+100; i++ {
		date := now.AddDate(0, 0, -i).Format("2006-01-02")
		cache.RecordResult(ctx, 39, date, false)
	}

	cache.mu.Lock()
	size := len(cache.entries)
	cache.mu.Unlock()
	if size > memoryCheckCapacity {
		t.Errorf("Expected at most %d entries, got %d", memoryCheckCapacity, size)
	}
}
