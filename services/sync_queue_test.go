package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"footdata-service/models"
)

func newTestQueue(store *fakeMatchStore, upstream UpstreamAPI, cfg QueueConfig) *SyncQueue {
	queue := NewSyncQueue(newTestSynchronizer(store, upstream), NewQuotaTracker(nil), cfg)
	queue.pace = func(time.Duration) {} // 测试不等待节流间隔
	return queue
}

func TestEnqueueDeduplicatesByID(t *testing.T) {
	queue := newTestQueue(newFakeMatchStore(), &fakeUpstream{}, QueueConfig{})

	queue.EnqueueFixtures("2024-05-01", 39)
	queue.EnqueueFixtures("2024-05-01", 39)
	queue.EnqueueFixtures("2024-05-01", 140)

	if got := queue.queueLength(); got != 2 {
		t.Errorf("Expected 2 queued jobs, got %d", got)
	}
	if queue.GetStats().TotalJobs != 2 {
		t.Errorf("Expected TotalJobs 2, got %d", queue.GetStats().TotalJobs)
	}
}

func TestProcessRunsJobsToCompletion(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	upstream := &fakeUpstream{fixtures: []models.Match{
		scheduledMatch(1, 39, day.Add(15*time.Hour)),
	}}
	queue := newTestQueue(newFakeMatchStore(), upstream, QueueConfig{})

	queue.EnqueueFixtures("2024-05-01", 39)
	completed, failed := queue.Process(context.Background())

	if completed != 1 || failed != 0 {
		t.Fatalf("Expected (1, 0), got (%d, %d)", completed, failed)
	}

	stats := queue.GetStats()
	if stats.CompletedJobs != 1 {
		t.Errorf("Expected CompletedJobs 1, got %d", stats.CompletedJobs)
	}
	if stats.QueueLength != 0 {
		t.Errorf("Expected empty queue after run, got length %d", stats.QueueLength)
	}
	// 终态任务立即清除，不留在快照里
	if jobs := queue.Jobs(); len(jobs) != 0 {
		t.Errorf("Expected no jobs in snapshot, got %d", len(jobs))
	}
}

func TestProcessContinuesAfterJobFailure(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	upstream := &fakeUpstream{fixtures: []models.Match{
		scheduledMatch(1, 39, day.Add(15*time.Hour)),
	}}
	queue := newTestQueue(newFakeMatchStore(), upstream, QueueConfig{})

	// 不存在的比赛，详情任务必然失败
	queue.EnqueueDetails(999)
	queue.EnqueueFixtures("2024-05-01", 39)

	completed, failed := queue.Process(context.Background())
	if completed != 1 || failed != 1 {
		t.Fatalf("Expected (1, 1), got (%d, %d)", completed, failed)
	}
	if queue.GetStats().FailedJobs != 1 {
		t.Errorf("Expected FailedJobs 1, got %d", queue.GetStats().FailedJobs)
	}
}

func TestEnqueueLiveDetailsJumpsQueue(t *testing.T) {
	queue := newTestQueue(newFakeMatchStore(), &fakeUpstream{}, QueueConfig{})

	queue.EnqueueFixtures("2024-05-01", 39)
	queue.EnqueueDetails(7)
	queue.EnqueueLiveDetails(42)

	jobs := queue.Jobs()
	if len(jobs) != 3 {
		t.Fatalf("Expected 3 jobs, got %d", len(jobs))
	}
	if jobs[0].MatchID != 42 || !jobs[0].Priority {
		t.Errorf("Expected priority job for match 42 at the front, got %+v", jobs[0])
	}
}

func TestEnqueueLiveDetailsReplacesPendingJob(t *testing.T) {
	queue := newTestQueue(newFakeMatchStore(), &fakeUpstream{}, QueueConfig{})

	queue.EnqueueFixtures("2024-05-01", 39)
	queue.EnqueueDetails(42)
	queue.EnqueueLiveDetails(42)

	jobs := queue.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("Expected duplicate details job to be replaced, got %d jobs", len(jobs))
	}
	if jobs[0].MatchID != 42 || !jobs[0].Priority {
		t.Errorf("Expected priority job at the front, got %+v", jobs[0])
	}
}

func TestClearQueueDropsPendingOnly(t *testing.T) {
	queue := newTestQueue(newFakeMatchStore(), &fakeUpstream{}, QueueConfig{})

	queue.EnqueueFixtures("2024-05-01", 39)
	queue.EnqueueFixtures("2024-05-02", 39)

	if dropped := queue.ClearQueue(); dropped != 2 {
		t.Errorf("Expected 2 dropped jobs, got %d", dropped)
	}
	if got := queue.queueLength(); got != 0 {
		t.Errorf("Expected empty queue, got length %d", got)
	}

	// 清空后可以重新排队同一任务
	queue.EnqueueFixtures("2024-05-01", 39)
	if got := queue.queueLength(); got != 1 {
		t.Errorf("Expected 1 queued job after re-enqueue, got %d", got)
	}
}

func TestStopBlocksEnqueueUntilRestart(t *testing.T) {
	queue := newTestQueue(newFakeMatchStore(), &fakeUpstream{}, QueueConfig{})

	queue.Stop()
	queue.EnqueueFixtures("2024-05-01", 39)
	if got := queue.queueLength(); got != 0 {
		t.Errorf("Expected enqueue to be rejected while stopped, got length %d", got)
	}

	queue.Restart()
	queue.EnqueueFixtures("2024-05-01", 39)
	if got := queue.queueLength(); got != 1 {
		t.Errorf("Expected enqueue to work after restart, got length %d", got)
	}
}

func TestProcessPacesOnlyUpstreamJobs(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	upstream := &fakeUpstream{fixtures: []models.Match{
		scheduledMatch(1, 39, day.Add(15*time.Hour)),
		scheduledMatch(2, 140, day.Add(18*time.Hour)),
	}}
	store := newFakeMatchStore()
	quota := NewQuotaTracker(nil)
	engine := newTestSynchronizer(store, countingUpstream{upstream, quota})

	queue := NewSyncQueue(engine, quota, QueueConfig{MaxRequestsPerMinute: 10})
	var paced []time.Duration
	queue.pace = func(d time.Duration) { paced = append(paced, d) }

	queue.EnqueueFixtures("2024-05-01", 39)
	queue.EnqueueFixtures("2024-05-01", 140)
	queue.Process(context.Background())

	// 两个任务都打了上游，只有中间的一次间隔需要等待
	if len(paced) != 1 {
		t.Fatalf("Expected 1 pacing pause, got %d", len(paced))
	}
	if want := 6 * time.Second; paced[0] != want {
		t.Errorf("Expected pacing delay %v, got %v", want, paced[0])
	}

	// 缓存命中的任务不发起上游调用，也不占用速率预算
	paced = nil
	queue.EnqueueFixtures("2024-05-01", 39)
	queue.EnqueueFixtures("2024-05-01", 140)
	queue.Process(context.Background())
	if len(paced) != 0 {
		t.Errorf("Expected no pacing for cache-hit jobs, got %d pauses", len(paced))
	}
}

// countingUpstream 给测试替身加上真实客户端的配额计数行为
type countingUpstream struct {
	*fakeUpstream
	quota *QuotaTracker
}

func (c countingUpstream) FixturesByDate(date time.Time, leagueID int) ([]models.Match, error) {
	c.quota.Increment()
	return c.fakeUpstream.FixturesByDate(date, leagueID)
}

func (c countingUpstream) FixturesInRange(from, to time.Time, leagueID int) ([]models.Match, error) {
	c.quota.Increment()
	return c.fakeUpstream.FixturesInRange(from, to, leagueID)
}

func TestProcessAbortsAtQuotaHighWater(t *testing.T) {
	queue := newTestQueue(newFakeMatchStore(), &fakeUpstream{}, QueueConfig{
		DailyQuota:     10,
		QuotaHighWater: 90,
	})

	// 预先消耗到高水位
	for i := 0; i < 9; i++ {
		queue.quota.Increment()
	}

	queue.EnqueueFixtures("2024-05-01", 39)
	completed, failed := queue.Process(context.Background())

	if completed != 0 || failed != 0 {
		t.Fatalf("Expected (0, 0) when over high water, got (%d, %d)", completed, failed)
	}
	// 任务保持 pending，等配额翻转后重试
	if got := queue.queueLength(); got != 1 {
		t.Errorf("Expected job to stay pending, got length %d", got)
	}
}

// blockingMatchStore 首次范围查询时阻塞，用于在任务执行中途操作队列
type blockingMatchStore struct {
	*fakeMatchStore
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (b *blockingMatchStore) MatchesInRange(ctx context.Context, from, to time.Time, leagueID int) ([]models.Match, error) {
	b.once.Do(func() {
		close(b.started)
		<-b.release
	})
	return b.fakeMatchStore.MatchesInRange(ctx, from, to, leagueID)
}

func TestStopDuringRunningJobCountsFailureOnce(t *testing.T) {
	store := &blockingMatchStore{
		fakeMatchStore: newFakeMatchStore(),
		started:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	engine := NewSynchronizer(store, newFakeRefStore(), &fakeUpstream{}, NewNegativeCache(newFakeCheckStore()))
	engine.enrichPause = 0
	queue := NewSyncQueue(engine, NewQuotaTracker(nil), QueueConfig{})
	queue.pace = func(time.Duration) {}

	queue.EnqueueFixtures("2024-05-01", 39)

	type outcome struct{ completed, failed int }
	done := make(chan outcome, 1)
	go func() {
		c, f := queue.Process(context.Background())
		done <- outcome{c, f}
	}()

	// 任务执行中途停止队列，随后放行任务
	<-store.started
	queue.Stop()
	close(store.release)

	res := <-done
	if res.completed != 0 || res.failed != 1 {
		t.Fatalf("Expected (0 completed, 1 failed), got (%d, %d)", res.completed, res.failed)
	}

	// 任务只能计入一个终态：Stop 已记失败，完成回调不得再记完成
	stats := queue.GetStats()
	if stats.FailedJobs != 1 {
		t.Errorf("Expected 1 failed job, got %d", stats.FailedJobs)
	}
	if stats.CompletedJobs != 0 {
		t.Errorf("Expected 0 completed jobs, got %d", stats.CompletedJobs)
	}
	if stats.QueueLength != 0 {
		t.Errorf("Expected empty queue, got length %d", stats.QueueLength)
	}
}
