package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"footdata-service/logger"
	"footdata-service/models"
)

// 任务状态
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// 任务类型
const (
	JobTypeFixtures = "fixtures" // 同步某 (日期, 联赛) 的比赛
	JobTypeDetails  = "details"  // 补齐某场比赛的详情
)

// SyncJob 同步任务（仅存在于内存）
type SyncJob struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Error       string     `json:"error,omitempty"`

	// 任务负载
	Date     string `json:"date,omitempty"` // 2006-01-02
	LeagueID int    `json:"leagueId,omitempty"`
	MatchID  int64  `json:"matchId,omitempty"`
	Priority bool   `json:"priority,omitempty"`
}

// SyncStats 进程级同步统计
type SyncStats struct {
	TotalJobs     int        `json:"totalJobs"`
	CompletedJobs int        `json:"completedJobs"`
	FailedJobs    int        `json:"failedJobs"`
	QueueLength   int        `json:"queueLength"` // 仅 pending + running
	RunningCount  int        `json:"runningCount"`
	LastRunAt     *time.Time `json:"lastRunAt,omitempty"`
	CallsToday    int        `json:"callsToday"`
	ItemsSynced   int        `json:"itemsSynced"`
}

// QueueConfig 队列配置
type QueueConfig struct {
	MaxRequestsPerMinute int
	DailyQuota           int
	QuotaHighWater       int // 百分比，如 90
	TrackedLeagues       []int
}

// SyncQueue 速率受限的后台同步队列
// 任务严格串行执行；发起过上游调用的任务之间强制最小间隔
// 60/MaxRequestsPerMinute 秒；今日用量越过高水位后提前中止，
// 剩余任务保持 pending
type SyncQueue struct {
	sync  *Synchronizer
	quota *QuotaTracker
	cfg   QueueConfig

	mu      sync.Mutex
	pending []*SyncJob          // FIFO，优先任务插队到头部
	jobs    map[string]*SyncJob // 按 ID 去重，仅 pending/running
	running *SyncJob
	stats   SyncStats
	stopped bool
	working bool

	pace func(d time.Duration) // 可注入，测试用
}

// NewSyncQueue 创建同步队列
func NewSyncQueue(synchronizer *Synchronizer, quota *QuotaTracker, cfg QueueConfig) *SyncQueue {
	if cfg.MaxRequestsPerMinute <= 0 {
		cfg.MaxRequestsPerMinute = 10
	}
	if cfg.QuotaHighWater <= 0 {
		cfg.QuotaHighWater = 90
	}
	return &SyncQueue{
		sync:  synchronizer,
		quota: quota,
		cfg:   cfg,
		jobs:  make(map[string]*SyncJob),
		pace:  time.Sleep,
	}
}

// fixtureJobID 任务 ID 由类型和键确定性生成，用于去重
func fixtureJobID(date string, leagueID int) string {
	return fmt.Sprintf("%s:%s:%d", JobTypeFixtures, date, leagueID)
}

func detailsJobID(matchID int64) string {
	return fmt.Sprintf("%s:%d", JobTypeDetails, matchID)
}

// EnqueueFixtures 排队一个 (日期, 联赛) 同步任务，重复排队为空操作
func (q *SyncQueue) EnqueueFixtures(date string, leagueID int) {
	q.enqueue(&SyncJob{
		ID:       fixtureJobID(date, leagueID),
		Type:     JobTypeFixtures,
		Date:     date,
		LeagueID: leagueID,
	}, false)
}

// EnqueueLiveDetails 排队一个直播比赛详情任务
// 优先插入队首，并先移除同一比赛已排队的普通任务
func (q *SyncQueue) EnqueueLiveDetails(matchID int64) {
	q.mu.Lock()
	id := detailsJobID(matchID)
	if existing, ok := q.jobs[id]; ok && existing.Status == JobPending && !existing.Priority {
		q.removePendingLocked(id)
	}
	q.mu.Unlock()

	q.enqueue(&SyncJob{
		ID:       id,
		Type:     JobTypeDetails,
		MatchID:  matchID,
		Priority: true,
	}, true)
}

// EnqueueDetails 排队一个普通详情任务
func (q *SyncQueue) EnqueueDetails(matchID int64) {
	q.enqueue(&SyncJob{
		ID:      detailsJobID(matchID),
		Type:    JobTypeDetails,
		MatchID: matchID,
	}, false)
}

func (q *SyncQueue) enqueue(job *SyncJob, front bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return
	}
	if _, exists := q.jobs[job.ID]; exists {
		return
	}

	job.Status = JobPending
	job.CreatedAt = time.Now()
	q.jobs[job.ID] = job
	if front {
		q.pending = append([]*SyncJob{job}, q.pending...)
	} else {
		q.pending = append(q.pending, job)
	}
	q.stats.TotalJobs++
}

// removePendingLocked 从 pending 中移除指定任务，调用方需持有锁
func (q *SyncQueue) removePendingLocked(id string) {
	for i, job := range q.pending {
		if job.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			delete(q.jobs, id)
			return
		}
	}
}

// Process 串行处理队列中的全部任务，返回 (完成数, 失败数)
// 每个任务边界与共享配额计数器对齐一次，越过高水位立即中止
func (q *SyncQueue) Process(ctx context.Context) (int, int) {
	q.mu.Lock()
	if q.working {
		q.mu.Unlock()
		return 0, 0
	}
	q.working = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.working = false
		q.mu.Unlock()
	}()

	completed, failed := 0, 0
	delay := time.Duration(float64(time.Minute) / float64(q.cfg.MaxRequestsPerMinute))

	for {
		job := q.takeNext()
		if job == nil {
			break
		}

		// 任务边界：对齐共享计数器并检查高水位
		used := q.quota.Reconcile(ctx)
		if q.cfg.DailyQuota > 0 && used*100 >= q.cfg.DailyQuota*q.cfg.QuotaHighWater {
			logger.Printf("[Queue] 🛑 Quota high water reached (%d/%d), leaving %d jobs pending",
				used, q.cfg.DailyQuota, q.queueLength()+1)
			q.requeue(job)
			break
		}

		callsBefore := q.quota.Today()
		err := q.runJob(ctx, job)
		callsDelta := q.quota.Today() - callsBefore

		// 以 finishJob 判定的终态为准：Stop() 先一步终结的任务算失败
		switch q.finishJob(job, err) {
		case JobFailed:
			failed++
		default:
			completed++
		}

		// 只有实际发起过上游调用的任务才参与节流等待，
		// 纯缓存命中的任务无需占用速率预算
		if callsDelta > 0 && q.queueLength() > 0 {
			q.pace(delay)
		}

		if q.isStopped() {
			break
		}
	}

	logger.Printf("[Queue] ✅ Run finished: %d completed, %d failed", completed, failed)
	return completed, failed
}

// takeNext 取出下一个 pending 任务并标记为 running
func (q *SyncQueue) takeNext() *SyncJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped || len(q.pending) == 0 {
		return nil
	}

	job := q.pending[0]
	q.pending = q.pending[1:]
	now := time.Now()
	job.Status = JobRunning
	job.StartedAt = &now
	q.running = job
	return job
}

// requeue 把任务放回队首（高水位中止时使用）
func (q *SyncQueue) requeue(job *SyncJob) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job.Status = JobPending
	job.StartedAt = nil
	q.pending = append([]*SyncJob{job}, q.pending...)
	q.running = nil
}

// runJob 执行单个任务
func (q *SyncQueue) runJob(ctx context.Context, job *SyncJob) error {
	switch job.Type {
	case JobTypeFixtures:
		date, err := time.Parse("2006-01-02", job.Date)
		if err != nil {
			return fmt.Errorf("invalid job date %q: %w", job.Date, err)
		}
		matches, err := q.sync.GetFixtures(ctx, date, date, job.LeagueID)
		if err != nil {
			return err
		}
		q.mu.Lock()
		q.stats.ItemsSynced += len(matches)
		q.mu.Unlock()
		return nil

	case JobTypeDetails:
		existing, err := q.sync.store.MatchesByIDs(ctx, []int64{job.MatchID})
		if err != nil {
			return err
		}
		m, ok := existing[job.MatchID]
		if !ok {
			return fmt.Errorf("match %d not found in store", job.MatchID)
		}
		enriched := q.sync.EnrichMatchesWithDetails(ctx, []models.Match{m})
		if err := q.sync.SaveMatches(ctx, enriched); err != nil {
			return err
		}
		q.mu.Lock()
		q.stats.ItemsSynced += len(enriched)
		q.mu.Unlock()
		return nil

	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

// finishJob 任务进入终态后立即从队列中清除，返回最终状态
// 队列长度统计只反映 pending + running
func (q *SyncQueue) finishJob(job *SyncJob, err error) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	// Stop() 可能已把运行中任务记为失败并计入统计，终态不可再改写
	if job.Status != JobRunning {
		return job.Status
	}

	now := time.Now()
	job.CompletedAt = &now
	if err != nil {
		job.Status = JobFailed
		job.Error = err.Error()
		q.stats.FailedJobs++
		logger.Errorf("[Queue] ❌ Job %s failed: %v", job.ID, err)
	} else {
		job.Status = JobCompleted
		q.stats.CompletedJobs++
	}

	q.stats.LastRunAt = &now
	q.running = nil
	delete(q.jobs, job.ID)
	return job.Status
}

// Stop 停止队列：运行中任务标记为失败，阻止后续处理直到 Restart
func (q *SyncQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stopped = true
	if q.running != nil {
		now := time.Now()
		q.running.Status = JobFailed
		q.running.Error = ErrQueueStopped.Error()
		q.running.CompletedAt = &now
		q.stats.FailedJobs++
		delete(q.jobs, q.running.ID)
		q.running = nil
	}
	logger.Println("[Queue] 🛑 Stopped")
}

// Restart 允许重新处理
func (q *SyncQueue) Restart() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = false
}

// ClearQueue 丢弃全部 pending 任务，运行中任务不受影响
func (q *SyncQueue) ClearQueue() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := len(q.pending)
	for _, job := range q.pending {
		delete(q.jobs, job.ID)
	}
	q.pending = nil
	logger.Printf("[Queue] 🗑️  Cleared %d pending jobs", dropped)
	return dropped
}

// GetStats 读取统计快照
func (q *SyncQueue) GetStats() SyncStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats
	stats.QueueLength = len(q.pending)
	stats.RunningCount = 0
	if q.running != nil {
		stats.QueueLength++
		stats.RunningCount = 1
	}
	stats.CallsToday = q.quota.Today()
	return stats
}

// Jobs 读取当前队列中全部任务的快照
func (q *SyncQueue) Jobs() []SyncJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := make([]SyncJob, 0, len(q.pending)+1)
	if q.running != nil {
		jobs = append(jobs, *q.running)
	}
	for _, job := range q.pending {
		jobs = append(jobs, *job)
	}
	return jobs
}

func (q *SyncQueue) queueLength() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	if q.running != nil {
		n++
	}
	return n
}

func (q *SyncQueue) isStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}
