package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"footdata-service/logger"
)

// QuotaTracker 每日上游调用计数器
// 本地计数按 UTC 日自动归零；配置 Redis 后计数跨实例共享，
// 所有限流决策都以该计数器为准
type QuotaTracker struct {
	mu    sync.Mutex
	day   string // UTC 日期，如 2024-05-01
	count int
	redis *redis.Client
	now   func() time.Time
}

// NewQuotaTracker 创建配额计数器，redisClient 可为 nil
func NewQuotaTracker(redisClient *redis.Client) *QuotaTracker {
	t := &QuotaTracker{
		redis: redisClient,
		now:   time.Now,
	}
	t.day = t.now().UTC().Format("2006-01-02")
	return t
}

// Increment 记录一次上游调用
func (t *QuotaTracker) Increment() {
	t.mu.Lock()
	t.rollover()
	t.count++
	day := t.day
	t.mu.Unlock()

	// 同步到共享计数器，失败只记日志
	if t.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		key := redisQuotaKey(day)
		if err := t.redis.Incr(ctx, key).Err(); err != nil {
			logger.Errorf("[Quota] ⚠️  Failed to increment shared counter: %v", err)
			return
		}
		// 保留 48 小时，跨 UTC 午夜后自动清理
		t.redis.Expire(ctx, key, 48*time.Hour)
	}
}

// Today 返回今日（UTC）已用调用数
func (t *QuotaTracker) Today() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	return t.count
}

// Reconcile 与共享计数器对齐，取两者较大值
// 队列在每个任务边界调用一次，避免多实例重复用量被低估
func (t *QuotaTracker) Reconcile(ctx context.Context) int {
	t.mu.Lock()
	t.rollover()
	day := t.day
	local := t.count
	t.mu.Unlock()

	if t.redis == nil {
		return local
	}

	shared, err := t.redis.Get(ctx, redisQuotaKey(day)).Int()
	if err != nil && err != redis.Nil {
		logger.Errorf("[Quota] ⚠️  Failed to read shared counter: %v", err)
		return local
	}

	if shared > local {
		t.mu.Lock()
		if t.day == day && shared > t.count {
			t.count = shared
		}
		local = t.count
		t.mu.Unlock()
	}
	return local
}

// rollover UTC 日期翻转时归零，调用方需持有锁
func (t *QuotaTracker) rollover() {
	today := t.now().UTC().Format("2006-01-02")
	if today != t.day {
		logger.Printf("[Quota] 🔄 UTC day rollover: %s -> %s (used %d)", t.day, today, t.count)
		t.day = today
		t.count = 0
	}
}

func redisQuotaKey(day string) string {
	return fmt.Sprintf("apifootball:calls:%s", day)
}
