package services

import (
	"context"
	"sync"
	"time"

	"footdata-service/logger"
	"footdata-service/models"
)

const (
	// 内存层 TTL：超过后回落到持久化记录
	memoryCheckTTL = 1 * time.Hour

	// 内存层容量上限，超过后淘汰最老的条目
	memoryCheckCapacity = 2048

	// 距今 30 天以上的日期使用长压制窗口
	farDateDistance   = 30 * 24 * time.Hour
	farDateThreshold  = 365 * 24 * time.Hour
	nearDateThreshold = 24 * time.Hour
)

// QueryCheckStore 负结果记录的持久化层
type QueryCheckStore interface {
	QueryCheck(ctx context.Context, leagueID int, date string) (*models.QueryCheck, error)
	SaveQueryCheck(ctx context.Context, check models.QueryCheck) error
}

// NegativeCache 负结果缓存
// 记录"某 (联赛, 日期) 查询没有比赛"的事实，压制对上游的重复请求。
// 两层结构：带容量上限的内存层 + 持久化的 query_checks 记录
type NegativeCache struct {
	store QueryCheckStore

	mu      sync.Mutex
	entries map[checkKey]*memoryEntry
	now     func() time.Time
}

type checkKey struct {
	leagueID int
	date     string
}

type memoryEntry struct {
	hasMatches bool
	checkedAt  time.Time
	cachedAt   time.Time
}

// NewNegativeCache 创建负结果缓存
func NewNegativeCache(store QueryCheckStore) *NegativeCache {
	return &NegativeCache{
		store:   store,
		entries: make(map[checkKey]*memoryEntry),
		now:     time.Now,
	}
}

// ShouldSkipUpstream 判断是否可以跳过对上游的请求
// 仅当记录表明该日期无比赛、且记录年龄低于阈值时返回 true
func (c *NegativeCache) ShouldSkipUpstream(ctx context.Context, leagueID int, date string) bool {
	now := c.now()
	key := checkKey{leagueID: leagueID, date: date}

	// 先查内存层
	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && now.Sub(entry.cachedAt) < memoryCheckTTL {
		hasMatches, checkedAt := entry.hasMatches, entry.checkedAt
		c.mu.Unlock()
		return c.suppressed(hasMatches, checkedAt, date, now)
	}
	c.mu.Unlock()

	// 回落到持久化记录
	check, err := c.store.QueryCheck(ctx, leagueID, date)
	if err != nil {
		logger.Errorf("[NegCache] ⚠️  Failed to load check record for league %d date %s: %v", leagueID, date, err)
		return false
	}
	if check == nil {
		return false
	}

	c.remember(key, check.HasMatches, check.CheckedAt, now)
	return c.suppressed(check.HasMatches, check.CheckedAt, date, now)
}

// RecordResult 记录一次查询的结果（有或没有比赛）
func (c *NegativeCache) RecordResult(ctx context.Context, leagueID int, date string, hadMatches bool) {
	now := c.now()
	c.remember(checkKey{leagueID: leagueID, date: date}, hadMatches, now, now)

	check := models.QueryCheck{
		LeagueID:   leagueID,
		Date:       date,
		HasMatches: hadMatches,
		CheckedAt:  now,
	}
	if err := c.store.SaveQueryCheck(ctx, check); err != nil {
		logger.Errorf("[NegCache] ⚠️  Failed to persist check record for league %d date %s: %v", leagueID, date, err)
	}
}

// suppressed 压制规则：无比赛 + 记录未超过日期距离对应的阈值
func (c *NegativeCache) suppressed(hasMatches bool, checkedAt time.Time, date string, now time.Time) bool {
	if hasMatches {
		return false
	}

	threshold := nearDateThreshold
	if d, err := time.Parse("2006-01-02", date); err == nil {
		distance := now.Sub(d)
		if distance < 0 {
			distance = -distance
		}
		// 远离当下的日期基本不会再有变化，近期日期赛程可能临时调整
		if distance > farDateDistance {
			threshold = farDateThreshold
		}
	}

	return now.Sub(checkedAt) < threshold
}

// remember 写入内存层，超过容量时淘汰最老的条目
func (c *NegativeCache) remember(key checkKey, hasMatches bool, checkedAt, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= memoryCheckCapacity {
		var oldestKey checkKey
		var oldest time.Time
		first := true
		for k, e := range c.entries {
			if first || e.cachedAt.Before(oldest) {
				oldestKey, oldest = k, e.cachedAt
				first = false
			}
		}
		delete(c.entries, oldestKey)
	}

	c.entries[key] = &memoryEntry{
		hasMatches: hasMatches,
		checkedAt:  checkedAt,
		cachedAt:   now,
	}
}
