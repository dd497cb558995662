package services

import (
	"context"
	"fmt"
	"time"

	"footdata-service/logger"
)

// 队列的高层驱动入口：按不同的广度和节奏排任务，然后统一走 Process

// SyncTodaysData 同步今日全部被跟踪联赛
func (q *SyncQueue) SyncTodaysData(ctx context.Context) (int, int) {
	today := time.Now().UTC().Format("2006-01-02")
	for _, leagueID := range q.cfg.TrackedLeagues {
		q.EnqueueFixtures(today, leagueID)
	}
	logger.Printf("[Queue] 📅 Queued today's sync for %d leagues", len(q.cfg.TrackedLeagues))
	return q.Process(ctx)
}

// SmartSync 按当前时段决定同步广度
// 比赛时段（12:00–23:59 UTC）只刷今天并优先直播比赛；
// 凌晨时段顺带补昨天的最终结果和明天的赛程
func (q *SyncQueue) SmartSync(ctx context.Context) (int, int) {
	now := time.Now().UTC()
	today := now.Format("2006-01-02")

	for _, leagueID := range q.cfg.TrackedLeagues {
		q.EnqueueFixtures(today, leagueID)
	}

	if now.Hour() >= 12 {
		// 比赛时段：优先补齐进行中比赛的详情
		q.queueLiveMatches(ctx)
	} else {
		yesterday := now.Add(-24 * time.Hour).Format("2006-01-02")
		tomorrow := now.Add(24 * time.Hour).Format("2006-01-02")
		for _, leagueID := range q.cfg.TrackedLeagues {
			q.EnqueueFixtures(yesterday, leagueID)
			q.EnqueueFixtures(tomorrow, leagueID)
		}
	}

	logger.Printf("[Queue] 🧠 Smart sync queued (hour %d)", now.Hour())
	return q.Process(ctx)
}

// SyncHistoricalData 同步过去 days 天的数据（默认 30 天）
func (q *SyncQueue) SyncHistoricalData(ctx context.Context, days int) (int, int) {
	if days <= 0 {
		days = 30
	}

	now := time.Now().UTC()
	for i := 1; i <= days; i++ {
		date := now.Add(-time.Duration(i) * 24 * time.Hour).Format("2006-01-02")
		for _, leagueID := range q.cfg.TrackedLeagues {
			q.EnqueueFixtures(date, leagueID)
		}
	}

	logger.Printf("[Queue] 📚 Queued historical sync: %d days x %d leagues", days, len(q.cfg.TrackedLeagues))
	return q.Process(ctx)
}

// ForceSync 立即同步指定目标：today / yesterday / tomorrow / live
func (q *SyncQueue) ForceSync(ctx context.Context, target string) (int, int, error) {
	if q.isStopped() {
		return 0, 0, ErrQueueStopped
	}
	if q.cfg.DailyQuota > 0 && q.quota.Today() >= q.cfg.DailyQuota {
		return 0, 0, ErrQuotaExhausted
	}

	now := time.Now().UTC()

	var date string
	switch target {
	case "today":
		date = now.Format("2006-01-02")
	case "yesterday":
		date = now.Add(-24 * time.Hour).Format("2006-01-02")
	case "tomorrow":
		date = now.Add(24 * time.Hour).Format("2006-01-02")
	case "live":
		q.queueLiveMatches(ctx)
		completed, failed := q.Process(ctx)
		return completed, failed, nil
	default:
		return 0, 0, fmt.Errorf("unknown sync target %q", target)
	}

	for _, leagueID := range q.cfg.TrackedLeagues {
		q.EnqueueFixtures(date, leagueID)
	}
	completed, failed := q.Process(ctx)
	return completed, failed, nil
}

// queueLiveMatches 把当前进行中的比赛排为优先详情任务
func (q *SyncQueue) queueLiveMatches(ctx context.Context) {
	now := time.Now().UTC()
	from, to := dayBounds(now, now)

	matches, err := q.sync.store.MatchesInRange(ctx, from, to, 0)
	if err != nil {
		logger.Errorf("[Queue] ⚠️  Failed to load today's matches for live sync: %v", err)
		return
	}

	queued := 0
	for i := range matches {
		if matches[i].IsLive() {
			q.EnqueueLiveDetails(matches[i].ID)
			queued++
		}
	}
	if queued > 0 {
		logger.Printf("[Queue] ⚽ Queued %d live matches with priority", queued)
	}
}
