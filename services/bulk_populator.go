package services

import (
	"context"
	"sync"
	"time"

	"footdata-service/logger"
)

// 联赛优先级分层（API-Football 联赛 ID）
var (
	// 五大联赛 + 欧冠欧联
	highPriorityLeagues = []int{39, 140, 78, 135, 61, 2, 3}
	// 二级联赛和主要杯赛
	mediumPriorityLeagues = []int{40, 141, 79, 136, 62, 45, 143, 81, 137, 66}
	// 其他常见联赛
	lowPriorityLeagues = []int{88, 94, 203, 235, 253, 262, 71, 128}
)

// PopulationConfig 批量填充配置
type PopulationConfig struct {
	PastDays    int           // 向过去回填的天数
	FutureDays  int           // 向未来预取的天数
	BatchSize   int           // 每批 (联赛, 日期) 单元数
	BatchDelay  time.Duration // 批间延迟
	TierPause   time.Duration // 优先级层之间的停顿
	Tiers       [][]int       // 按优先级排序的联赛分层
}

// PopulationStats 批量填充统计
type PopulationStats struct {
	Running        bool       `json:"running"`
	TotalUnits     int        `json:"totalUnits"`
	CompletedUnits int        `json:"completedUnits"`
	FailedUnits    int        `json:"failedUnits"`
	MatchesLoaded  int        `json:"matchesLoaded"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	ElapsedSeconds float64    `json:"elapsedSeconds"`
}

// BulkPopulator 批量填充驱动
// 按优先级分层遍历 (联赛 x 日期) 矩阵，逐单元委托给 Synchronizer；
// 新鲜度和负结果缓存逻辑全部由 Synchronizer 负责，这里只控制节奏
type BulkPopulator struct {
	sync *Synchronizer

	mu      sync.Mutex
	stats   PopulationStats
	stopped bool
	working bool
}

// NewBulkPopulator 创建批量填充驱动
func NewBulkPopulator(synchronizer *Synchronizer) *BulkPopulator {
	return &BulkPopulator{sync: synchronizer}
}

// QuickPopulation 快速填充：高优先级联赛，过去 3 天 + 未来 3 天
func (p *BulkPopulator) QuickPopulation(ctx context.Context) error {
	return p.StartMassivePopulation(ctx, PopulationConfig{
		PastDays:   3,
		FutureDays: 3,
		BatchSize:  5,
		BatchDelay: 2 * time.Second,
		TierPause:  5 * time.Second,
		Tiers:      [][]int{highPriorityLeagues},
	})
}

// FullPopulation 完整填充：全部分层，过去 30 天 + 未来 14 天
func (p *BulkPopulator) FullPopulation(ctx context.Context) error {
	return p.StartMassivePopulation(ctx, PopulationConfig{
		PastDays:   30,
		FutureDays: 14,
		BatchSize:  5,
		BatchDelay: 5 * time.Second,
		TierPause:  30 * time.Second,
		Tiers:      [][]int{highPriorityLeagues, mediumPriorityLeagues, lowPriorityLeagues},
	})
}

// StartMassivePopulation 按配置执行批量填充
func (p *BulkPopulator) StartMassivePopulation(ctx context.Context, cfg PopulationConfig) error {
	p.mu.Lock()
	if p.working {
		p.mu.Unlock()
		logger.Println("[Populator] Already running")
		return nil
	}
	p.working = true
	p.stopped = false
	now := time.Now()
	p.stats = PopulationStats{Running: true, StartedAt: &now}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.working = false
		p.stats.Running = false
		p.stats.ElapsedSeconds = time.Since(now).Seconds()
		p.mu.Unlock()
	}()

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = [][]int{highPriorityLeagues}
	}

	dates := populationDates(cfg.PastDays, cfg.FutureDays)

	total := 0
	for _, tier := range cfg.Tiers {
		total += len(tier) * len(dates)
	}
	p.mu.Lock()
	p.stats.TotalUnits = total
	p.mu.Unlock()

	logger.Printf("[Populator] 🚀 Starting population: %d units (%d dates, %d tiers)",
		total, len(dates), len(cfg.Tiers))

	for tierIdx, tier := range cfg.Tiers {
		if p.isStopped() {
			break
		}

		batch := 0
		for _, leagueID := range tier {
			for _, date := range dates {
				if p.isStopped() {
					break
				}

				p.syncUnit(ctx, date, leagueID)

				batch++
				if batch >= cfg.BatchSize {
					batch = 0
					if cfg.BatchDelay > 0 {
						time.Sleep(cfg.BatchDelay)
					}
				}
			}
		}

		if tierIdx < len(cfg.Tiers)-1 && cfg.TierPause > 0 && !p.isStopped() {
			logger.Printf("[Populator] ⏸️  Tier %d done, pausing %v", tierIdx+1, cfg.TierPause)
			time.Sleep(cfg.TierPause)
		}
	}

	stats := p.GetStats()
	logger.Printf("[Populator] ✅ Population finished: %d ok, %d failed, %d matches",
		stats.CompletedUnits, stats.FailedUnits, stats.MatchesLoaded)
	return nil
}

// syncUnit 同步单个 (联赛, 日期) 单元
func (p *BulkPopulator) syncUnit(ctx context.Context, date time.Time, leagueID int) {
	matches, err := p.sync.GetFixtures(ctx, date, date, leagueID)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.stats.FailedUnits++
		logger.Errorf("[Populator] ❌ Unit failed (league %d, %s): %v",
			leagueID, date.Format("2006-01-02"), err)
		return
	}
	p.stats.CompletedUnits++
	p.stats.MatchesLoaded += len(matches)
}

// Stop 协作式停止：当前单元完成后不再开始新单元
func (p *BulkPopulator) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	logger.Println("[Populator] 🛑 Stop requested")
}

// GetStats 读取统计快照
func (p *BulkPopulator) GetStats() PopulationStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := p.stats
	if stats.Running && stats.StartedAt != nil {
		stats.ElapsedSeconds = time.Since(*stats.StartedAt).Seconds()
	}
	return stats
}

func (p *BulkPopulator) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// populationDates 生成过去 past 天 + 今天 + 未来 future 天的日期窗口
func populationDates(past, future int) []time.Time {
	now := time.Now().UTC()
	var dates []time.Time
	for i := past; i >= 1; i-- {
		dates = append(dates, now.Add(-time.Duration(i)*24*time.Hour))
	}
	dates = append(dates, now)
	for i := 1; i <= future; i++ {
		dates = append(dates, now.Add(time.Duration(i)*24*time.Hour))
	}
	return dates
}
