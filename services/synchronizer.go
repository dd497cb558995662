package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"footdata-service/database"
	"footdata-service/logger"
	"footdata-service/models"
)

// MatchStorage 比赛数据的存储层
type MatchStorage interface {
	MatchesInRange(ctx context.Context, from, to time.Time, leagueID int) ([]models.Match, error)
	MatchesByIDs(ctx context.Context, ids []int64) (map[int64]models.Match, error)
	MatchesByTeam(ctx context.Context, teamID int, limit int) ([]models.Match, error)
	SaveMatches(ctx context.Context, matches []models.Match) error
}

// ReferenceStorage 参考数据的存储层
type ReferenceStorage interface {
	League(ctx context.Context, id int) (*models.League, error)
	Leagues(ctx context.Context, country string) ([]models.League, error)
	SaveLeagues(ctx context.Context, leagues []models.League) error
	TeamsByLeague(ctx context.Context, leagueID, season int) ([]models.Team, error)
	SaveTeams(ctx context.Context, teams []models.Team, leagueID, season int) error
	Standings(ctx context.Context, leagueID, season int) ([]models.StandingRow, error)
	SaveStandings(ctx context.Context, rows []models.StandingRow) error
}

// UpstreamAPI 上游 API 能力
// 约定：无数据返回空切片，仅传输层故障返回错误
type UpstreamAPI interface {
	FixturesByDate(date time.Time, leagueID int) ([]models.Match, error)
	FixturesInRange(from, to time.Time, leagueID int) ([]models.Match, error)
	Statistics(matchID int64) ([]models.TeamStatistics, error)
	Events(matchID int64) ([]models.MatchEvent, error)
	Lineups(matchID int64) ([]models.TeamLineup, error)
	Standings(leagueID, season int) ([]models.StandingRow, error)
	Teams(leagueID, season int) ([]models.Team, error)
	Leagues(country string) ([]models.League, error)
}

// MatchNotifier 比赛更新通知（WebSocket 推送 / AMQP 发布）
type MatchNotifier interface {
	NotifyMatchUpdate(match models.Match)
}

// StandingsResult GetStandings 的返回结构
type StandingsResult struct {
	Standings []models.StandingRow `json:"standings"`
	League    *models.League       `json:"league,omitempty"`
}

// Synchronizer 读穿/回写同步引擎
// 对每个 (日期, 联赛) 查询决定：缓存是否足够新鲜、何时回落到上游、
// 如何只补齐缺失的详情数据、以及如何把结果原子地写回存储
type Synchronizer struct {
	store     MatchStorage
	refs      ReferenceStorage
	upstream  UpstreamAPI // 可为 nil（未配置凭证）
	negCache  *NegativeCache
	notifiers []MatchNotifier

	enrichBatchSize int
	enrichPause     time.Duration
	now             func() time.Time
}

// NewSynchronizer 创建同步引擎，upstream 可为 nil
func NewSynchronizer(store MatchStorage, refs ReferenceStorage, upstream UpstreamAPI, negCache *NegativeCache) *Synchronizer {
	return &Synchronizer{
		store:           store,
		refs:            refs,
		upstream:        upstream,
		negCache:        negCache,
		enrichBatchSize: 5,
		enrichPause:     500 * time.Millisecond,
		now:             time.Now,
	}
}

// AddNotifier 注册比赛更新通知器
func (s *Synchronizer) AddNotifier(n MatchNotifier) {
	if n != nil {
		s.notifiers = append(s.notifiers, n)
	}
}

// GetFixtures 获取 [from, to] 日期窗口内的比赛，leagueID 为 0 表示全部联赛
// 缓存命中且新鲜则直接返回；任一记录 fixture 维度过期则整窗口重新拉取；
// 缓存未命中时先查负结果缓存，必要时回落到上游并回写
func (s *Synchronizer) GetFixtures(ctx context.Context, from, to time.Time, leagueID int) ([]models.Match, error) {
	fromT, toT := dayBounds(from, to)

	cached, err := s.store.MatchesInRange(ctx, fromT, toT, leagueID)
	if err != nil {
		if errors.Is(err, database.ErrMissingIndex) {
			// 索引缺失时静默走上游，绝不把该错误暴露给调用方
			logger.Printf("[Sync] ⚠️  Missing index, falling back to upstream for league %d", leagueID)
			return s.fetchAndPersist(ctx, from, to, leagueID)
		}
		return nil, fmt.Errorf("failed to read cached matches: %w", err)
	}

	if len(cached) > 0 {
		return s.refreshIfStale(ctx, cached, from, to, leagueID)
	}

	// 缓存为空：未配置上游则无数据可给
	if s.upstream == nil {
		return nil, ErrMissingCredentials
	}

	// 负结果缓存：窗口内全部日期都被压制时直接返回空
	if s.allDatesSuppressed(ctx, from, to, leagueID) {
		logger.Printf("[Sync] ⏭️  Skipping upstream for league %d %s..%s (negative cache)",
			leagueID, from.Format("2006-01-02"), to.Format("2006-01-02"))
		return []models.Match{}, nil
	}

	return s.fetchAndPersist(ctx, from, to, leagueID)
}

// GetFixturesForMultipleLeagues 一次范围查询覆盖多个联赛
// 结果按请求的联赛顺序分组；只有缓存完全未命中的联赛才单独走负结果缓存和上游
func (s *Synchronizer) GetFixturesForMultipleLeagues(ctx context.Context, from, to time.Time, leagueIDs []int) ([]models.Match, error) {
	fromT, toT := dayBounds(from, to)

	cached, err := s.store.MatchesInRange(ctx, fromT, toT, 0)
	if err != nil {
		if errors.Is(err, database.ErrMissingIndex) {
			// 回退为逐联赛查询
			logger.Printf("[Sync] ⚠️  Missing index on range query, falling back to per-league fetch")
			var all []models.Match
			for _, id := range leagueIDs {
				matches, err := s.GetFixtures(ctx, from, to, id)
				if err != nil {
					logger.Errorf("[Sync] ❌ Per-league fallback failed for league %d: %v", id, err)
					continue
				}
				all = append(all, matches...)
			}
			return all, nil
		}
		return nil, fmt.Errorf("failed to read cached matches: %w", err)
	}

	// 内存中按联赛分组
	byLeague := make(map[int][]models.Match)
	for _, m := range cached {
		byLeague[m.LeagueID] = append(byLeague[m.LeagueID], m)
	}

	var result []models.Match
	for _, id := range leagueIDs {
		group := byLeague[id]
		if len(group) > 0 {
			refreshed, err := s.refreshIfStale(ctx, group, from, to, id)
			if err != nil {
				logger.Errorf("[Sync] ❌ Refresh failed for league %d: %v", id, err)
				result = append(result, group...)
				continue
			}
			result = append(result, refreshed...)
			continue
		}

		// 缓存未命中的联赛
		if s.upstream == nil {
			continue
		}
		if s.allDatesSuppressed(ctx, from, to, id) {
			continue
		}
		fetched, err := s.fetchAndPersist(ctx, from, to, id)
		if err != nil {
			logger.Errorf("[Sync] ❌ Upstream fetch failed for league %d: %v", id, err)
			continue
		}
		result = append(result, fetched...)
	}

	return result, nil
}

// GetStandings 获取积分榜，缓存未命中时从上游拉取并持久化
// 积分榜不应用新鲜度策略，始终按未命中拉取
func (s *Synchronizer) GetStandings(ctx context.Context, leagueID, season int) (*StandingsResult, error) {
	rows, err := s.refs.Standings(ctx, leagueID, season)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached standings: %w", err)
	}

	if len(rows) == 0 {
		if s.upstream == nil {
			return nil, ErrMissingCredentials
		}
		rows, err = s.upstream.Standings(leagueID, season)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch standings: %w", err)
		}
		if err := s.refs.SaveStandings(ctx, rows); err != nil {
			logger.Errorf("[Sync] ⚠️  Failed to persist standings for league %d: %v", leagueID, err)
		}
	}

	league, err := s.refs.League(ctx, leagueID)
	if err != nil {
		logger.Errorf("[Sync] ⚠️  Failed to read league %d: %v", leagueID, err)
	}

	return &StandingsResult{Standings: rows, League: league}, nil
}

// GetTeams 获取联赛球队，缓存未命中时从上游拉取并持久化
func (s *Synchronizer) GetTeams(ctx context.Context, leagueID, season int) ([]models.Team, error) {
	teams, err := s.refs.TeamsByLeague(ctx, leagueID, season)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached teams: %w", err)
	}
	if len(teams) > 0 {
		return teams, nil
	}

	if s.upstream == nil {
		return nil, ErrMissingCredentials
	}
	teams, err = s.upstream.Teams(leagueID, season)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch teams: %w", err)
	}
	if err := s.refs.SaveTeams(ctx, teams, leagueID, season); err != nil {
		logger.Errorf("[Sync] ⚠️  Failed to persist teams for league %d: %v", leagueID, err)
	}
	return teams, nil
}

// GetLeagues 获取联赛列表，country 非空时按国家过滤
func (s *Synchronizer) GetLeagues(ctx context.Context, country string) ([]models.League, error) {
	leagues, err := s.refs.Leagues(ctx, country)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached leagues: %w", err)
	}
	if len(leagues) > 0 {
		return leagues, nil
	}

	if s.upstream == nil {
		return nil, ErrMissingCredentials
	}
	leagues, err = s.upstream.Leagues(country)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leagues: %w", err)
	}
	if err := s.refs.SaveLeagues(ctx, leagues); err != nil {
		logger.Errorf("[Sync] ⚠️  Failed to persist leagues: %v", err)
	}
	return leagues, nil
}

// GetTeamMatches 获取某球队最近的比赛（仅缓存）
func (s *Synchronizer) GetTeamMatches(ctx context.Context, teamID, limit int) ([]models.Match, error) {
	matches, err := s.store.MatchesByTeam(ctx, teamID, limit)
	if err != nil {
		if errors.Is(err, database.ErrMissingIndex) {
			return []models.Match{}, nil
		}
		return nil, fmt.Errorf("failed to read team matches: %w", err)
	}
	return matches, nil
}

// refreshIfStale 缓存命中后的新鲜度处理
// 任一记录 fixture 维度过期 → 整个窗口重新拉取（上游没有更细的过滤粒度，
// 逐条刷新并不省请求）；否则只对 details 过期的记录做补齐
func (s *Synchronizer) refreshIfStale(ctx context.Context, cached []models.Match, from, to time.Time, leagueID int) ([]models.Match, error) {
	now := s.now()

	anyStale := false
	for i := range cached {
		if IsFixtureStale(&cached[i], now) {
			anyStale = true
			break
		}
	}

	if anyStale && s.upstream != nil {
		refreshed, err := s.fetchAndPersist(ctx, from, to, leagueID)
		if err != nil {
			// 上游失败时降级返回缓存数据
			logger.Errorf("[Sync] ⚠️  Refresh failed, serving cached data: %v", err)
			return cached, nil
		}
		if len(refreshed) > 0 {
			return refreshed, nil
		}
		return cached, nil
	}

	// 逐条判断 details 是否需要补齐
	var toEnrich []models.Match
	for i := range cached {
		if DetailsFreshness(&cached[i], now) == DetailsStaleRetry {
			toEnrich = append(toEnrich, cached[i])
		}
	}
	if len(toEnrich) == 0 || s.upstream == nil {
		return cached, nil
	}

	enriched := s.EnrichMatchesWithDetails(ctx, toEnrich)
	if err := s.SaveMatches(ctx, enriched); err != nil {
		logger.Errorf("[Sync] ⚠️  Failed to persist enriched matches: %v", err)
	}

	// 把补齐结果合并回原始顺序
	byID := make(map[int64]models.Match, len(enriched))
	for _, m := range enriched {
		byID[m.ID] = m
	}
	for i := range cached {
		if m, ok := byID[cached[i].ID]; ok {
			cached[i] = m
		}
	}
	return cached, nil
}

// fetchAndPersist 从上游拉取窗口数据、补齐详情、回写并更新负结果缓存
func (s *Synchronizer) fetchAndPersist(ctx context.Context, from, to time.Time, leagueID int) ([]models.Match, error) {
	if s.upstream == nil {
		return nil, ErrMissingCredentials
	}

	var (
		matches []models.Match
		err     error
	)
	if sameDay(from, to) {
		matches, err = s.upstream.FixturesByDate(from, leagueID)
	} else {
		matches, err = s.upstream.FixturesInRange(from, to, leagueID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fixtures: %w", err)
	}

	// 无论有无结果都更新负结果缓存
	s.recordDateResults(ctx, from, to, leagueID, matches)

	if len(matches) == 0 {
		return []models.Match{}, nil
	}

	matches = s.EnrichMatchesWithDetails(ctx, matches)

	if err := s.SaveMatches(ctx, matches); err != nil {
		return nil, fmt.Errorf("failed to persist fetched matches: %w", err)
	}

	logger.Printf("[Sync] ✅ Fetched and persisted %d matches for league %d", len(matches), leagueID)
	return matches, nil
}

// EnrichMatchesWithDetails 为进行中/已结束的比赛补齐统计、事件、阵容
// 按批并发（默认 5 场），批间停顿以尊重上游速率限制；
// 单项失败不影响其余项，比赛带着已成功的部分返回
func (s *Synchronizer) EnrichMatchesWithDetails(ctx context.Context, matches []models.Match) []models.Match {
	if s.upstream == nil || len(matches) == 0 {
		return matches
	}

	result := make([]models.Match, len(matches))
	copy(result, matches)

	now := s.now()
	for start := 0; start < len(result); start += s.enrichBatchSize {
		end := start + s.enrichBatchSize
		if end > len(result) {
			end = len(result)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			if !result[i].NeedsDetails() {
				continue
			}
			// 详情已有但过期时需要整体重拉，否则只补缺失项
			refresh := result[i].HasDetails() && DetailsFreshness(&result[i], now) == DetailsStaleRetry
			wg.Add(1)
			go func(m *models.Match, refresh bool) {
				defer wg.Done()
				s.enrichMatch(m, refresh)
			}(&result[i], refresh)
		}
		wg.Wait()

		if end < len(result) && s.enrichPause > 0 {
			time.Sleep(s.enrichPause)
		}
	}

	return result
}

// enrichMatch 并行拉取一场比赛的详情项
// refresh 为 false 时只拉缺失项；为 true 时全部重拉（详情过期）
// 上游返回空结果不覆盖已有数据，单项失败不影响其余项
func (s *Synchronizer) enrichMatch(m *models.Match, refresh bool) {
	var wg sync.WaitGroup
	var mu sync.Mutex

	if refresh || len(m.Statistics) == 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats, err := s.upstream.Statistics(m.ID)
			if err != nil {
				logger.Errorf("[Sync] ⚠️  Failed to fetch statistics for match %d: %v", m.ID, err)
				return
			}
			mu.Lock()
			if len(stats) > 0 {
				m.Statistics = stats
			}
			mu.Unlock()
		}()
	}

	if refresh || len(m.Events) == 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events, err := s.upstream.Events(m.ID)
			if err != nil {
				logger.Errorf("[Sync] ⚠️  Failed to fetch events for match %d: %v", m.ID, err)
				return
			}
			mu.Lock()
			if len(events) > 0 {
				m.Events = events
			}
			mu.Unlock()
		}()
	}

	if refresh || len(m.Lineups) == 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lineups, err := s.upstream.Lineups(m.ID)
			if err != nil {
				logger.Errorf("[Sync] ⚠️  Failed to fetch lineups for match %d: %v", m.ID, err)
				return
			}
			mu.Lock()
			if len(lineups) > 0 {
				m.Lineups = lineups
			}
			mu.Unlock()
		}()
	}

	wg.Wait()
}

// SaveMatches 合并写回比赛记录
// 先批量读取既有记录，保留传入数据缺失的详情字段（一次失败的补齐
// 不能抹掉已知数据），计算新的过期时间后单事务批量写入
func (s *Synchronizer) SaveMatches(ctx context.Context, matches []models.Match) error {
	if len(matches) == 0 {
		return nil
	}

	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}

	existing, err := s.store.MatchesByIDs(ctx, ids)
	if err != nil && !errors.Is(err, database.ErrMissingIndex) {
		return fmt.Errorf("failed to read existing matches: %w", err)
	}

	now := s.now()
	var changed []models.Match

	toSave := make([]models.Match, len(matches))
	for i, incoming := range matches {
		merged := incoming
		prev, found := existing[incoming.ID]
		if found {
			mergeDetails(&merged, &prev)
			if scoreOrStatusChanged(&merged, &prev) {
				changed = append(changed, merged)
			}
		} else if merged.IsLive() || merged.IsFinished() {
			changed = append(changed, merged)
		}

		exp := FixtureExpiry(&merged, now)
		merged.FixtureExpiry = &exp

		if merged.NeedsDetails() {
			dexp := DetailsExpiry(&merged, merged.HasDetails(), now)
			merged.DetailsExpiry = &dexp
		}
		merged.UpdatedAt = now

		toSave[i] = merged
	}

	if err := s.store.SaveMatches(ctx, toSave); err != nil {
		return err
	}

	for _, m := range changed {
		for _, n := range s.notifiers {
			n.NotifyMatchUpdate(m)
		}
	}
	return nil
}

// mergeDetails 保留既有详情：新数据为空时绝不覆盖非空的旧数据
func mergeDetails(incoming, prev *models.Match) {
	if len(incoming.Statistics) == 0 && len(prev.Statistics) > 0 {
		incoming.Statistics = prev.Statistics
	}
	if len(incoming.Events) == 0 && len(prev.Events) > 0 {
		incoming.Events = prev.Events
	}
	if len(incoming.Lineups) == 0 && len(prev.Lineups) > 0 {
		incoming.Lineups = prev.Lineups
	}
}

// scoreOrStatusChanged 比分或状态是否发生变化
func scoreOrStatusChanged(a, b *models.Match) bool {
	if a.Status.Short != b.Status.Short {
		return true
	}
	return intPtrValue(a.Goals.Home) != intPtrValue(b.Goals.Home) ||
		intPtrValue(a.Goals.Away) != intPtrValue(b.Goals.Away)
}

func intPtrValue(v *int) int {
	if v == nil {
		return -1
	}
	return *v
}

// recordDateResults 按日期记录查询结果到负结果缓存
func (s *Synchronizer) recordDateResults(ctx context.Context, from, to time.Time, leagueID int, matches []models.Match) {
	hasMatchesOn := make(map[string]bool)
	for _, m := range matches {
		hasMatchesOn[m.Kickoff.UTC().Format("2006-01-02")] = true
	}

	for _, date := range datesBetween(from, to) {
		s.negCache.RecordResult(ctx, leagueID, date, hasMatchesOn[date])
	}
}

// allDatesSuppressed 窗口内全部日期是否都被负结果缓存压制
func (s *Synchronizer) allDatesSuppressed(ctx context.Context, from, to time.Time, leagueID int) bool {
	for _, date := range datesBetween(from, to) {
		if !s.negCache.ShouldSkipUpstream(ctx, leagueID, date) {
			return false
		}
	}
	return true
}

// dayBounds 把日历日期窗口换算成 UTC 时间边界
func dayBounds(from, to time.Time) (time.Time, time.Time) {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 999000000, time.UTC)
	return f, t
}

func sameDay(a, b time.Time) bool {
	return a.UTC().Format("2006-01-02") == b.UTC().Format("2006-01-02")
}

// datesBetween 枚举 [from, to] 的全部日历日期
func datesBetween(from, to time.Time) []string {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)

	var dates []string
	for d := f; !d.After(t); d = d.Add(24 * time.Hour) {
		dates = append(dates, d.Format("2006-01-02"))
	}
	return dates
}
