package services

import (
	"time"

	"footdata-service/models"
)

// 新鲜度策略常量
const (
	// fixture 维度过期间隔
	liveFixtureTTL      = 2 * time.Minute  // 进行中/临近开球
	imminentFixtureTTL  = 1 * time.Hour    // 24 小时内开球
	scheduledFixtureTTL = 24 * time.Hour   // 远期赛程
	finishedFixtureTTL  = 30 * 24 * time.Hour

	// details 维度过期间隔
	liveDetailsTTL     = 5 * time.Minute
	finishedDetailsTTL = 6 * time.Hour
	// 老比赛确认无数据后的压制窗口，语义是"不要再试"而非"有效期"
	absentDetailsTTL = 30 * 24 * time.Hour

	// 开球超过该时长的历史比赛视为不可变
	historicalAge = 30 * 24 * time.Hour

	// 结束超过该时长仍无详情的比赛视为上游无数据
	detailsGiveUpAge = 7 * 24 * time.Hour

	// 记录超过该时长无任何更新也不再重试详情
	detailsStaleUpdateAge = 24 * time.Hour
)

// DetailsState 详情（统计/事件/阵容）新鲜度三态
type DetailsState int

const (
	// DetailsFresh 无需拉取
	DetailsFresh DetailsState = iota
	// DetailsStaleRetry 需要（重新）拉取
	DetailsStaleRetry
	// DetailsConfirmedAbsent 上游确认无数据，不再重试
	DetailsConfirmedAbsent
)

// FixtureExpiry 根据比赛状态和开球时间计算 fixture 维度的过期时间
func FixtureExpiry(m *models.Match, now time.Time) time.Time {
	switch {
	case m.IsLive():
		return now.Add(liveFixtureTTL)
	case m.IsFinished():
		return now.Add(finishedFixtureTTL)
	case m.Kickoff.Sub(now) <= 24*time.Hour:
		// 临近开球，赛程可能调整、状态可能随时变为 live
		return now.Add(imminentFixtureTTL)
	default:
		return now.Add(scheduledFixtureTTL)
	}
}

// IsFixtureStale 判断核心字段（状态、比分）是否需要重新校验
// 无过期标记视为过期，但开球超过 30 天的历史比赛除外：
// 历史比分不会再变，反复轮询只会白白消耗配额
func IsFixtureStale(m *models.Match, now time.Time) bool {
	if m.FixtureExpiry == nil {
		return now.Sub(m.Kickoff) < historicalAge
	}
	return now.After(*m.FixtureExpiry)
}

// DetailsFreshness 判断详情数据的三态新鲜度
func DetailsFreshness(m *models.Match, now time.Time) DetailsState {
	// 未开始的比赛不存在详情数据
	if !m.NeedsDetails() {
		return DetailsFresh
	}

	if m.HasDetails() {
		if m.DetailsExpiry != nil && now.Before(*m.DetailsExpiry) {
			return DetailsFresh
		}
		return DetailsStaleRetry
	}

	// 详情缺失
	if m.IsFinished() && now.Sub(m.Kickoff) > detailsGiveUpAge {
		return DetailsConfirmedAbsent
	}
	if !m.UpdatedAt.IsZero() && now.Sub(m.UpdatedAt) > detailsStaleUpdateAge {
		return DetailsConfirmedAbsent
	}
	return DetailsStaleRetry
}

// DetailsExpiry 计算 details 维度的过期时间
// hasPayload=false 且比赛已结束较久时写长窗口，作为"确认无数据"标记
func DetailsExpiry(m *models.Match, hasPayload bool, now time.Time) time.Time {
	if !hasPayload && m.IsFinished() && now.Sub(m.Kickoff) > detailsGiveUpAge {
		return now.Add(absentDetailsTTL)
	}
	if m.IsLive() {
		return now.Add(liveDetailsTTL)
	}
	return now.Add(finishedDetailsTTL)
}
