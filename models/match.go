package models

import (
	"time"
)

// 比赛状态短码（API-Football 规范）
const (
	StatusNotStarted = "NS"
	StatusFirstHalf  = "1H"
	StatusHalftime   = "HT"
	StatusSecondHalf = "2H"
	StatusExtraTime  = "ET"
	StatusBreakTime  = "BT"
	StatusPenalty    = "P"
	StatusLive       = "LIVE"
	StatusFullTime   = "FT"
	StatusAfterExtra = "AET"
	StatusPenaltyEnd = "PEN"
	StatusPostponed  = "PST"
	StatusCancelled  = "CANC"
	StatusAbandoned  = "ABD"
)

// MatchStatus 比赛状态
type MatchStatus struct {
	Long    string `json:"long"`
	Short   string `json:"short"`
	Elapsed *int   `json:"elapsed,omitempty"`
}

// TeamRef 比赛中的球队引用
type TeamRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo,omitempty"`
}

// Goals 比分
type Goals struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

// StatisticValue 单项统计（如 "Shots on Goal": 5）
type StatisticValue struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// TeamStatistics 单方球队的统计列表
type TeamStatistics struct {
	TeamID     int              `json:"teamId"`
	Statistics []StatisticValue `json:"statistics"`
}

// MatchEvent 比赛事件（进球/换人/红黄牌等）
type MatchEvent struct {
	Minute      int    `json:"minute"`
	ExtraMinute *int   `json:"extraMinute,omitempty"`
	TeamID      int    `json:"teamId"`
	Type        string `json:"type"`
	Detail      string `json:"detail,omitempty"`
	Comment     string `json:"comment,omitempty"`
	Player      string `json:"player,omitempty"`
	Assist      string `json:"assist,omitempty"`
}

// LineupPlayer 阵容球员
type LineupPlayer struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Number int    `json:"number"`
	Pos    string `json:"pos,omitempty"`
	Grid   string `json:"grid,omitempty"`
}

// TeamLineup 单方球队阵容
type TeamLineup struct {
	TeamID      int            `json:"teamId"`
	Formation   string         `json:"formation,omitempty"`
	Coach       string         `json:"coach,omitempty"`
	StartXI     []LineupPlayer `json:"startXI,omitempty"`
	Substitutes []LineupPlayer `json:"substitutes,omitempty"`
}

// Match 一场比赛的完整记录
// FixtureExpiry / DetailsExpiry 为空表示该维度从未校验过
type Match struct {
	ID       int64       `json:"id"`
	LeagueID int         `json:"leagueId"`
	Season   int         `json:"season"`
	Kickoff  time.Time   `json:"kickoff"`
	Status   MatchStatus `json:"status"`
	HomeTeam TeamRef     `json:"homeTeam"`
	AwayTeam TeamRef     `json:"awayTeam"`
	Goals    Goals       `json:"goals"`

	Statistics []TeamStatistics `json:"statistics,omitempty"`
	Events     []MatchEvent     `json:"events,omitempty"`
	Lineups    []TeamLineup     `json:"lineups,omitempty"`

	FixtureExpiry *time.Time `json:"fixtureExpiry,omitempty"`
	DetailsExpiry *time.Time `json:"detailsExpiry,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// IsLive 比赛是否进行中
func (m *Match) IsLive() bool {
	switch m.Status.Short {
	case StatusFirstHalf, StatusHalftime, StatusSecondHalf,
		StatusExtraTime, StatusBreakTime, StatusPenalty, StatusLive:
		return true
	}
	return false
}

// IsFinished 比赛是否已结束
func (m *Match) IsFinished() bool {
	switch m.Status.Short {
	case StatusFullTime, StatusAfterExtra, StatusPenaltyEnd:
		return true
	}
	return false
}

// NeedsDetails 是否需要统计/事件/阵容数据（仅进行中或已结束的比赛）
func (m *Match) NeedsDetails() bool {
	return m.IsLive() || m.IsFinished()
}

// HasDetails 是否已有任何详情数据
func (m *Match) HasDetails() bool {
	return len(m.Statistics) > 0 || len(m.Events) > 0
}
