package models

import (
	"time"
)

// League 联赛
type League struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
	Logo    string `json:"logo,omitempty"`
	Flag    string `json:"flag,omitempty"`
	Season  int    `json:"season,omitempty"`
}

// Team 球队
type Team struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Code    string `json:"code,omitempty"`
	Country string `json:"country,omitempty"`
	Logo    string `json:"logo,omitempty"`
	Founded int    `json:"founded,omitempty"`
}

// StandingRow 积分榜单行
type StandingRow struct {
	LeagueID     int     `json:"leagueId"`
	Season       int     `json:"season"`
	Rank         int     `json:"rank"`
	Team         TeamRef `json:"team"`
	Points       int     `json:"points"`
	GoalsDiff    int     `json:"goalsDiff"`
	Played       int     `json:"played"`
	Won          int     `json:"won"`
	Drawn        int     `json:"drawn"`
	Lost         int     `json:"lost"`
	GoalsFor     int     `json:"goalsFor"`
	GoalsAgainst int     `json:"goalsAgainst"`
	Form         string  `json:"form,omitempty"`
}

// QueryCheck 负结果记录：某 (联赛, 日期) 查询是否有比赛
// HasMatches=false 且记录足够新时，可跳过对上游的重复请求
type QueryCheck struct {
	LeagueID   int       `json:"leagueId"`
	Date       string    `json:"date"` // 格式 2006-01-02
	HasMatches bool      `json:"hasMatches"`
	CheckedAt  time.Time `json:"checkedAt"`
}
