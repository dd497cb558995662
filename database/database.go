package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrMissingIndex 查询依赖的表或索引尚未就绪
// 调用方可以降级为全量扫描或直接走上游，不应把该错误透传给用户
var ErrMissingIndex = errors.New("missing index")

// Connect 连接到数据库
func Connect(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 设置连接池
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

// isMissingIndexErr 判断是否为"表/列/索引缺失"类错误
// Postgres 下对应 undefined_table / undefined_column / undefined_object
func isMissingIndexErr(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "42P01", "42703", "42704":
		return true
	}
	return false
}

// Migrate 运行数据库迁移
func Migrate(db *sql.DB) error {
	migrations := []string{
		// 比赛表
		`CREATE TABLE IF NOT EXISTS matches (
			id BIGINT PRIMARY KEY,
			league_id INTEGER NOT NULL,
			season INTEGER NOT NULL DEFAULT 0,
			kickoff TIMESTAMPTZ NOT NULL,
			status_long VARCHAR(50),
			status_short VARCHAR(10),
			elapsed INTEGER,
			home_team_id INTEGER NOT NULL,
			home_team_name VARCHAR(200),
			home_team_logo TEXT,
			away_team_id INTEGER NOT NULL,
			away_team_name VARCHAR(200),
			away_team_logo TEXT,
			home_goals INTEGER,
			away_goals INTEGER,
			statistics JSONB,
			events JSONB,
			lineups JSONB,
			fixture_expiry TIMESTAMPTZ,
			details_expiry TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_kickoff ON matches(kickoff)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_league_kickoff ON matches(league_id, kickoff)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_home_team ON matches(home_team_id)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_away_team ON matches(away_team_id)`,

		// 联赛表
		`CREATE TABLE IF NOT EXISTS leagues (
			id INTEGER PRIMARY KEY,
			name VARCHAR(200) NOT NULL,
			country VARCHAR(100),
			logo TEXT,
			flag TEXT,
			season INTEGER DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// 球队表
		`CREATE TABLE IF NOT EXISTS teams (
			id INTEGER PRIMARY KEY,
			name VARCHAR(200) NOT NULL,
			code VARCHAR(10),
			country VARCHAR(100),
			logo TEXT,
			founded INTEGER DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// 球队-联赛关联表
		`CREATE TABLE IF NOT EXISTS team_leagues (
			team_id INTEGER NOT NULL,
			league_id INTEGER NOT NULL,
			season INTEGER NOT NULL,
			PRIMARY KEY (team_id, league_id, season)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_team_leagues_league ON team_leagues(league_id, season)`,

		// 积分榜表
		`CREATE TABLE IF NOT EXISTS standings (
			league_id INTEGER NOT NULL,
			season INTEGER NOT NULL,
			team_id INTEGER NOT NULL,
			team_name VARCHAR(200),
			team_logo TEXT,
			rank INTEGER NOT NULL,
			points INTEGER NOT NULL DEFAULT 0,
			goals_diff INTEGER NOT NULL DEFAULT 0,
			played INTEGER NOT NULL DEFAULT 0,
			won INTEGER NOT NULL DEFAULT 0,
			drawn INTEGER NOT NULL DEFAULT 0,
			lost INTEGER NOT NULL DEFAULT 0,
			goals_for INTEGER NOT NULL DEFAULT 0,
			goals_against INTEGER NOT NULL DEFAULT 0,
			form VARCHAR(20),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (league_id, season, team_id)
		)`,

		// 负结果记录表：记录某 (联赛, 日期) 查询是否有比赛
		`CREATE TABLE IF NOT EXISTS query_checks (
			league_id INTEGER NOT NULL,
			date VARCHAR(10) NOT NULL,
			has_matches BOOLEAN NOT NULL,
			checked_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (league_id, date)
		)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
