package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"footdata-service/models"
)

// MatchStore 比赛数据的文档存储层
// 所有批量写入都在单个事务内完成
type MatchStore struct {
	db *sql.DB
}

// NewMatchStore 创建比赛存储
func NewMatchStore(db *sql.DB) *MatchStore {
	return &MatchStore{db: db}
}

const matchColumns = `id, league_id, season, kickoff, status_long, status_short, elapsed,
	home_team_id, home_team_name, home_team_logo,
	away_team_id, away_team_name, away_team_logo,
	home_goals, away_goals, statistics, events, lineups,
	fixture_expiry, details_expiry, updated_at`

// MatchesInRange 查询开球时间在 [from, to] 内的比赛
// leagueID 为 0 表示不按联赛过滤
func (s *MatchStore) MatchesInRange(ctx context.Context, from, to time.Time, leagueID int) ([]models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE kickoff >= $1 AND kickoff <= $2`
	args := []interface{}{from, to}

	if leagueID > 0 {
		query += ` AND league_id = $3`
		args = append(args, leagueID)
	}
	query += ` ORDER BY kickoff`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if isMissingIndexErr(err) {
			return nil, ErrMissingIndex
		}
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	return scanMatches(rows)
}

// MatchesByIDs 按 ID 批量读取比赛，返回 id -> match 映射
func (s *MatchStore) MatchesByIDs(ctx context.Context, ids []int64) (map[int64]models.Match, error) {
	result := make(map[int64]models.Match, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = ANY($1)`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		if isMissingIndexErr(err) {
			return nil, ErrMissingIndex
		}
		return nil, fmt.Errorf("failed to query matches by ids: %w", err)
	}
	defer rows.Close()

	matches, err := scanMatches(rows)
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		result[m.ID] = m
	}
	return result, nil
}

// MatchesByTeam 查询某球队最近的比赛
func (s *MatchStore) MatchesByTeam(ctx context.Context, teamID int, limit int) ([]models.Match, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `SELECT ` + matchColumns + ` FROM matches
		WHERE home_team_id = $1 OR away_team_id = $1
		ORDER BY kickoff DESC LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, teamID, limit)
	if err != nil {
		if isMissingIndexErr(err) {
			return nil, ErrMissingIndex
		}
		return nil, fmt.Errorf("failed to query team matches: %w", err)
	}
	defer rows.Close()

	return scanMatches(rows)
}

// SaveMatches 批量写入比赛（单事务，全部成功或全部回滚）
// 字段级合并由调用方负责，这里按传入内容整体 upsert
func (s *MatchStore) SaveMatches(ctx context.Context, matches []models.Match) error {
	if len(matches) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO matches (
			id, league_id, season, kickoff, status_long, status_short, elapsed,
			home_team_id, home_team_name, home_team_logo,
			away_team_id, away_team_name, away_team_logo,
			home_goals, away_goals, statistics, events, lineups,
			fixture_expiry, details_expiry, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		ON CONFLICT (id) DO UPDATE SET
			league_id = EXCLUDED.league_id,
			season = EXCLUDED.season,
			kickoff = EXCLUDED.kickoff,
			status_long = EXCLUDED.status_long,
			status_short = EXCLUDED.status_short,
			elapsed = EXCLUDED.elapsed,
			home_team_id = EXCLUDED.home_team_id,
			home_team_name = EXCLUDED.home_team_name,
			home_team_logo = EXCLUDED.home_team_logo,
			away_team_id = EXCLUDED.away_team_id,
			away_team_name = EXCLUDED.away_team_name,
			away_team_logo = EXCLUDED.away_team_logo,
			home_goals = EXCLUDED.home_goals,
			away_goals = EXCLUDED.away_goals,
			statistics = EXCLUDED.statistics,
			events = EXCLUDED.events,
			lineups = EXCLUDED.lineups,
			fixture_expiry = EXCLUDED.fixture_expiry,
			details_expiry = EXCLUDED.details_expiry,
			updated_at = EXCLUDED.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, m := range matches {
		stats, err := marshalJSON(m.Statistics)
		if err != nil {
			return fmt.Errorf("failed to marshal statistics for match %d: %w", m.ID, err)
		}
		events, err := marshalJSON(m.Events)
		if err != nil {
			return fmt.Errorf("failed to marshal events for match %d: %w", m.ID, err)
		}
		lineups, err := marshalJSON(m.Lineups)
		if err != nil {
			return fmt.Errorf("failed to marshal lineups for match %d: %w", m.ID, err)
		}

		updatedAt := m.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}

		_, err = stmt.ExecContext(ctx,
			m.ID, m.LeagueID, m.Season, m.Kickoff.UTC(),
			m.Status.Long, m.Status.Short, nullableInt(m.Status.Elapsed),
			m.HomeTeam.ID, m.HomeTeam.Name, m.HomeTeam.Logo,
			m.AwayTeam.ID, m.AwayTeam.Name, m.AwayTeam.Logo,
			nullableInt(m.Goals.Home), nullableInt(m.Goals.Away),
			stats, events, lineups,
			nullableTime(m.FixtureExpiry), nullableTime(m.DetailsExpiry),
			updatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert match %d: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit matches: %w", err)
	}
	return nil
}

// scanMatches 扫描比赛结果集
func scanMatches(rows *sql.Rows) ([]models.Match, error) {
	var matches []models.Match

	for rows.Next() {
		var (
			m                      models.Match
			elapsed                sql.NullInt64
			statusLong, statusShort sql.NullString
			homeName, homeLogo     sql.NullString
			awayName, awayLogo     sql.NullString
			homeGoals, awayGoals   sql.NullInt64
			stats, events, lineups []byte
			fixtureExp, detailsExp sql.NullTime
		)

		err := rows.Scan(
			&m.ID, &m.LeagueID, &m.Season, &m.Kickoff,
			&statusLong, &statusShort, &elapsed,
			&m.HomeTeam.ID, &homeName, &homeLogo,
			&m.AwayTeam.ID, &awayName, &awayLogo,
			&homeGoals, &awayGoals,
			&stats, &events, &lineups,
			&fixtureExp, &detailsExp, &m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}

		m.Status.Long = statusLong.String
		m.Status.Short = statusShort.String
		if elapsed.Valid {
			v := int(elapsed.Int64)
			m.Status.Elapsed = &v
		}
		m.HomeTeam.Name = homeName.String
		m.HomeTeam.Logo = homeLogo.String
		m.AwayTeam.Name = awayName.String
		m.AwayTeam.Logo = awayLogo.String
		if homeGoals.Valid {
			v := int(homeGoals.Int64)
			m.Goals.Home = &v
		}
		if awayGoals.Valid {
			v := int(awayGoals.Int64)
			m.Goals.Away = &v
		}
		if len(stats) > 0 {
			if err := json.Unmarshal(stats, &m.Statistics); err != nil {
				return nil, fmt.Errorf("failed to unmarshal statistics for match %d: %w", m.ID, err)
			}
		}
		if len(events) > 0 {
			if err := json.Unmarshal(events, &m.Events); err != nil {
				return nil, fmt.Errorf("failed to unmarshal events for match %d: %w", m.ID, err)
			}
		}
		if len(lineups) > 0 {
			if err := json.Unmarshal(lineups, &m.Lineups); err != nil {
				return nil, fmt.Errorf("failed to unmarshal lineups for match %d: %w", m.ID, err)
			}
		}
		if fixtureExp.Valid {
			t := fixtureExp.Time
			m.FixtureExpiry = &t
		}
		if detailsExp.Valid {
			t := detailsExp.Time
			m.DetailsExpiry = &t
		}

		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate matches: %w", err)
	}
	return matches, nil
}

// marshalJSON 序列化为 JSONB；空切片写 NULL，避免把"无数据"存成 []
func marshalJSON(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case []models.TeamStatistics:
		if len(val) == 0 {
			return nil, nil
		}
	case []models.MatchEvent:
		if len(val) == 0 {
			return nil, nil
		}
	case []models.TeamLineup:
		if len(val) == 0 {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
