package database

import (
	"context"
	"database/sql"
	"fmt"

	"footdata-service/models"
)

// QueryCheck 读取某 (联赛, 日期) 的负结果记录，不存在时返回 nil
func (s *MatchStore) QueryCheck(ctx context.Context, leagueID int, date string) (*models.QueryCheck, error) {
	var check models.QueryCheck
	err := s.db.QueryRowContext(ctx, `
		SELECT league_id, date, has_matches, checked_at
		FROM query_checks WHERE league_id = $1 AND date = $2
	`, leagueID, date).Scan(&check.LeagueID, &check.Date, &check.HasMatches, &check.CheckedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		if isMissingIndexErr(err) {
			return nil, ErrMissingIndex
		}
		return nil, fmt.Errorf("failed to query check record: %w", err)
	}
	return &check, nil
}

// SaveQueryCheck 写入负结果记录
func (s *MatchStore) SaveQueryCheck(ctx context.Context, check models.QueryCheck) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_checks (league_id, date, has_matches, checked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (league_id, date) DO UPDATE SET
			has_matches = EXCLUDED.has_matches,
			checked_at = EXCLUDED.checked_at
	`, check.LeagueID, check.Date, check.HasMatches, check.CheckedAt.UTC())

	if err != nil {
		return fmt.Errorf("failed to save check record: %w", err)
	}
	return nil
}
