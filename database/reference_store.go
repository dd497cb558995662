package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"footdata-service/models"
)

// ReferenceStore 参考数据存储（联赛、球队、积分榜）
// 这些数据变化缓慢，只在缓存未命中时从上游补齐，没有新鲜度元数据
type ReferenceStore struct {
	db *sql.DB
}

// NewReferenceStore 创建参考数据存储
func NewReferenceStore(db *sql.DB) *ReferenceStore {
	return &ReferenceStore{db: db}
}

// League 按 ID 读取联赛
func (s *ReferenceStore) League(ctx context.Context, id int) (*models.League, error) {
	var l models.League
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(country,''), COALESCE(logo,''), COALESCE(flag,''), season
		FROM leagues WHERE id = $1
	`, id).Scan(&l.ID, &l.Name, &l.Country, &l.Logo, &l.Flag, &l.Season)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query league: %w", err)
	}
	return &l, nil
}

// Leagues 读取全部联赛，country 非空时按国家过滤
func (s *ReferenceStore) Leagues(ctx context.Context, country string) ([]models.League, error) {
	query := `SELECT id, name, COALESCE(country,''), COALESCE(logo,''), COALESCE(flag,''), season FROM leagues`
	args := []interface{}{}
	if country != "" {
		query += ` WHERE country = $1`
		args = append(args, country)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leagues: %w", err)
	}
	defer rows.Close()

	var leagues []models.League
	for rows.Next() {
		var l models.League
		if err := rows.Scan(&l.ID, &l.Name, &l.Country, &l.Logo, &l.Flag, &l.Season); err != nil {
			return nil, fmt.Errorf("failed to scan league: %w", err)
		}
		leagues = append(leagues, l)
	}
	return leagues, rows.Err()
}

// SaveLeagues 批量 upsert 联赛
func (s *ReferenceStore) SaveLeagues(ctx context.Context, leagues []models.League) error {
	if len(leagues) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, l := range leagues {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO leagues (id, name, country, logo, flag, season, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				country = EXCLUDED.country,
				logo = EXCLUDED.logo,
				flag = EXCLUDED.flag,
				season = EXCLUDED.season,
				updated_at = NOW()
		`, l.ID, l.Name, l.Country, l.Logo, l.Flag, l.Season)
		if err != nil {
			return fmt.Errorf("failed to upsert league %d: %w", l.ID, err)
		}
	}

	return tx.Commit()
}

// TeamsByLeague 读取某联赛某赛季的球队
func (s *ReferenceStore) TeamsByLeague(ctx context.Context, leagueID, season int) ([]models.Team, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, COALESCE(t.code,''), COALESCE(t.country,''), COALESCE(t.logo,''), t.founded
		FROM teams t
		JOIN team_leagues tl ON tl.team_id = t.id
		WHERE tl.league_id = $1 AND tl.season = $2
		ORDER BY t.name
	`, leagueID, season)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	var teams []models.Team
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Code, &t.Country, &t.Logo, &t.Founded); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// SaveTeams 批量 upsert 球队并维护联赛关联
func (s *ReferenceStore) SaveTeams(ctx context.Context, teams []models.Team, leagueID, season int) error {
	if len(teams) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range teams {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO teams (id, name, code, country, logo, founded, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				code = EXCLUDED.code,
				country = EXCLUDED.country,
				logo = EXCLUDED.logo,
				founded = EXCLUDED.founded,
				updated_at = NOW()
		`, t.ID, t.Name, t.Code, t.Country, t.Logo, t.Founded)
		if err != nil {
			return fmt.Errorf("failed to upsert team %d: %w", t.ID, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO team_leagues (team_id, league_id, season)
			VALUES ($1, $2, $3)
			ON CONFLICT (team_id, league_id, season) DO NOTHING
		`, t.ID, leagueID, season)
		if err != nil {
			return fmt.Errorf("failed to link team %d to league %d: %w", t.ID, leagueID, err)
		}
	}

	return tx.Commit()
}

// Standings 读取某联赛某赛季的积分榜
func (s *ReferenceStore) Standings(ctx context.Context, leagueID, season int) ([]models.StandingRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT league_id, season, rank, team_id, COALESCE(team_name,''), COALESCE(team_logo,''),
			points, goals_diff, played, won, drawn, lost, goals_for, goals_against, COALESCE(form,'')
		FROM standings WHERE league_id = $1 AND season = $2
		ORDER BY rank
	`, leagueID, season)
	if err != nil {
		return nil, fmt.Errorf("failed to query standings: %w", err)
	}
	defer rows.Close()

	var standings []models.StandingRow
	for rows.Next() {
		var r models.StandingRow
		err := rows.Scan(&r.LeagueID, &r.Season, &r.Rank, &r.Team.ID, &r.Team.Name, &r.Team.Logo,
			&r.Points, &r.GoalsDiff, &r.Played, &r.Won, &r.Drawn, &r.Lost,
			&r.GoalsFor, &r.GoalsAgainst, &r.Form)
		if err != nil {
			return nil, fmt.Errorf("failed to scan standing: %w", err)
		}
		standings = append(standings, r)
	}
	return standings, rows.Err()
}

// SaveStandings 整表替换某联赛某赛季的积分榜
func (s *ReferenceStore) SaveStandings(ctx context.Context, rows []models.StandingRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, r := range rows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO standings (
				league_id, season, team_id, team_name, team_logo, rank,
				points, goals_diff, played, won, drawn, lost, goals_for, goals_against, form, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
			ON CONFLICT (league_id, season, team_id) DO UPDATE SET
				team_name = EXCLUDED.team_name,
				team_logo = EXCLUDED.team_logo,
				rank = EXCLUDED.rank,
				points = EXCLUDED.points,
				goals_diff = EXCLUDED.goals_diff,
				played = EXCLUDED.played,
				won = EXCLUDED.won,
				drawn = EXCLUDED.drawn,
				lost = EXCLUDED.lost,
				goals_for = EXCLUDED.goals_for,
				goals_against = EXCLUDED.goals_against,
				form = EXCLUDED.form,
				updated_at = EXCLUDED.updated_at
		`, r.LeagueID, r.Season, r.Team.ID, r.Team.Name, r.Team.Logo, r.Rank,
			r.Points, r.GoalsDiff, r.Played, r.Won, r.Drawn, r.Lost,
			r.GoalsFor, r.GoalsAgainst, r.Form, now)
		if err != nil {
			return fmt.Errorf("failed to upsert standing for team %d: %w", r.Team.ID, err)
		}
	}

	return tx.Commit()
}
