package apifootball

import (
	"net/url"
	"strconv"
	"time"

	"footdata-service/logger"
	"footdata-service/models"
)

// FixturesByDate retrieves all fixtures of a league on a calendar date.
// An empty result is not an error: the league simply has no matches that day.
func (c *Client) FixturesByDate(date time.Time, leagueID int) ([]models.Match, error) {
	params := url.Values{}
	params.Set("date", date.UTC().Format("2006-01-02"))
	if leagueID > 0 {
		params.Set("league", strconv.Itoa(leagueID))
		params.Set("season", strconv.Itoa(SeasonForDate(date)))
	}

	var items []fixtureItem
	if err := c.fetch("/fixtures", params, &items); err != nil {
		return nil, err
	}
	return itemsToMatches(items), nil
}

// FixturesInRange retrieves fixtures of a league between two dates (inclusive).
func (c *Client) FixturesInRange(from, to time.Time, leagueID int) ([]models.Match, error) {
	params := url.Values{}
	params.Set("from", from.UTC().Format("2006-01-02"))
	params.Set("to", to.UTC().Format("2006-01-02"))
	if leagueID > 0 {
		params.Set("league", strconv.Itoa(leagueID))
		params.Set("season", strconv.Itoa(SeasonForDate(from)))
	}

	var items []fixtureItem
	if err := c.fetch("/fixtures", params, &items); err != nil {
		return nil, err
	}
	return itemsToMatches(items), nil
}

// itemsToMatches converts fixture items, dropping malformed entries
// so that one bad record does not poison the whole response.
func itemsToMatches(items []fixtureItem) []models.Match {
	matches := make([]models.Match, 0, len(items))
	for i := range items {
		m, err := items[i].toMatch()
		if err != nil {
			logger.Errorf("[APIFootball] ⚠️  Skipping fixture: %v", err)
			continue
		}
		matches = append(matches, m)
	}
	return matches
}

// Statistics retrieves per-team statistics for a fixture
func (c *Client) Statistics(matchID int64) ([]models.TeamStatistics, error) {
	params := url.Values{}
	params.Set("fixture", strconv.FormatInt(matchID, 10))

	var items []statisticsItem
	if err := c.fetch("/fixtures/statistics", params, &items); err != nil {
		return nil, err
	}

	stats := make([]models.TeamStatistics, len(items))
	for i, item := range items {
		ts := models.TeamStatistics{TeamID: item.Team.ID}
		for _, s := range item.Statistics {
			ts.Statistics = append(ts.Statistics, models.StatisticValue{Type: s.Type, Value: s.Value})
		}
		stats[i] = ts
	}
	return stats, nil
}

// Events retrieves the event timeline for a fixture
func (c *Client) Events(matchID int64) ([]models.MatchEvent, error) {
	params := url.Values{}
	params.Set("fixture", strconv.FormatInt(matchID, 10))

	var items []eventItem
	if err := c.fetch("/fixtures/events", params, &items); err != nil {
		return nil, err
	}

	events := make([]models.MatchEvent, len(items))
	for i, item := range items {
		events[i] = models.MatchEvent{
			Minute:      item.Time.Elapsed,
			ExtraMinute: item.Time.Extra,
			TeamID:      item.Team.ID,
			Type:        item.Type,
			Detail:      item.Detail,
			Comment:     item.Comments,
			Player:      item.Player.Name,
			Assist:      item.Assist.Name,
		}
	}
	return events, nil
}

// Lineups retrieves both teams' lineups for a fixture
func (c *Client) Lineups(matchID int64) ([]models.TeamLineup, error) {
	params := url.Values{}
	params.Set("fixture", strconv.FormatInt(matchID, 10))

	var items []lineupItem
	if err := c.fetch("/fixtures/lineups", params, &items); err != nil {
		return nil, err
	}

	lineups := make([]models.TeamLineup, len(items))
	for i, item := range items {
		l := models.TeamLineup{
			TeamID:    item.Team.ID,
			Formation: item.Formation,
			Coach:     item.Coach.Name,
		}
		for _, p := range item.StartXI {
			l.StartXI = append(l.StartXI, models.LineupPlayer{
				ID: p.Player.ID, Name: p.Player.Name, Number: p.Player.Number,
				Pos: p.Player.Pos, Grid: p.Player.Grid,
			})
		}
		for _, p := range item.Substitutes {
			l.Substitutes = append(l.Substitutes, models.LineupPlayer{
				ID: p.Player.ID, Name: p.Player.Name, Number: p.Player.Number,
				Pos: p.Player.Pos,
			})
		}
		lineups[i] = l
	}
	return lineups, nil
}
