package apifootball

import (
	"net/url"
	"strconv"

	"footdata-service/models"
)

// Standings retrieves the league table for a league and season
func (c *Client) Standings(leagueID, season int) ([]models.StandingRow, error) {
	params := url.Values{}
	params.Set("league", strconv.Itoa(leagueID))
	params.Set("season", strconv.Itoa(season))

	var items []standingsItem
	if err := c.fetch("/standings", params, &items); err != nil {
		return nil, err
	}

	var rows []models.StandingRow
	for _, item := range items {
		// The API nests standings as groups; a plain league has one group
		for _, group := range item.League.Standings {
			for _, row := range group {
				rows = append(rows, models.StandingRow{
					LeagueID:     item.League.ID,
					Season:       item.League.Season,
					Rank:         row.Rank,
					Team:         models.TeamRef{ID: row.Team.ID, Name: row.Team.Name, Logo: row.Team.Logo},
					Points:       row.Points,
					GoalsDiff:    row.GoalsDiff,
					Played:       row.All.Played,
					Won:          row.All.Win,
					Drawn:        row.All.Draw,
					Lost:         row.All.Lose,
					GoalsFor:     row.All.Goals.For,
					GoalsAgainst: row.All.Goals.Against,
					Form:         row.Form,
				})
			}
		}
	}
	return rows, nil
}

// Teams retrieves the teams of a league and season
func (c *Client) Teams(leagueID, season int) ([]models.Team, error) {
	params := url.Values{}
	params.Set("league", strconv.Itoa(leagueID))
	params.Set("season", strconv.Itoa(season))

	var items []teamsItem
	if err := c.fetch("/teams", params, &items); err != nil {
		return nil, err
	}

	teams := make([]models.Team, len(items))
	for i, item := range items {
		teams[i] = models.Team{
			ID:      item.Team.ID,
			Name:    item.Team.Name,
			Code:    item.Team.Code,
			Country: item.Team.Country,
			Logo:    item.Team.Logo,
			Founded: item.Team.Founded,
		}
	}
	return teams, nil
}

// Leagues retrieves available leagues, optionally filtered by country
func (c *Client) Leagues(country string) ([]models.League, error) {
	params := url.Values{}
	if country != "" {
		params.Set("country", country)
	}

	var items []leaguesItem
	if err := c.fetch("/leagues", params, &items); err != nil {
		return nil, err
	}

	leagues := make([]models.League, len(items))
	for i, item := range items {
		l := models.League{
			ID:      item.League.ID,
			Name:    item.League.Name,
			Logo:    item.League.Logo,
			Country: item.Country.Name,
			Flag:    item.Country.Flag,
		}
		for _, s := range item.Seasons {
			if s.Current {
				l.Season = s.Year
			}
		}
		leagues[i] = l
	}
	return leagues, nil
}
