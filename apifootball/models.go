package apifootball

import (
	"fmt"
	"time"

	"footdata-service/models"
)

// fixtureItem is one entry of the /fixtures response
type fixtureItem struct {
	Fixture struct {
		ID     int64  `json:"id"`
		Date   string `json:"date"` // RFC3339
		Status struct {
			Long    string `json:"long"`
			Short   string `json:"short"`
			Elapsed *int   `json:"elapsed"`
		} `json:"status"`
	} `json:"fixture"`
	League struct {
		ID     int `json:"id"`
		Season int `json:"season"`
	} `json:"league"`
	Teams struct {
		Home teamItem `json:"home"`
		Away teamItem `json:"away"`
	} `json:"teams"`
	Goals struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"goals"`
}

type teamItem struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo"`
}

// toMatch converts a fixture item to the domain model.
// A fixture with an unparseable date is rejected: a zero kickoff would
// be misclassified by every freshness rule downstream.
func (f *fixtureItem) toMatch() (models.Match, error) {
	kickoff, err := time.Parse(time.RFC3339, f.Fixture.Date)
	if err != nil {
		return models.Match{}, fmt.Errorf("fixture %d has invalid date %q: %w", f.Fixture.ID, f.Fixture.Date, err)
	}

	return models.Match{
		ID:       f.Fixture.ID,
		LeagueID: f.League.ID,
		Season:   f.League.Season,
		Kickoff:  kickoff.UTC(),
		Status: models.MatchStatus{
			Long:    f.Fixture.Status.Long,
			Short:   f.Fixture.Status.Short,
			Elapsed: f.Fixture.Status.Elapsed,
		},
		HomeTeam: models.TeamRef{ID: f.Teams.Home.ID, Name: f.Teams.Home.Name, Logo: f.Teams.Home.Logo},
		AwayTeam: models.TeamRef{ID: f.Teams.Away.ID, Name: f.Teams.Away.Name, Logo: f.Teams.Away.Logo},
		Goals:    models.Goals{Home: f.Goals.Home, Away: f.Goals.Away},
	}, nil
}

// statisticsItem is one entry (one side) of /fixtures/statistics
type statisticsItem struct {
	Team       teamItem `json:"team"`
	Statistics []struct {
		Type  string      `json:"type"`
		Value interface{} `json:"value"`
	} `json:"statistics"`
}

// eventItem is one entry of /fixtures/events
type eventItem struct {
	Time struct {
		Elapsed int  `json:"elapsed"`
		Extra   *int `json:"extra"`
	} `json:"time"`
	Team   teamItem `json:"team"`
	Player struct {
		Name string `json:"name"`
	} `json:"player"`
	Assist struct {
		Name string `json:"name"`
	} `json:"assist"`
	Type     string `json:"type"`
	Detail   string `json:"detail"`
	Comments string `json:"comments"`
}

// lineupItem is one entry (one side) of /fixtures/lineups
type lineupItem struct {
	Team      teamItem `json:"team"`
	Formation string   `json:"formation"`
	Coach     struct {
		Name string `json:"name"`
	} `json:"coach"`
	StartXI     []lineupPlayerItem `json:"startXI"`
	Substitutes []lineupPlayerItem `json:"substitutes"`
}

type lineupPlayerItem struct {
	Player struct {
		ID     int    `json:"id"`
		Name   string `json:"name"`
		Number int    `json:"number"`
		Pos    string `json:"pos"`
		Grid   string `json:"grid"`
	} `json:"player"`
}

// standingsItem is one entry of /standings
type standingsItem struct {
	League struct {
		ID        int            `json:"id"`
		Name      string         `json:"name"`
		Country   string         `json:"country"`
		Logo      string         `json:"logo"`
		Flag      string         `json:"flag"`
		Season    int            `json:"season"`
		Standings [][]standingRow `json:"standings"`
	} `json:"league"`
}

type standingRow struct {
	Rank      int      `json:"rank"`
	Team      teamItem `json:"team"`
	Points    int      `json:"points"`
	GoalsDiff int      `json:"goalsDiff"`
	Form      string   `json:"form"`
	All       struct {
		Played int `json:"played"`
		Win    int `json:"win"`
		Draw   int `json:"draw"`
		Lose   int `json:"lose"`
		Goals  struct {
			For     int `json:"for"`
			Against int `json:"against"`
		} `json:"goals"`
	} `json:"all"`
}

// teamsItem is one entry of /teams
type teamsItem struct {
	Team struct {
		ID      int    `json:"id"`
		Name    string `json:"name"`
		Code    string `json:"code"`
		Country string `json:"country"`
		Founded int    `json:"founded"`
		Logo    string `json:"logo"`
	} `json:"team"`
}

// leaguesItem is one entry of /leagues
type leaguesItem struct {
	League struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
		Logo string `json:"logo"`
	} `json:"league"`
	Country struct {
		Name string `json:"name"`
		Flag string `json:"flag"`
	} `json:"country"`
	Seasons []struct {
		Year    int  `json:"year"`
		Current bool `json:"current"`
	} `json:"seasons"`
}
