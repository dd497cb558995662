package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"footdata-service/apifootball"
	"footdata-service/models"
	"footdata-service/services"
)

// handleGetFixtures 获取比赛列表
// GET /api/fixtures?from=2024-01-01&to=2024-01-02&league=39
func (s *Server) handleGetFixtures(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	from, to, ok := parseDateRange(w, query.Get("from"), query.Get("to"))
	if !ok {
		return
	}

	leagueID, _ := strconv.Atoi(query.Get("league"))

	matches, err := s.sync.GetFixtures(r.Context(), from, to, leagueID)
	if err != nil {
		writeSyncError(w, err)
		return
	}

	if matches == nil {
		matches = []models.Match{}
	}
	writeJSON(w, map[string]interface{}{
		"fixtures": matches,
		"count":    len(matches),
	})
}

// handleGetFixturesMulti 一次获取多个联赛的比赛
// GET /api/fixtures/multi?from=...&to=...&leagues=39,140,78
func (s *Server) handleGetFixturesMulti(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	from, to, ok := parseDateRange(w, query.Get("from"), query.Get("to"))
	if !ok {
		return
	}

	var leagueIDs []int
	for _, part := range strings.Split(query.Get("leagues"), ",") {
		if id, err := strconv.Atoi(strings.TrimSpace(part)); err == nil && id > 0 {
			leagueIDs = append(leagueIDs, id)
		}
	}
	if len(leagueIDs) == 0 {
		http.Error(w, "leagues parameter is required", http.StatusBadRequest)
		return
	}

	matches, err := s.sync.GetFixturesForMultipleLeagues(r.Context(), from, to, leagueIDs)
	if err != nil {
		writeSyncError(w, err)
		return
	}

	writeJSON(w, map[string]interface{}{
		"fixtures": matches,
		"count":    len(matches),
	})
}

// handleGetStandings 获取积分榜
// GET /api/standings?league=39&season=2024
func (s *Server) handleGetStandings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	leagueID, _ := strconv.Atoi(query.Get("league"))
	if leagueID <= 0 {
		http.Error(w, "league parameter is required", http.StatusBadRequest)
		return
	}

	season, _ := strconv.Atoi(query.Get("season"))
	if season <= 0 {
		season = currentSeason()
	}

	result, err := s.sync.GetStandings(r.Context(), leagueID, season)
	if err != nil {
		writeSyncError(w, err)
		return
	}

	writeJSON(w, result)
}

// handleGetLeagues 获取联赛列表
// GET /api/leagues?country=England
func (s *Server) handleGetLeagues(w http.ResponseWriter, r *http.Request) {
	leagues, err := s.sync.GetLeagues(r.Context(), r.URL.Query().Get("country"))
	if err != nil {
		writeSyncError(w, err)
		return
	}

	writeJSON(w, map[string]interface{}{
		"leagues": leagues,
		"count":   len(leagues),
	})
}

// handleGetTeams 获取联赛球队
// GET /api/teams?league=39&season=2024
func (s *Server) handleGetTeams(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	leagueID, _ := strconv.Atoi(query.Get("league"))
	if leagueID <= 0 {
		http.Error(w, "league parameter is required", http.StatusBadRequest)
		return
	}

	season, _ := strconv.Atoi(query.Get("season"))
	if season <= 0 {
		season = currentSeason()
	}

	teams, err := s.sync.GetTeams(r.Context(), leagueID, season)
	if err != nil {
		writeSyncError(w, err)
		return
	}

	writeJSON(w, map[string]interface{}{
		"teams": teams,
		"count": len(teams),
	})
}

// handleGetTeamMatches 获取某球队最近的比赛
// GET /api/teams/{team_id}/matches?limit=20
func (s *Server) handleGetTeamMatches(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	teamID, err := strconv.Atoi(vars["team_id"])
	if err != nil || teamID <= 0 {
		http.Error(w, "invalid team id", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	matches, err := s.sync.GetTeamMatches(r.Context(), teamID, limit)
	if err != nil {
		writeSyncError(w, err)
		return
	}

	writeJSON(w, map[string]interface{}{
		"matches": matches,
		"count":   len(matches),
	})
}

// parseDateRange 解析 from/to 日期参数，缺省为今天
func parseDateRange(w http.ResponseWriter, fromStr, toStr string) (time.Time, time.Time, bool) {
	now := time.Now().UTC()

	from := now
	if fromStr != "" {
		parsed, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			http.Error(w, "invalid from date, expected YYYY-MM-DD", http.StatusBadRequest)
			return time.Time{}, time.Time{}, false
		}
		from = parsed
	}

	to := from
	if toStr != "" {
		parsed, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			http.Error(w, "invalid to date, expected YYYY-MM-DD", http.StatusBadRequest)
			return time.Time{}, time.Time{}, false
		}
		to = parsed
	}

	if to.Before(from) {
		http.Error(w, "to date is before from date", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}

	return from, to, true
}

// writeSyncError 把同步引擎的错误映射为 HTTP 状态
// "无数据"在引擎内部已归一为空结果，这里只剩配置/连接类故障
func writeSyncError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrMissingCredentials) {
		http.Error(w, "upstream API is not configured", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// currentSeason 当前赛季
func currentSeason() int {
	return apifootball.SeasonForDate(time.Now().UTC())
}
