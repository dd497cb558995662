package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"footdata-service/models"
)

// ---- 测试替身 ----

type fakeMatchStore struct {
	mu        sync.Mutex
	matches   map[int64]models.Match
	saveCalls int
}

func newFakeMatchStore() *fakeMatchStore {
	return &fakeMatchStore{matches: make(map[int64]models.Match)}
}

func (f *fakeMatchStore) MatchesInRange(ctx context.Context, from, to time.Time, leagueID int) ([]models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []models.Match
	for _, m := range f.matches {
		if m.Kickoff.Before(from) || m.Kickoff.After(to) {
			continue
		}
		if leagueID > 0 && m.LeagueID != leagueID {
			continue
		}
		result = append(result, m)
	}
	return result, nil
}

func (f *fakeMatchStore) MatchesByIDs(ctx context.Context, ids []int64) (map[int64]models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make(map[int64]models.Match)
	for _, id := range ids {
		if m, ok := f.matches[id]; ok {
			result[id] = m
		}
	}
	return result, nil
}

func (f *fakeMatchStore) MatchesByTeam(ctx context.Context, teamID int, limit int) ([]models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []models.Match
	for _, m := range f.matches {
		if m.HomeTeam.ID == teamID || m.AwayTeam.ID == teamID {
			result = append(result, m)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f *fakeMatchStore) SaveMatches(ctx context.Context, matches []models.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.saveCalls++
	for _, m := range matches {
		f.matches[m.ID] = m
	}
	return nil
}

type fakeCheckStore struct {
	mu     sync.Mutex
	checks map[string]models.QueryCheck
}

func newFakeCheckStore() *fakeCheckStore {
	return &fakeCheckStore{checks: make(map[string]models.QueryCheck)}
}

func checkStoreKey(leagueID int, date string) string {
	return fmt.Sprintf("%d:%s", leagueID, date)
}

func (f *fakeCheckStore) QueryCheck(ctx context.Context, leagueID int, date string) (*models.QueryCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if check, ok := f.checks[checkStoreKey(leagueID, date)]; ok {
		return &check, nil
	}
	return nil, nil
}

func (f *fakeCheckStore) SaveQueryCheck(ctx context.Context, check models.QueryCheck) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks[checkStoreKey(check.LeagueID, check.Date)] = check
	return nil
}

type fakeRefStore struct {
	leagues   map[int]models.League
	teams     map[int][]models.Team
	standings map[int][]models.StandingRow
}

func newFakeRefStore() *fakeRefStore {
	return &fakeRefStore{
		leagues:   make(map[int]models.League),
		teams:     make(map[int][]models.Team),
		standings: make(map[int][]models.StandingRow),
	}
}

func (f *fakeRefStore) League(ctx context.Context, id int) (*models.League, error) {
	if l, ok := f.leagues[id]; ok {
		return &l, nil
	}
	return nil, nil
}

func (f *fakeRefStore) Leagues(ctx context.Context, country string) ([]models.League, error) {
	var result []models.League
	for _, l := range f.leagues {
		if country == "" || l.Country == country {
			result = append(result, l)
		}
	}
	return result, nil
}

func (f *fakeRefStore) SaveLeagues(ctx context.Context, leagues []models.League) error {
	for _, l := range leagues {
		f.leagues[l.ID] = l
	}
	return nil
}

func (f *fakeRefStore) TeamsByLeague(ctx context.Context, leagueID, season int) ([]models.Team, error) {
	return f.teams[leagueID], nil
}

func (f *fakeRefStore) SaveTeams(ctx context.Context, teams []models.Team, leagueID, season int) error {
	f.teams[leagueID] = teams
	return nil
}

func (f *fakeRefStore) Standings(ctx context.Context, leagueID, season int) ([]models.StandingRow, error) {
	return f.standings[leagueID], nil
}

func (f *fakeRefStore) SaveStandings(ctx context.Context, rows []models.StandingRow) error {
	if len(rows) > 0 {
		f.standings[rows[0].LeagueID] = rows
	}
	return nil
}

type fakeUpstream struct {
	mu            sync.Mutex
	fixtures      []models.Match
	statistics    []models.TeamStatistics
	events        []models.MatchEvent
	lineups       []models.TeamLineup
	lineupsErr    error
	standings     []models.StandingRow
	teams         []models.Team
	leagues       []models.League
	fixturesCalls int
	detailsCalls  int
}

func (f *fakeUpstream) fixturesFor(leagueID int) []models.Match {
	var result []models.Match
	for _, m := range f.fixtures {
		if leagueID > 0 && m.LeagueID != leagueID {
			continue
		}
		result = append(result, m)
	}
	return result
}

func (f *fakeUpstream) FixturesByDate(date time.Time, leagueID int) ([]models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fixturesCalls++
	return f.fixturesFor(leagueID), nil
}

func (f *fakeUpstream) FixturesInRange(from, to time.Time, leagueID int) ([]models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fixturesCalls++
	return f.fixturesFor(leagueID), nil
}

func (f *fakeUpstream) Statistics(matchID int64) ([]models.TeamStatistics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailsCalls++
	return f.statistics, nil
}

func (f *fakeUpstream) Events(matchID int64) ([]models.MatchEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailsCalls++
	return f.events, nil
}

func (f *fakeUpstream) Lineups(matchID int64) ([]models.TeamLineup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailsCalls++
	if f.lineupsErr != nil {
		return nil, f.lineupsErr
	}
	return f.lineups, nil
}

func (f *fakeUpstream) Standings(leagueID, season int) ([]models.StandingRow, error) {
	return f.standings, nil
}

func (f *fakeUpstream) Teams(leagueID, season int) ([]models.Team, error) {
	return f.teams, nil
}

func (f *fakeUpstream) Leagues(country string) ([]models.League, error) {
	return f.leagues, nil
}

func (f *fakeUpstream) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fixturesCalls
}

type fakeNotifier struct {
	mu      sync.Mutex
	updates []models.Match
}

func (f *fakeNotifier) NotifyMatchUpdate(match models.Match) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, match)
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

// ---- 构造辅助 ----

func intPtr(v int) *int { return &v }

func scheduledMatch(id int64, leagueID int, kickoff time.Time) models.Match {
	return models.Match{
		ID:       id,
		LeagueID: leagueID,
		Season:   2024,
		Kickoff:  kickoff,
		Status:   models.MatchStatus{Long: "Not Started", Short: models.StatusNotStarted},
		HomeTeam: models.TeamRef{ID: 100, Name: "Home FC"},
		AwayTeam: models.TeamRef{ID: 200, Name: "Away FC"},
	}
}

func finishedMatch(id int64, leagueID int, kickoff time.Time) models.Match {
	m := scheduledMatch(id, leagueID, kickoff)
	m.Status = models.MatchStatus{Long: "Match Finished", Short: models.StatusFullTime}
	m.Goals = models.Goals{Home: intPtr(2), Away: intPtr(1)}
	return m
}

func newTestSynchronizer(store *fakeMatchStore, upstream UpstreamAPI) *Synchronizer {
	s := NewSynchronizer(store, newFakeRefStore(), upstream, NewNegativeCache(newFakeCheckStore()))
	s.enrichPause = 0
	return s
}

// ---- 测试 ----

func TestGetFixturesFetchesOnEmptyCache(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	store := newFakeMatchStore()
	upstream := &fakeUpstream{fixtures: []models.Match{
		scheduledMatch(1, 39, day.Add(15*time.Hour)),
		scheduledMatch(2, 39, day.Add(18*time.Hour)),
	}}
	engine := newTestSynchronizer(store, upstream)

	matches, err := engine.GetFixtures(context.Background(), day, day, 39)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(matches))
	}
	if upstream.callCount() != 1 {
		t.Errorf("Expected 1 upstream call, got %d", upstream.callCount())
	}
	if len(store.matches) != 2 {
		t.Errorf("Expected 2 matches persisted, got %d", len(store.matches))
	}
	for _, m := range store.matches {
		if m.FixtureExpiry == nil {
			t.Errorf("Expected fixture expiry to be set on match %d", m.ID)
		}
	}
}

func TestGetFixturesServesFreshCacheWithoutUpstream(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	store := newFakeMatchStore()
	upstream := &fakeUpstream{fixtures: []models.Match{
		scheduledMatch(1, 39, day.Add(15*time.Hour)),
	}}
	engine := newTestSynchronizer(store, upstream)

	// 第一次拉取填充缓存
	if _, err := engine.GetFixtures(context.Background(), day, day, 39); err != nil {
		t.Fatalf("Expected no error on first call, got %v", err)
	}
	calls := upstream.callCount()

	// 立即重复查询应完全命中缓存
	matches, err := engine.GetFixtures(context.Background(), day, day, 39)
	if err != nil {
		t.Fatalf("Expected no error on second call, got %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(matches))
	}
	if upstream.callCount() != calls {
		t.Errorf("Expected no additional upstream calls, got %d", upstream.callCount()-calls)
	}
}

func TestGetFixturesNegativeCacheSuppression(t *testing.T) {
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	store := newFakeMatchStore()
	upstream := &fakeUpstream{} // 上游无任何比赛
	engine := newTestSynchronizer(store, upstream)

	matches, err := engine.GetFixtures(context.Background(), day, day, 140)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("Expected empty result, got %d matches", len(matches))
	}
	if upstream.callCount() != 1 {
		t.Fatalf("Expected 1 upstream call, got %d", upstream.callCount())
	}

	// 负结果已被记录，重复查询不应再打上游
	if _, err := engine.GetFixtures(context.Background(), day, day, 140); err != nil {
		t.Fatalf("Expected no error on repeat call, got %v", err)
	}
	if upstream.callCount() != 1 {
		t.Errorf("Expected upstream calls to stay at 1, got %d", upstream.callCount())
	}
}

func TestGetFixturesWithoutUpstreamReturnsError(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	engine := newTestSynchronizer(newFakeMatchStore(), nil)

	_, err := engine.GetFixtures(context.Background(), day, day, 39)
	if err != ErrMissingCredentials {
		t.Errorf("Expected ErrMissingCredentials, got %v", err)
	}
}

func TestSaveMatchesPreservesExistingDetails(t *testing.T) {
	day := time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)
	store := newFakeMatchStore()
	engine := newTestSynchronizer(store, &fakeUpstream{})

	existing := finishedMatch(7, 39, day)
	existing.Statistics = []models.TeamStatistics{{TeamID: 100, Statistics: []models.StatisticValue{{Type: "Shots on Goal", Value: 5}}}}
	existing.Events = []models.MatchEvent{{Minute: 23, TeamID: 100, Type: "Goal"}}
	store.matches[7] = existing

	// 传入不带详情的同一场比赛
	incoming := finishedMatch(7, 39, day)
	if err := engine.SaveMatches(context.Background(), []models.Match{incoming}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	saved := store.matches[7]
	if len(saved.Statistics) != 1 {
		t.Errorf("Expected statistics to be preserved, got %d entries", len(saved.Statistics))
	}
	if len(saved.Events) != 1 {
		t.Errorf("Expected events to be preserved, got %d entries", len(saved.Events))
	}
	if saved.FixtureExpiry == nil || saved.DetailsExpiry == nil {
		t.Error("Expected both expiry markers to be set")
	}
}

func TestSaveMatchesNotifiesOnScoreChange(t *testing.T) {
	day := time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)
	store := newFakeMatchStore()
	engine := newTestSynchronizer(store, &fakeUpstream{})
	notifier := &fakeNotifier{}
	engine.AddNotifier(notifier)

	existing := finishedMatch(7, 39, day)
	store.matches[7] = existing

	// 比分不变，不应触发通知
	unchanged := finishedMatch(7, 39, day)
	if err := engine.SaveMatches(context.Background(), []models.Match{unchanged}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if notifier.count() != 0 {
		t.Errorf("Expected no notifications for unchanged score, got %d", notifier.count())
	}

	// 比分变化触发通知
	updated := finishedMatch(7, 39, day)
	updated.Goals = models.Goals{Home: intPtr(3), Away: intPtr(1)}
	if err := engine.SaveMatches(context.Background(), []models.Match{updated}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if notifier.count() != 1 {
		t.Errorf("Expected 1 notification after score change, got %d", notifier.count())
	}
}

func TestSaveMatchesIsIdempotent(t *testing.T) {
	day := time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)
	fixed := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	store := newFakeMatchStore()
	engine := newTestSynchronizer(store, &fakeUpstream{})
	engine.now = func() time.Time { return fixed }

	m := finishedMatch(9, 39, day)
	if err := engine.SaveMatches(context.Background(), []models.Match{m}); err != nil {
		t.Fatalf("Expected no error on first save, got %v", err)
	}
	first := store.matches[9]

	if err := engine.SaveMatches(context.Background(), []models.Match{m}); err != nil {
		t.Fatalf("Expected no error on second save, got %v", err)
	}
	second := store.matches[9]

	if !first.UpdatedAt.Equal(second.UpdatedAt) {
		t.Errorf("Expected identical UpdatedAt, got %v and %v", first.UpdatedAt, second.UpdatedAt)
	}
	if !first.FixtureExpiry.Equal(*second.FixtureExpiry) {
		t.Errorf("Expected identical fixture expiry, got %v and %v", first.FixtureExpiry, second.FixtureExpiry)
	}
}

func TestGetFixturesForMultipleLeaguesGroupsByRequestOrder(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	store := newFakeMatchStore()
	upstream := &fakeUpstream{fixtures: []models.Match{
		scheduledMatch(1, 140, day.Add(15*time.Hour)),
		scheduledMatch(2, 39, day.Add(18*time.Hour)),
	}}
	engine := newTestSynchronizer(store, upstream)

	// 预填充缓存
	if _, err := engine.GetFixtures(context.Background(), day, day, 39); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := engine.GetFixtures(context.Background(), day, day, 140); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	matches, err := engine.GetFixturesForMultipleLeagues(context.Background(), day, day, []int{39, 140})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(matches))
	}
	if matches[0].LeagueID != 39 || matches[1].LeagueID != 140 {
		t.Errorf("Expected league order 39,140, got %d,%d", matches[0].LeagueID, matches[1].LeagueID)
	}
}

func TestGetStandingsFetchesOnMiss(t *testing.T) {
	store := newFakeMatchStore()
	upstream := &fakeUpstream{standings: []models.StandingRow{
		{LeagueID: 39, Season: 2024, Team: models.TeamRef{ID: 100, Name: "Home FC"}, Rank: 1, Points: 80},
	}}
	engine := newTestSynchronizer(store, upstream)

	result, err := engine.GetStandings(context.Background(), 39, 2024)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(result.Standings) != 1 {
		t.Fatalf("Expected 1 standing row, got %d", len(result.Standings))
	}
	if result.Standings[0].Points != 80 {
		t.Errorf("Expected 80 points, got %d", result.Standings[0].Points)
	}
}

func TestEnrichMatchToleratesFacetFailure(t *testing.T) {
	upstream := &fakeUpstream{
		statistics: []models.TeamStatistics{{TeamID: 100, Statistics: []models.StatisticValue{{Type: "Shots on Goal", Value: 7}}}},
		events:     []models.MatchEvent{{Minute: 23, TeamID: 100, Type: "Goal", Player: "Nine"}},
		lineupsErr: errors.New("gateway timeout"),
	}
	engine := newTestSynchronizer(newFakeMatchStore(), upstream)

	m := finishedMatch(11, 39, time.Now().UTC().Add(-3*time.Hour))
	out := engine.EnrichMatchesWithDetails(context.Background(), []models.Match{m})

	if len(out) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(out))
	}
	// 阵容拉取失败不应影响统计和事件
	if len(out[0].Statistics) != 1 {
		t.Errorf("Expected 1 statistics entry, got %d", len(out[0].Statistics))
	}
	if len(out[0].Events) != 1 {
		t.Errorf("Expected 1 event, got %d", len(out[0].Events))
	}
	if len(out[0].Lineups) != 0 {
		t.Errorf("Expected no lineups after fetch failure, got %d", len(out[0].Lineups))
	}
}

func TestEnrichRefetchesExpiredDetails(t *testing.T) {
	upstream := &fakeUpstream{
		statistics: []models.TeamStatistics{{TeamID: 100, Statistics: []models.StatisticValue{{Type: "Shots on Goal", Value: 12}}}},
	}
	engine := newTestSynchronizer(newFakeMatchStore(), upstream)

	// 详情已有但过期：重拉后应拿到上游的新版本
	m := finishedMatch(12, 39, time.Now().UTC().Add(-4*time.Hour))
	m.Statistics = []models.TeamStatistics{{TeamID: 100, Statistics: []models.StatisticValue{{Type: "Shots on Goal", Value: 3}}}}
	expired := time.Now().UTC().Add(-time.Hour)
	m.DetailsExpiry = &expired

	out := engine.EnrichMatchesWithDetails(context.Background(), []models.Match{m})

	if len(out[0].Statistics) != 1 {
		t.Fatalf("Expected 1 statistics entry, got %d", len(out[0].Statistics))
	}
	if got := out[0].Statistics[0].Statistics[0].Value; got != 12 {
		t.Errorf("Expected refreshed statistics value 12, got %v", got)
	}

	// 上游对某项返回空时不得抹掉已有数据
	upstream.mu.Lock()
	upstream.statistics = nil
	upstream.mu.Unlock()
	out = engine.EnrichMatchesWithDetails(context.Background(), out)
	if got := out[0].Statistics[0].Statistics[0].Value; got != 12 {
		t.Errorf("Expected statistics preserved on empty refetch, got %v", got)
	}
}
