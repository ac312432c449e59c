/*
handlers_test.go - HTTP tests for the API

Tests for:
- Identity gate on /api routes
- Revenue submission, preview and validation
- Period navigation, team cards, leaderboard, metrics, export
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/calendar"
	"github.com/warp/commission-engine/identity"
	"github.com/warp/commission-engine/ledger"
	"github.com/warp/commission-engine/ledger/store"
	"github.com/warp/commission-engine/observability"
)

const testToken = "test-token"

type testServer struct {
	t       *testing.T
	store   *store.Memory
	handler *Handler
	router  http.Handler
	now     time.Time
}

// newTestServer serves a seeded memory store. "Now" is Wed Aug 13 2025, so
// the current period starts Aug 11 and the anchor period is the previous one.
func newTestServer(t *testing.T) *testServer {
	return newTestServerWith(t, Options{})
}

// newTestServerWith is newTestServer with extra handler options. Calendar
// and Metrics are always the test ones.
func newTestServerWith(t *testing.T, opts Options) *testServer {
	t.Helper()
	ts := &testServer{t: t, store: store.NewMemory(), now: time.Date(2025, 8, 13, 15, 0, 0, 0, time.UTC)}
	cal := calendar.Default()
	cal.Now = func() time.Time { return ts.now }

	opts.Calendar = cal
	opts.Metrics = observability.NewMetrics()
	ts.handler = NewHandler(ts.store, opts)
	require.NoError(t, ts.handler.SeedRoster(context.Background()))
	ts.router = NewRouter(ts.handler, RouterConfig{Verifier: identity.NewStaticVerifier(testToken)})
	return ts
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) submitSalesDeal() SubmitRevenueResponse {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/revenue", map[string]any{
		"submitter_name": "Bri",
		"for_team":       "Sales Team",
		"amount":         1000,
		"description":    "Sponsorship deal",
	})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[SubmitRevenueResponse](ts.t, rec)
}

// =============================================================================
// IDENTITY
// =============================================================================

func TestAPI_HealthIsPublicOtherRoutesNeedToken(t *testing.T) {
	ts := newTestServer(t)

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/teams", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodGet, "/api/teams", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	teams := decode[TeamsDTO](t, rec)
	assert.Equal(t, []string{"Content Team", "Sales Team", "Streamer Team", "C-suite"}, teams.Tabs)
	assert.Equal(t, []string{"Sales Team", "Streamer Team", "C-suite", "Content Team"}, teams.ForTeamOptions)
}

// =============================================================================
// REVENUE
// =============================================================================

func TestAPI_SubmitRevenue_FansOut(t *testing.T) {
	// GIVEN: The seeded roster
	ts := newTestServer(t)

	// WHEN: The Sales Lead books $1000 for Sales
	resp := ts.submitSalesDeal()

	// THEN: Seven lines are written in the current period
	assert.Equal(t, "sales", resp.Variant)
	assert.Equal(t, "2025-08-11", resp.Period)
	assert.Equal(t, 7, resp.Planned)
	assert.True(t, resp.Complete)
	assert.Empty(t, resp.Failures)
	require.Len(t, resp.Lines, 7)
	assert.Equal(t, "300.00", resp.Lines[0].TakeHome)
	assert.Equal(t, "1000.00", resp.Lines[0].Revenue)
	assert.Equal(t, "2025-08-11", resp.Lines[0].BiWeekKey)
	assert.NotEmpty(t, resp.Lines[0].ID)
	assert.Equal(t, "1000.00", resp.Distributed)
	assert.Equal(t, "0.00", resp.Unallocated)

	stored, err := ts.store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 7)

	snap := ts.handler.Metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Submissions)
	assert.Equal(t, int64(7), snap.LinesWritten)
}

func TestAPI_SubmitRevenue_NavigatedPeriod(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/revenue", map[string]any{
		"submitter_name": "Chris",
		"for_team":       "Streamer Team",
		"amount":         "500",
		"period_key":     "2025-07-28",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[SubmitRevenueResponse](t, rec)
	assert.Equal(t, "2025-07-28", resp.Period)
	for _, l := range resp.Lines {
		assert.Equal(t, "2025-07-28", l.BiWeekKey)
	}
}

func TestAPI_SubmitRevenue_ValidationWritesNothing(t *testing.T) {
	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{name: "unknown submitter", body: map[string]any{"submitter_name": "Nobody", "for_team": "Sales Team", "amount": 100}, status: http.StatusBadRequest},
		{name: "zero amount", body: map[string]any{"submitter_name": "Bri", "for_team": "Sales Team", "amount": 0}, status: http.StatusBadRequest},
		{name: "negative amount", body: map[string]any{"submitter_name": "Bri", "for_team": "Sales Team", "amount": -5}, status: http.StatusBadRequest},
		{name: "unknown team", body: map[string]any{"submitter_name": "Bri", "for_team": "Marketing", "amount": 100}, status: http.StatusBadRequest},
		{name: "malformed period", body: map[string]any{"submitter_name": "Bri", "for_team": "Sales Team", "amount": 100, "period_key": "2025-08-12"}, status: http.StatusBadRequest},
		{name: "future period", body: map[string]any{"submitter_name": "Bri", "for_team": "Sales Team", "amount": 100, "period_key": "2025-08-25"}, status: http.StatusNotFound},
		{name: "unknown field", body: map[string]any{"submitter": "Bri"}, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rec := ts.do(http.MethodPost, "/api/revenue", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)

			stored, err := ts.store.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, stored)
		})
	}
}

func TestAPI_PreviewRevenue_WritesNothing(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/revenue/preview", map[string]any{
		"submitter_name": "Dre",
		"for_team":       "C-suite",
		"amount":         200,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	preview := decode[PreviewResponse](t, rec)
	assert.Equal(t, "csuite-self", preview.Variant)
	assert.Equal(t, "200.00", preview.Pools["amount"])
	require.Len(t, preview.Lines, 4)
	assert.Equal(t, "20.00", preview.Lines[0].TakeHome)
	assert.Empty(t, preview.Lines[0].ID)
	assert.Equal(t, "200.00", preview.Distributed)

	stored, err := ts.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

// =============================================================================
// PERIODS
// =============================================================================

func TestAPI_PeriodNavigation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/periods/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	current := decode[PeriodDTO](t, rec)
	assert.Equal(t, "2025-08-11", current.Key)
	assert.Equal(t, 1, current.Index)
	assert.Equal(t, "2025-08-24", current.End)
	assert.True(t, current.Current)
	assert.True(t, current.HasPrevious)
	assert.False(t, current.HasNext)
	assert.Equal(t, "2025-07-28", current.PreviousKey)
	assert.Equal(t, "2025-08-11", current.NextKey, "next is clamped at the current period")

	rec = ts.do(http.MethodGet, "/api/periods/2025-07-28", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[PeriodDTO](t, rec)
	assert.False(t, first.HasPrevious)
	assert.True(t, first.HasNext)
	assert.Equal(t, "2025-07-28", first.PreviousKey, "previous is clamped at the anchor")
	assert.Equal(t, "2025-07-28T00:00:00.000Z", first.StartStamp)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/periods/nope", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/periods/2025-07-29", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/periods/2025-07-14", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/periods/2025-08-25", nil).Code)
}

func TestAPI_TeamCards(t *testing.T) {
	ts := newTestServer(t)
	ts.submitSalesDeal()

	rec := ts.do(http.MethodGet, "/api/periods/2025-08-11/team/sales", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[TeamCardsResponse](t, rec)
	assert.Equal(t, "Sales Team", resp.Team)
	require.Len(t, resp.Cards, 4)
	assert.Equal(t, "Bri", resp.Cards[0].Employee.Name)
	assert.Equal(t, "1000.00", resp.Cards[0].Revenue)
	assert.Equal(t, "370.00", resp.Cards[0].TakeHome)
	assert.Equal(t, "0.00", resp.Cards[1].TakeHome, "members with no lines still get a card")

	// The team name works URL-encoded too
	rec = ts.do(http.MethodGet, "/api/periods/2025-08-11/team/Sales%20Team", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The previous period has no lines
	rec = ts.do(http.MethodGet, "/api/periods/2025-07-28/team/sales", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0.00", decode[TeamCardsResponse](t, rec).Cards[0].Revenue)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/periods/2025-08-11/team/marketing", nil).Code)
}

// =============================================================================
// LEDGER
// =============================================================================

func TestAPI_CardsAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.submitSalesDeal()

	rec := ts.do(http.MethodGet, "/api/cards?period=2025-08-11", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]CardDTO](t, rec), 7)

	rec = ts.do(http.MethodGet, "/api/cards?period=2025-07-28", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]CardDTO](t, rec))

	rec = ts.do(http.MethodGet, "/api/cards/"+resp.Lines[6].ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	card := decode[CardDTO](t, rec)
	assert.Equal(t, "Company", card.Name)
	assert.Equal(t, "49.00", card.TakeHome)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/cards/missing", nil).Code)

	rec = ts.do(http.MethodGet, "/api/metrics/revenue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	metrics := decode[RevenueMetricsDTO](t, rec)
	assert.Equal(t, "1000.00", metrics.AllTimeRevenue)
	assert.Equal(t, "49.00", metrics.CompanyRevenue)
	assert.Equal(t, 7, metrics.Lines)
}

func TestAPI_Leaderboard(t *testing.T) {
	ts := newTestServer(t)
	ts.submitSalesDeal()

	rec := ts.do(http.MethodGet, "/api/leaderboard", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	board := decode[LeaderboardDTO](t, rec)
	assert.Equal(t, "biweek", board.Mode)
	require.NotNil(t, board.Period)
	assert.Equal(t, "2025-08-11", board.Period.Key)
	assert.Equal(t, "10000.00", board.Target)
	require.Len(t, board.Entries, 13, "every employee is ranked")
	assert.Equal(t, 1, board.Entries[0].Rank)
	assert.Equal(t, "Bri", board.Entries[0].Employee.Name)
	assert.Equal(t, "0.1000", board.Entries[0].Progress)
	assert.False(t, board.Entries[0].OverGoal)
	assert.Equal(t, "Meech", board.Entries[1].Employee.Name, "ties keep roster order")

	rec = ts.do(http.MethodGet, "/api/leaderboard?period=2025-07-28", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0.00", decode[LeaderboardDTO](t, rec).Entries[0].Revenue)

	rec = ts.do(http.MethodGet, "/api/leaderboard?mode=all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[LeaderboardDTO](t, rec)
	assert.Nil(t, all.Period)
	assert.Equal(t, "1000.00", all.Entries[0].Revenue)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/leaderboard?mode=weekly", nil).Code)
}

func TestAPI_Export(t *testing.T) {
	ts := newTestServer(t)
	ts.submitSalesDeal()

	rec := ts.do(http.MethodGet, "/api/export?period=2025-08-11", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="cfo_all_teams_2025-08-11_to_2025-08-24.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")

	rows := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n"), "\n")
	require.Len(t, rows, 8)
	assert.True(t, strings.HasSuffix(rows[0], ",biWeekKey"))
	assert.True(t, strings.HasPrefix(rows[1], `"Bri","emp-bri","Sales Lead"`))

	rec = ts.do(http.MethodGet, "/api/export?legacy=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, strings.Contains(strings.SplitN(rec.Body.String(), "\n", 2)[0], "biWeekKey"))

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/export?legacy=maybe", nil).Code)
}

// =============================================================================
// ROSTER / RULES
// =============================================================================

func TestAPI_Employees(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/employees?team=streamer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	streamers := decode[[]EmployeeDTO](t, rec)
	require.Len(t, streamers, 3)
	assert.Equal(t, "Chris", streamers[0].Name)

	rec = ts.do(http.MethodPost, "/api/employees", map[string]any{
		"name": "Lee", "job_title": "Editor", "team": "Content Team", "role": "content_lead",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[EmployeeDTO](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "content_lead", created.Role)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/employees", map[string]any{"name": "X", "team": "Marketing"}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/employees", map[string]any{"name": "X", "team": "Content Team", "role": "intern"}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/employees", map[string]any{"team": "Content Team"}).Code)
}

func TestAPI_TaggedEmployeeTakesRole(t *testing.T) {
	ts := newTestServer(t)

	// GIVEN: An explicit content lead tag on a new hire
	rec := ts.do(http.MethodPost, "/api/employees", map[string]any{
		"name": "Lee", "job_title": "Editor", "team": "Content Team", "role": "content_lead",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// WHEN: Content revenue from outside the team is previewed
	rec = ts.do(http.MethodPost, "/api/revenue/preview", map[string]any{
		"submitter_name": "Caylin", "for_team": "Content Team", "amount": 400,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: The tagged employee is paid instead of the title match
	var names []string
	for _, l := range decode[PreviewResponse](t, rec).Lines {
		names = append(names, l.Name)
	}
	assert.Contains(t, names, "Lee")
	assert.NotContains(t, names, "Rae")
}

func TestAPI_Rules(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/api/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "teams")
}

// =============================================================================
// LIVE VIEW
// =============================================================================

type broadcastFeed struct{ b *ledger.Broadcaster }

func (f broadcastFeed) Watch(ctx context.Context) (<-chan []ledger.PayoutLine, error) {
	return f.b.Subscribe(ctx)
}

func TestAPI_ReadsFallBackToStoreWhenFeedDies(t *testing.T) {
	// GIVEN: A view that got one empty snapshot before its feed closed
	feed := ledger.NewBroadcaster()
	feed.Publish(nil)
	view := ledger.NewView(nil)
	ts := newTestServerWith(t, Options{View: view})

	done := make(chan error, 1)
	go func() { done <- view.Run(context.Background(), broadcastFeed{feed}) }()
	require.Eventually(t, view.IsReady, time.Second, 5*time.Millisecond)
	feed.Close()
	require.ErrorIs(t, <-done, ledger.ErrFeedClosed)

	// WHEN: A sale is booked
	ts.submitSalesDeal()

	// THEN: Reads come from the store, not the stale snapshot
	rec := ts.do(http.MethodGet, "/api/metrics/revenue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	metrics := decode[RevenueMetricsDTO](t, rec)
	assert.Equal(t, 7, metrics.Lines)
	assert.Equal(t, "1000.00", metrics.AllTimeRevenue)

	rec = ts.do(http.MethodGet, "/api/cards", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]CardDTO](t, rec), 7)
}
