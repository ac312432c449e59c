package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/ledger"
)

func TestScenarios_List(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[[]ScenarioDTO](t, rec)
	require.Len(t, list, 3)
	assert.Equal(t, "demo-roster", list[0].ID)
}

func TestScenarios_ReferenceEvents(t *testing.T) {
	// GIVEN: A store with stray data
	ts := newTestServer(t)
	ts.submitSalesDeal()

	// WHEN: Loading the reference events
	rec := ts.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "reference-events"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: The store was reset and holds one fan-out per team
	lines, err := ts.store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2100.00", ledger.AllTimeRevenue(lines).StringFixed(2))

	submitters := 0
	for _, l := range lines {
		if l.IsSubmitterLine() {
			submitters++
		}
	}
	assert.Equal(t, 4, submitters)

	employees, err := ts.store.ListEmployees(context.Background())
	require.NoError(t, err)
	assert.Len(t, employees, 13)

	rec = ts.do(http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reference-events", decode[ScenarioDTO](t, rec).ID)
}

func TestScenarios_LegacyRowsCountInCurrentPeriod(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "legacy-rows"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/cards?period=2025-08-11", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cards := decode[[]CardDTO](t, rec)
	require.Len(t, cards, 7)
	for _, c := range cards {
		assert.Empty(t, c.BiWeekKey)
		assert.Equal(t, "2025-08-13T00:00:00.000Z", c.BiWeekStart)
	}

	rec = ts.do(http.MethodGet, "/api/cards?period=2025-07-28", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]CardDTO](t, rec))
}

func TestScenarios_UnknownAndReset(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "year-end"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	employees, err := ts.store.ListEmployees(context.Background())
	require.NoError(t, err)
	assert.Empty(t, employees)

	rec = ts.do(http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null\n", rec.Body.String())
}
