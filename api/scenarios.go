/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for demos. Each scenario seeds the roster and optionally books
	revenue events through the commission engine.

AVAILABLE SCENARIOS:

	demo-roster:       Demo roster only, one holder per payout role
	reference-events:  Demo roster plus one event per target team
	legacy-rows:       Demo roster plus lines written before period keys existed

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Seed the demo roster
 3. Submit events (or append raw lines) in the current period

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "reference-events"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and helpers
  - roster/demo.go: Demo roster
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/commission-engine/calendar"
	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/roster"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "demo-roster",
		Name:        "Demo Roster",
		Description: "Every team with one holder per payout role, no revenue",
	},
	{
		ID:          "reference-events",
		Name:        "Reference Events",
		Description: "Demo roster plus one revenue event booked for each team",
	},
	{
		ID:          "legacy-rows",
		Name:        "Legacy Rows",
		Description: "Lines that only carry a period start stamp, as older records do",
	},
}

// referenceEvents are booked in order by the reference-events scenario.
var referenceEvents = []commission.RevenueEvent{
	{SubmitterName: "Bri", ForTeam: roster.SalesTeam, Amount: decimal.NewFromInt(1000), Description: "Sponsorship deal"},
	{SubmitterName: "Chris", ForTeam: roster.StreamerTeam, Amount: decimal.NewFromInt(500), Description: "Stream sponsorship"},
	{SubmitterName: "Dre", ForTeam: roster.CSuite, Amount: decimal.NewFromInt(200), Description: "Advisory fee"},
	{SubmitterName: "Tosh", ForTeam: roster.ContentTeam, Amount: decimal.NewFromInt(400), Description: "Branded video"},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "demo-roster":
		err = h.loadDemoRoster(r.Context())
	case "reference-events":
		err = h.loadReferenceEvents(r.Context())
	case "legacy-rows":
		err = h.loadLegacyRows(r.Context())
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()
	h.logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID))

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// SeedRoster writes the demo roster. Existing records with the same ids are
// updated in place.
func (h *Handler) SeedRoster(ctx context.Context) error {
	for _, e := range roster.DemoRoster() {
		if _, err := h.Store.SaveEmployee(ctx, e); err != nil {
			return fmt.Errorf("seed %s: %w", e.Name, err)
		}
	}
	return nil
}

func (h *Handler) loadDemoRoster(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	return h.SeedRoster(ctx)
}

func (h *Handler) loadReferenceEvents(ctx context.Context) error {
	if err := h.loadDemoRoster(ctx); err != nil {
		return err
	}
	dir, err := h.directory(ctx)
	if err != nil {
		return err
	}

	p := h.Calendar.Current()
	for _, ev := range referenceEvents {
		res, err := h.Engine.Submit(ctx, ev, dir, p)
		if err != nil {
			return fmt.Errorf("submit %s: %w", ev.SubmitterName, err)
		}
		h.Metrics.RecordSubmission(len(res.Lines), len(res.Failures))
		if !res.Complete() {
			return fmt.Errorf("submit %s: %d of %d lines failed", ev.SubmitterName, len(res.Failures), res.Planned)
		}
	}
	return nil
}

// loadLegacyRows appends lines that carry only a bi-week start stamp. They
// are placed in the current period by recomputing the period of the stamp.
func (h *Handler) loadLegacyRows(ctx context.Context) error {
	if err := h.loadDemoRoster(ctx); err != nil {
		return err
	}
	dir, err := h.directory(ctx)
	if err != nil {
		return err
	}

	p := h.Calendar.Current()
	planned, err := h.Engine.Plan(referenceEvents[0], dir, p)
	if err != nil {
		return err
	}
	// Mid-period stamp, as older clients wrote the submission day
	stamp := p.StartAt.AddDate(0, 0, 2).UTC().Format(calendar.TimestampLayout)
	for _, l := range planned {
		l.BiWeekKey = ""
		l.BiWeekEnd = ""
		l.BiWeekStart = stamp
		if _, err := h.Store.Append(ctx, l); err != nil {
			return fmt.Errorf("append legacy line for %s: %w", l.Name, err)
		}
	}
	return nil
}
