/*
handlers.go - HTTP API handlers for the commission dashboard

PURPOSE:
  Exposes the commission engine and the payout ledger via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Roster:
    GET    /api/teams                         Tab order + submit-form order
    GET    /api/employees[?team=]             List employees
    POST   /api/employees                     Create or update employee

  Periods:
    GET    /api/periods/current               Current bi-week
    GET    /api/periods/{key}                 Bi-week by start date
    GET    /api/periods/{key}/team/{team}     Per-employee cards for a tab
    GET    /api/periods/rollovers             Closed periods seen by the watcher

  Revenue:
    POST   /api/revenue                       Submit a revenue event (fan-out)
    POST   /api/revenue/preview               Compute the fan-out, write nothing

  Ledger:
    GET    /api/cards[?period=]               Payout lines
    GET    /api/cards/{id}                    One payout line
    GET    /api/leaderboard?mode=&period=     Revenue ranking
    GET    /api/metrics/revenue               All-time and company revenue
    GET    /api/metrics/requests              Request counters
    GET    /api/export?period=&legacy=        CSV download

  Expenses (expenses.go):
    GET    /api/expenses[?category=]          List expenses
    POST   /api/expenses                      Record an expense
    DELETE /api/expenses/{id}                 Remove an expense
    GET    /api/expenses/summary              Revenue against spending
    GET    /api/expenses/categories           Category names
    GET    /api/expenses/export               CSV download

  Rules / Scenarios:
    GET    /api/rules                         Active commission rule table
    GET    /api/scenarios                     List demo scenarios
    POST   /api/scenarios/load                Load a demo scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: roster, ledger and expense backend (SQLite, Firestore or memory)
  - Engine: commission fan-out over the same store
  - View: live ledger snapshot, used for reads once it has data

REQUEST FLOW:
  1. Parse HTTP request
  2. Resolve the bi-week (query/path key, default current)
  3. Load the directory / ledger snapshot
  4. Call domain logic (engine, aggregations)
  5. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, malformed period keys
  - 401: Missing or rejected bearer token (identity middleware)
  - 404: Unknown period, team, card or expense
  - 500: Store errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/commission-engine/calendar"
	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/expense"
	"github.com/warp/commission-engine/factory"
	"github.com/warp/commission-engine/ledger"
	"github.com/warp/commission-engine/observability"
	"github.com/warp/commission-engine/roster"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Backend is what every store implementation provides.
type Backend interface {
	ledger.Store
	roster.Source
	roster.Writer
	expense.Store
	Reset(ctx context.Context) error
}

// Options configures a Handler. Zero values fall back to defaults.
type Options struct {
	Calendar *calendar.Calendar
	Rules    commission.RuleSet
	Target   decimal.Decimal
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	View     *ledger.View
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       Backend
	Engine      *commission.Engine
	Calendar    *calendar.Calendar
	Target      decimal.Decimal
	View        *ledger.View
	Metrics     *observability.Metrics
	RuleFactory *factory.RuleFactory
	Rollovers   *RolloverWatcher

	logger *zap.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler over store.
func NewHandler(store Backend, opts Options) *Handler {
	if opts.Calendar == nil {
		opts.Calendar = calendar.Default()
	}
	if !opts.Target.IsPositive() {
		opts.Target = ledger.DefaultTarget
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Handler{
		Store:       store,
		Engine:      commission.NewEngine(store, opts.Rules, opts.Logger),
		Calendar:    opts.Calendar,
		Target:      opts.Target,
		View:        opts.View,
		Metrics:     opts.Metrics,
		RuleFactory: factory.NewRuleFactory(),
		logger:      opts.Logger,
	}
}

// lines returns the current ledger snapshot, from the live view when it has
// received one and from the store otherwise.
func (h *Handler) lines(ctx context.Context) ([]ledger.PayoutLine, error) {
	if h.View != nil && h.View.IsReady() {
		return h.View.Lines(), nil
	}
	return h.Store.List(ctx)
}

func (h *Handler) directory(ctx context.Context) (*roster.Directory, error) {
	return roster.Load(ctx, h.Store)
}

// =============================================================================
// HEALTH / TEAMS
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TeamsDTO{
		Tabs:           teamNames(roster.Teams()),
		ForTeamOptions: teamNames(roster.ForTeamOptions()),
	})
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns the roster, optionally limited to one team.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	dir, err := h.directory(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	employees := dir.Employees()
	if q := r.URL.Query().Get("team"); q != "" {
		team, err := parseTeam(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid team", err)
			return
		}
		employees = dir.OnTeam(team)
	}
	writeJSON(w, http.StatusOK, toEmployeeDTOs(employees))
}

// CreateEmployee adds a roster record, or updates the one with the same id.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}
	team, err := roster.ParseTeam(req.Team)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid team", err)
		return
	}
	role, err := roster.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid role", err)
		return
	}

	saved, err := h.Store.SaveEmployee(r.Context(), roster.Employee{
		ID:       req.ID,
		Name:     req.Name,
		JobTitle: req.JobTitle,
		Team:     team,
		Role:     role,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(saved))
}

// =============================================================================
// PERIOD HANDLERS
// =============================================================================

func (h *Handler) CurrentPeriod(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toPeriodDTO(h.Calendar, h.Calendar.Current()))
}

func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	p, ok := h.periodFromKey(w, chi.URLParam(r, "key"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(h.Calendar, p))
}

// TeamCards returns one card per member of the team with their totals for
// the period.
func (h *Handler) TeamCards(w http.ResponseWriter, r *http.Request) {
	p, ok := h.periodFromKey(w, chi.URLParam(r, "key"))
	if !ok {
		return
	}
	team, err := parseTeam(chi.URLParam(r, "team"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown team", err)
		return
	}

	dir, err := h.directory(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load roster", err)
		return
	}
	lines, err := h.lines(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load cards", err)
		return
	}

	cards := ledger.TeamCards(dir, ledger.InPeriod(lines, h.Calendar, p), team)
	dtos := make([]TeamCardDTO, len(cards))
	for i, c := range cards {
		dtos[i] = TeamCardDTO{
			Employee: toEmployeeDTO(c.Employee),
			Revenue:  money(c.Revenue),
			TakeHome: money(c.TakeHome),
		}
	}
	writeJSON(w, http.StatusOK, TeamCardsResponse{
		Team:   string(team),
		Period: toPeriodDTO(h.Calendar, p),
		Cards:  dtos,
	})
}

// ListRollovers returns the period closings recorded since startup.
func (h *Handler) ListRollovers(w http.ResponseWriter, r *http.Request) {
	if h.Rollovers == nil {
		writeJSON(w, http.StatusOK, []RolloverDTO{})
		return
	}
	writeJSON(w, http.StatusOK, h.Rollovers.Runs())
}

// =============================================================================
// REVENUE HANDLERS
// =============================================================================

// SubmitRevenue expands one revenue event into payout lines and writes them.
func (h *Handler) SubmitRevenue(w http.ResponseWriter, r *http.Request) {
	ev, p, dir, ok := h.parseRevenue(w, r)
	if !ok {
		return
	}

	res, err := h.Engine.Submit(r.Context(), ev, dir, p)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.Metrics.RecordSubmission(len(res.Lines), len(res.Failures))

	writeJSON(w, http.StatusCreated, SubmitRevenueResponse{
		Variant:     res.Variant,
		Period:      p.Key,
		Planned:     res.Planned,
		Lines:       toCardDTOs(res.Lines),
		Failures:    toFailureDTOs(res.Failures),
		Skipped:     roleNames(res.Skipped),
		Distributed: money(res.Distributed()),
		Unallocated: money(res.Unallocated(ev.Amount)),
		Complete:    res.Complete(),
	})
}

// PreviewRevenue returns the lines SubmitRevenue would write.
func (h *Handler) PreviewRevenue(w http.ResponseWriter, r *http.Request) {
	ev, p, dir, ok := h.parseRevenue(w, r)
	if !ok {
		return
	}

	b, err := h.Engine.Breakdown(ev, dir, p)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	pools := make(map[string]string, len(b.Pools))
	for name, v := range b.Pools {
		pools[name] = money(v)
	}
	distributed := ledger.TotalTakeHome(b.Lines)
	writeJSON(w, http.StatusOK, PreviewResponse{
		Variant:     b.Variant,
		Period:      p.Key,
		Pools:       pools,
		Lines:       toCardDTOs(b.Lines),
		Skipped:     roleNames(b.Skipped),
		Distributed: money(distributed),
		Unallocated: money(ev.Amount.Sub(distributed)),
	})
}

func (h *Handler) parseRevenue(w http.ResponseWriter, r *http.Request) (commission.RevenueEvent, calendar.BiWeek, *roster.Directory, bool) {
	var req SubmitRevenueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return commission.RevenueEvent{}, calendar.BiWeek{}, nil, false
	}

	p := h.Calendar.Current()
	if req.PeriodKey != "" {
		var ok bool
		if p, ok = h.periodFromKey(w, req.PeriodKey); !ok {
			return commission.RevenueEvent{}, calendar.BiWeek{}, nil, false
		}
	}

	dir, err := h.directory(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load roster", err)
		return commission.RevenueEvent{}, calendar.BiWeek{}, nil, false
	}

	ev := commission.RevenueEvent{
		SubmitterID:   req.SubmitterID,
		SubmitterName: req.SubmitterName,
		ForTeam:       roster.Team(req.ForTeam),
		Amount:        req.Amount,
		Description:   req.Description,
	}
	return ev, p, dir, true
}

func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	if commission.IsValidation(err) {
		writeError(w, http.StatusBadRequest, "Invalid revenue event", err)
		return
	}
	h.logger.Error("revenue event failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Failed to process revenue event", err)
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// ListCards returns the payout lines of a period, or every line when no
// period is given.
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	lines, err := h.lines(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load cards", err)
		return
	}
	if key := r.URL.Query().Get("period"); key != "" {
		p, ok := h.periodFromKey(w, key)
		if !ok {
			return
		}
		lines = ledger.InPeriod(lines, h.Calendar, p)
	}
	writeJSON(w, http.StatusOK, toCardDTOs(lines))
}

func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	line, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ledger.ErrLineNotFound) {
		writeError(w, http.StatusNotFound, "Card not found", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load card", err)
		return
	}
	writeJSON(w, http.StatusOK, toCardDTO(line))
}

// Leaderboard ranks every employee by revenue for the period (mode=biweek,
// the default) or across all lines (mode=all).
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "biweek"
	}
	if mode != "biweek" && mode != "all" {
		writeError(w, http.StatusBadRequest, "Invalid mode", fmt.Errorf("mode %q: must be biweek or all", mode))
		return
	}

	dir, err := h.directory(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load roster", err)
		return
	}
	lines, err := h.lines(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load cards", err)
		return
	}

	resp := LeaderboardDTO{Mode: mode, Target: money(h.Target)}
	if mode == "biweek" {
		p, ok := h.periodFromQuery(w, r)
		if !ok {
			return
		}
		pd := toPeriodDTO(h.Calendar, p)
		resp.Period = &pd
		lines = ledger.InPeriod(lines, h.Calendar, p)
	}

	entries := ledger.Leaderboard(dir.Employees(), lines, h.Target)
	resp.Entries = make([]LeaderboardEntryDTO, len(entries))
	for i, e := range entries {
		resp.Entries[i] = LeaderboardEntryDTO{
			Rank:     e.Rank,
			Employee: toEmployeeDTO(e.Employee),
			Revenue:  money(e.Revenue),
			TakeHome: money(e.TakeHome),
			Progress: e.Progress.StringFixed(4),
			OverGoal: e.OverGoal,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) RevenueMetrics(w http.ResponseWriter, r *http.Request) {
	lines, err := h.lines(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load cards", err)
		return
	}
	writeJSON(w, http.StatusOK, RevenueMetricsDTO{
		AllTimeRevenue: money(ledger.AllTimeRevenue(lines)),
		CompanyRevenue: money(ledger.CompanyRevenue(lines)),
		Lines:          len(lines),
	})
}

func (h *Handler) RequestMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Metrics.Snapshot())
}

// Export streams the period's lines as CSV. legacy=true drops the period
// columns.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	p, ok := h.periodFromQuery(w, r)
	if !ok {
		return
	}
	legacy := false
	if v := r.URL.Query().Get("legacy"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid legacy flag", err)
			return
		}
		legacy = parsed
	}

	lines, err := h.lines(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load cards", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv;charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, ledger.ExportFilename(p)))
	w.WriteHeader(http.StatusOK)
	if err := ledger.WriteCSV(w, ledger.InPeriod(lines, h.Calendar, p), ledger.ExportOptions{Legacy: legacy}); err != nil {
		h.logger.Warn("csv export interrupted", zap.String("period", p.Key), zap.Error(err))
	}
}

// GetRules returns the active rule table in its JSON form.
func (h *Handler) GetRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.RuleFactory.ToJSON(h.Engine.Rules()))
}

// =============================================================================
// HELPERS
// =============================================================================

// periodFromQuery reads ?period=, defaulting to the current period.
func (h *Handler) periodFromQuery(w http.ResponseWriter, r *http.Request) (calendar.BiWeek, bool) {
	key := r.URL.Query().Get("period")
	if key == "" {
		return h.Calendar.Current(), true
	}
	return h.periodFromKey(w, key)
}

func (h *Handler) periodFromKey(w http.ResponseWriter, key string) (calendar.BiWeek, bool) {
	p, err := h.Calendar.ParseKey(key)
	switch {
	case err == nil:
		return p, true
	case errors.Is(err, calendar.ErrBeforeAnchor), errors.Is(err, calendar.ErrFuturePeriod):
		writeError(w, http.StatusNotFound, "Period not found", err)
	default:
		writeError(w, http.StatusBadRequest, "Invalid period key", err)
	}
	return calendar.BiWeek{}, false
}

// Team slugs accepted in paths alongside the display names.
var teamSlugs = map[string]roster.Team{
	"sales":    roster.SalesTeam,
	"streamer": roster.StreamerTeam,
	"content":  roster.ContentTeam,
	"csuite":   roster.CSuite,
	"c-suite":  roster.CSuite,
}

func parseTeam(s string) (roster.Team, error) {
	if unescaped, err := url.PathUnescape(s); err == nil {
		s = unescaped
	}
	if t, ok := teamSlugs[s]; ok {
		return t, nil
	}
	return roster.ParseTeam(s)
}

func teamNames(teams []roster.Team) []string {
	out := make([]string, len(teams))
	for i, t := range teams {
		out[i] = string(t)
	}
	return out
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
