/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Money is serialized as a decimal string with two fraction digits
  ("135.00"). Request amounts accept a JSON number or a string.

TYPES:
  Roster:       EmployeeDTO, TeamsDTO
  Periods:      PeriodDTO
  Revenue:      SubmitRevenueRequest, SubmitRevenueResponse, PreviewResponse
  Cards:        CardDTO, TeamCardDTO
  Leaderboard:  LeaderboardDTO, LeaderboardEntryDTO
  Metrics:      RevenueMetricsDTO
  Scenarios:    ScenarioDTO, LoadScenarioRequest

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rules.go: RulesJSON returned by GET /api/rules
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/calendar"
	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/ledger"
	"github.com/warp/commission-engine/roster"
)

// =============================================================================
// ROSTER
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	JobTitle string `json:"job_title"`
	Team     string `json:"team"`
	Role     string `json:"role,omitempty"`
}

// CreateEmployeeRequest adds or updates a roster record.
type CreateEmployeeRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	JobTitle string `json:"job_title"`
	Team     string `json:"team"`
	Role     string `json:"role"`
}

// TeamsDTO lists teams in dashboard tab order and in submit-form order.
type TeamsDTO struct {
	Tabs           []string `json:"tabs"`
	ForTeamOptions []string `json:"for_team_options"`
}

// =============================================================================
// PERIODS
// =============================================================================

type PeriodDTO struct {
	Key         string `json:"key"`
	Index       int    `json:"index"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Label       string `json:"label"`
	StartStamp  string `json:"bi_week_start"`
	EndStamp    string `json:"bi_week_end"`
	Current     bool   `json:"current"`
	HasPrevious bool   `json:"has_previous"`
	HasNext     bool   `json:"has_next"`
	PreviousKey string `json:"previous_key"`
	NextKey     string `json:"next_key"`
}

// =============================================================================
// REVENUE
// =============================================================================

// SubmitRevenueRequest is one revenue event from the submit form. The
// submitter is chosen by id or, failing that, by name.
type SubmitRevenueRequest struct {
	SubmitterID   string          `json:"submitter_id"`
	SubmitterName string          `json:"submitter_name"`
	ForTeam       string          `json:"for_team"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	PeriodKey     string          `json:"period_key,omitempty"`
}

// LineFailureDTO is a planned line the store did not accept.
type LineFailureDTO struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
	TakeHome   string `json:"take_home"`
	Error      string `json:"error"`
}

type SubmitRevenueResponse struct {
	Variant     string           `json:"variant"`
	Period      string           `json:"period"`
	Planned     int              `json:"planned"`
	Lines       []CardDTO        `json:"lines"`
	Failures    []LineFailureDTO `json:"failures"`
	Skipped     []string         `json:"skipped_roles"`
	Distributed string           `json:"distributed"`
	Unallocated string           `json:"unallocated"`
	Complete    bool             `json:"complete"`
}

// PreviewResponse is the fan-out an event would produce, without writing.
type PreviewResponse struct {
	Variant     string            `json:"variant"`
	Period      string            `json:"period"`
	Pools       map[string]string `json:"pools"`
	Lines       []CardDTO         `json:"lines"`
	Skipped     []string          `json:"skipped_roles"`
	Distributed string            `json:"distributed"`
	Unallocated string            `json:"unallocated"`
}

// =============================================================================
// CARDS
// =============================================================================

// CardDTO is one payout line.
type CardDTO struct {
	ID          string `json:"id,omitempty"`
	EmployeeID  string `json:"employee_id"`
	Name        string `json:"name"`
	JobTitle    string `json:"job_title"`
	Team        string `json:"team"`
	ForTeam     string `json:"for_team"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Revenue     string `json:"revenue"`
	TakeHome    string `json:"take_home"`
	CreatedAt   string `json:"created_at,omitempty"`
	BiWeekStart string `json:"bi_week_start,omitempty"`
	BiWeekEnd   string `json:"bi_week_end,omitempty"`
	BiWeekKey   string `json:"bi_week_key,omitempty"`
}

// TeamCardDTO is one employee card on a team tab.
type TeamCardDTO struct {
	Employee EmployeeDTO `json:"employee"`
	Revenue  string      `json:"revenue"`
	TakeHome string      `json:"take_home"`
}

type TeamCardsResponse struct {
	Team   string        `json:"team"`
	Period PeriodDTO     `json:"period"`
	Cards  []TeamCardDTO `json:"cards"`
}

// =============================================================================
// LEADERBOARD / METRICS
// =============================================================================

type LeaderboardEntryDTO struct {
	Rank     int         `json:"rank"`
	Employee EmployeeDTO `json:"employee"`
	Revenue  string      `json:"revenue"`
	TakeHome string      `json:"take_home"`
	Progress string      `json:"progress"`
	OverGoal bool        `json:"over_goal"`
}

type LeaderboardDTO struct {
	Mode    string                `json:"mode"`
	Period  *PeriodDTO            `json:"period,omitempty"`
	Target  string                `json:"target"`
	Entries []LeaderboardEntryDTO `json:"entries"`
}

type RevenueMetricsDTO struct {
	AllTimeRevenue string `json:"all_time_revenue"`
	CompanyRevenue string `json:"company_revenue"`
	Lines          int    `json:"lines"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func toEmployeeDTO(e roster.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:       e.ID,
		Name:     e.Name,
		JobTitle: e.JobTitle,
		Team:     string(e.Team),
		Role:     string(e.Role),
	}
}

func toEmployeeDTOs(employees []roster.Employee) []EmployeeDTO {
	out := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		out[i] = toEmployeeDTO(e)
	}
	return out
}

func toCardDTO(l ledger.PayoutLine) CardDTO {
	dto := CardDTO{
		ID:          l.ID,
		EmployeeID:  l.EmployeeID,
		Name:        l.Name,
		JobTitle:    l.JobTitle,
		Team:        string(l.Team),
		ForTeam:     string(l.ForTeam),
		Description: l.Description,
		Amount:      money(l.Amount),
		Revenue:     money(l.Revenue),
		TakeHome:    money(l.TakeHome),
		BiWeekStart: l.BiWeekStart,
		BiWeekEnd:   l.BiWeekEnd,
		BiWeekKey:   l.BiWeekKey,
	}
	if !l.CreatedAt.IsZero() {
		dto.CreatedAt = l.CreatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toCardDTOs(lines []ledger.PayoutLine) []CardDTO {
	out := make([]CardDTO, len(lines))
	for i, l := range lines {
		out[i] = toCardDTO(l)
	}
	return out
}

func toPeriodDTO(cal *calendar.Calendar, p calendar.BiWeek) PeriodDTO {
	return PeriodDTO{
		Key:         p.Key,
		Index:       cal.Index(p),
		Start:       p.Start.String(),
		End:         p.End.String(),
		Label:       p.Label(),
		StartStamp:  p.StartStamp(),
		EndStamp:    p.EndStamp(),
		Current:     p.Key == cal.Current().Key,
		HasPrevious: cal.HasPrevious(p),
		HasNext:     cal.HasNext(p),
		PreviousKey: cal.Previous(p).Key,
		NextKey:     cal.Next(p).Key,
	}
}

func toFailureDTOs(failures []commission.LineFailure) []LineFailureDTO {
	out := make([]LineFailureDTO, len(failures))
	for i, f := range failures {
		out[i] = LineFailureDTO{
			EmployeeID: f.Line.EmployeeID,
			Name:       f.Line.Name,
			TakeHome:   money(f.Line.TakeHome),
			Error:      f.Err.Error(),
		}
	}
	return out
}

func roleNames(roles []roster.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = r.String()
	}
	return out
}
