/*
Package factory provides JSON to Go commission rule conversion.

PURPOSE:
  Converts JSON rule definitions into a commission.RuleSet so the payout
  table can change without a code change. The server loads a rules file
  when RULES_FILE is set and falls back to commission.DefaultRules.

JSON SCHEMA:
  {
    "teams": [
      {
        "team": "Sales Team",
        "variants": [
          {
            "name": "sales-manager",
            "when": {"kind": "holds_role", "role": "sales_manager"},
            "submitter": {"pool": "amount", "fraction": "0.2"},
            "pools": [{"name": "executives", "base": "amount", "fraction": "0.7"}],
            "lines": [
              {"role": "sales_lead", "pool": "amount", "fraction": "0.1",
               "note": "10% from {name} (Sales Team)"}
            ],
            "executives": {"pool": "executives", "note": "C-suite share from {name} (Sales Team)"}
          }
        ]
      }
    ]
  }

KEY FEATURES:
  - "when" omitted means always
  - "executives" expands into the four 60/20/10/10 tier lines, appended
    after "lines"
  - "submitter": {"executive_tier": true} pays the submitter's own tier
  - Fractions are decimal strings or numbers
  - The result is validated (pool references, fractions, roles)

USAGE:
  factory := NewRuleFactory()
  rules, err := factory.ParseRules(jsonString)
  engine := commission.NewEngine(store, rules, logger)

SEE ALSO:
  - commission/rules.go: RuleSet type definition and defaults
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/roster"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RulesJSON is the JSON representation of a rule set.
type RulesJSON struct {
	Teams []TeamRulesJSON `json:"teams"`
}

// TeamRulesJSON holds the variants of one target team, in match order.
type TeamRulesJSON struct {
	Team     string        `json:"team"`
	Variants []VariantJSON `json:"variants"`
}

type VariantJSON struct {
	Name       string           `json:"name"`
	When       *ConditionJSON   `json:"when,omitempty"`
	Submitter  SubmitterJSON    `json:"submitter"`
	Pools      []PoolJSON       `json:"pools,omitempty"`
	Lines      []AllocationJSON `json:"lines,omitempty"`
	Executives *ExecutivesJSON  `json:"executives,omitempty"`
}

type ConditionJSON struct {
	Kind string `json:"kind"` // always, holds_role, on_team
	Role string `json:"role,omitempty"`
	Team string `json:"team,omitempty"`
}

type SubmitterJSON struct {
	Pool          string          `json:"pool,omitempty"` // default "amount"
	Fraction      decimal.Decimal `json:"fraction"`
	ExecutiveTier bool            `json:"executive_tier,omitempty"`
}

type PoolJSON struct {
	Name     string          `json:"name"`
	Base     string          `json:"base"`
	Fraction decimal.Decimal `json:"fraction"`
}

type AllocationJSON struct {
	Role             string          `json:"role"`
	Pool             string          `json:"pool"`
	Fraction         decimal.Decimal `json:"fraction"`
	Note             string          `json:"note,omitempty"`
	ExcludeSubmitter bool            `json:"exclude_submitter,omitempty"`
}

// ExecutivesJSON is shorthand for the four executive tier lines.
type ExecutivesJSON struct {
	Pool             string `json:"pool"`
	Note             string `json:"note,omitempty"`
	ExcludeSubmitter bool   `json:"exclude_submitter,omitempty"`
}

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory converts JSON rules to a commission.RuleSet.
type RuleFactory struct{}

// NewRuleFactory creates a new rule factory.
func NewRuleFactory() *RuleFactory {
	return &RuleFactory{}
}

// LoadFile reads and parses a rules file.
func (f *RuleFactory) LoadFile(path string) (commission.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return f.ParseRules(string(data))
}

// ParseRules parses a JSON string into a validated RuleSet.
func (f *RuleFactory) ParseRules(jsonStr string) (commission.RuleSet, error) {
	var rj RulesJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return nil, fmt.Errorf("failed to parse rules JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// FromJSON converts RulesJSON to a validated RuleSet.
func (f *RuleFactory) FromJSON(rj RulesJSON) (commission.RuleSet, error) {
	rs := make(commission.RuleSet, len(rj.Teams))

	for _, tj := range rj.Teams {
		team, err := roster.ParseTeam(tj.Team)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", commission.ErrInvalidRules, err)
		}
		if _, dup := rs[team]; dup {
			return nil, fmt.Errorf("%w: team %q defined twice", commission.ErrInvalidRules, team)
		}

		variants := make([]commission.Variant, 0, len(tj.Variants))
		for _, vj := range tj.Variants {
			v, err := parseVariant(vj)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", team, vj.Name, err)
			}
			variants = append(variants, v)
		}
		rs[team] = variants
	}

	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return rs, nil
}

// ToJSON converts a RuleSet to RulesJSON. Teams come out in submit-form
// order; executive lines are written out individually.
func (f *RuleFactory) ToJSON(rs commission.RuleSet) RulesJSON {
	var rj RulesJSON
	for _, team := range orderedTeams(rs) {
		tj := TeamRulesJSON{Team: string(team)}
		for _, v := range rs[team] {
			vj := VariantJSON{
				Name: v.Name,
				Submitter: SubmitterJSON{
					Pool:          v.Submitter.Pool,
					Fraction:      v.Submitter.Fraction,
					ExecutiveTier: v.Submitter.ByExecutiveTier,
				},
			}
			if v.When.Kind != commission.CondAlways {
				vj.When = &ConditionJSON{Kind: string(v.When.Kind), Role: string(v.When.Role), Team: string(v.When.Team)}
			}
			for _, p := range v.Pools {
				vj.Pools = append(vj.Pools, PoolJSON{Name: p.Name, Base: p.Base, Fraction: p.Fraction})
			}
			for _, a := range v.Lines {
				vj.Lines = append(vj.Lines, AllocationJSON{
					Role:             string(a.Role),
					Pool:             a.Pool,
					Fraction:         a.Fraction,
					Note:             a.Note,
					ExcludeSubmitter: a.ExcludeSubmitter,
				})
			}
			tj.Variants = append(tj.Variants, vj)
		}
		rj.Teams = append(rj.Teams, tj)
	}
	return rj
}

func orderedTeams(rs commission.RuleSet) []roster.Team {
	seen := make(map[roster.Team]bool, len(rs))
	var out []roster.Team
	for _, t := range roster.ForTeamOptions() {
		if _, ok := rs[t]; ok {
			out = append(out, t)
			seen[t] = true
		}
	}
	var extra []roster.Team
	for t := range rs {
		if !seen[t] {
			extra = append(extra, t)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseVariant(vj VariantJSON) (commission.Variant, error) {
	when, err := parseCondition(vj.When)
	if err != nil {
		return commission.Variant{}, err
	}

	v := commission.Variant{
		Name: vj.Name,
		When: when,
		Submitter: commission.SubmitterShare{
			Pool:            vj.Submitter.Pool,
			Fraction:        vj.Submitter.Fraction,
			ByExecutiveTier: vj.Submitter.ExecutiveTier,
		},
	}
	if v.Submitter.Pool == "" {
		v.Submitter.Pool = commission.PoolAmount
	}

	for _, pj := range vj.Pools {
		v.Pools = append(v.Pools, commission.Pool{Name: pj.Name, Base: pj.Base, Fraction: pj.Fraction})
	}
	for _, aj := range vj.Lines {
		role, err := roster.ParseRole(aj.Role)
		if err != nil || role == roster.RoleNone {
			return commission.Variant{}, fmt.Errorf("%w: line role %q", commission.ErrInvalidRules, aj.Role)
		}
		v.Lines = append(v.Lines, commission.Allocation{
			Role:             role,
			Pool:             aj.Pool,
			Fraction:         aj.Fraction,
			Note:             aj.Note,
			ExcludeSubmitter: aj.ExcludeSubmitter,
		})
	}
	if vj.Executives != nil {
		v.Lines = append(v.Lines, commission.Executives(vj.Executives.Pool, vj.Executives.Note, vj.Executives.ExcludeSubmitter)...)
	}
	return v, nil
}

func parseCondition(cj *ConditionJSON) (commission.Condition, error) {
	if cj == nil {
		return commission.Always(), nil
	}
	switch commission.ConditionKind(cj.Kind) {
	case commission.CondAlways, "":
		return commission.Always(), nil
	case commission.CondHoldsRole:
		role, err := roster.ParseRole(cj.Role)
		if err != nil || role == roster.RoleNone {
			return commission.Condition{}, fmt.Errorf("%w: condition role %q", commission.ErrInvalidRules, cj.Role)
		}
		return commission.HoldsRole(role), nil
	case commission.CondOnTeam:
		team, err := roster.ParseTeam(cj.Team)
		if err != nil {
			return commission.Condition{}, fmt.Errorf("%w: condition team: %v", commission.ErrInvalidRules, err)
		}
		return commission.OnTeam(team), nil
	default:
		return commission.Condition{}, fmt.Errorf("%w: unknown condition %q", commission.ErrInvalidRules, cj.Kind)
	}
}
