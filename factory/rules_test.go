package factory_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/commission-engine/calendar"
	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/factory"
	"github.com/warp/commission-engine/roster"
)

const salesManagerRules = `{
  "teams": [
    {
      "team": "Sales Team",
      "variants": [
        {
          "name": "sales-manager",
          "when": {"kind": "holds_role", "role": "sales_manager"},
          "submitter": {"pool": "amount", "fraction": "0.2"},
          "pools": [{"name": "executives", "base": "amount", "fraction": 0.7}],
          "lines": [
            {"role": "sales_lead", "pool": "amount", "fraction": "0.1", "note": "10% from {name} (Sales Team)"}
          ],
          "executives": {"pool": "executives", "note": "C-suite share from {name} (Sales Team)"}
        },
        {
          "name": "flat",
          "submitter": {"fraction": "1"}
        }
      ]
    }
  ]
}`

func planNames(t *testing.T, rules commission.RuleSet, submitter string) []string {
	t.Helper()
	engine := commission.NewEngine(nil, rules, nil)
	lines, err := engine.Plan(commission.RevenueEvent{
		SubmitterName: submitter,
		ForTeam:       roster.SalesTeam,
		Amount:        decimal.NewFromInt(1000),
	}, roster.NewDirectory(roster.DemoRoster()), calendar.Default().FromStart(calendar.DefaultAnchor))
	require.NoError(t, err)

	var out []string
	for _, l := range lines {
		out = append(out, l.Name+"="+l.TakeHome.StringFixed(2))
	}
	return out
}

func TestParseRules(t *testing.T) {
	f := factory.NewRuleFactory()
	rules, err := f.ParseRules(salesManagerRules)
	require.NoError(t, err)

	variants := rules[roster.SalesTeam]
	require.Len(t, variants, 2)
	assert.Equal(t, commission.HoldsRole(roster.RoleSalesManager), variants[0].When)
	// Executive shorthand expands after the explicit lines
	assert.Len(t, variants[0].Lines, 5)
	assert.Equal(t, commission.Always(), variants[1].When)
	assert.Equal(t, commission.PoolAmount, variants[1].Submitter.Pool)

	assert.Equal(t, []string{
		"sales manager 3=200.00", "Bri=100.00", "Meech=420.00", "Nya=140.00", "Dre=70.00", "Company=70.00",
	}, planNames(t, rules, "sales manager 3"))
	assert.Equal(t, []string{"Bri=1000.00"}, planNames(t, rules, "Bri"))
}

func TestParseRules_Errors(t *testing.T) {
	f := factory.NewRuleFactory()

	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"teams": [`},
		{"unknown team", `{"teams": [{"team": "Marketing", "variants": [{"name": "x", "submitter": {"fraction": "0.1"}}]}]}`},
		{"unknown role", `{"teams": [{"team": "Sales Team", "variants": [{"name": "x", "submitter": {"fraction": "0.1"}, "lines": [{"role": "intern", "pool": "amount", "fraction": "0.1"}]}]}]}`},
		{"unknown condition", `{"teams": [{"team": "Sales Team", "variants": [{"name": "x", "when": {"kind": "tenure"}, "submitter": {"fraction": "0.1"}}]}]}`},
		{"unknown pool", `{"teams": [{"team": "Sales Team", "variants": [{"name": "x", "submitter": {"pool": "nope", "fraction": "0.1"}}]}]}`},
		{"fraction above one", `{"teams": [{"team": "Sales Team", "variants": [{"name": "x", "submitter": {"fraction": "1.2"}}]}]}`},
		{"duplicate team", `{"teams": [{"team": "Sales Team", "variants": [{"name": "x", "submitter": {"fraction": "0.1"}}]}, {"team": "Sales Team", "variants": [{"name": "y", "submitter": {"fraction": "0.1"}}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseRules(tt.json)
			assert.Error(t, err)
		})
	}
}

func TestToJSON_DefaultRulesReload(t *testing.T) {
	f := factory.NewRuleFactory()
	defaults := commission.DefaultRules()

	// GIVEN: The default table exported as JSON
	data, err := json.Marshal(f.ToJSON(defaults))
	require.NoError(t, err)

	// WHEN: Parsing it back
	reloaded, err := f.ParseRules(string(data))
	require.NoError(t, err)

	// THEN: Both tables pay the same lines
	for _, submitter := range []string{"Bri", "sales manager 3", "Meech"} {
		assert.Equal(t, planNames(t, defaults, submitter), planNames(t, reloaded, submitter), submitter)
	}

	exported := f.ToJSON(defaults)
	require.Len(t, exported.Teams, 4)
	assert.Equal(t, "Sales Team", exported.Teams[0].Team)
	assert.Equal(t, "Content Team", exported.Teams[3].Team)
}
