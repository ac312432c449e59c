package roster_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/commission-engine/roster"
)

type staticSource struct {
	employees []roster.Employee
	err       error
}

func (s staticSource) ListEmployees(ctx context.Context) ([]roster.Employee, error) {
	return s.employees, s.err
}

// =============================================================================
// LOOKUP CONTRACT
// =============================================================================

func TestFindByRole_CaseInsensitiveSubstringOnTeam(t *testing.T) {
	dir := roster.NewDirectory([]roster.Employee{
		{ID: "a", Name: "Ana", JobTitle: "Senior SALES LEAD", Team: roster.StreamerTeam},
		{ID: "b", Name: "Bo", JobTitle: "Senior Sales Lead", Team: roster.SalesTeam},
		{ID: "c", Name: "Cy", JobTitle: "sales lead", Team: roster.SalesTeam},
	})

	// Team restriction skips Ana, first match in directory order wins
	e, ok := dir.FindByRole("Sales Lead", roster.SalesTeam)
	require.True(t, ok)
	assert.Equal(t, "b", e.ID)

	_, ok = dir.FindByRole("sales lead", roster.ContentTeam)
	assert.False(t, ok)
}

func TestFindVideoLead_LegacyFallback(t *testing.T) {
	legacyOnly := roster.NewDirectory([]roster.Employee{
		{ID: "old", Name: "Old", JobTitle: "VP of Video Content Distribution", Team: roster.StreamerTeam},
	})
	e, ok := legacyOnly.FindVideoLead()
	require.True(t, ok)
	assert.Equal(t, "old", e.ID)

	// GIVEN: both titles present, legacy one first in directory order
	// THEN: the current title still wins
	both := roster.NewDirectory([]roster.Employee{
		{ID: "old", Name: "Old", JobTitle: "VP of Video Content Distribution", Team: roster.StreamerTeam},
		{ID: "new", Name: "New", JobTitle: "Video Content Distribution Lead", Team: roster.StreamerTeam},
	})
	e, ok = both.FindVideoLead()
	require.True(t, ok)
	assert.Equal(t, "new", e.ID)

	h, ok := both.Holder(roster.RoleVideoLead)
	require.True(t, ok)
	assert.Equal(t, "new", h.ID)
}

func TestIsOnTeam_ExactEquality(t *testing.T) {
	e := roster.Employee{Team: roster.SalesTeam}
	assert.True(t, roster.IsOnTeam(e, roster.SalesTeam))
	assert.False(t, roster.IsOnTeam(e, roster.Team("sales team")))
}

// =============================================================================
// ROLE RESOLUTION
// =============================================================================

func TestNewDirectory_ResolvesDemoRoster(t *testing.T) {
	dir := roster.NewDirectory(roster.DemoRoster())

	want := map[roster.Role]string{
		roster.RoleCEO:          "emp-meech",
		roster.RoleCOO:          "emp-nya",
		roster.RoleCFO:          "emp-dre",
		roster.RoleCompany:      "emp-company",
		roster.RoleSalesLead:    "emp-bri",
		roster.RoleSalesManager: "emp-sm3",
		roster.RoleStreamLead:   "emp-jesy",
		roster.RoleVideoLead:    "emp-kai",
		roster.RoleContentLead:  "emp-rae",
	}
	for role, id := range want {
		h, ok := dir.Holder(role)
		require.True(t, ok, "role %s", role)
		assert.Equal(t, id, h.ID, "role %s", role)
	}
}

func TestNewDirectory_ExplicitTagBeatsAlias(t *testing.T) {
	dir := roster.NewDirectory([]roster.Employee{
		{ID: "title", Name: "Title", JobTitle: "Sales Manager", Team: roster.SalesTeam},
		{ID: "tagged", Name: "Tagged", JobTitle: "Account Director", Team: roster.SalesTeam, Role: roster.RoleSalesManager},
	})

	h, ok := dir.Holder(roster.RoleSalesManager)
	require.True(t, ok)
	assert.Equal(t, "tagged", h.ID)
	assert.Equal(t, roster.RoleSalesManager, dir.RoleOf("tagged"))
	assert.Equal(t, roster.RoleNone, dir.RoleOf("title"))
}

func TestNewDirectory_UnfilledRole(t *testing.T) {
	dir := roster.NewDirectory([]roster.Employee{
		{ID: "m", Name: "M", JobTitle: "Sales Manager", Team: roster.SalesTeam},
	})
	_, ok := dir.Holder(roster.RoleSalesLead)
	assert.False(t, ok)
	assert.False(t, dir.HoldsRole("m", roster.RoleSalesLead))
	assert.True(t, dir.HoldsRole("m", roster.RoleSalesManager))
}

func TestByNameAndByID(t *testing.T) {
	dir := roster.NewDirectory([]roster.Employee{
		{ID: "1", Name: "Sam", Team: roster.SalesTeam},
		{ID: "2", Name: "Sam", Team: roster.ContentTeam},
	})

	e, ok := dir.ByName("Sam")
	require.True(t, ok)
	assert.Equal(t, "1", e.ID)

	_, ok = dir.ByName("sam")
	assert.False(t, ok)

	e, ok = dir.ByID("2")
	require.True(t, ok)
	assert.Equal(t, roster.ContentTeam, e.Team)

	_, ok = dir.ByID("3")
	assert.False(t, ok)
}

func TestOnTeam_DirectoryOrder(t *testing.T) {
	dir := roster.NewDirectory(roster.DemoRoster())
	sales := dir.OnTeam(roster.SalesTeam)

	require.Len(t, sales, 4)
	assert.Equal(t, "Bri", sales[0].Name)
	assert.Equal(t, "Sales manager 4", sales[3].Name)
	assert.Empty(t, roster.NewDirectory(nil).OnTeam(roster.CSuite))
}

func TestLoad(t *testing.T) {
	dir, err := roster.Load(context.Background(), staticSource{employees: roster.DemoRoster()})
	require.NoError(t, err)
	assert.Equal(t, len(roster.DemoRoster()), dir.Len())

	boom := errors.New("boom")
	_, err = roster.Load(context.Background(), staticSource{err: boom})
	assert.ErrorIs(t, err, boom)
}

// =============================================================================
// PARSING
// =============================================================================

func TestParseTeamAndRole(t *testing.T) {
	team, err := roster.ParseTeam("C-suite")
	require.NoError(t, err)
	assert.Equal(t, roster.CSuite, team)

	_, err = roster.ParseTeam("Marketing")
	assert.Error(t, err)

	role, err := roster.ParseRole("video_lead")
	require.NoError(t, err)
	assert.Equal(t, roster.RoleVideoLead, role)

	role, err = roster.ParseRole("")
	require.NoError(t, err)
	assert.Equal(t, roster.RoleNone, role)

	_, err = roster.ParseRole("intern")
	assert.Error(t, err)
}
