package roster

import (
	"fmt"
)

// =============================================================================
// ROLE - Payout roles the commission rules refer to
// =============================================================================

type Role string

const (
	RoleNone         Role = ""
	RoleSalesManager Role = "sales_manager"
	RoleSalesLead    Role = "sales_lead"
	RoleCEO          Role = "ceo"
	RoleCOO          Role = "coo"
	RoleCFO          Role = "cfo"
	RoleCompany      Role = "company"
	RoleStreamLead   Role = "stream_lead"
	RoleVideoLead    Role = "video_lead"
	RoleContentLead  Role = "content_lead"
)

// Alias describes how a legacy, untagged record is recognised as a role holder.
type Alias struct {
	Team   Team
	Titles []string // tried in order; lower-case substrings of the job title
}

var roleAliases = map[Role]Alias{
	RoleCEO:          {Team: CSuite, Titles: []string{"ceo"}},
	RoleCOO:          {Team: CSuite, Titles: []string{"coo"}},
	RoleCFO:          {Team: CSuite, Titles: []string{"cfo"}},
	RoleCompany:      {Team: CSuite, Titles: []string{"company"}},
	RoleSalesLead:    {Team: SalesTeam, Titles: []string{"sales lead"}},
	RoleSalesManager: {Team: SalesTeam, Titles: []string{"sales manager"}},
	RoleStreamLead:   {Team: StreamerTeam, Titles: []string{"streaming growth & partnerships lead"}},
	RoleVideoLead:    {Team: StreamerTeam, Titles: []string{"video content distribution lead", "vp of video content distribution"}},
	RoleContentLead:  {Team: ContentTeam, Titles: []string{"vp of content operations"}},
}

// Roles returns every payout role in resolution order.
func Roles() []Role {
	return []Role{
		RoleCEO, RoleCOO, RoleCFO, RoleCompany,
		RoleSalesLead, RoleSalesManager,
		RoleStreamLead, RoleVideoLead,
		RoleContentLead,
	}
}

// ExecutiveRoles returns the executive tier in payout order.
func ExecutiveRoles() []Role {
	return []Role{RoleCEO, RoleCOO, RoleCFO, RoleCompany}
}

// AliasFor returns the title aliases of role.
func AliasFor(role Role) (Alias, bool) {
	a, ok := roleAliases[role]
	return a, ok
}

// ParseRole accepts a role tag; the empty string is RoleNone.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return RoleNone, nil
	}
	for _, r := range Roles() {
		if string(r) == s {
			return r, nil
		}
	}
	return RoleNone, fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}
