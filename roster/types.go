/*
Package roster is the employee directory the commission engine reads from.

PURPOSE:
  Holds employee records (id, name, job title, team) and resolves, once per
  roster snapshot, which employee fills each payout role (Sales Manager, CEO,
  Video Lead, ...). The engine consumes the resolved roles and never matches
  job titles itself.

ROLE RESOLUTION:
  1. An employee may carry an explicit Role tag. The first tagged employee
     (directory order) holds the role.
  2. Untagged (legacy) records are matched by job-title alias, restricted to
     the role's team, case-insensitive substring, first match wins. Aliases
     are tried in order across the whole roster.

  Video Lead keeps two aliases ("video content distribution lead", then the
  older "vp of video content distribution") because historical records use both.

SEE ALSO:
  - registry.go: Role aliases
  - directory.go: Lookup operations
*/
package roster

import (
	"fmt"
)

// =============================================================================
// TEAM
// =============================================================================

type Team string

const (
	SalesTeam    Team = "Sales Team"
	StreamerTeam Team = "Streamer Team"
	ContentTeam  Team = "Content Team"
	CSuite       Team = "C-suite"
)

// Teams returns the teams in dashboard tab order.
func Teams() []Team {
	return []Team{ContentTeam, SalesTeam, StreamerTeam, CSuite}
}

// ForTeamOptions returns the revenue targets in submit-form order.
func ForTeamOptions() []Team {
	return []Team{SalesTeam, StreamerTeam, CSuite, ContentTeam}
}

// ParseTeam matches a team name exactly.
func ParseTeam(s string) (Team, error) {
	for _, t := range Teams() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown team %q", s)
}

// =============================================================================
// EMPLOYEE
// =============================================================================

type Employee struct {
	ID       string
	Name     string
	JobTitle string
	Team     Team
	Role     Role // optional explicit tag; RoleNone for legacy records
}

// IsOnTeam is exact team equality.
func IsOnTeam(e Employee, team Team) bool {
	return e.Team == team
}
