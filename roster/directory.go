package roster

import (
	"context"
	"fmt"
	"strings"
)

// Source fetches the full roster. Callers take one snapshot per use; the
// directory is not kept in sync with later edits.
type Source interface {
	ListEmployees(ctx context.Context) ([]Employee, error)
}

// Writer persists employee records. Used for seeding only.
type Writer interface {
	SaveEmployee(ctx context.Context, e Employee) (Employee, error)
}

// =============================================================================
// DIRECTORY - Read-only lookups over one roster snapshot
// =============================================================================

type Directory struct {
	employees []Employee
	byID      map[string]int
	holders   map[Role]Employee
}

// Load fetches a snapshot from src and resolves roles.
func Load(ctx context.Context, src Source) (*Directory, error) {
	employees, err := src.ListEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	return NewDirectory(employees), nil
}

// NewDirectory resolves role holders over employees, kept in the given order.
func NewDirectory(employees []Employee) *Directory {
	d := &Directory{
		employees: append([]Employee(nil), employees...),
		byID:      make(map[string]int, len(employees)),
		holders:   make(map[Role]Employee),
	}
	for i, e := range d.employees {
		if _, dup := d.byID[e.ID]; !dup {
			d.byID[e.ID] = i
		}
	}
	for _, role := range Roles() {
		if e, ok := d.resolve(role); ok {
			d.holders[role] = e
		}
	}
	return d
}

func (d *Directory) resolve(role Role) (Employee, bool) {
	for _, e := range d.employees {
		if e.Role == role {
			return e, true
		}
	}
	alias, ok := roleAliases[role]
	if !ok {
		return Employee{}, false
	}
	for _, title := range alias.Titles {
		if e, ok := d.FindByRole(title, alias.Team); ok {
			return e, true
		}
	}
	return Employee{}, false
}

// FindByRole returns the first employee of team whose job title contains
// titleSubstring, case-insensitively.
func (d *Directory) FindByRole(titleSubstring string, team Team) (Employee, bool) {
	needle := strings.ToLower(titleSubstring)
	for _, e := range d.employees {
		if e.Team == team && strings.Contains(strings.ToLower(e.JobTitle), needle) {
			return e, true
		}
	}
	return Employee{}, false
}

// FindVideoLead looks up the current title first, then the legacy one.
func (d *Directory) FindVideoLead() (Employee, bool) {
	if e, ok := d.FindByRole("video content distribution lead", StreamerTeam); ok {
		return e, true
	}
	return d.FindByRole("vp of video content distribution", StreamerTeam)
}

// Holder returns the employee resolved for role.
func (d *Directory) Holder(role Role) (Employee, bool) {
	e, ok := d.holders[role]
	return e, ok
}

// HoldsRole reports whether the employee with id is the resolved holder of role.
func (d *Directory) HoldsRole(id string, role Role) bool {
	e, ok := d.holders[role]
	return ok && e.ID == id
}

// RoleOf returns the first role (resolution order) held by the employee.
func (d *Directory) RoleOf(id string) Role {
	for _, role := range Roles() {
		if d.HoldsRole(id, role) {
			return role
		}
	}
	return RoleNone
}

func (d *Directory) ByID(id string) (Employee, bool) {
	i, ok := d.byID[id]
	if !ok {
		return Employee{}, false
	}
	return d.employees[i], true
}

// ByName returns the first employee whose name matches exactly.
func (d *Directory) ByName(name string) (Employee, bool) {
	for _, e := range d.employees {
		if e.Name == name {
			return e, true
		}
	}
	return Employee{}, false
}

// Employees returns the snapshot in directory order.
func (d *Directory) Employees() []Employee {
	return append([]Employee(nil), d.employees...)
}

// OnTeam returns the members of team in directory order.
func (d *Directory) OnTeam(team Team) []Employee {
	var out []Employee
	for _, e := range d.employees {
		if IsOnTeam(e, team) {
			out = append(out, e)
		}
	}
	return out
}

func (d *Directory) Len() int { return len(d.employees) }
