package gara

import (
	"fmt"
	"strings"
)

// AssignCV links a CV to a role in team_cv.assigned_cvs, replacing any
// previous assignment for the role, then recomputes team_cv.gaps as the
// mandatory roles that still have no CV.
func AssignCV(tenderID string, state State, role, cvName string) (State, error) {
	role = strings.TrimSpace(role)
	cvName = strings.TrimSpace(cvName)
	if role == "" {
		return state, fmt.Errorf("assign cv: role: %w", ErrMissingField)
	}

	base := Normalize(tenderID, state)
	team := base.copySection(SectionTeamCV)

	type assignment struct{ role, cv string }
	var order []string
	byRole := make(map[string]assignment)
	for _, row := range asArray(team["assigned_cvs"]) {
		m := asObject(row)
		if m == nil {
			continue
		}
		r := stringOr(m["role"], "")
		if _, dup := byRole[r]; !dup {
			order = append(order, r)
		}
		byRole[r] = assignment{role: r, cv: stringOr(m["cv"], "")}
	}
	if _, dup := byRole[role]; !dup {
		order = append(order, role)
	}
	byRole[role] = assignment{role: role, cv: cvName}

	assigned := make([]any, 0, len(order))
	for _, r := range order {
		a := byRole[r]
		assigned = append(assigned, map[string]any{"role": a.role, "cv": a.cv})
	}

	roles := asArray(team["mandatory_roles"])
	gaps := []any{}
	for _, r := range roles {
		name := scalarText(r)
		if a, ok := byRole[name]; !ok || a.cv == "" {
			gaps = append(gaps, r)
		}
	}

	team["mandatory_roles"] = nonNil(roles)
	team["assigned_cvs"] = assigned
	team["gaps"] = gaps
	return Normalize(tenderID, base.with(SectionTeamCV, team)), nil
}
