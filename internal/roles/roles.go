// Package roles maps normalized column names to the semantic roles the
// pipeline needs: the reimbursed provider, the statistics year, and the
// reimbursement amount. Detection is keyword-driven and ambiguity is a
// first-class outcome, never a silent guess.
package roles

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Role is a logical column meaning. Exactly one physical column backs each role.
type Role string

const (
	Provider Role = "provider"
	Year     Role = "year"
	Amount   Role = "amount"
)

// Priority is the fixed resolution order.
var Priority = []Role{Provider, Year, Amount}

// Mapping assigns one concrete column name to each resolved role. A mapping
// may be partial; IsComplete reports whether all three roles are bound.
type Mapping map[Role]string

// IsComplete reports whether every role in Priority is assigned.
func (m Mapping) IsComplete() bool {
	for _, r := range Priority {
		if m[r] == "" {
			return false
		}
	}
	return true
}

// Missing returns the unassigned roles in priority order.
func (m Mapping) Missing() []Role {
	var out []Role
	for _, r := range Priority {
		if m[r] == "" {
			out = append(out, r)
		}
	}
	return out
}

// Clone returns a copy of the mapping.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// AmbiguousMappingError reports roles the resolver could not assign. It carries
// the available columns so a caller can solicit an explicit mapping.
type AmbiguousMappingError struct {
	MissingRoles []Role
	Columns      []string
}

func (e *AmbiguousMappingError) Error() string {
	names := make([]string, len(e.MissingRoles))
	for i, r := range e.MissingRoles {
		names[i] = string(r)
	}
	return fmt.Sprintf("ambiguous column mapping: no match for %s among columns [%s]",
		strings.Join(names, ", "), strings.Join(e.Columns, ", "))
}

// Resolve scans columns in order and assigns the first column whose name
// contains any of the role's keywords, role by role in Priority order.
// A column already claimed by an earlier role is reused only when no
// unclaimed column matches. Entries in overrides win outright and are not
// recomputed. When any role stays unassigned the partial mapping is returned
// together with an *AmbiguousMappingError.
func Resolve(columns []string, kw Keywords, overrides Mapping) (Mapping, error) {
	out := make(Mapping, len(Priority))

	for role, col := range overrides {
		if col == "" {
			continue
		}
		if !contains(columns, col) {
			return nil, eris.Errorf("roles: override %s=%q is not a known column", role, col)
		}
		out[role] = col
	}

	assigned := make(map[string]bool, len(Priority))
	for _, col := range out {
		assigned[col] = true
	}

	for _, role := range Priority {
		if out[role] != "" {
			continue
		}
		col := match(columns, kw[role], assigned)
		if col == "" {
			continue
		}
		out[role] = col
		assigned[col] = true
	}

	if !out.IsComplete() {
		return out, &AmbiguousMappingError{
			MissingRoles: out.Missing(),
			Columns:      append([]string(nil), columns...),
		}
	}
	return out, nil
}

// match returns the first matching column, preferring unclaimed columns.
// Ties break by column order first, keyword order second.
func match(columns []string, keywords []string, assigned map[string]bool) string {
	fallback := ""
	for _, col := range columns {
		lower := strings.ToLower(col)
		for _, k := range keywords {
			if !strings.Contains(lower, k) {
				continue
			}
			if !assigned[col] {
				return col
			}
			if fallback == "" {
				fallback = col
			}
			break
		}
	}
	return fallback
}

func contains(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}
