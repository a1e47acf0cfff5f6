// Package policy holds the role table and the active session.
package policy

import (
	"sort"

	"github.com/doeshing/orca-go/internal/domain"
)

// Table is a read-only role lookup built once from configuration.
type Table struct {
	roles map[string]roleEntry
}

type roleEntry struct {
	all      bool
	commands map[string]struct{}
	limits   map[string]int
}

// NewTable copies policies into a lookup table. A nil map yields the defaults.
func NewTable(policies map[string]domain.RolePolicy) *Table {
	if policies == nil {
		policies = domain.DefaultRolePolicies()
	}
	t := &Table{roles: make(map[string]roleEntry, len(policies))}
	for name, p := range policies {
		entry := roleEntry{
			commands: make(map[string]struct{}, len(p.Commands)),
			limits:   make(map[string]int, len(p.Limits)),
		}
		for _, c := range p.Commands {
			if c == domain.AllCommands {
				entry.all = true
				continue
			}
			entry.commands[c] = struct{}{}
		}
		for c, n := range p.Limits {
			entry.limits[c] = n
		}
		t.roles[name] = entry
	}
	return t
}

// HasRole reports whether role is defined.
func (t *Table) HasRole(role string) bool {
	_, ok := t.roles[role]
	return ok
}

// Allowed reports whether role may run command. Unknown roles may run nothing.
func (t *Table) Allowed(role, command string) bool {
	entry, ok := t.roles[role]
	if !ok {
		return false
	}
	if entry.all {
		return true
	}
	_, ok = entry.commands[command]
	return ok
}

// Limit returns the per-window call limit for role and command, if any.
func (t *Table) Limit(role, command string) (int, bool) {
	entry, ok := t.roles[role]
	if !ok {
		return 0, false
	}
	n, ok := entry.limits[command]
	return n, ok
}

// Roles lists role names, sorted.
func (t *Table) Roles() []string {
	names := make([]string, 0, len(t.roles))
	for name := range t.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Commands lists the explicit commands of role, sorted. "*" is reported as is.
func (t *Table) Commands(role string) []string {
	entry, ok := t.roles[role]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(entry.commands)+1)
	if entry.all {
		out = append(out, domain.AllCommands)
	}
	for c := range entry.commands {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
