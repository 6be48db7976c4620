package rbac

import "strings"

// Policy maps a role to the permissions it grants. A grant is either an
// exact permission, "*", or a namespace wildcard such as "assessment:*".
type Policy map[string][]string

// Allows reports whether role holds perm under p.
func (p Policy) Allows(role, perm string) bool {
	for _, g := range p[role] {
		if grants(g, perm) {
			return true
		}
	}
	return false
}

// AllowsAny reports whether role holds at least one of perms.
func (p Policy) AllowsAny(role string, perms ...string) bool {
	for _, perm := range perms {
		if p.Allows(role, perm) {
			return true
		}
	}
	return false
}

func grants(grant, perm string) bool {
	if grant == "*" || grant == perm {
		return true
	}
	ns, ok := strings.CutSuffix(grant, ":*")
	return ok && strings.HasPrefix(perm, ns+":")
}
