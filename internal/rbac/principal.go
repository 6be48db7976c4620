package rbac

import (
	"context"
	"strings"
)

// Principal is the verified caller of a request.
type Principal struct {
	Subject string
	Role    string
}

func (p Principal) Can(perm string) bool {
	return p.Role != "" && DefaultPolicy.Allows(p.Role, perm)
}

func (p Principal) Staff() bool { return p.Can(PermStaff) }

// ActingFor returns the student identity a request works on. Only staff may
// name a student other than themselves.
func (p Principal) ActingFor(requested string) string {
	if requested = strings.TrimSpace(requested); requested != "" && p.Staff() {
		return requested
	}
	return p.Subject
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.Subject != ""
}
