package rbac

import (
	"net/http"
)

// Require admits callers holding perm.
func Require(perm string) func(http.Handler) http.Handler {
	return guard(func(p Principal) bool { return p.Can(perm) })
}

// RequireAny admits callers holding at least one of perms.
func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return guard(func(p Principal) bool {
		return p.Role != "" && DefaultPolicy.AllowsAny(p.Role, perms...)
	})
}

// guard answers 401 without a principal and 403 when admit refuses it.
func guard(admit func(Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			switch {
			case !ok:
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
			case !admit(p):
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
