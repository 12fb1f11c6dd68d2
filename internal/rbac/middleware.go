package rbac

import (
	"encoding/json"
	"net/http"
)

var defaultChecker = NewChecker(nil)

// guard wraps next with an access decision taken from the request.
func guard(allow func(r *http.Request, role string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allow(r, RoleFromContext(r.Context())) {
				forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Require enforces a single permission.
func Require(perm string) func(http.Handler) http.Handler {
	return guard(func(_ *http.Request, role string) bool {
		return defaultChecker.Has(role, perm)
	})
}

// RequireOwnerOr lets the request through when the caller's role holds
// allPerm, or holds ownPerm and isOwner reports the caller owns the resource.
func RequireOwnerOr(ownPerm, allPerm string, isOwner func(r *http.Request) bool) func(http.Handler) http.Handler {
	return guard(func(r *http.Request, role string) bool {
		if defaultChecker.Has(role, allPerm) {
			return true
		}
		return defaultChecker.Has(role, ownPerm) && isOwner(r)
	})
}

func forbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "forbidden"})
}
