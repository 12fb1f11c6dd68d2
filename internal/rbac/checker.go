package rbac

import (
	"context"
	"strings"
)

// Checker answers role/permission questions against a static policy.
// Patterns may end in "*" to match a permission prefix.
type Checker struct {
	RolePermissions map[string][]string
}

func NewChecker(rp map[string][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	return &Checker{RolePermissions: rp}
}

func (c *Checker) Has(role, perm string) bool {
	for _, p := range c.RolePermissions[NormalizeRole(role)] {
		if matchPerm(p, perm) {
			return true
		}
	}
	return false
}

// NormalizeRole accepts Spring-style names ("ROLE_EXAMINER", "ADMIN")
// issued by the account service.
func NormalizeRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	return strings.TrimPrefix(role, "role_")
}

func matchPerm(pattern, perm string) bool {
	if pattern == "*" || pattern == perm {
		return true
	}
	prefix, ok := strings.CutSuffix(pattern, "*")
	return ok && strings.HasPrefix(perm, prefix)
}

type ctxKey struct{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKey{}, NormalizeRole(role))
}

func RoleFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}
