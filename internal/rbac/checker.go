package rbac

import (
	"context"
	"sort"
	"strings"
)

// Checker answers permission questions against a role → grants policy.
// Grants are exact permissions, "area:*" wildcards or "*".
type Checker struct {
	RolePermissions map[string][]string
}

func NewChecker(rp map[string][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	return &Checker{RolePermissions: rp}
}

// Known reports whether the policy defines role.
func (c *Checker) Known(role string) bool {
	_, ok := c.RolePermissions[role]
	return ok
}

func (c *Checker) Has(role, perm string) bool {
	for _, p := range c.RolePermissions[role] {
		if matchPerm(p, perm) {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

func (c *Checker) All(role string, perms ...string) bool {
	for _, p := range perms {
		if !c.Has(role, p) {
			return false
		}
	}
	return true
}

// Effective expands a role's grants over the known permission list, sorted.
// Clients use it to decide which screens to show.
func (c *Checker) Effective(role string) []string {
	var out []string
	for _, p := range AllPermissions {
		if c.Has(role, p) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func matchPerm(pattern, perm string) bool {
	if pattern == "*" || pattern == perm {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(perm, strings.TrimSuffix(pattern, "*"))
	}
	return false
}

// ---- role in context ----

type ctxKey struct{}

var ctxKeyRole = ctxKey{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKeyRole, role)
}

func RoleFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeyRole); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
