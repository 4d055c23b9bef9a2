// Package rbac maps gradebook roles to permissions and guards routes.
package rbac

import (
	"context"
	"net/http"
	"strings"
)

const (
	RoleAssistant  = "assistant"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

const (
	PermGradebookView   = "gradebook:view"
	PermGradebookExport = "gradebook:export"
	PermScoresEdit      = "gradebook:edit_scores"
	PermPointsEdit      = "gradebook:edit_points"
	PermCodeView        = "submission:view_code"
)

// RolePermissions is the default policy. Assistants read and export;
// instructors also write. A trailing "*" matches any suffix.
var RolePermissions = map[string][]string{
	RoleAssistant:  {PermGradebookView, PermGradebookExport, PermCodeView},
	RoleInstructor: {"gradebook:*", PermCodeView},
	RoleAdmin:      {"*"},
}

type Policy map[string][]string

// Allows reports whether role holds at least one of perms.
func (p Policy) Allows(role string, perms ...string) bool {
	for _, granted := range p[role] {
		for _, perm := range perms {
			if granted == perm || granted == "*" ||
				(strings.HasSuffix(granted, "*") && strings.HasPrefix(perm, strings.TrimSuffix(granted, "*"))) {
				return true
			}
		}
	}
	return false
}

var defaultPolicy = Policy(RolePermissions)

type ctxKey struct{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKey{}).(string); ok {
		return s
	}
	return ""
}

// Require enforces a single permission.
func Require(perm string) func(http.Handler) http.Handler {
	return RequireAny(perm)
}

// RequireAny lets the request through when the role in context holds any of perms.
func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !defaultPolicy.Allows(RoleFromContext(r.Context()), perms...) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
