// Package session defines the authenticated-user context the engine
// consumes at its boundary. Issuing, storing, and refreshing sessions is
// out of scope (§1); this package only names the shape of the context value
// the boundary is expected to inject and the role gates the engine checks
// against it.
package session

import "github.com/google/uuid"

// User is the authenticated caller attached to a request's context by the
// boundary's auth middleware.
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Role  Role       `json:"role"`
}

// Role is one of the three role gates named in §6.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// Satisfies reports whether a user holding r is authorized for an endpoint
// gated at required. Roles are totally ordered admin > operator > viewer.
func (r Role) Satisfies(required Role) bool {
	rank := map[Role]int{RoleViewer: 0, RoleOperator: 1, RoleAdmin: 2}
	have, ok := rank[r]
	if !ok {
		return false
	}
	need, ok := rank[required]
	if !ok {
		return false
	}
	return have >= need
}
