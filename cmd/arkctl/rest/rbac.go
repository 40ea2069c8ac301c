package rest

import (
	"net/http"

	"github.com/casbin/casbin/v3"
	casbinmodel "github.com/casbin/casbin/v3/model"

	ihttp "github.com/tjper/arkctl/internal/http"
	"github.com/tjper/arkctl/internal/session"
)

// rbacModel is a three-role RBAC model: role inheritance (g) lets
// "operator" stand in for "viewer" and "admin" stand in for "operator",
// mirroring session.Role's admin > operator > viewer total order (§6) but
// enforced through policy lookup rather than a hardcoded rank table.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// newRoleEnforcer builds the in-memory casbin enforcer backing every
// role-gated route in Router. The policy is the dashboard's fixed
// read/write/admin tiers (§6); there is no per-resource policy data to load
// from a file, so policies are seeded programmatically rather than from a
// .csv adapter.
func newRoleEnforcer() (*casbin.Enforcer, error) {
	m, err := casbinmodel.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}

	policies := [][]string{
		{string(session.RoleViewer), "dashboard", "read"},
		{string(session.RoleOperator), "dashboard", "write"},
		{string(session.RoleAdmin), "dashboard", "admin"},
	}
	for _, p := range policies {
		if _, err := e.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, err
		}
	}

	groups := [][2]string{
		{string(session.RoleOperator), string(session.RoleViewer)},
		{string(session.RoleAdmin), string(session.RoleOperator)},
	}
	for _, g := range groups {
		if _, err := e.AddGroupingPolicy(g[0], g[1]); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// roleEnforcer is built once at process startup; the policy above is fixed
// and cannot fail to load, so a construction error is a programming error,
// not a runtime condition.
var roleEnforcer = mustRoleEnforcer()

func mustRoleEnforcer() *casbin.Enforcer {
	e, err := newRoleEnforcer()
	if err != nil {
		panic(err)
	}
	return e
}

// requirePolicy creates middleware that rejects requests whose
// authenticated user's role is not permitted act on obj per the casbin
// policy above.
func requirePolicy(e *casbin.Enforcer, obj, act string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := session.FromContext(r.Context())
			if !ok {
				ihttp.ErrUnauthorized(w)
				return
			}
			allowed, err := e.Enforce(string(user.Role), obj, act)
			if err != nil || !allowed {
				ihttp.ErrForbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
