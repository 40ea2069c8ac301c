package rest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjper/arkctl/internal/session"
)

func TestRoleEnforcerHonorsInheritance(t *testing.T) {
	e, err := newRoleEnforcer()
	require.NoError(t, err)

	cases := []struct {
		role    session.Role
		tier    string
		allowed bool
	}{
		{session.RoleViewer, "read", true},
		{session.RoleViewer, "write", false},
		{session.RoleViewer, "admin", false},
		{session.RoleOperator, "read", true},
		{session.RoleOperator, "write", true},
		{session.RoleOperator, "admin", false},
		{session.RoleAdmin, "read", true},
		{session.RoleAdmin, "write", true},
		{session.RoleAdmin, "admin", true},
	}

	for _, tc := range cases {
		ok, err := e.Enforce(string(tc.role), "dashboard", tc.tier)
		require.NoError(t, err)
		assert.Equal(t, tc.allowed, ok, "role=%s tier=%s", tc.role, tc.tier)
	}
}
