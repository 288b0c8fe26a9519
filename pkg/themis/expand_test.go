package themis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elysium-hub/elysium/pkg/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(NewDefaultRegistry(), nil)
}

func TestExpandSelfScope(t *testing.T) {
	expanded := ExpandSelfScope("alice")
	assert.Len(t, expanded, 11)
	for _, scope := range expanded {
		assert.Contains(t, scope, "!user=alice")
	}
	assert.Contains(t, expanded, "read:users!user=alice")
	assert.Contains(t, expanded, "access:servers!user=alice")
	assert.NotContains(t, expanded, "self")
	assert.NotContains(t, expanded, "self!user=alice")
}

func TestExpandScopeSubscopes(t *testing.T) {
	e := newTestEngine(t)

	expanded := e.ExpandScope("users")
	assert.Contains(t, expanded, "users")
	assert.Contains(t, expanded, "read:users")
	assert.Contains(t, expanded, "read:users:name")
	assert.Contains(t, expanded, "users:activity")
	assert.NotContains(t, expanded, "admin:users")
}

func TestExpandScopeReappliesFilter(t *testing.T) {
	e := newTestEngine(t)

	expanded := e.ExpandScope("read:users!user=alice")
	for _, scope := range expanded {
		assert.Contains(t, scope, "!user=alice")
	}
	assert.Contains(t, expanded, "read:users:name!user=alice")
}

func TestExpandScopeServerFilterGrantsOwnerName(t *testing.T) {
	e := newTestEngine(t)

	expanded := e.ExpandScope("access:servers!server=alice/work")
	assert.Contains(t, expanded, "access:servers!server=alice/work")
	assert.Contains(t, expanded, "read:users:name!user=alice")
}

func TestExpandRolesBindsUnboundUserFilter(t *testing.T) {
	e := newTestEngine(t)
	user := &domain.User{
		Name:  "danaus",
		Roles: []*domain.Role{{Name: "server", Scopes: []string{"users:activity!user"}}},
	}

	scopes := e.ExpandRolesToScopes(user)
	assert.Contains(t, scopes, "users:activity!user=danaus")
	assert.Contains(t, scopes, "read:users:activity!user=danaus")
	assert.NotContains(t, scopes, "users:activity!user")
}

func TestExpandRolesSelfOnlyForUsers(t *testing.T) {
	e := newTestEngine(t)

	user := &domain.User{
		Name:  "alice",
		Roles: []*domain.Role{{Name: "user", Scopes: []string{"self"}}},
	}
	scopes := e.ExpandRolesToScopes(user)
	assert.Contains(t, scopes, "read:users!user=alice")
	assert.NotContains(t, scopes, "self")

	service := &domain.Service{
		Name:  "announcer",
		Roles: []*domain.Role{{Name: "user", Scopes: []string{"self"}}},
	}
	assert.Empty(t, e.ExpandRolesToScopes(service))
}

func TestExpandRolesIncludesGroupRoles(t *testing.T) {
	e := newTestEngine(t)
	group := &domain.Group{
		Name:  "readers",
		Roles: []*domain.Role{{Name: "reader", Scopes: []string{"read:hub"}}},
	}
	user := &domain.User{Name: "alice", Groups: []*domain.Group{group}}

	scopes := e.ExpandRolesToScopes(user)
	assert.Contains(t, scopes, "read:hub")
}

func TestScopesForTokenInheritShortcut(t *testing.T) {
	e := newTestEngine(t)
	owner := &domain.User{
		Name:  "alice",
		Roles: []*domain.Role{{Name: "user", Scopes: []string{"self"}}},
	}
	token := &domain.APIToken{
		ID:    "t1",
		User:  owner,
		Roles: []*domain.Role{{Name: "token", Scopes: []string{"inherit"}}},
	}

	scopes, err := e.ScopesFor(context.Background(), token, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, e.ExpandRolesToScopes(owner), scopes)
}

func TestScopesForTokenDiscardsBeyondOwner(t *testing.T) {
	e := newTestEngine(t)
	owner := &domain.User{
		Name:  "alice",
		Roles: []*domain.Role{{Name: "limited", Scopes: []string{"read:users!user"}}},
	}
	token := &domain.APIToken{
		ID:    "t2",
		User:  owner,
		Roles: []*domain.Role{{Name: "wide", Scopes: []string{"admin:users"}}},
	}

	scopes, err := e.ScopesFor(context.Background(), token, nil)
	require.NoError(t, err)
	assert.Contains(t, scopes, "read:users!user=alice")
	for _, scope := range scopes {
		assert.NotContains(t, scope, "admin:")
		assert.NotEqual(t, "users", scope)
	}
}

func TestScopesForTokenUnboundFilterResolvesToOwner(t *testing.T) {
	e := newTestEngine(t)
	owner := &domain.User{
		Name:  "bob",
		Roles: []*domain.Role{{Name: "user", Scopes: []string{"self"}}},
	}
	token := &domain.APIToken{
		ID:    "t3",
		User:  owner,
		Roles: []*domain.Role{{Name: "server", Scopes: []string{"users:activity!user"}}},
	}

	scopes, err := e.ScopesFor(context.Background(), token, nil)
	require.NoError(t, err)
	assert.Contains(t, scopes, "users:activity!user=bob")
}

func TestScopesForNonToken(t *testing.T) {
	e := newTestEngine(t)
	service := &domain.Service{
		Name:  "metrics",
		Roles: []*domain.Role{{Name: "scraper", Scopes: []string{"read:metrics"}}},
	}
	scopes, err := e.ScopesFor(context.Background(), service, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"read:metrics"}, scopes)
}
