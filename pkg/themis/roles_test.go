package themis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elysium-hub/elysium/pkg/domain"
	"github.com/elysium-hub/elysium/pkg/hades"
)

func newTestRoles(t *testing.T) (*Roles, *hades.MemoryStore) {
	t.Helper()
	store := hades.NewMemoryStore()
	roles := NewRoles(newTestEngine(t), store, nil)
	ctx := context.Background()
	for _, def := range DefaultRoles() {
		require.NoError(t, store.SaveRole(ctx, def))
	}
	return roles, store
}

func TestValidateRoleName(t *testing.T) {
	assert.NoError(t, ValidateRoleName("shared-notebook"))
	assert.NoError(t, ValidateRoleName("team_2.readers"))

	for _, bad := range []string{"", "a", "ab", "Admin", "9lives", "trailing-"} {
		err := ValidateRoleName(bad)
		var nameErr *InvalidRoleNameError
		assert.ErrorAs(t, err, &nameErr, "name %q should be rejected", bad)
	}
}

func TestCheckScopeNamesUnknownScope(t *testing.T) {
	e := newTestEngine(t)

	err := e.CheckScopeNames([]string{"nonsense"}, "myrole")
	var unknown *UnknownScopeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nonsense", unknown.Scope)
	assert.Equal(t, "myrole", unknown.Role)
}

func TestCheckScopeNamesAllHint(t *testing.T) {
	e := newTestEngine(t)

	err := e.CheckScopeNames([]string{"all"}, "")
	var unknown *UnknownScopeError
	require.ErrorAs(t, err, &unknown)
	assert.Contains(t, unknown.Error(), "inherit")
}

func TestCheckScopeNamesFilters(t *testing.T) {
	e := newTestEngine(t)

	assert.NoError(t, e.CheckScopeNames([]string{
		"read:users!user",
		"read:users!user=alice",
		"access:services!service=grafana",
		"read:users!group=maenads",
		"access:servers!server=alice/work",
	}, ""))

	err := e.CheckScopeNames([]string{"read:users!nonexistent=x"}, "")
	var filterErr *UnknownFilterError
	assert.ErrorAs(t, err, &filterErr)

	// a bare filter kind other than !user is not a recognized form
	err = e.CheckScopeNames([]string{"read:users!server"}, "")
	assert.ErrorAs(t, err, &filterErr)
}

func TestCreateRoleRejectsAdminChanges(t *testing.T) {
	roles, _ := newTestRoles(t)
	ctx := context.Background()

	err := roles.Create(ctx, &domain.Role{Name: "admin", Scopes: []string{"read:hub"}})
	var immutable *ImmutableRoleError
	require.ErrorAs(t, err, &immutable)
	assert.Equal(t, "scopes", immutable.Attr)

	err = roles.Create(ctx, &domain.Role{Name: "admin", Description: "something else"})
	require.ErrorAs(t, err, &immutable)
	assert.Equal(t, "description", immutable.Attr)

	// restating the admin role verbatim is fine
	for _, def := range DefaultRoles() {
		if def.Name == RoleAdmin {
			assert.NoError(t, roles.Create(ctx, def))
		}
	}
}

func TestCreateRoleValidatesScopes(t *testing.T) {
	roles, _ := newTestRoles(t)

	err := roles.Create(context.Background(), &domain.Role{
		Name:   "broken",
		Scopes: []string{"no:such:scope"},
	})
	var unknown *UnknownScopeError
	assert.ErrorAs(t, err, &unknown)
}

func TestCreateRoleUpdatesExisting(t *testing.T) {
	roles, store := newTestRoles(t)
	ctx := context.Background()

	require.NoError(t, roles.Create(ctx, &domain.Role{Name: "viewer", Scopes: []string{"read:hub"}}))
	require.NoError(t, roles.Create(ctx, &domain.Role{Name: "viewer", Scopes: []string{"read:hub", "read:metrics"}}))

	saved, err := store.FindRole(ctx, "viewer")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"read:hub", "read:metrics"}, saved.Scopes)
}

func TestDeleteDefaultRoleForbidden(t *testing.T) {
	roles, _ := newTestRoles(t)
	ctx := context.Background()

	for _, name := range []string{RoleUser, RoleAdmin, RoleServer, RoleToken} {
		err := roles.Delete(ctx, name)
		var defErr *DefaultRoleError
		assert.ErrorAs(t, err, &defErr, "deleting %q should fail", name)
	}

	require.NoError(t, roles.Create(ctx, &domain.Role{Name: "ephemeral", Scopes: []string{"read:hub"}}))
	assert.NoError(t, roles.Delete(ctx, "ephemeral"))

	err := roles.Delete(ctx, "ephemeral")
	var notFound *RoleNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestGrantAndStrip(t *testing.T) {
	roles, store := newTestRoles(t)
	ctx := context.Background()
	user := &domain.User{Name: "alice"}
	require.NoError(t, store.SaveUser(ctx, user))

	require.NoError(t, roles.Grant(ctx, user, RoleUser))
	assert.True(t, domain.HasRole(user, RoleUser))

	// granting twice is a no-op
	require.NoError(t, roles.Grant(ctx, user, RoleUser))
	assert.Len(t, user.Roles, 1)

	require.NoError(t, roles.Strip(ctx, user, RoleUser))
	assert.False(t, domain.HasRole(user, RoleUser))
}

func TestTokenAllowedRoleShortcut(t *testing.T) {
	e := newTestEngine(t)
	viewer := &domain.Role{Name: "viewer", Scopes: []string{"shutdown"}}
	owner := &domain.User{Name: "alice", Roles: []*domain.Role{viewer}}
	token := &domain.APIToken{ID: "t1", User: owner}

	// owner holds the exact role, no scope math needed
	allowed, disallowed, err := e.TokenAllowedRole(context.Background(), token, viewer, nil)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Empty(t, disallowed)
}

func TestTokenAllowedRoleDeniesEscalation(t *testing.T) {
	e := newTestEngine(t)
	owner := &domain.User{
		Name:  "alice",
		Roles: []*domain.Role{{Name: "limited", Scopes: []string{"read:users!user"}}},
	}
	token := &domain.APIToken{ID: "t2", User: owner}
	wide := &domain.Role{Name: "wide", Scopes: []string{"read:users"}}

	allowed, disallowed, err := e.TokenAllowedRole(context.Background(), token, wide, nil)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Contains(t, disallowed, "read:users")
}

func TestTokenAllowedRoleIgnoresImplicitScopes(t *testing.T) {
	e := newTestEngine(t)
	owner := &domain.User{
		Name:  "alice",
		Roles: []*domain.Role{{Name: "user", Scopes: []string{"self"}}},
	}
	token := &domain.APIToken{ID: "t3", User: owner}
	tokenRole := &domain.Role{Name: "inheriting", Scopes: []string{"inherit", "read:inherit"}}

	allowed, disallowed, err := e.TokenAllowedRole(context.Background(), token, tokenRole, nil)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Empty(t, disallowed)
}

func TestUpdateDeniesTokenEscalation(t *testing.T) {
	roles, store := newTestRoles(t)
	ctx := context.Background()

	owner := &domain.User{
		Name:  "alice",
		Roles: []*domain.Role{{Name: "limited", Scopes: []string{"read:users!user"}}},
	}
	require.NoError(t, store.SaveUser(ctx, owner))
	token := &domain.APIToken{ID: "t4", User: owner}
	require.NoError(t, store.SaveToken(ctx, token))
	require.NoError(t, roles.Create(ctx, &domain.Role{Name: "wide", Scopes: []string{"read:users"}}))

	err := roles.Update(ctx, token, []string{"wide"})
	var escalation *EscalationError
	require.ErrorAs(t, err, &escalation)
	assert.Equal(t, "wide", escalation.Role)
	assert.False(t, domain.HasRole(token, "wide"))
}

func TestUpdateGrantsAllowedTokenRole(t *testing.T) {
	roles, store := newTestRoles(t)
	ctx := context.Background()

	owner := &domain.User{
		Name:  "alice",
		Roles: []*domain.Role{{Name: "user", Scopes: []string{"self"}}},
	}
	require.NoError(t, store.SaveUser(ctx, owner))
	token := &domain.APIToken{ID: "t5", User: owner}
	require.NoError(t, store.SaveToken(ctx, token))

	require.NoError(t, roles.Update(ctx, token, []string{RoleToken}))
	assert.True(t, domain.HasRole(token, RoleToken))
}

func TestAssignDefaults(t *testing.T) {
	roles, store := newTestRoles(t)
	ctx := context.Background()

	user := &domain.User{Name: "alice", Admin: true}
	require.NoError(t, store.SaveUser(ctx, user))
	require.NoError(t, roles.AssignDefaults(ctx, user))
	assert.True(t, domain.HasRole(user, RoleUser))
	assert.True(t, domain.HasRole(user, RoleAdmin))

	// demotion strips the admin role
	user.Admin = false
	require.NoError(t, roles.AssignDefaults(ctx, user))
	assert.False(t, domain.HasRole(user, RoleAdmin))
	assert.True(t, domain.HasRole(user, RoleUser))

	token := &domain.APIToken{ID: "t6", User: user}
	require.NoError(t, store.SaveToken(ctx, token))
	require.NoError(t, roles.AssignDefaults(ctx, token))
	assert.True(t, domain.HasRole(token, RoleToken))

	group := &domain.Group{Name: "maenads"}
	require.NoError(t, store.SaveGroup(ctx, group))
	require.NoError(t, roles.AssignDefaults(ctx, group))
	assert.Empty(t, group.Roles)
}

func TestFindRoleMissing(t *testing.T) {
	roles, _ := newTestRoles(t)
	user := &domain.User{Name: "alice"}

	err := roles.Grant(context.Background(), user, "no-such-role")
	var notFound *RoleNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.False(t, errors.Is(err, hades.ErrNotFound))
}

func TestLoadRoles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	content := []byte(`- name: grader
  description: Grade assignments
  scopes:
    - read:users
- name: culler
  scopes:
    - read:servers
    - delete:servers
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	loaded, err := LoadRoles(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "grader", loaded[0].Name)
	assert.Equal(t, []string{"read:servers", "delete:servers"}, loaded[1].Scopes)

	roles, _ := newTestRoles(t)
	for _, role := range loaded {
		assert.NoError(t, roles.Create(context.Background(), role))
	}
}

func TestIdentifyScopes(t *testing.T) {
	user := &domain.User{Name: "alice"}
	scopes, err := IdentifyScopes(user)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"read:users:name!user=alice",
		"read:users:groups!user=alice",
	}, scopes)

	service := &domain.Service{Name: "grafana"}
	scopes, err = IdentifyScopes(service)
	require.NoError(t, err)
	assert.Equal(t, []string{"read:services:name!service=grafana"}, scopes)

	_, err = IdentifyScopes(&domain.Group{Name: "g"})
	assert.Error(t, err)
}
