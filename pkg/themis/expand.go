package themis

import (
	"context"
	"log/slog"
	"strings"

	"github.com/elysium-hub/elysium/pkg/domain"
)

// Engine resolves entity permissions against an immutable scope registry.
// It is constructed once at startup and is safe for concurrent use; all
// methods are pure functions over the registry and their inputs.
type Engine struct {
	registry *Registry
	logger   *slog.Logger
}

// NewEngine creates a scope engine. A nil logger falls back to slog.Default.
func NewEngine(registry *Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{registry: registry, logger: logger}
}

// Registry returns the engine's scope registry.
func (e *Engine) Registry() *Registry { return e.registry }

// selfScopes is the fixed expansion of the `self` metascope; each entry is
// suffixed with !user=<name> for the resolving user.
var selfScopes = []string{
	"read:users",
	"read:users:name",
	"read:users:groups",
	"users:activity",
	"read:users:activity",
	"servers",
	"delete:servers",
	"read:servers",
	"tokens",
	"read:tokens",
	"access:servers",
}

// ExpandSelfScope expands the `self` metascope into user-filtered standard
// privileges for the named user.
func ExpandSelfScope(name string) []string {
	expanded := make([]string, len(selfScopes))
	for i, scope := range selfScopes {
		expanded[i] = scope + "!user=" + name
	}
	return expanded
}

// ExpandScope expands one scope string into itself plus all transitive
// subscopes, reapplying any filter suffix to every expanded subscope.
// Expanding a scope filtered to a server additionally grants read access to
// the owning user's name, a deliberate carve-out so that server-scoped
// credentials can resolve who they belong to.
func (e *Engine) ExpandScope(scope string) []string {
	base, filter, hasFilter := strings.Cut(scope, "!")
	expanded := e.registry.Expand(base)
	if !hasFilter {
		return expanded
	}
	out := make([]string, 0, len(expanded)+1)
	for _, sub := range expanded {
		out = append(out, sub+"!"+filter)
	}
	if kind, value, ok := strings.Cut(filter, "="); ok && kind == "server" {
		user, _, _ := strings.Cut(value, "/")
		out = append(out, "read:users:name!user="+user)
	}
	return out
}

// ExpandRolesToScopes gathers the entity's roles (plus, for users, all
// member groups' roles) and expands their scopes into the filter-bound
// scope set. Token intersection with the owner is not applied here; use
// ScopesFor for fully resolved permissions.
func (e *Engine) ExpandRolesToScopes(entity domain.Entity) []string {
	roles := make([]*domain.Role, 0, len(entity.EntityRoles()))
	roles = append(roles, entity.EntityRoles()...)
	if user, ok := entity.(*domain.User); ok {
		for _, group := range user.Groups {
			roles = append(roles, group.Roles...)
		}
	}
	return e.expandRoleScopes(roles, entity)
}

// expandRoleScopes unions the raw scope strings of the given roles, expands
// each through the registry, binds unbound !user filters to the owner name,
// and resolves the self metascope.
func (e *Engine) expandRoleScopes(roles []*domain.Role, owner domain.Entity) []string {
	raw := make(StringSet)
	for _, role := range roles {
		for _, scope := range role.Scopes {
			raw.Add(scope)
		}
	}

	expanded := make(StringSet)
	for scope := range raw {
		for _, sub := range e.ExpandScope(scope) {
			expanded.Add(sub)
		}
	}

	ownerName, ownerIsUser := resolveOwner(owner)

	// bind !user filters to the resolving owner
	for scope := range expanded {
		base, filter, _ := strings.Cut(scope, "!")
		if filter == "user" {
			delete(expanded, scope)
			expanded.Add(base + "!user=" + ownerName)
		}
	}

	if expanded.Contains("self") {
		delete(expanded, "self")
		if ownerIsUser {
			for _, scope := range ExpandSelfScope(ownerName) {
				expanded.Add(scope)
			}
		}
	}
	return expanded.Sorted()
}

// resolveOwner returns the name that unbound !user filters and the self
// metascope should resolve to: the token's owner for delegated tokens, the
// entity itself otherwise.
func resolveOwner(entity domain.Entity) (name string, isUser bool) {
	if token, ok := entity.(*domain.APIToken); ok {
		owner := token.Owner()
		if owner == nil {
			return "", false
		}
		_, isUser = owner.(*domain.User)
		return owner.EntityName(), isUser
	}
	_, isUser = entity.(*domain.User)
	return entity.EntityName(), isUser
}

// ScopesFor returns the fully resolved scope set for an entity. For
// delegated tokens the token's own scopes are restricted to the owner's
// resolved scopes: the `inherit` metascope resolves to the owner's scopes,
// and anything beyond the owner's permissions is discarded (with a warning
// naming the discarded scopes), never granted.
func (e *Engine) ScopesFor(ctx context.Context, entity domain.Entity, groups GroupLister) ([]string, error) {
	if entity == nil {
		return nil, nil
	}
	token, ok := entity.(*domain.APIToken)
	if !ok {
		return e.ExpandRolesToScopes(entity), nil
	}

	owner := token.Owner()
	tokenScopes := NewStringSet(e.expandRoleScopes(token.Roles, token)...)
	ownerScopes := e.ExpandRolesToScopes(owner)

	if len(tokenScopes) == 1 && tokenScopes.Contains("inherit") {
		// common case: token inherits everything, no intersection needed
		return ownerScopes, nil
	}
	if tokenScopes.Contains("inherit") {
		delete(tokenScopes, "inherit")
		for _, scope := range ownerScopes {
			tokenScopes.Add(scope)
		}
	}

	intersection, err := IntersectExpanded(ctx, tokenScopes.Sorted(), ownerScopes, groups)
	if err != nil {
		return nil, err
	}
	discarded := tokenScopes.Difference(NewStringSet(intersection...))
	if len(discarded) > 0 {
		// the owner naturally holding more than the token is fine; the
		// token holding more than the owner is not
		e.logger.Warn("discarding token scopes not present in owner roles",
			"token", token.ID,
			"scopes", strings.Join(discarded.Sorted(), ", "))
	}
	return intersection, nil
}
