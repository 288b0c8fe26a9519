package themis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/elysium-hub/elysium/pkg/domain"
	"github.com/elysium-hub/elysium/pkg/hades"
)

// Default role names. These roles are defined at startup and their admin
// definition is immutable.
const (
	RoleUser   = "user"
	RoleAdmin  = "admin"
	RoleServer = "server"
	RoleToken  = "token"
)

var roleNamePattern = regexp.MustCompile(`^[a-z][a-z0-9\-_~\.]{1,253}[a-z0-9]$`)

// recognized scope filter forms
var allowedFilterKinds = map[string]bool{
	"user":    true,
	"service": true,
	"group":   true,
	"server":  true,
}

// DefaultRoles returns the built-in role definitions.
func DefaultRoles() []*domain.Role {
	return []*domain.Role{
		{
			Name:        RoleUser,
			Description: "Standard user privileges",
			Scopes:      []string{"self"},
		},
		{
			Name:        RoleAdmin,
			Description: "Elevated privileges (can do anything)",
			Scopes: []string{
				"admin:users",
				"admin:servers",
				"tokens",
				"admin:groups",
				"list:services",
				"read:services",
				"read:hub",
				"proxy",
				"shutdown",
				"access:services",
				"access:servers",
				"read:roles",
				"read:metrics",
			},
		},
		{
			Name:        RoleServer,
			Description: "Post activity only",
			Scopes:      []string{"users:activity!user", "access:servers!user"},
		},
		{
			Name:        RoleToken,
			Description: "Token with same permissions as its owner",
			Scopes:      []string{"inherit"},
		},
	}
}

// ValidateRoleName checks a role name against the role name pattern.
func ValidateRoleName(name string) error {
	if !roleNamePattern.MatchString(name) {
		return NewInvalidRoleNameError(name)
	}
	return nil
}

// CheckScopeNames validates that every scope string references a defined
// scope and carries a recognized filter, failing fast before any mutation.
// rolename, when non-empty, is included in errors for diagnostics.
func (e *Engine) CheckScopeNames(scopes []string, rolename string) error {
	for _, scope := range scopes {
		base, filter, hasFilter := strings.Cut(scope, "!")
		if !e.registry.Has(base) {
			if base == "all" {
				return NewUnknownScopeError(scope, rolename, "draft scope 'all' is now called 'inherit'")
			}
			return NewUnknownScopeError(scope, rolename, "")
		}
		if hasFilter && filter != "user" {
			kind, _, bound := strings.Cut(filter, "=")
			if !bound || !allowedFilterKinds[kind] {
				return NewUnknownFilterError("!"+filter, scope, rolename)
			}
		}
	}
	return nil
}

// implicit metascopes a token role may always carry, since they can never
// exceed the owner's permissions
var implicitTokenScopes = NewStringSet("inherit", "read:inherit")

// TokenAllowedRole is the escalation guard: it reports whether granting the
// candidate role to the token stays within the token owner's resolved
// permissions. It must be consulted on every token role assignment. The
// returned disallowed list names the scopes the owner does not hold.
func (e *Engine) TokenAllowedRole(ctx context.Context, token *domain.APIToken, role *domain.Role, groups GroupLister) (bool, []string, error) {
	owner := token.Owner()
	if owner == nil {
		return false, nil, fmt.Errorf("owner not found for token %s", token.ID)
	}

	// shortcut: the owner directly holds the exact role
	if domain.HasRole(owner, role.Name) {
		return true, nil, nil
	}

	expanded := NewStringSet(e.expandRoleScopes([]*domain.Role{role}, token)...)
	explicit := expanded.Difference(implicitTokenScopes)

	ownerScopes := e.ExpandRolesToScopes(owner)
	allowed, err := IntersectExpanded(ctx, explicit.Sorted(), ownerScopes, groups)
	if err != nil {
		return false, nil, err
	}
	disallowed := explicit.Difference(NewStringSet(allowed...))
	if len(disallowed) == 0 {
		return true, nil, nil
	}
	return false, disallowed.Sorted(), nil
}

// Roles manages role persistence and grants against the store. Every
// mutating operation validates first and commits only on full success.
type Roles struct {
	engine *Engine
	store  hades.Store
	logger *slog.Logger
}

// NewRoles creates a role manager. A nil logger falls back to slog.Default.
func NewRoles(engine *Engine, store hades.Store, logger *slog.Logger) *Roles {
	if logger == nil {
		logger = slog.Default()
	}
	return &Roles{engine: engine, store: store, logger: logger}
}

// Create adds a new role or modifies an existing one. The admin role's
// description and scope set cannot be overridden.
func (r *Roles) Create(ctx context.Context, role *domain.Role) error {
	if role.Name == "" {
		return NewInvalidRoleNameError("")
	}
	if err := ValidateRoleName(role.Name); err != nil {
		return err
	}

	if role.Name == RoleAdmin {
		var adminDef *domain.Role
		for _, def := range DefaultRoles() {
			if def.Name == RoleAdmin {
				adminDef = def
				break
			}
		}
		if role.Description != "" && role.Description != adminDef.Description {
			return NewImmutableRoleError(RoleAdmin, "description")
		}
		if len(role.Scopes) > 0 && !sameScopes(role.Scopes, adminDef.Scopes) {
			return NewImmutableRoleError(RoleAdmin, "scopes")
		}
	}

	if err := r.engine.CheckScopeNames(role.Scopes, role.Name); err != nil {
		return err
	}

	existing, err := r.store.FindRole(ctx, role.Name)
	if err != nil && !errors.Is(err, hades.ErrNotFound) {
		return err
	}
	if existing == nil {
		if len(role.Scopes) == 0 {
			r.logger.Warn("new defined role has no scopes", "role", role.Name)
		}
		if err := r.store.SaveRole(ctx, role); err != nil {
			return err
		}
		r.logger.Info("role added", "role", role.Name)
		return nil
	}

	changed := false
	if role.Description != existing.Description {
		existing.Description = role.Description
		changed = true
	}
	if !sameScopes(role.Scopes, existing.Scopes) {
		existing.Scopes = role.Scopes
		changed = true
	}
	if changed {
		if err := r.store.SaveRole(ctx, existing); err != nil {
			return err
		}
		r.logger.Info("role attributes changed", "role", role.Name)
	}
	return nil
}

// Delete removes a role. Default roles are not removable.
func (r *Roles) Delete(ctx context.Context, name string) error {
	for _, def := range DefaultRoles() {
		if def.Name == name {
			return &DefaultRoleError{Role: name}
		}
	}
	if err := r.store.DeleteRole(ctx, name); err != nil {
		if errors.Is(err, hades.ErrNotFound) {
			return &RoleNotFoundError{Role: name}
		}
		return err
	}
	r.logger.Info("role deleted", "role", name)
	return nil
}

// Grant attaches a role to an entity. Granting an already-held role is a
// no-op.
func (r *Roles) Grant(ctx context.Context, entity domain.Entity, rolename string) error {
	role, err := r.findRole(ctx, rolename)
	if err != nil {
		return err
	}
	if domain.HasRole(entity, role.Name) {
		return nil
	}
	if err := r.saveEntity(ctx, entity, append(entity.EntityRoles(), role)); err != nil {
		return err
	}
	r.logger.Info("role granted", "role", role.Name, "kind", entity.Kind(), "entity", entity.EntityName())
	return nil
}

// Strip removes a role from an entity.
func (r *Roles) Strip(ctx context.Context, entity domain.Entity, rolename string) error {
	role, err := r.findRole(ctx, rolename)
	if err != nil {
		return err
	}
	roles := entity.EntityRoles()
	for i, held := range roles {
		if held.Name == role.Name {
			remaining := make([]*domain.Role, 0, len(roles)-1)
			remaining = append(remaining, roles[:i]...)
			remaining = append(remaining, roles[i+1:]...)
			if err := r.saveEntity(ctx, entity, remaining); err != nil {
				return err
			}
			r.logger.Info("role removed", "role", role.Name, "kind", entity.Kind(), "entity", entity.EntityName())
			return nil
		}
	}
	return nil
}

// Update adds roles to an entity. For API tokens, every role is checked
// against the token owner's permissions first; an escalation attempt denies
// the whole assignment rather than silently narrowing it.
func (r *Roles) Update(ctx context.Context, entity domain.Entity, rolenames []string) error {
	token, isToken := entity.(*domain.APIToken)
	if !isToken {
		for _, name := range rolenames {
			if err := r.Grant(ctx, entity, name); err != nil {
				return err
			}
		}
		return nil
	}

	for _, name := range rolenames {
		role, err := r.findRole(ctx, name)
		if err != nil {
			return err
		}
		allowed, disallowed, err := r.engine.TokenAllowedRole(ctx, token, role, r.store)
		if err != nil {
			return err
		}
		if !allowed {
			ownerName := ""
			if owner := token.Owner(); owner != nil {
				ownerName = owner.EntityName()
			}
			escalation := NewEscalationError(role.Name, ownerName, disallowed)
			r.logger.Warn("denied token role grant", "role", role.Name, "owner", ownerName,
				"disallowed", strings.Join(disallowed, ", "))
			return escalation
		}
		if !domain.HasRole(token, role.Name) {
			token.Roles = append(token.Roles, role)
			if err := r.store.SaveToken(ctx, token); err != nil {
				return err
			}
			r.logger.Info("role granted to token", "role", role.Name, "token", token.ID)
		}
	}
	return nil
}

// AssignDefaults gives an entity its default roles: role-less tokens get
// `token`, users always get `user`, the admin flag grants or strips `admin`.
// Groups never receive default roles.
func (r *Roles) AssignDefaults(ctx context.Context, entity domain.Entity) error {
	switch bearer := entity.(type) {
	case *domain.Group:
		return nil
	case *domain.APIToken:
		if len(bearer.Roles) == 0 && bearer.Owner() != nil {
			return r.Grant(ctx, bearer, RoleToken)
		}
		return nil
	case *domain.User:
		if err := r.syncAdminRole(ctx, bearer, bearer.Admin); err != nil {
			return err
		}
		return r.Grant(ctx, bearer, RoleUser)
	case *domain.Service:
		return r.syncAdminRole(ctx, bearer, bearer.Admin)
	default:
		return fmt.Errorf("unexpected entity kind %s", entity.Kind())
	}
}

func (r *Roles) syncAdminRole(ctx context.Context, entity domain.Entity, admin bool) error {
	if admin {
		return r.Grant(ctx, entity, RoleAdmin)
	}
	if domain.HasRole(entity, RoleAdmin) {
		return r.Strip(ctx, entity, RoleAdmin)
	}
	return nil
}

func (r *Roles) findRole(ctx context.Context, name string) (*domain.Role, error) {
	role, err := r.store.FindRole(ctx, name)
	if err != nil {
		if errors.Is(err, hades.ErrNotFound) {
			return nil, &RoleNotFoundError{Role: name}
		}
		return nil, err
	}
	return role, nil
}

func (r *Roles) saveEntity(ctx context.Context, entity domain.Entity, roles []*domain.Role) error {
	switch e := entity.(type) {
	case *domain.User:
		e.Roles = roles
		return r.store.SaveUser(ctx, e)
	case *domain.Service:
		e.Roles = roles
		return r.store.SaveService(ctx, e)
	case *domain.Group:
		e.Roles = roles
		return r.store.SaveGroup(ctx, e)
	case *domain.APIToken:
		e.Roles = roles
		return r.store.SaveToken(ctx, e)
	default:
		return fmt.Errorf("unexpected entity kind %s", entity.Kind())
	}
}

func sameScopes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := NewStringSet(a...)
	for _, scope := range b {
		if !set.Contains(scope) {
			return false
		}
	}
	return true
}

// LoadRoles reads role definitions from a YAML file: a list of
// {name, description, scopes} entries. Names and scopes are validated by
// Roles.Create when the definitions are applied, not here.
func LoadRoles(path string) ([]*domain.Role, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var roles []*domain.Role
	if err := yaml.Unmarshal(data, &roles); err != nil {
		return nil, fmt.Errorf("failed to parse role definitions %s: %w", path, err)
	}
	return roles, nil
}

// IdentifyScopes returns the fixed scopes needed for whoami-style endpoints
// for a user or service.
func IdentifyScopes(entity domain.Entity) ([]string, error) {
	switch e := entity.(type) {
	case *domain.User:
		return []string{
			"read:users:name!user=" + e.Name,
			"read:users:groups!user=" + e.Name,
		}, nil
	case *domain.Service:
		return []string{"read:services:name!service=" + e.Name}, nil
	default:
		return nil, fmt.Errorf("expected a user or service, got %s", entity.Kind())
	}
}
