package themis

import (
	"fmt"
	"strings"
)

// UnknownScopeError indicates a scope name that is not present in the
// registry. Unknown names fail closed before any mutation.
type UnknownScopeError struct {
	Scope string
	Role  string
	Hint  string
}

func (e *UnknownScopeError) Error() string {
	msg := fmt.Sprintf("scope %q does not exist", e.Scope)
	if e.Role != "" {
		msg = fmt.Sprintf("scope %q for role %q does not exist", e.Scope, e.Role)
	}
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}

// NewUnknownScopeError creates an unknown-scope error. role may be empty when
// the scope is not being validated on behalf of a role.
func NewUnknownScopeError(scope, role, hint string) *UnknownScopeError {
	return &UnknownScopeError{Scope: scope, Role: role, Hint: hint}
}

// UnknownFilterError indicates a scope filter suffix that matches none of the
// recognized filter patterns.
type UnknownFilterError struct {
	Filter string
	Scope  string
	Role   string
}

func (e *UnknownFilterError) Error() string {
	msg := fmt.Sprintf("scope filter %q in scope %q does not exist", e.Filter, e.Scope)
	if e.Role != "" {
		msg += fmt.Sprintf(" (role %q)", e.Role)
	}
	return msg
}

// NewUnknownFilterError creates an unknown-filter error.
func NewUnknownFilterError(filter, scope, role string) *UnknownFilterError {
	return &UnknownFilterError{Filter: filter, Scope: scope, Role: role}
}

// InvalidRoleNameError indicates a role name that does not satisfy the role
// name pattern.
type InvalidRoleNameError struct {
	Name string
}

func (e *InvalidRoleNameError) Error() string {
	return fmt.Sprintf("invalid role name %q: role names must be 3-255 characters,"+
		" contain only lowercase ascii letters, numbers, and URL unreserved special characters '-.~_',"+
		" start with a letter, and end with a letter or number", e.Name)
}

// NewInvalidRoleNameError creates an invalid-role-name error.
func NewInvalidRoleNameError(name string) *InvalidRoleNameError {
	return &InvalidRoleNameError{Name: name}
}

// ImmutableRoleError indicates an attempt to override an attribute of the
// built-in admin role.
type ImmutableRoleError struct {
	Role string
	Attr string
}

func (e *ImmutableRoleError) Error() string {
	return fmt.Sprintf("cannot override %s role attribute %s.%s", e.Role, e.Role, e.Attr)
}

// NewImmutableRoleError creates an immutable-role error.
func NewImmutableRoleError(role, attr string) *ImmutableRoleError {
	return &ImmutableRoleError{Role: role, Attr: attr}
}

// DefaultRoleError indicates an attempt to delete one of the default roles.
type DefaultRoleError struct {
	Role string
}

func (e *DefaultRoleError) Error() string {
	return fmt.Sprintf("default role %q cannot be removed", e.Role)
}

// RoleNotFoundError indicates a reference to a role that is not in the store.
type RoleNotFoundError struct {
	Role string
}

func (e *RoleNotFoundError) Error() string {
	return fmt.Sprintf("role %q does not exist", e.Role)
}

// EscalationError indicates a token role grant that was denied because the
// candidate role carries scopes the token's owner does not hold.
type EscalationError struct {
	Role       string
	Owner      string
	Disallowed []string
}

func (e *EscalationError) Error() string {
	return fmt.Sprintf("requested role %q grants scopes not held by owner %q: [%s]",
		e.Role, e.Owner, strings.Join(e.Disallowed, ", "))
}

// NewEscalationError creates an escalation error enumerating the scopes the
// owner does not hold.
func NewEscalationError(role, owner string, disallowed []string) *EscalationError {
	return &EscalationError{Role: role, Owner: owner, Disallowed: disallowed}
}

// RegistryError indicates an invalid scope registry: a subscope referencing
// an undefined scope, or a cycle in the subscope hierarchy.
type RegistryError struct {
	Scope  string
	Reason string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("invalid scope registry at %q: %s", e.Scope, e.Reason)
}
