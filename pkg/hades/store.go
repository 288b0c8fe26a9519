package hades

import (
	"context"
	"errors"

	"github.com/elysium-hub/elysium/pkg/domain"
)

// ErrNotFound is returned when a named record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the persistence collaborator holding users, services, groups,
// roles and API tokens. Each call is assumed atomic; the role manager
// composes them into validate-then-commit sequences so that a failed
// validation never leaves a partial mutation behind.
type Store interface {
	FindUser(ctx context.Context, name string) (*domain.User, error)
	SaveUser(ctx context.Context, user *domain.User) error

	FindService(ctx context.Context, name string) (*domain.Service, error)
	SaveService(ctx context.Context, service *domain.Service) error

	FindGroup(ctx context.Context, name string) (*domain.Group, error)
	SaveGroup(ctx context.Context, group *domain.Group) error

	FindRole(ctx context.Context, name string) (*domain.Role, error)
	SaveRole(ctx context.Context, role *domain.Role) error
	DeleteRole(ctx context.Context, name string) error

	FindToken(ctx context.Context, id string) (*domain.APIToken, error)
	SaveToken(ctx context.Context, token *domain.APIToken) error

	// GroupsForUser returns the group names a user belongs to; it satisfies
	// themis.GroupLister for group-aware scope intersection. Unknown users
	// resolve to no groups.
	GroupsForUser(ctx context.Context, name string) ([]string, error)
}
