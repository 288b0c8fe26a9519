package hades

import (
	"context"
	"sync"

	"github.com/elysium-hub/elysium/pkg/domain"
)

// MemoryStore is an in-memory Store, used in tests and single-process
// deployments where the relational store collaborator is not wired in.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*domain.User
	services map[string]*domain.Service
	groups   map[string]*domain.Group
	roles    map[string]*domain.Role
	tokens   map[string]*domain.APIToken
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*domain.User),
		services: make(map[string]*domain.Service),
		groups:   make(map[string]*domain.Group),
		roles:    make(map[string]*domain.Role),
		tokens:   make(map[string]*domain.APIToken),
	}
}

func (s *MemoryStore) FindUser(ctx context.Context, name string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[name]
	if !ok {
		return nil, ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) SaveUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Name] = user
	return nil
}

func (s *MemoryStore) FindService(ctx context.Context, name string) (*domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	service, ok := s.services[name]
	if !ok {
		return nil, ErrNotFound
	}
	return service, nil
}

func (s *MemoryStore) SaveService(ctx context.Context, service *domain.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[service.Name] = service
	return nil
}

func (s *MemoryStore) FindGroup(ctx context.Context, name string) (*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	group, ok := s.groups[name]
	if !ok {
		return nil, ErrNotFound
	}
	return group, nil
}

func (s *MemoryStore) SaveGroup(ctx context.Context, group *domain.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[group.Name] = group
	return nil
}

func (s *MemoryStore) FindRole(ctx context.Context, name string) (*domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[name]
	if !ok {
		return nil, ErrNotFound
	}
	return role, nil
}

func (s *MemoryStore) SaveRole(ctx context.Context, role *domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[role.Name] = role
	return nil
}

func (s *MemoryStore) DeleteRole(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[name]; !ok {
		return ErrNotFound
	}
	delete(s.roles, name)
	return nil
}

func (s *MemoryStore) FindToken(ctx context.Context, id string) (*domain.APIToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[id]
	if !ok {
		return nil, ErrNotFound
	}
	return token, nil
}

func (s *MemoryStore) SaveToken(ctx context.Context, token *domain.APIToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.ID] = token
	return nil
}

func (s *MemoryStore) GroupsForUser(ctx context.Context, name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[name]
	if !ok {
		return nil, nil
	}
	return user.GroupNames(), nil
}
