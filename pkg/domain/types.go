package domain

// Kinds of role bearers.

type Kind string

const (
	KindUser    Kind = "user"
	KindService Kind = "service"
	KindGroup   Kind = "group"
	KindToken   Kind = "token"
)

// Role is a named, reusable bundle of scope strings. Roles are attached to
// users, services, groups and API tokens; the scope engine expands them into
// resolved scope sets.
type Role struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Scopes      []string `json:"scopes" yaml:"scopes"`
}

// Entity is the capability shared by every role bearer: a kind, a name, and
// a set of attached roles. Dispatch on Kind is explicit; there is no
// inheritance between entity types.
type Entity interface {
	Kind() Kind
	EntityName() string
	EntityRoles() []*Role
}

// User is a human account. Users inherit roles from the groups they belong
// to during scope expansion.
type User struct {
	Name   string   `json:"name"`
	Admin  bool     `json:"admin"`
	Roles  []*Role  `json:"-"`
	Groups []*Group `json:"-"`
}

func (u *User) Kind() Kind           { return KindUser }
func (u *User) EntityName() string   { return u.Name }
func (u *User) EntityRoles() []*Role { return u.Roles }

// GroupNames returns the names of the groups the user belongs to.
func (u *User) GroupNames() []string {
	names := make([]string, 0, len(u.Groups))
	for _, g := range u.Groups {
		names = append(names, g.Name)
	}
	return names
}

// Service is a non-human account, e.g. a satellite application registered
// with the hub.
type Service struct {
	Name  string  `json:"name"`
	Admin bool    `json:"admin"`
	Roles []*Role `json:"-"`
}

func (s *Service) Kind() Kind           { return KindService }
func (s *Service) EntityName() string   { return s.Name }
func (s *Service) EntityRoles() []*Role { return s.Roles }

// Group bundles users. A group's roles contribute to its members' resolved
// scopes, but a group itself never receives default roles.
type Group struct {
	Name  string  `json:"name"`
	Roles []*Role `json:"-"`
}

func (g *Group) Kind() Kind           { return KindGroup }
func (g *Group) EntityName() string   { return g.Name }
func (g *Group) EntityRoles() []*Role { return g.Roles }

// APIToken is a delegated credential acting on behalf of exactly one owner,
// either a user or a service (mutually exclusive). The owner's resolved
// scopes bound what the token may be granted.
type APIToken struct {
	ID      string   `json:"id"`
	Roles   []*Role  `json:"-"`
	User    *User    `json:"-"`
	Service *Service `json:"-"`
}

func (t *APIToken) Kind() Kind           { return KindToken }
func (t *APIToken) EntityName() string   { return t.ID }
func (t *APIToken) EntityRoles() []*Role { return t.Roles }

// Owner returns the user or service the token acts on behalf of, or nil for
// an orphaned token.
func (t *APIToken) Owner() Entity {
	if t.User != nil {
		return t.User
	}
	if t.Service != nil {
		return t.Service
	}
	return nil
}

// HasRole reports whether a role with the given name is attached to the
// entity directly.
func HasRole(entity Entity, name string) bool {
	for _, role := range entity.EntityRoles() {
		if role.Name == name {
			return true
		}
	}
	return false
}
