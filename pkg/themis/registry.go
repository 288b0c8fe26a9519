package themis

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// Custom scopes live in their own namespace so deployments cannot collide
// with built-in names. The part after `custom:` must start with a letter or
// number, and scopes may not end with a hyphen or colon.
var customScopePattern = regexp.MustCompile(`^custom:[a-z0-9][a-z0-9_\-\*:]+[a-z0-9_\*]$`)

// Registry is the immutable scope-definition registry: scope name to
// description and subscope hierarchy. It is loaded once at startup; the
// hierarchy is validated to be complete and acyclic at construction, so
// expansion never has to guard against cycles.
type Registry struct {
	defs map[string]ScopeDefinition
}

// NewRegistry builds a registry from scope definitions. Every referenced
// subscope must itself be defined, and the subscope graph must be acyclic.
func NewRegistry(defs map[string]ScopeDefinition) (*Registry, error) {
	owned := make(map[string]ScopeDefinition, len(defs))
	for name, def := range defs {
		owned[name] = def
	}
	r := &Registry{defs: owned}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewDefaultRegistry builds a registry with the built-in scope definitions.
func NewDefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultScopeDefinitions())
	if err != nil {
		// the built-in definitions are validated by tests
		panic(err)
	}
	return r
}

func (r *Registry) validate() error {
	for name, def := range r.defs {
		for _, sub := range def.Subscopes {
			if _, ok := r.defs[sub]; !ok {
				return &RegistryError{Scope: name, Reason: fmt.Sprintf("subscope %q is not defined", sub)}
			}
		}
	}
	// three-color DFS for cycle detection
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[string]int, len(r.defs))
	var visit func(name string) error
	visit = func(name string) error {
		color[name] = grey
		for _, sub := range r.defs[name].Subscopes {
			switch color[sub] {
			case grey:
				return &RegistryError{Scope: name, Reason: fmt.Sprintf("subscope cycle through %q", sub)}
			case white:
				if err := visit(sub); err != nil {
					return err
				}
			}
		}
		color[name] = black
		return nil
	}
	for name := range r.defs {
		if color[name] == white {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// Has reports whether a scope name is defined.
func (r *Registry) Has(name string) bool {
	_, ok := r.defs[name]
	return ok
}

// Definition returns the definition for a scope name.
func (r *Registry) Definition(name string) (ScopeDefinition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Names returns all defined scope names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Expand returns the scope plus all transitive subscopes per the registry.
// The name must be defined; expansion of an unknown name returns only the
// name itself, since validation happens before scopes reach this point.
func (r *Registry) Expand(name string) []string {
	seen := make(map[string]struct{})
	var collect func(name string)
	collect = func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		for _, sub := range r.defs[name].Subscopes {
			collect(sub)
		}
	}
	collect(name)
	expanded := make([]string, 0, len(seen))
	for s := range seen {
		expanded = append(expanded, s)
	}
	sort.Strings(expanded)
	return expanded
}

// DefineCustomScopes extends the registry with deployment-specific scopes.
// Custom scopes must match the custom: naming pattern, must carry a
// description, may only reference custom subscopes, and may not redefine an
// existing scope with a different definition.
func (r *Registry) DefineCustomScopes(defs map[string]ScopeDefinition) error {
	for name, def := range defs {
		if existing, ok := r.defs[name]; ok {
			if !definitionsEqual(existing, def) {
				return &RegistryError{Scope: name, Reason: "cannot redefine an existing scope"}
			}
			continue
		}
		if !customScopePattern.MatchString(name) {
			return &RegistryError{Scope: name, Reason: "custom scopes must start with 'custom:'" +
				" and contain only lowercase ascii letters, numbers, hyphen, underscore, colon, and asterisk"}
		}
		if def.Description == "" {
			return &RegistryError{Scope: name, Reason: "missing description"}
		}
		for _, sub := range def.Subscopes {
			if _, isNew := defs[sub]; isNew {
				continue
			}
			if _, isBuiltin := r.defs[sub]; isBuiltin {
				return &RegistryError{Scope: name, Reason: fmt.Sprintf(
					"non-custom subscope %q is not allowed; custom scopes may only have custom subscopes", sub)}
			}
			return &RegistryError{Scope: name, Reason: fmt.Sprintf("subscope %q not found; all scopes must be defined", sub)}
		}
	}
	// Validate the combined hierarchy on a staging copy so a bad batch
	// leaves the registry untouched.
	staged := &Registry{defs: make(map[string]ScopeDefinition, len(r.defs)+len(defs))}
	for name, def := range r.defs {
		staged.defs[name] = def
	}
	for name, def := range defs {
		staged.defs[name] = def
	}
	if err := staged.validate(); err != nil {
		return err
	}
	r.defs = staged.defs
	return nil
}

// LoadDefinitions reads custom scope definitions from a YAML file, mapping
// scope name to {description, subscopes}.
func LoadDefinitions(path string) (map[string]ScopeDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var defs map[string]ScopeDefinition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse scope definitions %s: %w", path, err)
	}
	return defs, nil
}

func definitionsEqual(a, b ScopeDefinition) bool {
	if a.Description != b.Description || len(a.Subscopes) != len(b.Subscopes) {
		return false
	}
	for i := range a.Subscopes {
		if a.Subscopes[i] != b.Subscopes[i] {
			return false
		}
	}
	return true
}
