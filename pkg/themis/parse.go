package themis

import (
	"sort"
	"strings"
)

// StringSet is a set of names used in scope filters.
type StringSet map[string]struct{}

// NewStringSet builds a set from names.
func NewStringSet(names ...string) StringSet {
	s := make(StringSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Contains reports set membership.
func (s StringSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Add inserts a name.
func (s StringSet) Add(name string) { s[name] = struct{}{} }

// Intersect returns the elements present in both sets.
func (s StringSet) Intersect(other StringSet) StringSet {
	out := make(StringSet)
	for n := range s {
		if other.Contains(n) {
			out.Add(n)
		}
	}
	return out
}

// Difference returns the elements of s not present in other.
func (s StringSet) Difference(other StringSet) StringSet {
	out := make(StringSet)
	for n := range s {
		if !other.Contains(n) {
			out.Add(n)
		}
	}
	return out
}

// Sorted returns the set's elements in sorted order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Filters records which filters restrict one base scope. All set means the
// scope is held unfiltered; otherwise Kinds maps filter kind (user, service,
// group, server) to the allowed names.
type Filters struct {
	All   bool
	Kinds map[string]StringSet
}

// ParsedScopes is the JSON-like model of an expanded scope set: base scope
// name to its filters. For instance
// ["users", "read:users!user=alice", "servers!server=alice/work"] parses to
//
//	users:      {All}
//	read:users: {user: {alice}}
//	servers:    {server: {alice/work}}
type ParsedScopes map[string]*Filters

// ParseScopes parses an expanded scope set into the filter model. An
// unfiltered scope subsumes any filtered occurrences of the same base name.
func ParseScopes(scopes []string) ParsedScopes {
	parsed := make(ParsedScopes)
	for _, scope := range scopes {
		base, filter, hasFilter := strings.Cut(scope, "!")
		if !hasFilter {
			parsed[base] = &Filters{All: true}
			continue
		}
		f, ok := parsed[base]
		if !ok {
			f = &Filters{Kinds: make(map[string]StringSet)}
			parsed[base] = f
		}
		if f.All {
			continue
		}
		kind, value, _ := strings.Cut(filter, "=")
		if f.Kinds[kind] == nil {
			f.Kinds[kind] = make(StringSet)
		}
		f.Kinds[kind].Add(value)
	}
	return parsed
}

// UnparseScopes turns a parsed scope model back into an expanded scope set.
func UnparseScopes(parsed ParsedScopes) []string {
	var scopes []string
	for base, f := range parsed {
		if f.All {
			scopes = append(scopes, base)
			continue
		}
		for kind, names := range f.Kinds {
			for name := range names {
				scopes = append(scopes, base+"!"+kind+"="+name)
			}
		}
	}
	sort.Strings(scopes)
	return scopes
}
