package themis

import (
	"context"
	"strings"
)

// GroupLister resolves a user's group membership. Supplying one lets the
// intersection account for group grants covering individual users and
// servers; without it those cross-kind combinations resolve to nothing,
// which can only err on the side of fewer permissions.
type GroupLister interface {
	GroupsForUser(ctx context.Context, name string) ([]string, error)
}

// IntersectExpanded intersects two expanded scope sets by comparing the
// permissions they grant. An unfiltered side covers every filter of the
// other side. Filtered sides intersect per filter kind, then the
// server->user and (with a GroupLister) user/server->group hierarchies are
// resolved in both directions.
func IntersectExpanded(ctx context.Context, a, b []string, groups GroupLister) ([]string, error) {
	parsedA := ParseScopes(a)
	parsedB := ParseScopes(b)

	// memoized group lookups
	groupCache := make(map[string]StringSet)
	groupsFor := func(username string) (StringSet, error) {
		if cached, ok := groupCache[username]; ok {
			return cached, nil
		}
		names, err := groups.GroupsForUser(ctx, username)
		if err != nil {
			return nil, err
		}
		set := NewStringSet(names...)
		groupCache[username] = set
		return set, nil
	}

	common := make(ParsedScopes)
	for base, filtersA := range parsedA {
		filtersB, ok := parsedB[base]
		if !ok {
			continue
		}
		switch {
		case filtersA.All:
			common[base] = filtersB
		case filtersB.All:
			common[base] = filtersA
		default:
			merged := &Filters{Kinds: make(map[string]StringSet)}
			for kind, namesA := range filtersA.Kinds {
				if namesB, ok := filtersB.Kinds[kind]; ok {
					merged.Kinds[kind] = namesA.Intersect(namesB)
				}
			}

			commonServers := merged.Kinds["server"]
			if commonServers == nil {
				commonServers = make(StringSet)
			}
			commonUsers := merged.Kinds["user"]
			if commonUsers == nil {
				commonUsers = make(StringSet)
			}

			for _, pair := range [][2]*Filters{{filtersA, filtersB}, {filtersB, filtersA}} {
				one, other := pair[0], pair[1]

				if servers, ok := one.Kinds["server"]; ok {
					remaining := servers.Difference(commonServers)

					// a server u/s is covered by a user grant for u
					if users, ok := other.Kinds["user"]; ok {
						for server := range remaining {
							username, _, _ := strings.Cut(server, "/")
							if users.Contains(username) {
								commonServers.Add(server)
							}
						}
					}

					// and by a group grant for any of u's groups
					if groupNames, ok := other.Kinds["group"]; ok && groups != nil {
						for server := range remaining.Difference(commonServers) {
							username, _, _ := strings.Cut(server, "/")
							userGroups, err := groupsFor(username)
							if err != nil {
								return nil, err
							}
							if len(userGroups.Intersect(groupNames)) > 0 {
								commonServers.Add(server)
							}
						}
					}
				}

				// a user is covered by a group grant for one of their groups
				if users, ok := one.Kinds["user"]; ok && groups != nil {
					if groupNames, ok := other.Kinds["group"]; ok {
						for username := range users.Difference(commonUsers) {
							userGroups, err := groupsFor(username)
							if err != nil {
								return nil, err
							}
							if len(userGroups.Intersect(groupNames)) > 0 {
								commonUsers.Add(username)
							}
						}
					}
				}
			}

			if len(commonServers) > 0 {
				merged.Kinds["server"] = commonServers
			}
			if len(commonUsers) > 0 {
				merged.Kinds["user"] = commonUsers
			}
			for kind, names := range merged.Kinds {
				if len(names) == 0 {
					delete(merged.Kinds, kind)
				}
			}
			common[base] = merged
		}
	}
	return UnparseScopes(common), nil
}

// CheckScopes returns the subset of required scopes covered by the held
// scopes. A non-empty result means authorized; the caller may log exactly
// which scopes matched. A held scope without a filter covers any filter on
// the required side; a filtered held scope never covers a broader or
// cross-kind requirement (group membership is deliberately not consulted
// here, matching the hub-auth client's view of the world).
func CheckScopes(required, held []string) []string {
	intersection, _ := IntersectExpanded(context.Background(), required, held, nil)
	// re-intersect with required in case the intersection applies stricter
	// filters than required declares, e.g. required {read:users} against
	// held {read:users!user=alice} intersects to {read:users!user=alice},
	// which does not satisfy the unfiltered requirement.
	requiredSet := NewStringSet(required...)
	var matched []string
	for _, scope := range intersection {
		if requiredSet.Contains(scope) {
			matched = append(matched, scope)
		}
	}
	return matched
}
