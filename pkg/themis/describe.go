package themis

import "strings"

// ScopeDescription is a human-readable rendering of one raw scope.
type ScopeDescription struct {
	Scope       string `json:"scope"`
	Description string `json:"description"`
	Filter      string `json:"filter,omitempty"`
}

// DescribeRawScopes renders raw scope strings for display, e.g. on an OAuth
// consent page or in CLI output. username, when set, collapses filters on
// the requesting user to "only you".
func (e *Engine) DescribeRawScopes(rawScopes []string, username string) []ScopeDescription {
	var descriptions []ScopeDescription
	for _, raw := range rawScopes {
		scope, filter, hasFilter := strings.Cut(raw, "!")
		def, ok := e.registry.Definition(scope)
		if !ok {
			continue
		}
		var filterText string
		switch {
		case !hasFilter:
		case filter == "user":
			filterText = "only you"
		default:
			kind, name, _ := strings.Cut(filter, "=")
			if kind == "user" && name == username {
				filterText = "only you"
			} else {
				kindText := kind
				if kind == "group" {
					kindText = "users in group"
				}
				filterText = kindText + " " + name
			}
		}
		descriptions = append(descriptions, ScopeDescription{
			Scope:       scope,
			Description: def.Description,
			Filter:      filterText,
		})
	}
	return descriptions
}
