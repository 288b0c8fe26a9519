package themis

// ScopeDefinition describes one permission in the scope registry. Subscopes
// are narrower permissions implied by holding this one.
type ScopeDefinition struct {
	Description string   `yaml:"description" json:"description"`
	Subscopes   []string `yaml:"subscopes,omitempty" json:"subscopes,omitempty"`
}

// DefaultScopeDefinitions returns the built-in scope registry of the hub.
// The registry is data-driven: deployments may extend it with custom scopes
// via Registry.DefineCustomScopes, but the built-in hierarchy below is fixed.
func DefaultScopeDefinitions() map[string]ScopeDefinition {
	return map[string]ScopeDefinition{
		"self": {
			Description: "Your own resources",
		},
		"inherit": {
			Description: "Anything you have access to",
		},
		"read:inherit": {
			Description: "Read-only access to anything you have access to",
		},
		"admin:users": {
			Description: "Read, write, create and delete users and their authentication state, not including their servers or tokens.",
			Subscopes:   []string{"admin:auth_state", "users", "read:roles:users", "delete:users"},
		},
		"admin:auth_state": {
			Description: "Read a user's authentication state.",
		},
		"users": {
			Description: "Read and write permissions to user models (excluding servers, tokens and authentication state).",
			Subscopes:   []string{"read:users", "list:users", "users:activity"},
		},
		"delete:users": {
			Description: "Delete users.",
		},
		"list:users": {
			Description: "List users, including at least their names.",
			Subscopes:   []string{"read:users:name"},
		},
		"read:users": {
			Description: "Read user models (excluding servers, tokens and authentication state).",
			Subscopes:   []string{"read:users:name", "read:users:groups", "read:users:activity"},
		},
		"read:users:name": {
			Description: "Read names of users.",
		},
		"read:users:groups": {
			Description: "Read users' group membership.",
		},
		"read:users:activity": {
			Description: "Read time of last user activity.",
		},
		"read:roles": {
			Description: "Read role assignments.",
			Subscopes:   []string{"read:roles:users", "read:roles:services", "read:roles:groups"},
		},
		"read:roles:users": {
			Description: "Read user role assignments.",
		},
		"read:roles:services": {
			Description: "Read service role assignments.",
		},
		"read:roles:groups": {
			Description: "Read group role assignments.",
		},
		"users:activity": {
			Description: "Update time of last user activity.",
			Subscopes:   []string{"read:users:activity"},
		},
		"admin:servers": {
			Description: "Read, start, stop, create and delete user servers and their state.",
			Subscopes:   []string{"admin:server_state", "servers"},
		},
		"admin:server_state": {
			Description: "Read and write users' server state.",
		},
		"servers": {
			Description: "Start and stop user servers.",
			Subscopes:   []string{"read:servers", "delete:servers"},
		},
		"read:servers": {
			Description: "Read users' names and their server models (excluding the server state).",
			Subscopes:   []string{"read:users:name"},
		},
		"delete:servers": {
			Description: "Stop and delete users' servers.",
		},
		"tokens": {
			Description: "Read, write, create and delete user tokens.",
			Subscopes:   []string{"read:tokens"},
		},
		"read:tokens": {
			Description: "Read user tokens.",
		},
		"admin:groups": {
			Description: "Read and write group information, create and delete groups.",
			Subscopes:   []string{"groups", "read:roles:groups", "delete:groups"},
		},
		"groups": {
			Description: "Read and write group information, including adding/removing users to/from groups.",
			Subscopes:   []string{"read:groups", "list:groups"},
		},
		"list:groups": {
			Description: "List groups, including at least their names.",
			Subscopes:   []string{"read:groups:name"},
		},
		"read:groups": {
			Description: "Read group models.",
			Subscopes:   []string{"read:groups:name"},
		},
		"read:groups:name": {
			Description: "Read group names.",
		},
		"delete:groups": {
			Description: "Delete groups.",
		},
		"list:services": {
			Description: "List services, including at least their names.",
			Subscopes:   []string{"read:services:name"},
		},
		"read:services": {
			Description: "Read service models.",
			Subscopes:   []string{"read:services:name"},
		},
		"read:services:name": {
			Description: "Read service names.",
		},
		"read:hub": {
			Description: "Read detailed information about the hub.",
		},
		"access:servers": {
			Description: "Access user servers via API or browser.",
		},
		"access:services": {
			Description: "Access services via API or browser.",
		},
		"proxy": {
			Description: "Read the proxy's routing table, sync the hub with the proxy and notify the hub about a new proxy.",
		},
		"shutdown": {
			Description: "Shutdown the hub.",
		},
		"read:metrics": {
			Description: "Read prometheus metrics.",
		},
	}
}
