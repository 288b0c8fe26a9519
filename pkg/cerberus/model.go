package cerberus

import (
	"context"
	"encoding/json"
)

// Model is the identity the hub reports for a token. Kind is "user" or
// "service"; Scopes are the scopes the token holds for this service.
type Model struct {
	Kind      string   `json:"kind"`
	Name      string   `json:"name"`
	Admin     bool     `json:"admin,omitempty"`
	Groups    []string `json:"groups,omitempty"`
	Scopes    []string `json:"scopes,omitempty"`
	SessionID string   `json:"session_id,omitempty"`

	// token is the credential the model was resolved from. It is kept off
	// the wire so cached and logged models never leak it.
	token string
	// tokenAuthenticated is true when the credential arrived in a header
	// or url parameter rather than a cookie.
	tokenAuthenticated bool
}

// Token returns the credential this model was resolved from.
func (m *Model) Token() string {
	return m.token
}

// TokenAuthenticated reports whether the credential arrived out of band,
// in a header or url parameter. Such requests carry no browser ambient
// authority and are exempt from cross-origin checks.
func (m *Model) TokenAuthenticated() bool {
	return m.tokenAuthenticated
}

// HasGroup reports whether the model belongs to the named group.
func (m *Model) HasGroup(name string) bool {
	for _, g := range m.Groups {
		if g == name {
			return true
		}
	}
	return false
}

func unmarshalModel(data []byte) (*Model, error) {
	// A cached miss is stored as JSON null.
	var m *Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

type modelContextKey struct{}

// ContextWithModel stores a resolved model on the context so handlers
// behind the middleware can retrieve it without a second hub round trip.
func ContextWithModel(ctx context.Context, m *Model) context.Context {
	return context.WithValue(ctx, modelContextKey{}, m)
}

// ModelFromContext returns the model stored by the middleware, or nil.
func ModelFromContext(ctx context.Context) *Model {
	m, _ := ctx.Value(modelContextKey{}).(*Model)
	return m
}
