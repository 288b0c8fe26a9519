package cerberus

import (
	"log/slog"
	"net/http"

	"github.com/elysium-hub/elysium/pkg/themis"
)

// Middleware wraps HTTP handlers with hub authentication and
// authorization. Scopes is the modern access model; the allow-lists and
// AllowAdmin are a legacy fallback consulted only when Scopes is empty.
type Middleware struct {
	Client Client
	Logger *slog.Logger

	// Scopes required to reach the wrapped handler. One satisfied scope
	// is sufficient.
	Scopes []string

	// Legacy access lists.
	AllowAdmin      bool
	AllowedUsers    map[string]bool
	AllowedServices map[string]bool
	AllowedGroups   map[string]bool

	// RedirectToLogin sends unauthenticated browsers to the login flow
	// on safe methods instead of answering 401. Only useful with an
	// OAuth-capable client.
	RedirectToLogin bool

	// Limiter, when set, throttles login redirects per remote address.
	Limiter *LoginLimiter
}

// NewMiddleware creates middleware with the client's default access
// scopes. OAuth clients get login redirects for browsers.
func NewMiddleware(client Client, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Middleware{
		Client: client,
		Logger: logger,
	}
	if h, ok := client.(interface{ AccessScopes() []string }); ok {
		m.Scopes = h.AccessScopes()
	}
	if _, ok := client.(*HubOAuth); ok {
		m.RedirectToLogin = true
	}
	return m
}

// Wrap enforces authentication and authorization around next. The
// resolved model is stored on the request context.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		model, err := m.Client.User(w, r)
		if err != nil {
			m.Logger.Error("identity resolution failed", "error", err)
			http.Error(w, "Failed to check authorization", http.StatusInternalServerError)
			return
		}

		if model == nil {
			m.unauthenticated(w, r)
			return
		}

		// Cookie credentials carry browser ambient authority, so writes
		// must prove same-origin intent. Out-of-band tokens don't.
		if !model.TokenAuthenticated() && !safeMethod(r.Method) {
			if !CheckReferer(r, m.Client.HostHeader(), m.Client.BasePath(), m.Logger) {
				http.Error(w, "Blocking cross-origin request", http.StatusForbidden)
				return
			}
			if !CheckPostContentType(r) {
				http.Error(w, "Content-Type must be application/json", http.StatusForbidden)
				return
			}
		}

		if err := m.CheckModel(model); err != nil {
			m.Logger.Warn("access denied", "kind", model.Kind, "name", model.Name, "error", err)
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}

		m.Logger.Debug("allowing request", "kind", model.Kind, "name", model.Name)
		next.ServeHTTP(w, r.WithContext(ContextWithModel(r.Context(), model)))
	})
}

// WrapFunc is Wrap for plain handler functions.
func (m *Middleware) WrapFunc(next http.HandlerFunc) http.Handler {
	return m.Wrap(next)
}

func (m *Middleware) unauthenticated(w http.ResponseWriter, r *http.Request) {
	if m.RedirectToLogin && safeMethod(r.Method) {
		if m.Limiter != nil && !m.Limiter.Allow(r) {
			http.Error(w, "Too many login attempts", http.StatusTooManyRequests)
			return
		}
		if loginURL := m.Client.LoginURL(w, r); loginURL != "" {
			http.Redirect(w, r, loginURL, http.StatusFound)
			return
		}
	}
	http.Error(w, "Authentication required", http.StatusUnauthorized)
}

// CheckModel decides whether an authenticated identity may pass. The
// distinction in the errors matters: an identity that authenticated but
// lacks scopes should not be sent back through login.
func (m *Middleware) CheckModel(model *Model) error {
	if len(m.Scopes) > 0 {
		if satisfied := themis.CheckScopes(m.Scopes, model.Scopes); len(satisfied) > 0 {
			return nil
		}
		return NewScopeDeniedError(model.Name, m.Scopes)
	}

	if !m.AllowAdmin && len(m.AllowedUsers) == 0 && len(m.AllowedServices) == 0 && len(m.AllowedGroups) == 0 {
		// No policy configured: any authenticated identity passes.
		return nil
	}

	if m.AllowAdmin && model.Admin {
		return nil
	}
	switch model.Kind {
	case "service":
		if m.AllowedServices[model.Name] {
			return nil
		}
	case "user":
		if m.AllowedUsers[model.Name] {
			return nil
		}
		for _, g := range model.Groups {
			if m.AllowedGroups[g] {
				return nil
			}
		}
	}
	return NewScopeDeniedError(model.Name, nil)
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
