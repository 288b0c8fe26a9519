// Package cerberus is the service-side client for hub authentication.
// It resolves tokens to identity models against the hub REST API, caches
// the answers, and wraps handlers with scope-based access control.
package cerberus

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/elysium-hub/elysium/pkg/hermes"
	"github.com/elysium-hub/elysium/pkg/lethe"
	"github.com/elysium-hub/elysium/pkg/themis"
)

// SessionCookieName identifies a browser session across tokens. The hub
// sets it at login; identity cache entries are scoped to it.
const SessionCookieName = "session-id"

// authorizationPattern matches "token <tok>" or "bearer <tok>", case
// insensitively.
var authorizationPattern = regexp.MustCompile(`(?i)^(?:token|bearer)\s+(.+)$`)

// Config carries the settings a hub-authenticated service needs.
type Config struct {
	// APIURL is the base of the hub REST API, e.g. http://hub:8081/hub/api.
	APIURL string
	// LoginURL is where unauthenticated browsers are sent.
	LoginURL string
	// APIToken authenticates this service to the hub.
	APIToken string
	// BasePath is the URL prefix this service is mounted at, with a
	// trailing slash.
	BasePath string
	// AccessScopes are the scopes required to access this service when a
	// handler does not name its own.
	AccessScopes []string
	// ForwardedHostHeader names the header carrying the host the browser
	// connected to, for cross-origin checks. Defaults to the Host header.
	ForwardedHostHeader string

	// TLS material for talking to an https hub.
	CertFile     string
	KeyFile      string
	ClientCAFile string

	// CookieOptions are applied to every cookie the client sets.
	CookieOptions CookieOptions
}

// Client resolves the identity behind a request. HubAuth accepts only
// header and url tokens; HubOAuth adds a cookie-based browser flow.
type Client interface {
	// User resolves the request's identity, or nil when it carries no
	// valid credential. The writer is used by implementations that
	// refresh cookies during resolution.
	User(w http.ResponseWriter, r *http.Request) (*Model, error)
	// LoginURL returns where to send an unauthenticated browser, or ""
	// when the client has no browser flow.
	LoginURL(w http.ResponseWriter, r *http.Request) string
	// BasePath returns the service's URL prefix.
	BasePath() string
	// HostHeader returns the header naming the externally visible host.
	HostHeader() string
}

// HubAuth resolves tokens against the hub API.
type HubAuth struct {
	cfg        Config
	httpClient *http.Client
	cache      lethe.Cache
	metrics    hermes.Metrics
	logger     *slog.Logger
	group      singleflight.Group
}

// NewHubAuth creates a hub auth client. A nil cache disables identity
// caching; a nil metrics sink discards telemetry.
func NewHubAuth(cfg Config, cache lethe.Cache, metrics hermes.Metrics, logger *slog.Logger) (*HubAuth, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("hub API URL is required")
	}
	cfg.APIURL = strings.TrimSuffix(cfg.APIURL, "/")
	if cfg.BasePath == "" {
		cfg.BasePath = "/"
	}
	if !strings.HasSuffix(cfg.BasePath, "/") {
		cfg.BasePath += "/"
	}
	if cfg.LoginURL == "" {
		cfg.LoginURL = hubPageURL(cfg.APIURL, "login")
	}
	if metrics == nil {
		metrics = hermes.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	tlsConfig, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig

	return &HubAuth{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// hubPageURL derives a hub page URL from the API URL, e.g.
// http://hub:8081/hub/api -> http://hub:8081/hub/login.
func hubPageURL(apiURL, page string) string {
	return strings.TrimSuffix(apiURL, "/api") + "/" + page
}

func buildTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.CertFile == "" && cfg.ClientCAFile == "" {
		return nil, nil
	}
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	if cfg.ClientCAFile != "" {
		pem, err := os.ReadFile(cfg.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("loading CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.ClientCAFile)
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}

// BasePath returns the service's URL prefix.
func (h *HubAuth) BasePath() string {
	return h.cfg.BasePath
}

// HostHeader returns the configured forwarded-host header, or "Host".
func (h *HubAuth) HostHeader() string {
	if h.cfg.ForwardedHostHeader != "" {
		return h.cfg.ForwardedHostHeader
	}
	return "Host"
}

// AccessScopes returns the scopes the service requires by default.
func (h *HubAuth) AccessScopes() []string {
	return h.cfg.AccessScopes
}

// LoginURL sends unauthenticated browsers to the hub login page, asking
// to come back to the current request afterwards.
func (h *HubAuth) LoginURL(w http.ResponseWriter, r *http.Request) string {
	return h.cfg.LoginURL + "?next=" + url.QueryEscape(r.URL.RequestURI())
}

// Token extracts the credential from a request. URL tokens win over
// Authorization headers so a link can override ambient credentials.
func (h *HubAuth) Token(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if m := authorizationPattern.FindStringSubmatch(auth); m != nil {
			return m[1]
		}
	}
	return ""
}

// SessionID returns the browser session id cookie, if any.
func (h *HubAuth) SessionID(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// User resolves the request's identity from its token. Requests with no
// token resolve to nil without error.
func (h *HubAuth) User(w http.ResponseWriter, r *http.Request) (*Model, error) {
	token := h.Token(r)
	if token == "" {
		return nil, nil
	}
	model, err := h.UserForToken(r.Context(), token, h.SessionID(r))
	if err != nil {
		return nil, err
	}
	if model != nil {
		model.tokenAuthenticated = true
	}
	return model, nil
}

// cacheKey scopes identity entries to the browser session, so that a
// revoked session invalidates independently of the token.
func cacheKey(token, sessionID string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("token:%s:%s", sessionID, hex.EncodeToString(sum[:]))
}

// UserForToken asks the hub who a token belongs to. Answers, including
// negative ones, are cached. Concurrent lookups for the same token are
// collapsed into a single hub call.
func (h *HubAuth) UserForToken(ctx context.Context, token, sessionID string) (*Model, error) {
	key := cacheKey(token, sessionID)
	if h.cache != nil {
		if data, ok, err := h.cache.Get(ctx, key); err != nil {
			h.logger.Warn("identity cache read failed", "error", err)
		} else if ok {
			h.metrics.IncCounter(hermes.MetricCacheHits, 1)
			model, err := unmarshalModel(data)
			return h.finishModel(model, token, err)
		}
	}
	h.metrics.IncCounter(hermes.MetricCacheMisses, 1)

	v, err, _ := h.group.Do(key, func() (interface{}, error) {
		body, err := h.apiRequest(ctx, http.MethodGet, h.cfg.APIURL+"/user", token, true)
		if err != nil {
			return nil, err
		}
		var model *Model
		if body != nil {
			model = &Model{}
			if err := json.Unmarshal(body, model); err != nil {
				return nil, fmt.Errorf("decoding identity response: %w", err)
			}
		}
		if h.cache != nil {
			data, err := json.Marshal(model)
			if err == nil {
				if err := h.cache.Set(ctx, key, data); err != nil {
					h.logger.Warn("identity cache write failed", "error", err)
				}
			}
		}
		return model, nil
	})
	if err != nil {
		h.metrics.IncCounter(hermes.MetricAuthRequests, 1, hermes.Label{Key: "outcome", Value: "error"})
		return nil, err
	}
	model, _ := v.(*Model)
	return h.finishModel(model, token, nil)
}

func (h *HubAuth) finishModel(model *Model, token string, err error) (*Model, error) {
	if err != nil {
		return nil, err
	}
	outcome := "denied"
	if model != nil {
		outcome = "ok"
		// Copy before handing out; collapsed lookups share the pointer.
		clone := *model
		clone.token = token
		model = &clone
	}
	h.metrics.IncCounter(hermes.MetricAuthRequests, 1, hermes.Label{Key: "outcome", Value: outcome})
	return model, nil
}

// apiRequest performs an authenticated call against the hub API and
// classifies failures. When allow403 is true a 403 answer is treated as
// "no identity" rather than an error, so invalid tokens resolve to nil.
func (h *HubAuth) apiRequest(ctx context.Context, method, rawURL, token string, allow403 bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if token == "" {
		token = h.cfg.APIToken
	}
	req.Header.Set("Authorization", "token "+token)

	start := time.Now()
	resp, err := h.httpClient.Do(req)
	h.metrics.ObserveHistogram(hermes.MetricHubRequestSecs, time.Since(start).Seconds(),
		hermes.Label{Key: "method", Value: method})
	if err != nil {
		hostname, _ := os.Hostname()
		return nil, NewConnectionError(h.cfg.APIURL, hostname, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading hub response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusForbidden && allow403:
		return nil, nil
	case resp.StatusCode == http.StatusForbidden:
		h.logger.Warn("hub rejected API token", "url", rawURL)
		return nil, NewAuthenticationError("hub API request rejected; the service may need a new token", nil)
	case resp.StatusCode >= 500:
		return nil, NewUpstreamError(resp.StatusCode, "hub failed to answer")
	case resp.StatusCode >= 400:
		return nil, NewUpstreamError(resp.StatusCode, apiErrorDetail(body))
	}
	return body, nil
}

// apiErrorDetail pulls a human message out of a hub error body.
func apiErrorDetail(body []byte) string {
	var payload struct {
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
		Message          string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.ErrorDescription != "" {
		return payload.ErrorDescription
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}

// CheckScopes returns the subset of required scopes the model satisfies.
// Access is sufficient when at least one required scope is satisfied.
func (h *HubAuth) CheckScopes(required []string, model *Model) []string {
	if model == nil {
		return nil
	}
	return themis.CheckScopes(required, model.Scopes)
}
