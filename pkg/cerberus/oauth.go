package cerberus

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/elysium-hub/elysium/pkg/hermes"
	"github.com/elysium-hub/elysium/pkg/lethe"
)

// StateCookieMaxAge bounds how long a login may take. A state cookie
// older than this is gone and the handshake starts over.
const StateCookieMaxAge = 10 * time.Minute

const asciiLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// OAuthConfig carries the settings for the browser login flow.
type OAuthConfig struct {
	// ClientID identifies this service to the hub, and doubles as the
	// token cookie name.
	ClientID string
	// RedirectURI is the callback the hub sends browsers back to.
	RedirectURI string
	// AuthorizeURL and TokenURL default to the hub's oauth2 endpoints
	// derived from the API URL.
	AuthorizeURL string
	TokenURL     string
	// SigningKey protects the cookies this client sets.
	SigningKey []byte
}

// oauthState is carried through the authorization redirect and mirrored
// in a signed cookie, binding the callback to the browser that started
// the flow.
type oauthState struct {
	UUID       string `json:"uuid"`
	NextURL    string `json:"next_url,omitempty"`
	CookieName string `json:"cookie_name,omitempty"`
}

// HubOAuth extends HubAuth with a cookie-based browser flow. Requests
// without a token fall back to the signed token cookie set after an
// OAuth handshake.
type HubOAuth struct {
	*HubAuth
	oauth OAuthConfig
	codec *CookieCodec
}

// NewHubOAuth creates an OAuth-capable hub auth client.
func NewHubOAuth(cfg Config, oauthCfg OAuthConfig, cache lethe.Cache, metrics hermes.Metrics, logger *slog.Logger) (*HubOAuth, error) {
	base, err := NewHubAuth(cfg, cache, metrics, logger)
	if err != nil {
		return nil, err
	}
	if oauthCfg.ClientID == "" {
		return nil, fmt.Errorf("oauth client id is required")
	}
	if oauthCfg.RedirectURI == "" {
		return nil, fmt.Errorf("oauth redirect URI is required")
	}
	if oauthCfg.AuthorizeURL == "" {
		oauthCfg.AuthorizeURL = base.cfg.APIURL + "/oauth2/authorize"
	}
	if oauthCfg.TokenURL == "" {
		oauthCfg.TokenURL = base.cfg.APIURL + "/oauth2/token"
	}
	codec, err := NewCookieCodec(oauthCfg.SigningKey)
	if err != nil {
		return nil, err
	}
	return &HubOAuth{
		HubAuth: base,
		oauth:   oauthCfg,
		codec:   codec,
	}, nil
}

// CookieName is where the access token lives after login.
func (h *HubOAuth) CookieName() string {
	return h.oauth.ClientID
}

// StateCookieName is the base name for in-flight handshake state.
func (h *HubOAuth) StateCookieName() string {
	return h.CookieName() + "-oauth-state"
}

func (h *HubOAuth) cookieOpts() CookieOptions {
	opts := h.cfg.CookieOptions
	if opts.Path == "" {
		opts.Path = h.cfg.BasePath
	}
	return opts
}

// User resolves the request's identity, trying the token channels first
// and the signed cookie second. A stale cookie is cleared on the way
// out. A valid url token is promoted to a cookie so the link works on
// the next click too.
func (h *HubOAuth) User(w http.ResponseWriter, r *http.Request) (*Model, error) {
	urlToken := r.URL.Query().Get("token")
	if token := h.Token(r); token != "" {
		model, err := h.UserForToken(r.Context(), token, h.SessionID(r))
		if err != nil {
			return nil, err
		}
		if model != nil {
			model.tokenAuthenticated = true
			if token == urlToken && w != nil {
				h.SetTokenCookie(w, r, token)
			}
			return model, nil
		}
		// The hub did not recognize the token. The signed cookie may
		// still carry a live session.
	}

	return h.userFromCookie(w, r)
}

func (h *HubOAuth) userFromCookie(w http.ResponseWriter, r *http.Request) (*Model, error) {
	cookie, err := r.Cookie(h.CookieName())
	if err != nil {
		return nil, nil
	}
	payload, err := h.codec.Decode(cookie.Value)
	if err != nil {
		h.logger.Warn("discarding invalid token cookie", "error", err)
		if w != nil {
			h.ClearTokenCookie(w)
		}
		return nil, nil
	}
	token := string(payload)
	model, err := h.UserForToken(r.Context(), token, h.SessionID(r))
	if err != nil {
		return nil, err
	}
	if model == nil {
		h.logger.Info("clearing cookie for expired token")
		if w != nil {
			h.ClearTokenCookie(w)
		}
		return nil, nil
	}
	return model, nil
}

// LoginURL starts the handshake: persist state in a signed cookie and
// send the browser to the hub's authorization page.
func (h *HubOAuth) LoginURL(w http.ResponseWriter, r *http.Request) string {
	state := h.SetStateCookie(w, r, r.URL.RequestURI())
	q := url.Values{
		"client_id":     {h.oauth.ClientID},
		"redirect_uri":  {h.oauth.RedirectURI},
		"response_type": {"code"},
		"state":         {state},
	}
	return h.oauth.AuthorizeURL + "?" + q.Encode()
}

// SetStateCookie generates handshake state, stores it in a signed
// cookie, and returns the encoded state for the authorization URL.
// Concurrent logins from one browser get distinct cookie names so they
// don't clobber each other; the name travels inside the state.
func (h *HubOAuth) SetStateCookie(w http.ResponseWriter, r *http.Request, nextURL string) string {
	cookieName := h.StateCookieName()
	if _, err := r.Cookie(cookieName); err == nil {
		suffix := make([]byte, 8)
		for i := range suffix {
			suffix[i] = asciiLetters[rand.Intn(len(asciiLetters))]
		}
		cookieName += "-" + string(suffix)
	}

	state := oauthState{
		UUID:    uuid.NewString(),
		NextURL: nextURL,
	}
	if cookieName != h.StateCookieName() {
		state.CookieName = cookieName
	}
	encoded := encodeState(state)

	signed, err := h.codec.Encode([]byte(encoded))
	if err != nil {
		h.logger.Error("failed to sign state cookie", "error", err)
		return encoded
	}
	setCookie(w, r, h.cookieOpts(), cookieName, signed, StateCookieMaxAge)
	return encoded
}

// StateCookieNameFor returns the cookie holding the state a callback
// carries. Undecodable state falls back to the base name.
func (h *HubOAuth) StateCookieNameFor(state string) string {
	decoded, err := decodeState(state)
	if err != nil || decoded.CookieName == "" {
		return h.StateCookieName()
	}
	return decoded.CookieName
}

// NextURL returns where the browser was headed before login.
func (h *HubOAuth) NextURL(state string) string {
	decoded, err := decodeState(state)
	if err != nil {
		return ""
	}
	return decoded.NextURL
}

func encodeState(state oauthState) string {
	data, _ := json.Marshal(state)
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeState(encoded string) (*oauthState, error) {
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return nil, NewOAuthStateError("state is not valid base64")
	}
	var state oauthState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, NewOAuthStateError("state is not valid JSON")
	}
	return &state, nil
}

// TokenForCode exchanges an authorization code for an access token.
func (h *HubOAuth) TokenForCode(ctx context.Context, code string) (string, error) {
	form := url.Values{
		"client_id":     {h.oauth.ClientID},
		"client_secret": {h.cfg.APIToken},
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {h.oauth.RedirectURI},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.oauth.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := h.httpClient.Do(req)
	h.metrics.ObserveHistogram(hermes.MetricHubRequestSecs, time.Since(start).Seconds(),
		hermes.Label{Key: "method", Value: http.MethodPost})
	if err != nil {
		hostname, _ := os.Hostname()
		return "", NewConnectionError(h.cfg.APIURL, hostname, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", NewUpstreamError(resp.StatusCode, apiErrorDetail(body))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", NewUpstreamError(resp.StatusCode, "token response carried no access_token")
	}
	return payload.AccessToken, nil
}

// SetTokenCookie stores the access token in a signed cookie,
// session-scoped unless the cookie options set a max age.
func (h *HubOAuth) SetTokenCookie(w http.ResponseWriter, r *http.Request, token string) {
	signed, err := h.codec.Encode([]byte(token))
	if err != nil {
		h.logger.Error("failed to sign token cookie", "error", err)
		return
	}
	opts := h.cookieOpts()
	setCookie(w, r, opts, h.CookieName(), signed, opts.MaxAge)
}

// ClearTokenCookie logs the browser out of this service.
func (h *HubOAuth) ClearTokenCookie(w http.ResponseWriter) {
	clearCookie(w, h.cookieOpts(), h.CookieName())
}

// clearStateCookie drops a consumed handshake cookie.
func (h *HubOAuth) clearStateCookie(w http.ResponseWriter, name string) {
	clearCookie(w, h.cookieOpts(), name)
}
