package cerberus

import (
	"crypto/subtle"
	"net/http"
)

// CallbackHandler completes the OAuth handshake: verify the state
// against the signed cookie, trade the code for a token, set the token
// cookie, and send the browser on to where it was going.
type CallbackHandler struct {
	client *HubOAuth
}

// NewCallbackHandler creates the handler for the OAuth redirect URI.
func NewCallbackHandler(client *HubOAuth) *CallbackHandler {
	return &CallbackHandler{client: client}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.client.logger
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		msg := errParam
		if desc := query.Get("error_description"); desc != "" {
			msg += ": " + desc
		}
		logger.Warn("oauth handshake failed upstream", "error", msg)
		http.Error(w, "OAuth error: "+msg, http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "OAuth callback made without a token", http.StatusBadRequest)
		return
	}

	state := query.Get("state")
	if state == "" {
		logger.Error("oauth callback missing state argument")
		http.Error(w, "OAuth state is missing. Try logging in again.", http.StatusInternalServerError)
		return
	}

	cookieName := h.client.StateCookieNameFor(state)
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		logger.Error("oauth state cookie not found", "cookie", cookieName)
		http.Error(w, "OAuth state missing from cookies. Try logging in again.", http.StatusInternalServerError)
		return
	}
	h.client.clearStateCookie(w, cookieName)

	stored, err := h.client.codec.Decode(cookie.Value)
	if err != nil {
		logger.Error("oauth state cookie unverifiable", "error", err)
		http.Error(w, "OAuth state missing from cookies. Try logging in again.", http.StatusInternalServerError)
		return
	}
	if subtle.ConstantTimeCompare(stored, []byte(state)) != 1 {
		logger.Warn("oauth state mismatch, possible CSRF")
		http.Error(w, "OAuth state mismatch. Try logging in again.", http.StatusForbidden)
		return
	}

	token, err := h.client.TokenForCode(r.Context(), code)
	if err != nil {
		logger.Error("token exchange failed", "error", err)
		http.Error(w, "Failed to complete login. Try again.", http.StatusInternalServerError)
		return
	}

	model, err := h.client.UserForToken(r.Context(), token, h.client.SessionID(r))
	if err != nil || model == nil {
		logger.Error("could not identify freshly issued token", "error", err)
		http.Error(w, "Failed to complete login. Try again.", http.StatusInternalServerError)
		return
	}
	h.client.SetTokenCookie(w, r, token)
	logger.Info("logged in", "kind", model.Kind, "name", model.Name)

	next := h.client.NextURL(state)
	if next == "" {
		next = h.client.BasePath()
	}
	http.Redirect(w, r, next, http.StatusFound)
}
