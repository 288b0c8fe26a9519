package cerberus

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4"
)

// CookieOptions are applied to every cookie the auth client sets.
type CookieOptions struct {
	// Path defaults to the service base path.
	Path string
	// SameSite defaults to Lax.
	SameSite http.SameSite
	// Secure is forced on when the browser connected over https.
	Secure bool
	// MaxAge bounds the access-token cookie's lifetime. Zero keeps it
	// session-scoped. State cookies keep their own fixed lifetime.
	MaxAge time.Duration
}

// CookieCodec signs cookie payloads so the browser cannot forge or
// alter them. Payloads are compact JWS with HMAC-SHA256.
type CookieCodec struct {
	key    []byte
	signer jose.Signer
}

// NewCookieCodec creates a codec from a shared secret.
func NewCookieCodec(key []byte) (*CookieCodec, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("cookie signing key is required")
	}
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: key}, nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie signer: %w", err)
	}
	return &CookieCodec{key: key, signer: signer}, nil
}

// Encode signs a payload for storage in a cookie value.
func (c *CookieCodec) Encode(payload []byte) (string, error) {
	jws, err := c.signer.Sign(payload)
	if err != nil {
		return "", err
	}
	return jws.CompactSerialize()
}

// Decode verifies a cookie value and returns its payload.
func (c *CookieCodec) Decode(value string) ([]byte, error) {
	jws, err := jose.ParseSigned(value, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("malformed cookie: %w", err)
	}
	payload, err := jws.Verify(c.key)
	if err != nil {
		return nil, fmt.Errorf("cookie signature invalid: %w", err)
	}
	return payload, nil
}

// setCookie writes a cookie honoring the configured options and the
// browser's protocol.
func setCookie(w http.ResponseWriter, r *http.Request, opts CookieOptions, name, value string, maxAge time.Duration) {
	sameSite := opts.SameSite
	if sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     opts.Path,
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		SameSite: sameSite,
		Secure:   opts.Secure || browserProtocol(r) == "https",
	}
	http.SetCookie(w, cookie)
}

// clearCookie expires a cookie immediately.
func clearCookie(w http.ResponseWriter, opts CookieOptions, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     opts.Path,
		MaxAge:   -1,
		HttpOnly: true,
	})
}
