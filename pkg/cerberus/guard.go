package cerberus

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// browserProtocol determines the scheme the browser used, looking
// through reverse proxies. Order of trust: the RFC 7239 Forwarded
// header, then X-Scheme / X-Forwarded-Proto, then the connection
// itself.
func browserProtocol(r *http.Request) string {
	if fwd := r.Header.Get("Forwarded"); fwd != "" {
		first := strings.Split(fwd, ",")[0]
		for _, part := range strings.Split(first, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
			if ok && strings.EqualFold(k, "proto") {
				return strings.ToLower(strings.Trim(v, `"`))
			}
		}
	}
	for _, header := range []string{"X-Scheme", "X-Forwarded-Proto"} {
		if proto := r.Header.Get(header); proto != "" {
			return strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
		}
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// requestHost returns the host the browser addressed, from the
// configured forwarded-host header. Proxies may append hops comma
// separated; the first entry is the original.
func requestHost(r *http.Request, hostHeader string) string {
	var host string
	if strings.EqualFold(hostHeader, "Host") || hostHeader == "" {
		host = r.Host
	} else {
		host = r.Header.Get(hostHeader)
	}
	if i := strings.Index(host, ","); i >= 0 {
		host = host[:i]
	}
	return strings.TrimSpace(host)
}

// defaultPort fills in the scheme's default when a URL omits the port.
func defaultPort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch u.Scheme {
	case "https":
		return "443"
	default:
		return "80"
	}
}

// CheckReferer verifies that a browser request originated from a page
// on this host under the service base path. Requests without a host or
// referer are rejected; only token-authenticated requests may skip this
// check.
func CheckReferer(r *http.Request, hostHeader, basePath string, logger *slog.Logger) bool {
	host := requestHost(r, hostHeader)
	if host == "" {
		logger.Warn("blocking cross-origin request with no host")
		return false
	}
	referer := r.Header.Get("Referer")
	if referer == "" {
		logger.Warn("blocking cross-origin request with no referer", "host", host)
		return false
	}

	proto := browserProtocol(r)
	hostURL, err := url.Parse(proto + "://" + host + basePath)
	if err != nil {
		logger.Warn("blocking cross-origin request with unparseable host", "host", host)
		return false
	}
	refererURL, err := url.Parse(referer)
	if err != nil {
		logger.Warn("blocking cross-origin request with unparseable referer", "referer", referer)
		return false
	}

	if refererURL.Scheme != hostURL.Scheme ||
		refererURL.Hostname() != hostURL.Hostname() ||
		defaultPort(refererURL) != defaultPort(hostURL) {
		logger.Warn("blocking cross-origin request",
			"referer", referer, "host", hostURL.String())
		return false
	}
	if !strings.HasPrefix(refererURL.Path+"/", hostURL.Path) {
		logger.Warn("blocking cross-origin request outside base path",
			"referer", referer, "base_path", hostURL.Path)
		return false
	}
	return true
}

// CheckPostContentType rejects writes that a cross-site form could have
// produced. Requests with no Content-Type at all are allowed; anything
// else must be JSON.
func CheckPostContentType(r *http.Request) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return true
	}
	mediaType := strings.TrimSpace(strings.Split(contentType, ";")[0])
	return strings.EqualFold(mediaType, "application/json")
}
