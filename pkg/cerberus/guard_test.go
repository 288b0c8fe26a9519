package cerberus

import (
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBrowserProtocol(t *testing.T) {
	r := httptest.NewRequest("GET", "http://svc.example/", nil)
	assert.Equal(t, "http", browserProtocol(r))

	r.Header.Set("X-Forwarded-Proto", "https, http")
	assert.Equal(t, "https", browserProtocol(r))

	r.Header.Set("X-Scheme", "http")
	assert.Equal(t, "http", browserProtocol(r), "X-Scheme outranks X-Forwarded-Proto")

	r.Header.Set("Forwarded", `for=1.2.3.4;proto=https, for=5.6.7.8`)
	assert.Equal(t, "https", browserProtocol(r), "Forwarded outranks everything")
}

func TestCheckReferer(t *testing.T) {
	logger := slog.Default()

	cases := []struct {
		name    string
		referer string
		allowed bool
	}{
		{"same origin under base path", "http://svc.example/services/app/page", true},
		{"base path itself", "http://svc.example/services/app", true},
		{"no referer", "", false},
		{"different host", "http://evil.example/services/app/", false},
		{"different scheme", "https://svc.example/services/app/", false},
		{"different port", "http://svc.example:9999/services/app/", false},
		{"outside base path", "http://svc.example/other/", false},
		{"unparseable referer", "http://bad host/", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "http://svc.example/services/app/api", nil)
			if tc.referer != "" {
				r.Header.Set("Referer", tc.referer)
			}
			assert.Equal(t, tc.allowed, CheckReferer(r, "Host", "/services/app/", logger))
		})
	}
}

func TestCheckRefererForwardedHost(t *testing.T) {
	logger := slog.Default()

	r := httptest.NewRequest("POST", "http://internal:8080/services/app/api", nil)
	r.Header.Set("X-Forwarded-Host", "public.example, internal:8080")
	r.Header.Set("Referer", "http://public.example/services/app/page")
	assert.True(t, CheckReferer(r, "X-Forwarded-Host", "/services/app/", logger))

	// an empty forwarded-host header rejects rather than falling back
	r.Header.Del("X-Forwarded-Host")
	assert.False(t, CheckReferer(r, "X-Forwarded-Host", "/services/app/", logger))
}

func TestCheckRefererDefaultPorts(t *testing.T) {
	logger := slog.Default()

	r := httptest.NewRequest("POST", "https://svc.example/services/app/api", nil)
	r.Header.Set("X-Forwarded-Proto", "https")
	r.Header.Set("Referer", "https://svc.example:443/services/app/page")
	assert.True(t, CheckReferer(r, "Host", "/services/app/", logger))
}

func TestCheckPostContentType(t *testing.T) {
	r := httptest.NewRequest("POST", "http://svc.example/", nil)
	assert.True(t, CheckPostContentType(r), "absent content type is exempt")

	r.Header.Set("Content-Type", "application/json")
	assert.True(t, CheckPostContentType(r))

	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	assert.True(t, CheckPostContentType(r))

	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.False(t, CheckPostContentType(r), "form posts are what the guard exists for")

	r.Header.Set("Content-Type", "text/plain")
	assert.False(t, CheckPostContentType(r))
}
