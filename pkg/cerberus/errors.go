package cerberus

import (
	"fmt"
	"strings"
)

// ConnectionError indicates that the hub API could not be reached at all.
// This is a deployment problem, not a credential problem.
type ConnectionError struct {
	APIURL   string
	Hostname string
	Cause    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to hub API at %s from host %s: %v", e.APIURL, e.Hostname, e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NewConnectionError creates a new connection error.
func NewConnectionError(apiURL, hostname string, cause error) *ConnectionError {
	return &ConnectionError{
		APIURL:   apiURL,
		Hostname: hostname,
		Cause:    cause,
	}
}

// UpstreamError indicates that the hub API answered with an error status.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("hub API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("hub API error %d", e.StatusCode)
}

// NewUpstreamError creates a new upstream error.
func NewUpstreamError(statusCode int, message string) *UpstreamError {
	return &UpstreamError{
		StatusCode: statusCode,
		Message:    message,
	}
}

// AuthenticationError indicates that credentials are invalid or missing.
type AuthenticationError struct {
	Message string
	Cause   error
}

func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

// NewAuthenticationError creates a new authentication error.
func NewAuthenticationError(message string, cause error) *AuthenticationError {
	return &AuthenticationError{
		Message: message,
		Cause:   cause,
	}
}

// ScopeDeniedError indicates an authenticated identity that does not hold
// the scopes a handler requires.
type ScopeDeniedError struct {
	Name     string
	Required []string
}

func (e *ScopeDeniedError) Error() string {
	if len(e.Required) == 0 {
		return fmt.Sprintf("access denied for %s", e.Name)
	}
	return fmt.Sprintf("access denied for %s: missing required scopes %s",
		e.Name, strings.Join(e.Required, ", "))
}

// NewScopeDeniedError creates a new scope denied error.
func NewScopeDeniedError(name string, required []string) *ScopeDeniedError {
	return &ScopeDeniedError{
		Name:     name,
		Required: required,
	}
}

// OAuthStateError indicates a broken or forged OAuth callback.
type OAuthStateError struct {
	Message string
}

func (e *OAuthStateError) Error() string {
	return fmt.Sprintf("oauth state error: %s", e.Message)
}

// NewOAuthStateError creates a new OAuth state error.
func NewOAuthStateError(message string) *OAuthStateError {
	return &OAuthStateError{Message: message}
}
