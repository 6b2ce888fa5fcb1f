// Package session carries the authenticated context of one admin: the
// record store location, the admin id and the session token.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// TokenCookie is the cookie the record store reads the session token from.
const TokenCookie = "token"

var (
	// ErrMissingToken is returned when no session token is configured.
	ErrMissingToken = errors.New("session token is required")

	// ErrInvalidBaseURL is returned for a base URL that is not absolute http(s).
	ErrInvalidBaseURL = errors.New("invalid base url")
)

// Session is the immutable request context of one admin.
type Session struct {
	baseURL *url.URL
	adminID string
	token   string
}

// New validates and creates a session.
func New(baseURL, adminID, token string) (*Session, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	return &Session{baseURL: u, adminID: adminID, token: token}, nil
}

// BaseURL returns the record store base URL.
func (s *Session) BaseURL() string {
	return s.baseURL.String()
}

// AdminID returns the admin id, used to scope cached responses.
func (s *Session) AdminID() string {
	return s.adminID
}

// Host returns the record store host.
func (s *Session) Host() string {
	return s.baseURL.Host
}

// BasePath returns the path prefix of the base URL, "" for a root URL.
func (s *Session) BasePath() string {
	return strings.TrimRight(s.baseURL.Path, "/")
}

// Endpoint joins path and query onto the base URL.
func (s *Session) Endpoint(path string, query url.Values) string {
	u := *s.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = query.Encode()
	return u.String()
}

// Authorize attaches the session token to req as a bearer token and as the
// token cookie.
func (s *Session) Authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: s.token})
}

// String hides the token.
func (s *Session) String() string {
	return fmt.Sprintf("session(%s admin=%s)", s.baseURL, s.adminID)
}
