package session

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		token   string
		wantErr error
	}{
		{name: "valid", baseURL: "https://api.shop.test", token: "t0k"},
		{name: "trailing slash", baseURL: "http://localhost:8080/", token: "t0k"},
		{name: "missing token", baseURL: "https://api.shop.test", token: " ", wantErr: ErrMissingToken},
		{name: "relative url", baseURL: "/api", token: "t0k", wantErr: ErrInvalidBaseURL},
		{name: "unsupported scheme", baseURL: "ftp://api.shop.test", token: "t0k", wantErr: ErrInvalidBaseURL},
		{name: "unparsable", baseURL: "http://[::1", token: "t0k", wantErr: ErrInvalidBaseURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.baseURL, "admin-1", tt.token)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if s.AdminID() != "admin-1" {
				t.Errorf("AdminID() = %q", s.AdminID())
			}
		})
	}
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		path    string
		query   url.Values
		want    string
	}{
		{
			name:    "root base",
			baseURL: "https://api.shop.test",
			path:    "/getallorders",
			query:   url.Values{"page": {"2"}, "limit": {"7"}},
			want:    "https://api.shop.test/getallorders?limit=7&page=2",
		},
		{
			name:    "base with prefix",
			baseURL: "https://shop.test/api/",
			path:    "deleteuser/12",
			want:    "https://shop.test/api/deleteuser/12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.baseURL, "", "t0k")
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if got := s.Endpoint(tt.path, tt.query); got != tt.want {
				t.Errorf("Endpoint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	s, err := New("https://api.shop.test", "admin-1", "secret")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, s.Endpoint("/allusers", nil), nil)
	s.Authorize(req)

	if got := req.Header.Get("Authorization"); got != "Bearer secret" {
		t.Errorf("Authorization = %q", got)
	}
	cookie, err := req.Cookie(TokenCookie)
	if err != nil {
		t.Fatalf("token cookie missing: %v", err)
	}
	if cookie.Value != "secret" {
		t.Errorf("cookie value = %q", cookie.Value)
	}
}

func TestString_HidesToken(t *testing.T) {
	s, _ := New("https://api.shop.test", "admin-1", "secret")
	if strings.Contains(s.String(), "secret") {
		t.Errorf("String() leaks token: %s", s)
	}
}
