package cache

import (
	"net/http"
	"time"
)

// Entry is a stored record store response.
type Entry struct {
	// Data is the response body
	Data []byte `json:"data"`

	// ETag validator (If-None-Match)
	ETag string `json:"etag,omitempty"`

	// LastModified validator (If-Modified-Since)
	LastModified time.Time `json:"last_modified,omitempty"`

	// StatusCode of the stored response
	StatusCode int `json:"status_code"`

	// Header of the stored response
	Header http.Header `json:"header"`

	// StoredAt is when the entry was written
	StoredAt time.Time `json:"stored_at"`

	// Expires is when the entry is evicted. It bounds how long validators are
	// kept, not how long the data is considered fresh.
	Expires time.Time `json:"expires"`
}

// IsExpired returns true if the entry is past its retention window.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the remaining retention, 0 if expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
