package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a stored response.
type Key struct {
	// Endpoint is the request path (e.g. "/getallorders")
	Endpoint string

	// QueryParams are the request query parameters
	QueryParams url.Values

	// Subject scopes the entry to a session (the admin id); empty for
	// responses that do not depend on the caller.
	Subject string
}

// String generates a deterministic key.
// Format: admin:endpoint:query1=val1:query2=a,b:sub=subject
//
// Example:
//
//	admin:getallorders:limit=7:page=2:sub=admin-1
func (k Key) String() string {
	parts := []string{"admin"}

	if endpoint := strings.Trim(k.Endpoint, "/"); endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		names := make([]string, 0, len(k.QueryParams))
		for name := range k.QueryParams {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, strings.Join(k.QueryParams[name], ",")))
		}
	}

	if k.Subject != "" {
		parts = append(parts, "sub="+k.Subject)
	}

	return strings.Join(parts, ":")
}
