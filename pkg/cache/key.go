package cache

import (
	"net/http"
	"net/url"
	"strings"
)

// RequestKey returns the deterministic store key for a request.
// Format: "METHOD URL" with the fragment stripped.
//
// Example:
//
//	GET https://app.example.com/api/projects?page=2
func RequestKey(req *http.Request) string {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	return URLKey(method, req.URL)
}

// URLKey builds a key from a method and URL.
func URLKey(method string, u *url.URL) string {
	if u == nil {
		return strings.ToUpper(method) + " "
	}
	clean := *u
	clean.Fragment = ""
	clean.RawFragment = ""
	return strings.ToUpper(method) + " " + clean.String()
}

// ParseKey splits a key back into its method and URL.
func ParseKey(key string) (method, rawURL string) {
	method, rawURL, found := strings.Cut(key, " ")
	if !found {
		return "", key
	}
	return method, rawURL
}
