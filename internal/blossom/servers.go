package blossom

import (
	"net/url"
	"strings"
)

// Server is one candidate storage server.
type Server struct {
	URL    string `json:"url" toml:"url"`
	PubKey string `json:"pubkey,omitempty" toml:"pubkey"`
}

// DefaultServers is used when no configured entry survives validation.
var DefaultServers = []Server{
	{URL: "https://blossom.band"},
}

// NormalizeURL rewrites the historical "host/net/" form of server addresses
// to the current "host.net/" form. Other values pass through unchanged.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "/net/") {
		return strings.Replace(raw, "/net/", ".net/", 1)
	}
	return raw
}

// ValidURL reports whether raw, after normalization, is an absolute http(s) URL.
func ValidURL(raw string) bool {
	u, err := url.Parse(NormalizeURL(raw))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// ResolveServers normalizes the configured list, silently drops invalid
// entries and falls back to DefaultServers when nothing usable remains.
// Order is preserved.
func ResolveServers(configured []Server) []Server {
	resolved := make([]Server, 0, len(configured))
	for _, s := range configured {
		normalized := NormalizeURL(s.URL)
		if !ValidURL(normalized) {
			continue
		}
		resolved = append(resolved, Server{URL: normalized, PubKey: strings.TrimSpace(s.PubKey)})
	}
	if len(resolved) == 0 {
		return append([]Server(nil), DefaultServers...)
	}
	return resolved
}

// ParseServerList splits a comma or whitespace separated list of URLs.
func ParseServerList(raw string) []Server {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
	servers := make([]Server, 0, len(fields))
	for _, f := range fields {
		servers = append(servers, Server{URL: f})
	}
	return servers
}

// endpoint resolves an absolute path against the server base, the same way a
// browser resolves new URL("/upload", base).
func (s Server) endpoint(path string) (string, error) {
	base, err := url.Parse(s.URL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(&url.URL{Path: path}).String(), nil
}

// Host returns the server host, used as a metric label.
func (s Server) Host() string {
	u, err := url.Parse(s.URL)
	if err != nil || u.Host == "" {
		return "invalid"
	}
	return u.Host
}
