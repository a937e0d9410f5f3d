package blossom

import (
	"errors"
	"strings"
	"testing"
)

// =============================================================================
// Server List Tests
// =============================================================================

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"https://cdn.satellite/net/", "https://cdn.satellite.net/"},
		{"https://blossom.band", "https://blossom.band"},
		{"  https://blossom.band/  ", "https://blossom.band/"},
		{"https://a/net/b/net/", "https://a.net/b/net/"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeURL(tt.in); got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"https://blossom.band", true},
		{"http://localhost:3000/", true},
		{"ftp://files.example", false},
		{"not a url", false},
		{"https://", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidURL(tt.in); got != tt.want {
			t.Errorf("ValidURL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestResolveServersKeepsOrderAndDropsInvalid(t *testing.T) {
	t.Parallel()

	got := ResolveServers([]Server{
		{URL: "https://b.example"},
		{URL: "garbage"},
		{URL: "https://cdn.satellite/net/"},
		{URL: "https://a.example", PubKey: " abc "},
	})

	want := []string{"https://b.example", "https://cdn.satellite.net/", "https://a.example"}
	if len(got) != len(want) {
		t.Fatalf("got %d servers, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].URL != want[i] {
			t.Errorf("server %d = %q, want %q", i, got[i].URL, want[i])
		}
	}
	if got[2].PubKey != "abc" {
		t.Errorf("PubKey should be trimmed, got %q", got[2].PubKey)
	}
}

func TestResolveServersDefaults(t *testing.T) {
	t.Parallel()

	for _, in := range [][]Server{nil, {}, {{URL: "nope"}}} {
		got := ResolveServers(in)
		if len(got) != 1 || got[0].URL != "https://blossom.band" {
			t.Errorf("ResolveServers(%v) = %v, want default", in, got)
		}
	}

	got := ResolveServers(nil)
	got[0].URL = "mutated"
	if DefaultServers[0].URL != "https://blossom.band" {
		t.Error("ResolveServers must not alias DefaultServers")
	}
}

func TestParseServerList(t *testing.T) {
	t.Parallel()

	got := ParseServerList("https://a.example, https://b.example\nhttps://c.example")
	if len(got) != 3 || got[2].URL != "https://c.example" {
		t.Errorf("ParseServerList = %v", got)
	}
	if len(ParseServerList("")) != 0 {
		t.Error("empty input should give no servers")
	}
}

func TestEndpointResolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		base string
		want string
	}{
		{"https://blossom.band", "https://blossom.band/upload"},
		{"https://blossom.band/", "https://blossom.band/upload"},
		{"https://host.example/prefix/", "https://host.example/upload"},
	}

	for _, tt := range tests {
		got, err := Server{URL: tt.base}.endpoint("/upload")
		if err != nil {
			t.Fatalf("endpoint(%q) failed: %v", tt.base, err)
		}
		if got != tt.want {
			t.Errorf("endpoint(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestServerHost(t *testing.T) {
	t.Parallel()

	if h := (Server{URL: "https://blossom.band/x"}).Host(); h != "blossom.band" {
		t.Errorf("Host = %q", h)
	}
	if h := (Server{URL: "::"}).Host(); h != "invalid" {
		t.Errorf("Host = %q, want invalid", h)
	}
}

// =============================================================================
// Error Tests
// =============================================================================

func TestExhaustedError(t *testing.T) {
	t.Parallel()

	err := &ExhaustedError{Attempts: []Attempt{
		{Reason: ReasonStatus, Status: 503},
		{Reason: ReasonTransport},
	}}
	if !errors.Is(err, ErrAllServersExhausted) {
		t.Error("ExhaustedError should unwrap to ErrAllServersExhausted")
	}
	if !strings.Contains(err.Error(), "2 servers tried") {
		t.Errorf("Error() = %q", err.Error())
	}
	if strings.Contains(err.Error(), "mismatch") {
		t.Error("Error() should not mention mismatches when there were none")
	}
}
