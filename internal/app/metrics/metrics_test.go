package metrics

import "testing"

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/healthz", "/healthz"},
		{"/metrics", "/metrics"},
		{"/api", "/api"},
		{"/api/tvl", "/api/tvl"},
		{"/api/tvl/all", "/api/tvl/all"},
		{"/api/tvl/csv", "/api/tvl/csv"},
		{"/api/tvl/Ethereum", "/api/tvl/:chain"},
		{"/api/tvl/Some-Chain/", "/api/tvl/:chain"},
	}

	for _, tc := range tests {
		if got := canonicalPath(tc.in); got != tc.want {
			t.Errorf("canonicalPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
