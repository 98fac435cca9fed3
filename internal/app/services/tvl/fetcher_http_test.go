package tvl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tvl/Ethereum" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		// Second entry out of order, third with string-typed values.
		w.Write([]byte(`[
			{"date": 1700006400, "tvl": 101.5},
			{"date": 1699920000, "tvl": 100.0},
			{"date": "1700092800", "tvl": "103.25"}
		]`))
	}))
	defer server.Close()

	fetcher, err := NewHTTPFetcher(server.Client(), server.URL, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	series, err := fetcher.Fetch(context.Background(), "Ethereum")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if series.Chain != "Ethereum" {
		t.Fatalf("unexpected chain: %s", series.Chain)
	}
	if len(series.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(series.Points))
	}
	for i := 1; i < len(series.Points); i++ {
		if series.Points[i-1].Unix >= series.Points[i].Unix {
			t.Fatalf("points not ascending: %#v", series.Points)
		}
	}
	if series.Points[0].Date != "2023-11-14" {
		t.Fatalf("unexpected first date: %s", series.Points[0].Date)
	}
	if series.Points[2].TVL != 103.25 {
		t.Fatalf("string tvl not parsed: %#v", series.Points[2])
	}
}

func TestHTTPFetcherSkipsMalformedEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[
			{"date": 1700006400, "tvl": 101.5},
			{"tvl": 9.9},
			{"date": 0, "tvl": 1.0}
		]`))
	}))
	defer server.Close()

	fetcher, err := NewHTTPFetcher(server.Client(), server.URL, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	series, err := fetcher.Fetch(context.Background(), "Solana")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(series.Points) != 1 {
		t.Fatalf("expected 1 valid point, got %d", len(series.Points))
	}
}

func TestHTTPFetcherUpstreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "payload not an array",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"error": "nope"}`))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			fetcher, err := NewHTTPFetcher(server.Client(), server.URL, nil)
			if err != nil {
				t.Fatalf("new fetcher: %v", err)
			}
			if _, err := fetcher.Fetch(context.Background(), "Near"); err == nil {
				t.Fatalf("expected fetch error")
			}
		})
	}
}

func TestNewHTTPFetcherRequiresURL(t *testing.T) {
	if _, err := NewHTTPFetcher(nil, "  ", nil); err == nil {
		t.Fatalf("expected error for empty base URL")
	}
}
