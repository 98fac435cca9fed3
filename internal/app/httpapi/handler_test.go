package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/R3E-Network/tvl_service/internal/app/domain/tvl"
	tvlsvc "github.com/R3E-Network/tvl_service/internal/app/services/tvl"
	"github.com/R3E-Network/tvl_service/internal/app/storage/memory"
)

func testHandler(t *testing.T, chains []string, fetch tvlsvc.FetcherFunc) http.Handler {
	t.Helper()
	svc, err := tvlsvc.New(tvlsvc.Config{
		Chains:   chains,
		Snapshot: memory.New(),
		Fetcher:  fetch,
		Workers:  2,
	})
	require.NoError(t, err)
	return NewHandler(svc, "test", nil)
}

func fixedSeries(chain string, tvls ...float64) domain.Series {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	points := make([]domain.Point, len(tvls))
	for i, v := range tvls {
		day := base.AddDate(0, 0, i)
		points[i] = domain.Point{Date: day.Format(domain.DateFormat), TVL: v, Unix: day.Unix()}
	}
	return domain.Series{Chain: chain, Points: points, FetchedAt: time.Now()}
}

func TestChainSummaryEndpoint(t *testing.T) {
	handler := testHandler(t, []string{"Ethereum"}, func(_ context.Context, chain string) (domain.Series, error) {
		return fixedSeries(chain, 100, 110), nil
	})

	req := httptest.NewRequest(http.MethodGet, "/api/tvl/Ethereum", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var payload struct {
		Chain            string  `json:"chain"`
		LatestDate       string  `json:"latest_date"`
		TVL              float64 `json:"tvl"`
		Change24h        float64 `json:"tvl_change_24h"`
		PercentChange24h float64 `json:"tvl_percent_change_24h"`
		History          []struct {
			Date string  `json:"date"`
			TVL  float64 `json:"tvl"`
		} `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "Ethereum", payload.Chain)
	assert.Equal(t, "2024-03-02", payload.LatestDate)
	assert.Equal(t, float64(110), payload.TVL)
	assert.Equal(t, float64(10), payload.Change24h)
	assert.InDelta(t, 10, payload.PercentChange24h, 1e-9)
	require.Len(t, payload.History, 2)
	assert.Equal(t, "2024-03-02", payload.History[0].Date)
}

func TestChainSummaryUnknownChain(t *testing.T) {
	handler := testHandler(t, []string{"Ethereum"}, func(_ context.Context, chain string) (domain.Series, error) {
		return fixedSeries(chain, 1), nil
	})

	req := httptest.NewRequest(http.MethodGet, "/api/tvl/Dogechain", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Contains(t, payload["error"], "Ethereum")
}

func TestChainSummaryUpstreamDown(t *testing.T) {
	handler := testHandler(t, []string{"Ethereum"}, func(context.Context, string) (domain.Series, error) {
		return domain.Series{}, fmt.Errorf("connection refused")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/tvl/Ethereum", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAllChainsEndpoint(t *testing.T) {
	values := map[string][]float64{
		"Ethereum": {90, 100},
		"Solana":   {290, 300},
	}
	handler := testHandler(t, []string{"Ethereum", "Solana"}, func(_ context.Context, chain string) (domain.Series, error) {
		return fixedSeries(chain, values[chain]...), nil
	})

	req := httptest.NewRequest(http.MethodGet, "/api/tvl/all", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Timestamp string  `json:"timestamp"`
		TotalTVL  float64 `json:"total_tvl"`
		Chains    []struct {
			Chain string  `json:"chain"`
			TVL   float64 `json:"tvl"`
		} `json:"chains"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, float64(400), payload.TotalTVL)
	require.Len(t, payload.Chains, 2)
	assert.Equal(t, "Solana", payload.Chains[0].Chain)
	assert.NotEmpty(t, payload.Timestamp)
}

func TestCSVEndpoint(t *testing.T) {
	handler := testHandler(t, []string{"Ethereum"}, func(_ context.Context, chain string) (domain.Series, error) {
		return fixedSeries(chain, 1.5, 2.5), nil
	})

	req := httptest.NewRequest(http.MethodGet, "/api/tvl/csv", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment;filename=tvl_data.csv", rec.Header().Get("Content-Disposition"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Equal(t, "chain,date,tvl", lines[0])
	assert.Equal(t, "Ethereum,2024-03-01,1.5", lines[1])
}

func TestCSVEndpointNoData(t *testing.T) {
	handler := testHandler(t, []string{"Ethereum"}, func(context.Context, string) (domain.Series, error) {
		return domain.Series{}, fmt.Errorf("down")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/tvl/csv", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestIndexListsChains(t *testing.T) {
	handler := testHandler(t, []string{"Ethereum", "Solana"}, func(_ context.Context, chain string) (domain.Series, error) {
		return fixedSeries(chain, 1), nil
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `/api/tvl/Ethereum`)
	assert.Contains(t, rec.Body.String(), `/api/tvl/Solana`)
	assert.Contains(t, rec.Body.String(), "/api/tvl/all")
}

func TestHealthEndpoint(t *testing.T) {
	handler := testHandler(t, []string{"Ethereum"}, func(_ context.Context, chain string) (domain.Series, error) {
		return fixedSeries(chain, 1), nil
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestInfoEndpoint(t *testing.T) {
	handler := testHandler(t, []string{"Ethereum", "Solana"}, func(_ context.Context, chain string) (domain.Series, error) {
		return fixedSeries(chain, 1), nil
	})

	req := httptest.NewRequest(http.MethodGet, "/info", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "tvl-service", payload["service"])
	assert.Equal(t, "test", payload["version"])
	assert.EqualValues(t, 2, payload["chains"])
}
