package tvl

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	domain "github.com/R3E-Network/tvl_service/internal/app/domain/tvl"
	"github.com/R3E-Network/tvl_service/internal/httputil"
	"github.com/R3E-Network/tvl_service/pkg/logger"
)

// maxUpstreamBody bounds how much of an upstream response is read.
const maxUpstreamBody = 8 << 20

// Fetcher retrieves the daily TVL series for a chain.
type Fetcher interface {
	Fetch(ctx context.Context, chain string) (domain.Series, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, chain string) (domain.Series, error)

func (f FetcherFunc) Fetch(ctx context.Context, chain string) (domain.Series, error) {
	if f == nil {
		return domain.Series{}, fmt.Errorf("no fetcher configured")
	}
	return f(ctx, chain)
}

// HTTPFetcher pulls TVL history from the upstream provider at
// {base}/tvl/{chain}. The upstream returns a JSON array of {date, tvl}
// objects with date as unix seconds; both fields are parsed leniently since
// the provider has been observed returning numbers as strings.
type HTTPFetcher struct {
	client *http.Client
	base   *url.URL
	log    *logger.Logger
}

// NewHTTPFetcher constructs a fetcher against the given base URL.
func NewHTTPFetcher(client *http.Client, baseURL string, log *logger.Logger) (*HTTPFetcher, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("upstream base URL required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base URL: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("tvl-fetcher")
	}
	return &HTTPFetcher{client: client, base: parsed, log: log}, nil
}

// Fetch retrieves and parses the series for one chain.
func (f *HTTPFetcher) Fetch(ctx context.Context, chain string) (domain.Series, error) {
	requestURL := *f.base
	requestURL.Path = strings.TrimRight(requestURL.Path, "/") + "/tvl/" + url.PathEscape(chain)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL.String(), nil)
	if err != nil {
		return domain.Series{}, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Series{}, fmt.Errorf("upstream request for %s: %w", chain, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Series{}, fmt.Errorf("upstream status %d for %s", resp.StatusCode, chain)
	}

	body, err := httputil.ReadAllStrict(resp.Body, maxUpstreamBody)
	if err != nil {
		return domain.Series{}, fmt.Errorf("read upstream body for %s: %w", chain, err)
	}

	series, err := parseSeries(chain, body)
	if err != nil {
		return domain.Series{}, err
	}
	f.log.WithField("chain", chain).
		WithField("points", len(series.Points)).
		Debug("fetched upstream series")
	return series, nil
}

// parseSeries decodes the upstream payload into an ascending daily series.
// Entries without a usable date or tvl value are skipped.
func parseSeries(chain string, body []byte) (domain.Series, error) {
	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return domain.Series{}, fmt.Errorf("upstream payload for %s is not an array", chain)
	}

	points := make([]domain.Point, 0, len(parsed.Array()))
	parsed.ForEach(func(_, item gjson.Result) bool {
		date := item.Get("date")
		value := item.Get("tvl")
		if !date.Exists() || !value.Exists() {
			return true
		}

		unix := date.Int()
		if unix <= 0 {
			return true
		}
		points = append(points, domain.Point{
			Date: time.Unix(unix, 0).UTC().Format(domain.DateFormat),
			TVL:  value.Float(),
			Unix: unix,
		})
		return true
	})

	sort.Slice(points, func(i, j int) bool { return points[i].Unix < points[j].Unix })

	return domain.Series{
		Chain:     chain,
		Points:    points,
		FetchedAt: time.Now().UTC(),
	}, nil
}
