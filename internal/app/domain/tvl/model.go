// Package tvl defines the domain model for chain TVL data: daily samples
// fetched from the upstream provider and the summaries served by the API.
package tvl

import "time"

// DateFormat is the canonical rendering of a daily sample date.
const DateFormat = "2006-01-02"

// TimestampFormat is used for overview timestamps.
const TimestampFormat = "2006-01-02 15:04:05"

// Point is one daily TVL sample for a chain.
type Point struct {
	Date string  `json:"date"`
	TVL  float64 `json:"tvl"`
	Unix int64   `json:"-"`
}

// Series holds the ordered daily samples for a single chain.
type Series struct {
	Chain     string    `json:"chain"`
	Points    []Point   `json:"points"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Empty reports whether the series carries no samples.
func (s Series) Empty() bool { return len(s.Points) == 0 }

// Summary is the per-chain API payload: the latest sample, its 24h movement
// and a bounded descending history.
type Summary struct {
	Chain            string  `json:"chain"`
	LatestDate       string  `json:"latest_date"`
	TVL              float64 `json:"tvl"`
	Change24h        float64 `json:"tvl_change_24h"`
	PercentChange24h float64 `json:"tvl_percent_change_24h"`
	History          []Point `json:"history"`
}

// Overview aggregates the latest summaries across all chains.
type Overview struct {
	Timestamp string    `json:"timestamp"`
	TotalTVL  float64   `json:"total_tvl"`
	Chains    []Summary `json:"chains"`
}

// HistoryLimit bounds the history returned with a summary.
const HistoryLimit = 30

// DefaultChains is the canonical chain registry.
var DefaultChains = []string{
	"Ethereum", "Solana", "Near", "Bitcoin", "Sui",
	"Aptos", "Arbitrum", "Sei", "Base", "BSC",
	"Polygon", "Optimism", "Fantom", "Avalanche", "Celo",
}
