// Package bitcoin is the price data service: it fetches and caches the
// current quote and daily history for a fixed Bitcoin holding, synthesizing
// a history when the configured upstream has none.
package bitcoin

import "time"

// PricePoint is one historical daily sample. Immutable once produced.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// CurrentQuote is the latest spot price and its 24h percentage move.
type CurrentQuote struct {
	Price            float64 `json:"price"`
	PercentChange24h float64 `json:"change"`
}

// Snapshot is the aggregate value returned to the presentation layer.
// PriceHistory is chronological ascending. The snapshot is a value copy
// taken at computation time; it never aliases cache internals.
type Snapshot struct {
	CurrentPrice   float64      `json:"currentPrice"`
	DailyChangeUSD float64      `json:"dailyChange"`
	PriceHistory   []PricePoint `json:"priceHistory"`
}
