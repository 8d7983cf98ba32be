// Package portfolio computes the value of the tracked holding from a price
// snapshot.
package portfolio

import (
	"time"

	"github.com/cwhitelam/Tracker/internal/bitcoin"
)

// Holding is the fixed position being tracked.
type Holding struct {
	AmountBTC            float64
	InitialInvestmentUSD float64
	PurchaseDate         time.Time
}

// Summary is the derived view served to the presentation layer.
type Summary struct {
	CurrentValueUSD   float64 `json:"currentValue"`
	ProfitLossUSD     float64 `json:"profitLoss"`
	ProfitLossPercent float64 `json:"profitLossPercent"`
	DailyChangeUSD    float64 `json:"dailyChange"`
	DaysHeld          int     `json:"daysHeld"`
	Anniversary       bool    `json:"anniversary"`
}

// Summarize derives the holding's current value and returns from a snapshot.
func Summarize(h Holding, snap bitcoin.Snapshot, now time.Time) Summary {
	value := h.AmountBTC * snap.CurrentPrice
	pl := value - h.InitialInvestmentUSD

	var plPct float64
	if h.InitialInvestmentUSD != 0 {
		plPct = pl / h.InitialInvestmentUSD * 100
	}

	return Summary{
		CurrentValueUSD:   value,
		ProfitLossUSD:     pl,
		ProfitLossPercent: plPct,
		DailyChangeUSD:    snap.DailyChangeUSD * h.AmountBTC,
		DaysHeld:          int(now.Sub(h.PurchaseDate).Hours() / 24),
		Anniversary:       now.Month() == h.PurchaseDate.Month() && now.Day() == h.PurchaseDate.Day(),
	}
}
