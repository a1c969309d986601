package contracts

import (
	"sort"
	"time"
)

// PriceBar is one trading day of a stock
type PriceBar struct {
	Date          time.Time `json:"date"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	Volume        int64     `json:"volume"`
	Amount        float64   `json:"amount"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
}

// SortedAscending returns a copy of bars ordered oldest first.
// The input slice is never mutated.
func SortedAscending(bars []PriceBar) []PriceBar {
	out := make([]PriceBar, len(bars))
	copy(out, bars)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Closes extracts the close prices in order
func Closes(bars []PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
