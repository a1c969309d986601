package contracts

import (
	"sort"
	"time"
)

// DataQualitySnapshot summarizes how much of the active stock master has
// statements and prices loaded
type DataQualitySnapshot struct {
	Date         time.Time          `json:"date"`
	TotalStocks  int                `json:"total_stocks"`
	ValidStocks  int                `json:"valid_stocks"`  // stocks with at least one indicator record
	Coverage     map[string]float64 `json:"coverage"`      // table -> 0.0 ~ 1.0
	QualityScore float64            `json:"quality_score"` // weighted, 0.0 ~ 1.0
	Passed       bool               `json:"passed"`
}

// Passes reports whether the snapshot clears minScore with at least one usable stock
func (d *DataQualitySnapshot) Passes(minScore float64) bool {
	return d.QualityScore >= minScore && d.ValidStocks > 0
}

// Weakest returns the table with the lowest coverage, ties broken by name
func (d *DataQualitySnapshot) Weakest() (string, float64) {
	if len(d.Coverage) == 0 {
		return "", 0
	}

	keys := make([]string, 0, len(d.Coverage))
	for k := range d.Coverage {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	weakest := keys[0]
	for _, k := range keys[1:] {
		if d.Coverage[k] < d.Coverage[weakest] {
			weakest = k
		}
	}
	return weakest, d.Coverage[weakest]
}
