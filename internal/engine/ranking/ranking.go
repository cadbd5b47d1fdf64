package ranking

import (
	"sort"
	"strings"

	"github.com/proquant/screener/internal/contracts"
)

// Filter narrows a ranked list. Zero values leave a criterion off;
// all active criteria must match (AND).
type Filter struct {
	MinScore       int
	MinVolumeRatio float64
	Signal         string // "bullish", "bearish", "neutral" or "any"
	Symbol         string // case-insensitive substring match
}

// Rank sorts rows by score descending. Equal scores fall back to
// symbol ascending so repeated scans are stable.
func Rank(rows []contracts.StockRow) []contracts.StockRow {
	ranked := make([]contracts.StockRow, len(rows))
	copy(ranked, rows)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})

	return ranked
}

// Apply returns the rows matching every active criterion, preserving
// the input order. Never returns nil.
func (f Filter) Apply(rows []contracts.StockRow) []contracts.StockRow {
	out := make([]contracts.StockRow, 0, len(rows))
	for _, row := range rows {
		if f.matches(row) {
			out = append(out, row)
		}
	}
	return out
}

func (f Filter) matches(row contracts.StockRow) bool {
	if row.Score < f.MinScore {
		return false
	}
	if row.VolumeRatio < f.MinVolumeRatio {
		return false
	}
	if f.Signal != "" && f.Signal != "any" {
		if string(row.Signal) != f.Signal {
			return false
		}
	}
	if f.Symbol != "" {
		if !strings.Contains(strings.ToLower(row.Symbol), strings.ToLower(f.Symbol)) {
			return false
		}
	}
	return true
}
