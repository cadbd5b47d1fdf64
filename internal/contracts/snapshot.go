package contracts

import (
	"sort"
	"time"
)

// StockRow is one scored tradable instrument in a cycle's result set
type StockRow struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Sector        string  `json:"sector,omitempty"`
	LastPrice     float64 `json:"last_price"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percent_change"`
	VolumeRatio   float64 `json:"volume_ratio"`
	Score         int     `json:"score"`
	MaxScore      int     `json:"max_score"`
	Signal        Signal  `json:"signal"`

	Features FeatureSet `json:"features"`
}

// IndexQuote is one broad-market index in a cycle's result set
type IndexQuote struct {
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	LastPrice     float64 `json:"last_price"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percent_change"`
}

// BoxAction is the decision of the intraday box-breakout strategy
type BoxAction string

const (
	BoxActionBuyCall BoxAction = "buy-call"
	BoxActionBuyPut  BoxAction = "buy-put"
	BoxActionNoTrade BoxAction = "no-trade"
	BoxActionPending BoxAction = "pending" // insufficient session data
)

// BoxResult is the box-breakout outcome for one index instrument
type BoxResult struct {
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	Action    BoxAction `json:"action"`
	Reason    string    `json:"reason"`
	BoxHigh   float64   `json:"box_high"`
	BoxLow    float64   `json:"box_low"`
	LastPrice float64   `json:"last_price"`
	VWAP      float64   `json:"vwap"`
}

// Actionable reports whether the strategy emitted a trade direction
func (b *BoxResult) Actionable() bool {
	return b.Action == BoxActionBuyCall || b.Action == BoxActionBuyPut
}

// Snapshot is the full result set of one refresh cycle
// ⭐ SSOT: 사이클 결과는 이 구조체로만 전달, 사이클마다 통째로 교체
type Snapshot struct {
	TakenAt time.Time `json:"taken_at"`

	Stocks    []StockRow                 `json:"stocks"`
	Sectors   map[string]SectorAggregate `json:"sectors"`
	Indices   []IndexQuote               `json:"indices"`
	Breakouts []BoxResult                `json:"breakouts"`

	// Instruments dropped this cycle, keyed by symbol, with the
	// exclusion reason ("data-unavailable" or "insufficient-history")
	Excluded map[string]string `json:"excluded,omitempty"`
}

// Age returns how long ago the snapshot was taken
func (s *Snapshot) Age() time.Duration {
	return time.Since(s.TakenAt)
}

// Index returns the index quote with the given display name
func (s *Snapshot) Index(name string) (IndexQuote, bool) {
	for _, idx := range s.Indices {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexQuote{}, false
}

// Advances counts stocks with a positive percent change
func (s *Snapshot) Advances() int {
	n := 0
	for _, row := range s.Stocks {
		if row.PercentChange > 0 {
			n++
		}
	}
	return n
}

// Declines counts stocks with a negative percent change
func (s *Snapshot) Declines() int {
	n := 0
	for _, row := range s.Stocks {
		if row.PercentChange < 0 {
			n++
		}
	}
	return n
}

// TopGainers returns the n stocks with the largest percent change
func (s *Snapshot) TopGainers(n int) []StockRow {
	return s.topBy(n, func(a, b StockRow) bool {
		return a.PercentChange > b.PercentChange
	})
}

// TopLosers returns the n stocks with the smallest percent change
func (s *Snapshot) TopLosers(n int) []StockRow {
	return s.topBy(n, func(a, b StockRow) bool {
		return a.PercentChange < b.PercentChange
	})
}

func (s *Snapshot) topBy(n int, less func(a, b StockRow) bool) []StockRow {
	rows := make([]StockRow, len(s.Stocks))
	copy(rows, s.Stocks)

	sort.Slice(rows, func(i, j int) bool {
		if less(rows[i], rows[j]) {
			return true
		}
		if less(rows[j], rows[i]) {
			return false
		}
		return rows[i].Symbol < rows[j].Symbol
	})

	if n > len(rows) {
		n = len(rows)
	}
	return rows[:n]
}
