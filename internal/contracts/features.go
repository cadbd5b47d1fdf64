package contracts

// Signal is the directional signal derived from the breakout flag
type Signal string

const (
	SignalBullish Signal = "bullish"
	SignalBearish Signal = "bearish"
	SignalNeutral Signal = "neutral"
)

// OBVTrend is the direction of the cumulative signed-volume series
type OBVTrend string

const (
	OBVTrendUp   OBVTrend = "up"
	OBVTrendDown OBVTrend = "down"
)

// FeatureSet holds the per-instrument technical features for one refresh cycle
// ⭐ SSOT: Feature Computer → Scoring Engine 데이터 전달
// All float fields are rounded to 2 decimal places at this boundary.
type FeatureSet struct {
	Symbol string `json:"symbol"`

	// Raw reference prices from the two most recent bars
	LastClose float64 `json:"last_close"`
	LastOpen  float64 `json:"last_open"`
	LastHigh  float64 `json:"last_high"`
	LastLow   float64 `json:"last_low"`
	PrevClose float64 `json:"prev_close"`
	PrevHigh  float64 `json:"prev_high"`
	PrevLow   float64 `json:"prev_low"`

	// Derived features
	Change        float64  `json:"change"`          // LastClose - PrevClose
	PercentChange float64  `json:"percent_change"`  // vs prior close, in percent
	VolumeRatio   float64  `json:"volume_ratio"`    // last volume / prior volume, 0 if prior is 0
	RateOfChange  float64  `json:"rate_of_change"`  // vs close[t-2], in percent, 0 if <3 bars
	AvgRangePct   float64  `json:"avg_range_pct"`   // mean (high-low)/low*100 over last ≤5 bars
	OBVTrend      OBVTrend `json:"obv_trend"`       // direction of cumulative signed volume
	Breakout      Signal   `json:"breakout"`        // close vs prior high/low band
}

// IsBreakout reports whether the breakout flag is directional
func (f *FeatureSet) IsBreakout() bool {
	return f.Breakout == SignalBullish || f.Breakout == SignalBearish
}

// SectorAggregate is the per-sector relative strength for one refresh cycle
// 집계는 Sector Aggregator에서만 계산
type SectorAggregate struct {
	Sector string `json:"sector"`

	// Mean percent change across member instruments with a valid
	// FeatureSet this cycle. Zero when no members resolved; check
	// Members before using it for confluence.
	MeanPercentChange float64 `json:"mean_percent_change"`
	Members           int     `json:"members"`

	// Percent change of the sector's benchmark index, when it resolved
	BenchmarkChange float64 `json:"benchmark_change"`
}

// Resolved reports whether at least one member produced features this cycle
func (s *SectorAggregate) Resolved() bool {
	return s.Members > 0
}
