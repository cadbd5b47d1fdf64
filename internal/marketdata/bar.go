package marketdata

import (
	"context"
	"errors"
	"time"
)

// ErrNoData signals that the provider returned nothing for the whole request
var ErrNoData = errors.New("no market data available")

// Granularity is the bar period requested from the provider
type Granularity string

const (
	GranularityDaily    Granularity = "daily"
	GranularityHourly   Granularity = "hourly"
	GranularityIntraday Granularity = "intraday" // 5-minute bars
)

// Bar is one OHLCV period of one instrument
type Bar struct {
	Time   time.Time `json:"time"` // period start
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Provider supplies OHLCV bars for a set of symbols in one bulk request
// ⭐ SSOT: 시세 조회 계약은 여기서만 정의
//
// Bar sequences are ascending by period start, most recent last.
// Symbols that could not be fetched are simply absent from the result;
// per-symbol failures never surface as an error.
type Provider interface {
	FetchBars(ctx context.Context, symbols []string, lookback time.Duration, granularity Granularity) map[string][]Bar
}
