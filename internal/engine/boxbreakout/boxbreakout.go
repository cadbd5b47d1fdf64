package boxbreakout

import (
	"sort"
	"time"

	"github.com/proquant/screener/internal/contracts"
	"github.com/proquant/screener/internal/marketdata"
	"github.com/proquant/screener/pkg/logger"
)

// Config controls the index breakout evaluation
type Config struct {
	// VWAPConfirm requires price to be on the VWAP side of the
	// breakout before signalling. Off by default.
	VWAPConfirm bool
}

// Strategy evaluates the hourly-box breakout state for an index
// ⭐ SSOT: 지수 박스 돌파 판정은 여기서만
type Strategy struct {
	config Config
	logger *logger.Logger
}

// New creates a breakout strategy
func New(config Config, log *logger.Logger) *Strategy {
	return &Strategy{
		config: config,
		logger: log.WithField("module", "boxbreakout"),
	}
}

// bucket is one hourly aggregate of intraday bars
type bucket struct {
	start time.Time
	high  float64
	low   float64
}

// Evaluate classifies the latest price against the most recent
// completed hourly box. Intraday bars must be in ascending time order;
// Evaluate sorts defensively since provider order is not guaranteed.
func (s *Strategy) Evaluate(name, symbol string, bars []marketdata.Bar) contracts.BoxResult {
	result := contracts.BoxResult{
		Name:   name,
		Symbol: symbol,
		Action: contracts.BoxActionPending,
		Reason: "insufficient intraday history",
	}

	session := sessionBars(bars)
	if len(session) == 0 {
		return result
	}

	last := session[len(session)-1]
	result.LastPrice = last.Close
	result.VWAP = sessionVWAP(session)

	buckets := resampleHourly(session)
	if len(buckets) < 2 {
		// The first hour is still forming: nothing to break out of yet.
		return result
	}

	// The box is the last fully completed hour.
	box := buckets[len(buckets)-2]
	result.BoxHigh = box.high
	result.BoxLow = box.low

	switch {
	case last.Close > box.high:
		if s.vwapBlocks(contracts.BoxActionBuyCall, last.Close, result.VWAP) {
			result.Action = contracts.BoxActionNoTrade
			result.Reason = "breakout below vwap"
			return result
		}
		result.Action = contracts.BoxActionBuyCall
		result.Reason = "hourly breakout"
	case last.Close < box.low:
		if s.vwapBlocks(contracts.BoxActionBuyPut, last.Close, result.VWAP) {
			result.Action = contracts.BoxActionNoTrade
			result.Reason = "breakdown above vwap"
			return result
		}
		result.Action = contracts.BoxActionBuyPut
		result.Reason = "hourly breakdown"
	default:
		result.Action = contracts.BoxActionNoTrade
		result.Reason = "inside box"
	}

	return result
}

// vwapBlocks reports whether the optional VWAP gate vetoes the signal.
// A zero-volume session leaves VWAP undefined and the gate disabled.
func (s *Strategy) vwapBlocks(action contracts.BoxAction, price, vwap float64) bool {
	if !s.config.VWAPConfirm || vwap == 0 {
		return false
	}
	switch action {
	case contracts.BoxActionBuyCall:
		return price <= vwap
	case contracts.BoxActionBuyPut:
		return price >= vwap
	}
	return false
}

// sessionBars returns the bars belonging to the most recent trading
// day, sorted ascending.
func sessionBars(bars []marketdata.Bar) []marketdata.Bar {
	if len(bars) == 0 {
		return nil
	}

	sorted := make([]marketdata.Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	lastDay := day(sorted[len(sorted)-1].Time)
	start := len(sorted) - 1
	for start > 0 && day(sorted[start-1].Time) == lastDay {
		start--
	}
	return sorted[start:]
}

func day(t time.Time) string {
	return t.Format("2006-01-02")
}

// resampleHourly folds ascending intraday bars into hourly buckets
func resampleHourly(bars []marketdata.Bar) []bucket {
	var buckets []bucket
	for _, b := range bars {
		start := b.Time.Truncate(time.Hour)
		if n := len(buckets); n > 0 && buckets[n-1].start.Equal(start) {
			if b.High > buckets[n-1].high {
				buckets[n-1].high = b.High
			}
			if b.Low < buckets[n-1].low {
				buckets[n-1].low = b.Low
			}
			continue
		}
		buckets = append(buckets, bucket{start: start, high: b.High, low: b.Low})
	}
	return buckets
}

// sessionVWAP is the volume-weighted close over the session's bars.
// Returns 0 when the session carries no volume.
func sessionVWAP(bars []marketdata.Bar) float64 {
	var pv, vol float64
	for _, b := range bars {
		pv += b.Close * b.Volume
		vol += b.Volume
	}
	if vol == 0 {
		return 0
	}
	return pv / vol
}
