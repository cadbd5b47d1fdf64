package features

import (
	"errors"
	"fmt"
	"math"

	"github.com/proquant/screener/internal/contracts"
	"github.com/proquant/screener/internal/marketdata"
)

// ErrInsufficientHistory signals that a bar series is too short to derive features
var ErrInsufficientHistory = errors.New("insufficient bar history")

// Minimum bars per feature
const (
	minBars     = 2 // percent change, volume ratio, breakout
	rocBars     = 3 // rate of change vs close[t-2]
	rangeWindow = 5 // average range window
)

// Compute derives the FeatureSet for one instrument from its bar series
// ⭐ SSOT: 기술적 피처 계산은 이 함수에서만
//
// Intermediate math uses unrounded values; rounding to 2 decimal places
// happens once, at the FeatureSet boundary.
func Compute(symbol string, bars []marketdata.Bar) (contracts.FeatureSet, error) {
	if len(bars) < minBars {
		return contracts.FeatureSet{}, fmt.Errorf("%s: need %d bars, have %d: %w",
			symbol, minBars, len(bars), ErrInsufficientHistory)
	}

	curr := bars[len(bars)-1]
	prev := bars[len(bars)-2]

	if prev.Close <= 0 {
		return contracts.FeatureSet{}, fmt.Errorf("%s: prior close is %v: %w",
			symbol, prev.Close, ErrInsufficientHistory)
	}

	change := curr.Close - prev.Close
	percentChange := change / prev.Close * 100

	var volumeRatio float64
	if prev.Volume > 0 {
		volumeRatio = curr.Volume / prev.Volume
	}

	breakout := contracts.SignalNeutral
	switch {
	case curr.Close > prev.High:
		breakout = contracts.SignalBullish
	case curr.Close < prev.Low:
		breakout = contracts.SignalBearish
	}

	var rateOfChange float64
	if len(bars) >= rocBars {
		base := bars[len(bars)-rocBars].Close
		if base > 0 {
			rateOfChange = (curr.Close - base) / base * 100
		}
	}

	return contracts.FeatureSet{
		Symbol:        symbol,
		LastClose:     round2(curr.Close),
		LastOpen:      round2(curr.Open),
		LastHigh:      round2(curr.High),
		LastLow:       round2(curr.Low),
		PrevClose:     round2(prev.Close),
		PrevHigh:      round2(prev.High),
		PrevLow:       round2(prev.Low),
		Change:        round2(change),
		PercentChange: round2(percentChange),
		VolumeRatio:   round2(volumeRatio),
		RateOfChange:  round2(rateOfChange),
		AvgRangePct:   round2(avgRangePct(bars)),
		OBVTrend:      obvTrend(bars),
		Breakout:      breakout,
	}, nil
}

// avgRangePct is the mean of (high-low)/low*100 over the trailing window.
// Shorter series use whatever is available; bars with a non-positive low
// contribute nothing.
func avgRangePct(bars []marketdata.Bar) float64 {
	window := bars
	if len(window) > rangeWindow {
		window = window[len(window)-rangeWindow:]
	}

	var sum float64
	var n int
	for _, bar := range window {
		if bar.Low <= 0 {
			continue
		}
		sum += (bar.High - bar.Low) / bar.Low * 100
		n++
	}

	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// obvTrend compares the last two values of the cumulative signed-volume
// series: up when money flow is still rising, down otherwise.
func obvTrend(bars []marketdata.Bar) contracts.OBVTrend {
	cumulative := make([]float64, len(bars))
	for i := 1; i < len(bars); i++ {
		signed := 0.0
		switch {
		case bars[i].Close > bars[i-1].Close:
			signed = bars[i].Volume
		case bars[i].Close < bars[i-1].Close:
			signed = -bars[i].Volume
		}
		cumulative[i] = cumulative[i-1] + signed
	}

	last := cumulative[len(cumulative)-1]
	prior := cumulative[len(cumulative)-2]
	if last > prior {
		return contracts.OBVTrendUp
	}
	return contracts.OBVTrendDown
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
