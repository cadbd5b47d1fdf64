package boxbreakout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/proquant/screener/internal/contracts"
	"github.com/proquant/screener/internal/marketdata"
	"github.com/proquant/screener/pkg/config"
	"github.com/proquant/screener/pkg/logger"
)

func testStrategy(cfg Config) *Strategy {
	log := logger.New(&config.Config{LogLevel: "error", LogFormat: "json"})
	return New(cfg, log)
}

var sessionStart = time.Date(2026, 8, 28, 9, 15, 0, 0, time.UTC)

// intradayBar builds a 5-minute bar n intervals into the session
func intradayBar(n int, high, low, close, volume float64) marketdata.Bar {
	return marketdata.Bar{
		Time:   sessionStart.Add(time.Duration(n) * 5 * time.Minute),
		Open:   close,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: volume,
	}
}

// boxSession returns a session whose completed 10:00 hour ranged
// 21420-21500, followed by an 11:00 bar closing at last.
func boxSession(last float64) []marketdata.Bar {
	bars := []marketdata.Bar{
		// 09:15-09:55 opening hour
		intradayBar(0, 21450, 21400, 21430, 100),
		intradayBar(5, 21470, 21410, 21460, 120),
		// 10:00-10:55 box hour: high 21500, low 21420
		intradayBar(9, 21500, 21440, 21480, 150),
		intradayBar(15, 21490, 21420, 21450, 130),
	}
	// 11:00 bar carrying the latest price
	bars = append(bars, marketdata.Bar{
		Time:   sessionStart.Add(105 * time.Minute),
		Open:   last,
		High:   last + 10,
		Low:    last - 10,
		Close:  last,
		Volume: 140,
	})
	return bars
}

func TestEvaluateBreakout(t *testing.T) {
	s := testStrategy(Config{})

	result := s.Evaluate("NIFTY 50", "^NSEI", boxSession(21550))

	assert.Equal(t, contracts.BoxActionBuyCall, result.Action)
	assert.Equal(t, "hourly breakout", result.Reason)
	assert.Equal(t, 21500.0, result.BoxHigh)
	assert.Equal(t, 21420.0, result.BoxLow)
	assert.Equal(t, 21550.0, result.LastPrice)
	assert.True(t, result.Actionable())
}

func TestEvaluateBreakdown(t *testing.T) {
	s := testStrategy(Config{})

	result := s.Evaluate("NIFTY 50", "^NSEI", boxSession(21380))

	assert.Equal(t, contracts.BoxActionBuyPut, result.Action)
	assert.Equal(t, "hourly breakdown", result.Reason)
}

func TestEvaluateInsideBox(t *testing.T) {
	s := testStrategy(Config{})

	result := s.Evaluate("NIFTY 50", "^NSEI", boxSession(21460))

	assert.Equal(t, contracts.BoxActionNoTrade, result.Action)
	assert.Equal(t, "inside box", result.Reason)
	assert.False(t, result.Actionable())
}

func TestEvaluateBoundaryIsInsideBox(t *testing.T) {
	s := testStrategy(Config{})

	high := s.Evaluate("NIFTY 50", "^NSEI", boxSession(21500))
	assert.Equal(t, contracts.BoxActionNoTrade, high.Action)

	low := s.Evaluate("NIFTY 50", "^NSEI", boxSession(21420))
	assert.Equal(t, contracts.BoxActionNoTrade, low.Action)
}

func TestEvaluatePendingOnShortSession(t *testing.T) {
	s := testStrategy(Config{})

	// Only the opening hour has printed: no completed box yet.
	bars := []marketdata.Bar{
		intradayBar(0, 21450, 21400, 21430, 100),
		intradayBar(3, 21470, 21410, 21460, 120),
	}

	result := s.Evaluate("BANK NIFTY", "^NSEBANK", bars)

	assert.Equal(t, contracts.BoxActionPending, result.Action)
	assert.Equal(t, "insufficient intraday history", result.Reason)
}

func TestEvaluatePendingOnNoBars(t *testing.T) {
	s := testStrategy(Config{})

	result := s.Evaluate("FIN NIFTY", "NIFTY_FIN_SERVICE.NS", nil)

	assert.Equal(t, contracts.BoxActionPending, result.Action)
	assert.Equal(t, 0.0, result.LastPrice)
}

func TestEvaluateUsesOnlyLastSession(t *testing.T) {
	s := testStrategy(Config{})

	// Yesterday printed a much wider range; it must not become the box.
	yesterday := []marketdata.Bar{
		{Time: sessionStart.Add(-24 * time.Hour), High: 22000, Low: 21000, Close: 21500, Volume: 500},
		{Time: sessionStart.Add(-23 * time.Hour), High: 22100, Low: 20900, Close: 21600, Volume: 500},
	}
	bars := append(yesterday, boxSession(21550)...)

	result := s.Evaluate("NIFTY 50", "^NSEI", bars)

	assert.Equal(t, 21500.0, result.BoxHigh)
	assert.Equal(t, contracts.BoxActionBuyCall, result.Action)
}

func TestEvaluateUnsortedBars(t *testing.T) {
	s := testStrategy(Config{})

	bars := boxSession(21550)
	bars[0], bars[len(bars)-1] = bars[len(bars)-1], bars[0]

	result := s.Evaluate("NIFTY 50", "^NSEI", bars)

	assert.Equal(t, contracts.BoxActionBuyCall, result.Action)
	assert.Equal(t, 21550.0, result.LastPrice)
}

func TestVWAPConfirmGate(t *testing.T) {
	s := testStrategy(Config{VWAPConfirm: true})

	// Session VWAP sits well above the breakout close, so the gate
	// vetoes the call.
	bars := []marketdata.Bar{
		intradayBar(0, 23000, 22900, 22950, 10000),
		intradayBar(5, 23000, 22880, 22940, 10000),
		// Box hour 10:00: high 21500, low 21420
		intradayBar(9, 21500, 21440, 21480, 10),
		intradayBar(15, 21490, 21420, 21450, 10),
	}
	bars = append(bars, marketdata.Bar{
		Time: sessionStart.Add(105 * time.Minute),
		High: 21560, Low: 21540, Close: 21550, Volume: 10,
	})

	result := s.Evaluate("NIFTY 50", "^NSEI", bars)

	assert.Equal(t, contracts.BoxActionNoTrade, result.Action)
	assert.Equal(t, "breakout below vwap", result.Reason)
}

func TestVWAPGateOffByDefault(t *testing.T) {
	s := testStrategy(Config{})

	result := s.Evaluate("NIFTY 50", "^NSEI", boxSession(21550))

	assert.Equal(t, contracts.BoxActionBuyCall, result.Action)
}

func TestVWAPGateDisabledOnZeroVolume(t *testing.T) {
	s := testStrategy(Config{VWAPConfirm: true})

	bars := boxSession(21550)
	for i := range bars {
		bars[i].Volume = 0
	}

	result := s.Evaluate("NIFTY 50", "^NSEI", bars)

	assert.Equal(t, contracts.BoxActionBuyCall, result.Action)
	assert.Equal(t, 0.0, result.VWAP)
}

func TestSessionVWAP(t *testing.T) {
	bars := []marketdata.Bar{
		{Close: 100, Volume: 100},
		{Close: 110, Volume: 300},
	}
	// (100*100 + 110*300) / 400 = 107.5
	assert.InDelta(t, 107.5, sessionVWAP(bars), 1e-9)
}
