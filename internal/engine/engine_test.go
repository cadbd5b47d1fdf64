package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proquant/screener/internal/contracts"
	"github.com/proquant/screener/internal/engine/scoring"
	"github.com/proquant/screener/internal/marketdata"
	"github.com/proquant/screener/internal/universe"
	"github.com/proquant/screener/pkg/config"
	"github.com/proquant/screener/pkg/logger"
	"github.com/proquant/screener/pkg/redis"
)

// fakeProvider serves canned bars and counts bulk fetches
type fakeProvider struct {
	daily    map[string][]marketdata.Bar
	intraday map[string][]marketdata.Bar
	fetches  int
}

func (p *fakeProvider) FetchBars(_ context.Context, symbols []string, _ time.Duration, granularity marketdata.Granularity) map[string][]marketdata.Bar {
	p.fetches++

	source := p.daily
	if granularity == marketdata.GranularityIntraday {
		source = p.intraday
	}

	out := make(map[string][]marketdata.Bar)
	for _, symbol := range symbols {
		if bars, ok := source[symbol]; ok {
			out[symbol] = bars
		}
	}
	return out
}

// dailyPair builds a two-bar series with the given closes and volumes
func dailyPair(prevClose, prevHigh, prevLow, close, prevVol, vol float64) []marketdata.Bar {
	day := 24 * time.Hour
	now := time.Now().Truncate(day)
	return []marketdata.Bar{
		{Time: now.Add(-day), Open: prevClose, High: prevHigh, Low: prevLow, Close: prevClose, Volume: prevVol},
		{Time: now, Open: close, High: close + 1, Low: close - 1, Close: close, Volume: vol},
	}
}

func smallUniverse() *universe.Universe {
	return &universe.Universe{Instruments: []universe.Instrument{
		{Symbol: "TCS.NS", Name: "TCS", Category: universe.CategoryTradable, Sector: "IT"},
		{Symbol: "INFY.NS", Name: "INFY", Category: universe.CategoryTradable, Sector: "IT"},
		{Symbol: "SBIN.NS", Name: "SBIN", Category: universe.CategoryTradable, Sector: "BANKS"},
		{Symbol: "^CNXIT", Name: "IT", Category: universe.CategorySectorBenchmark},
		{Symbol: "^NSEBANK", Name: "BANKS", Category: universe.CategorySectorBenchmark},
		{Symbol: "^NSEI", Name: "NIFTY 50", Category: universe.CategoryIndex},
	}}
}

func testConfig() *config.Config {
	return &config.Config{
		LogLevel:  "error",
		LogFormat: "json",
		Engine: config.EngineConfig{
			CacheTTL:     time.Minute,
			Workers:      4,
			LookbackDays: 5,
		},
	}
}

func testEngine(provider marketdata.Provider, uni *universe.Universe) *Engine {
	cfg := testConfig()
	return New(cfg, scoring.DefaultConfig(), provider, uni, nil, logger.New(cfg))
}

// fakeMirror is an in-memory SnapshotMirror
type fakeMirror struct {
	data map[string][]byte
	sets int
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{data: make(map[string][]byte)}
}

func (m *fakeMirror) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *fakeMirror) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.sets++
	return nil
}

func healthyProvider() *fakeProvider {
	return &fakeProvider{
		daily: map[string][]marketdata.Bar{
			"TCS.NS":   dailyPair(100, 101, 98, 103, 1000, 1600), // bullish breakout
			"INFY.NS":  dailyPair(200, 202, 196, 201, 2000, 2100),
			"SBIN.NS":  dailyPair(50, 51, 49, 48, 3000, 3100), // bearish
			"^CNXIT":   dailyPair(1000, 1010, 990, 1015, 0, 0),
			"^NSEBANK": dailyPair(4000, 4040, 3960, 3950, 0, 0),
			"^NSEI":    dailyPair(21000, 21100, 20900, 21200, 0, 0),
		},
	}
}

func TestRefreshBuildsSnapshot(t *testing.T) {
	provider := healthyProvider()
	e := testEngine(provider, smallUniverse())

	snap, err := e.Refresh(context.Background())
	require.NoError(t, err)

	assert.Len(t, snap.Stocks, 3)
	assert.Len(t, snap.Indices, 1)
	assert.Empty(t, snap.Excluded)

	// Rows come back ranked: the breakout stock leads.
	assert.Equal(t, "TCS.NS", snap.Stocks[0].Symbol)
	assert.Equal(t, contracts.SignalBullish, snap.Stocks[0].Signal)
	assert.Greater(t, snap.Stocks[0].Score, snap.Stocks[1].Score)

	// Both sectors produced an aggregate.
	assert.Equal(t, 2, snap.Sectors["IT"].Members)
	assert.Equal(t, 1, snap.Sectors["BANKS"].Members)
}

func TestRefreshSkipsFailedInstrument(t *testing.T) {
	provider := healthyProvider()
	delete(provider.daily, "INFY.NS")                                                  // no data at all
	provider.daily["SBIN.NS"] = provider.daily["SBIN.NS"][1:]                          // single bar
	e := testEngine(provider, smallUniverse())

	snap, err := e.Refresh(context.Background())
	require.NoError(t, err)

	assert.Len(t, snap.Stocks, 1)
	assert.Equal(t, "TCS.NS", snap.Stocks[0].Symbol)
	assert.Equal(t, "data-unavailable", snap.Excluded["INFY.NS"])
	assert.Equal(t, "insufficient-history", snap.Excluded["SBIN.NS"])

	// The bank sector lost its only member but stays listed.
	assert.Equal(t, 0, snap.Sectors["BANKS"].Members)
}

func TestRefreshErrNoData(t *testing.T) {
	e := testEngine(&fakeProvider{}, smallUniverse())

	snap, err := e.Refresh(context.Background())

	assert.Nil(t, snap)
	assert.True(t, errors.Is(err, marketdata.ErrNoData))
}

func TestFailedRefreshKeepsPreviousSnapshot(t *testing.T) {
	provider := healthyProvider()
	e := testEngine(provider, smallUniverse())

	first, err := e.Refresh(context.Background())
	require.NoError(t, err)

	provider.daily = nil
	_, err = e.Refresh(context.Background())
	require.Error(t, err)

	e.mu.RLock()
	kept := e.snapshot
	e.mu.RUnlock()
	assert.Equal(t, first, kept)
}

func TestLatestReusesFreshSnapshot(t *testing.T) {
	provider := healthyProvider()
	e := testEngine(provider, smallUniverse())

	first, err := e.Latest(context.Background())
	require.NoError(t, err)
	fetchesAfterFirst := provider.fetches

	second, err := e.Latest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, fetchesAfterFirst, provider.fetches, "fresh snapshot must not refetch")
}

func TestLatestRefreshesExpiredSnapshot(t *testing.T) {
	provider := healthyProvider()
	e := testEngine(provider, smallUniverse())
	e.ttl = time.Nanosecond

	_, err := e.Latest(context.Background())
	require.NoError(t, err)
	fetchesAfterFirst := provider.fetches

	time.Sleep(time.Millisecond)
	_, err = e.Latest(context.Background())
	require.NoError(t, err)

	assert.Greater(t, provider.fetches, fetchesAfterFirst)
}

func TestRefreshMirrorsSnapshot(t *testing.T) {
	cfg := testConfig()
	mirror := newFakeMirror()
	e := New(cfg, scoring.DefaultConfig(), healthyProvider(), smallUniverse(), mirror, logger.New(cfg))

	snap, err := e.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, mirror.sets)

	var stored contracts.Snapshot
	found, err := mirror.Get(context.Background(), redis.SnapshotKey(), &stored)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, len(snap.Stocks), len(stored.Stocks))
}

func TestColdLatestRecoversFromMirror(t *testing.T) {
	cfg := testConfig()
	mirror := newFakeMirror()

	// One process scans and mirrors its snapshot.
	writer := New(cfg, scoring.DefaultConfig(), healthyProvider(), smallUniverse(), mirror, logger.New(cfg))
	first, err := writer.Refresh(context.Background())
	require.NoError(t, err)

	// A second process starts cold and serves from the mirror without
	// touching the provider.
	provider := &fakeProvider{}
	reader := New(cfg, scoring.DefaultConfig(), provider, smallUniverse(), mirror, logger.New(cfg))

	snap, err := reader.Latest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, provider.fetches)
	assert.Equal(t, len(first.Stocks), len(snap.Stocks))
	assert.Equal(t, first.Stocks[0].Symbol, snap.Stocks[0].Symbol)
}

func TestColdLatestIgnoresStaleMirror(t *testing.T) {
	cfg := testConfig()
	mirror := newFakeMirror()

	stale := &contracts.Snapshot{TakenAt: time.Now().Add(-time.Hour)}
	require.NoError(t, mirror.Set(context.Background(), redis.SnapshotKey(), stale, time.Minute))

	provider := healthyProvider()
	e := New(cfg, scoring.DefaultConfig(), provider, smallUniverse(), mirror, logger.New(cfg))

	snap, err := e.Latest(context.Background())
	require.NoError(t, err)

	assert.Greater(t, provider.fetches, 0, "stale mirror entry must trigger a scan")
	assert.Len(t, snap.Stocks, 3)
}

func TestCustomScoringConfig(t *testing.T) {
	cfg := testConfig()
	// Breakout factor only, worth everything.
	scoringCfg := scoring.Config{BreakoutPoints: 50}
	e := New(cfg, scoringCfg, healthyProvider(), smallUniverse(), nil, logger.New(cfg))

	snap, err := e.Refresh(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Stocks, 3)
	assert.Equal(t, 50, snap.Stocks[0].MaxScore)

	// TCS breaks out up, SBIN down; both take the full factor
	assert.Equal(t, "SBIN.NS", snap.Stocks[0].Symbol)
	assert.Equal(t, 50, snap.Stocks[0].Score)
	assert.Equal(t, "TCS.NS", snap.Stocks[1].Symbol)
	assert.Equal(t, 50, snap.Stocks[1].Score)
	assert.Equal(t, 0, snap.Stocks[2].Score)
}

func TestBoxEvaluationPendingWithoutIntraday(t *testing.T) {
	uni := smallUniverse()
	e := testEngine(healthyProvider(), uni)

	snap, err := e.Refresh(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Breakouts, 1)
	assert.Equal(t, "NIFTY 50", snap.Breakouts[0].Name)
	assert.Equal(t, contracts.BoxActionPending, snap.Breakouts[0].Action)
}

func TestBoxEvaluationWithIntraday(t *testing.T) {
	provider := healthyProvider()

	start := time.Date(2026, 8, 28, 9, 15, 0, 0, time.UTC)
	provider.intraday = map[string][]marketdata.Bar{
		"^NSEI": {
			{Time: start, High: 21100, Low: 21000, Close: 21050, Volume: 100},
			// completed 10:00 box: 21420-21500
			{Time: start.Add(45 * time.Minute), High: 21500, Low: 21420, Close: 21480, Volume: 120},
			// 11:00 bar closes above the box
			{Time: start.Add(105 * time.Minute), High: 21560, Low: 21530, Close: 21550, Volume: 90},
		},
	}
	e := testEngine(provider, smallUniverse())

	snap, err := e.Refresh(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Breakouts, 1)
	assert.Equal(t, contracts.BoxActionBuyCall, snap.Breakouts[0].Action)
	assert.Equal(t, 21500.0, snap.Breakouts[0].BoxHigh)
}

func TestRefreshDeterministicOrdering(t *testing.T) {
	provider := healthyProvider()
	// Give two stocks identical bars so their scores tie.
	provider.daily["INFY.NS"] = provider.daily["TCS.NS"]
	e := testEngine(provider, smallUniverse())

	snap, err := e.Refresh(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Stocks, 3)
	assert.Equal(t, snap.Stocks[0].Score, snap.Stocks[1].Score)
	assert.Equal(t, "INFY.NS", snap.Stocks[0].Symbol, "ties break by symbol")
	assert.Equal(t, "TCS.NS", snap.Stocks[1].Symbol)
}
