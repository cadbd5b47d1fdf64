package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/proquant/screener/internal/contracts"
	"github.com/proquant/screener/internal/engine/boxbreakout"
	"github.com/proquant/screener/internal/engine/features"
	"github.com/proquant/screener/internal/engine/ranking"
	"github.com/proquant/screener/internal/engine/scoring"
	"github.com/proquant/screener/internal/engine/sector"
	"github.com/proquant/screener/internal/marketdata"
	"github.com/proquant/screener/internal/universe"
	"github.com/proquant/screener/pkg/config"
	"github.com/proquant/screener/pkg/logger"
	"github.com/proquant/screener/pkg/redis"
)

// Exclusion reasons recorded in Snapshot.Excluded
const (
	reasonDataUnavailable     = "data-unavailable"
	reasonInsufficientHistory = "insufficient-history"
)

// SnapshotMirror is a cross-process snapshot cache layered over the
// in-memory one. *redis.Cache satisfies it.
type SnapshotMirror interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Engine runs the refresh cycle and serves the latest snapshot
// ⭐ SSOT: 스캔 사이클 실행과 스냅샷 보관은 여기서만
type Engine struct {
	provider   marketdata.Provider
	universe   *universe.Universe
	aggregator *sector.Aggregator
	scorer     *scoring.Engine
	strategy   *boxbreakout.Strategy
	mirror     SnapshotMirror // nil when redis is disabled
	logger     *logger.Logger

	ttl      time.Duration
	workers  int
	lookback time.Duration

	mu       sync.RWMutex
	snapshot *contracts.Snapshot
}

// New wires the pipeline stages into an engine
func New(
	cfg *config.Config,
	scoringCfg scoring.Config,
	provider marketdata.Provider,
	uni *universe.Universe,
	mirror SnapshotMirror,
	log *logger.Logger,
) *Engine {
	return &Engine{
		provider:   provider,
		universe:   uni,
		aggregator: sector.New(log),
		scorer:     scoring.NewEngine(scoringCfg, log),
		strategy:   boxbreakout.New(boxbreakout.Config{VWAPConfirm: cfg.Engine.VWAPConfirm}, log),
		mirror:     mirror,
		logger:     log.WithField("module", "engine"),
		ttl:        cfg.Engine.CacheTTL,
		workers:    cfg.Engine.Workers,
		lookback:   time.Duration(cfg.Engine.LookbackDays) * 24 * time.Hour,
	}
}

// Latest returns the cached snapshot, refreshing first when it is
// missing or older than the TTL. A cold start checks the mirror before
// paying for a full scan.
func (e *Engine) Latest(ctx context.Context) (*contracts.Snapshot, error) {
	e.mu.RLock()
	snap := e.snapshot
	e.mu.RUnlock()

	if snap != nil && snap.Age() < e.ttl {
		return snap, nil
	}

	if snap == nil {
		if mirrored := e.loadSnapshot(ctx); mirrored != nil {
			e.mu.Lock()
			e.snapshot = mirrored
			e.mu.Unlock()
			return mirrored, nil
		}
	}

	return e.Refresh(ctx)
}

// loadSnapshot recovers a still-fresh snapshot from the mirror.
// Best effort: any failure just means scanning from scratch.
func (e *Engine) loadSnapshot(ctx context.Context) *contracts.Snapshot {
	if e.mirror == nil {
		return nil
	}

	var snap contracts.Snapshot
	found, err := e.mirror.Get(ctx, redis.SnapshotKey(), &snap)
	if err != nil {
		e.logger.WithError(err).Warn("Failed to read mirrored snapshot")
		return nil
	}
	if !found || snap.Age() >= e.ttl {
		return nil
	}

	e.logger.WithField("age", snap.Age().String()).Info("Recovered snapshot from mirror")
	return &snap
}

// Refresh runs a full scan cycle and atomically replaces the snapshot.
// On failure the previous snapshot stays in place.
func (e *Engine) Refresh(ctx context.Context) (*contracts.Snapshot, error) {
	started := time.Now()

	snap, err := e.scan(ctx)
	if err != nil {
		e.logger.WithError(err).Error("Scan cycle failed")
		return nil, err
	}

	e.mu.Lock()
	e.snapshot = snap
	e.mu.Unlock()

	e.storeSnapshot(ctx, snap)

	e.logger.WithFields(map[string]interface{}{
		"stocks":   len(snap.Stocks),
		"excluded": len(snap.Excluded),
		"indices":  len(snap.Indices),
		"elapsed":  time.Since(started).String(),
	}).Info("Scan cycle completed")

	return snap, nil
}

// scan runs one cycle: bulk fetch, per-instrument features, sector
// aggregation, scoring, ranking and the index box evaluation.
func (e *Engine) scan(ctx context.Context) (*contracts.Snapshot, error) {
	barsBySymbol := e.provider.FetchBars(ctx, e.universe.Symbols(), e.lookback, marketdata.GranularityDaily)
	if len(barsBySymbol) == 0 {
		return nil, fmt.Errorf("scan cycle: %w", marketdata.ErrNoData)
	}

	featureSet, excluded := e.computeFeatures(barsBySymbol)

	aggregates := e.aggregator.Aggregate(
		featureSet,
		e.universe.SectorOf(),
		e.universe.Sectors(),
		e.benchmarkChanges(featureSet),
	)

	snap := &contracts.Snapshot{
		TakenAt:  time.Now(),
		Sectors:  aggregates,
		Excluded: excluded,
	}

	snap.Stocks = ranking.Rank(e.scoreStocks(featureSet, aggregates))
	snap.Indices = e.indexQuotes(featureSet)
	snap.Breakouts = e.evaluateBoxes(ctx)

	return snap, nil
}

// computeFeatures fans the per-symbol feature computation out over a
// bounded worker pool. Instruments that fail are recorded and skipped;
// one bad symbol never aborts the cycle.
func (e *Engine) computeFeatures(barsBySymbol map[string][]marketdata.Bar) (map[string]contracts.FeatureSet, map[string]string) {
	type outcome struct {
		symbol string
		fs     contracts.FeatureSet
		reason string
	}

	symbols := e.universe.Symbols()
	jobs := make(chan string, len(symbols))
	results := make(chan outcome, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				bars, ok := barsBySymbol[symbol]
				if !ok || len(bars) == 0 {
					results <- outcome{symbol: symbol, reason: reasonDataUnavailable}
					continue
				}
				fs, err := features.Compute(symbol, bars)
				if err != nil {
					e.logger.WithError(err).WithField("symbol", symbol).Warn("Skipping instrument")
					results <- outcome{symbol: symbol, reason: reasonInsufficientHistory}
					continue
				}
				results <- outcome{symbol: symbol, fs: fs}
			}
		}()
	}

	for _, symbol := range symbols {
		jobs <- symbol
	}
	close(jobs)
	wg.Wait()
	close(results)

	featureSet := make(map[string]contracts.FeatureSet, len(symbols))
	excluded := make(map[string]string)
	for out := range results {
		if out.reason != "" {
			excluded[out.symbol] = out.reason
			continue
		}
		featureSet[out.symbol] = out.fs
	}

	return featureSet, excluded
}

// benchmarkChanges maps sector -> its benchmark index percent change
func (e *Engine) benchmarkChanges(featureSet map[string]contracts.FeatureSet) map[string]float64 {
	changes := make(map[string]float64)
	for sectorName, inst := range e.universe.SectorBenchmarks() {
		if fs, ok := featureSet[inst.Symbol]; ok {
			changes[sectorName] = fs.PercentChange
		}
	}
	return changes
}

// scoreStocks turns tradable features into scored rows
func (e *Engine) scoreStocks(
	featureSet map[string]contracts.FeatureSet,
	aggregates map[string]contracts.SectorAggregate,
) []contracts.StockRow {
	maxScore := e.scorer.Config().MaxScore()
	sectorOf := e.universe.SectorOf()

	rows := make([]contracts.StockRow, 0, len(featureSet))
	for _, inst := range e.universe.Tradables() {
		fs, ok := featureSet[inst.Symbol]
		if !ok {
			continue
		}

		var agg *contracts.SectorAggregate
		if sectorName, mapped := sectorOf[inst.Symbol]; mapped {
			if a, exists := aggregates[sectorName]; exists {
				agg = &a
			}
		}

		score, signal := e.scorer.Score(fs, agg)
		rows = append(rows, contracts.StockRow{
			Symbol:        inst.Symbol,
			Name:          inst.Name,
			Sector:        inst.Sector,
			LastPrice:     fs.LastClose,
			Change:        fs.Change,
			PercentChange: fs.PercentChange,
			VolumeRatio:   fs.VolumeRatio,
			Score:         score,
			MaxScore:      maxScore,
			Signal:        signal,
			Features:      fs,
		})
	}
	return rows
}

// indexQuotes builds the broad-market index rows
func (e *Engine) indexQuotes(featureSet map[string]contracts.FeatureSet) []contracts.IndexQuote {
	quotes := make([]contracts.IndexQuote, 0)
	for _, inst := range e.universe.Indices() {
		fs, ok := featureSet[inst.Symbol]
		if !ok {
			continue
		}
		quotes = append(quotes, contracts.IndexQuote{
			Name:          inst.Name,
			Symbol:        inst.Symbol,
			LastPrice:     fs.LastClose,
			Change:        fs.Change,
			PercentChange: fs.PercentChange,
		})
	}
	return quotes
}

// evaluateBoxes fetches intraday bars for the option indices and runs
// the box-breakout strategy on each. A failed intraday fetch yields a
// pending result rather than dropping the index.
func (e *Engine) evaluateBoxes(ctx context.Context) []contracts.BoxResult {
	indices := e.universe.BoxIndices()
	if len(indices) == 0 {
		return nil
	}

	symbols := make([]string, 0, len(indices))
	for _, inst := range indices {
		symbols = append(symbols, inst.Symbol)
	}

	// Two sessions of 5-minute bars: enough for a full trading day
	// plus the prior close.
	barsBySymbol := e.provider.FetchBars(ctx, symbols, 2*24*time.Hour, marketdata.GranularityIntraday)

	results := make([]contracts.BoxResult, 0, len(indices))
	for _, inst := range indices {
		results = append(results, e.strategy.Evaluate(inst.Name, inst.Symbol, barsBySymbol[inst.Symbol]))
	}
	return results
}

// storeSnapshot mirrors the snapshot into redis when available.
// Best effort: a cache failure never fails the cycle.
func (e *Engine) storeSnapshot(ctx context.Context, snap *contracts.Snapshot) {
	if e.mirror == nil {
		return
	}
	if err := e.mirror.Set(ctx, redis.SnapshotKey(), snap, e.ttl); err != nil {
		e.logger.WithError(err).Warn("Failed to mirror snapshot to redis")
	}
}
