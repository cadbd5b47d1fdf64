package sector

import (
	"math"

	"github.com/proquant/screener/internal/contracts"
	"github.com/proquant/screener/pkg/logger"
)

// Aggregator computes per-sector relative strength for a refresh cycle
// ⭐ SSOT: 섹터 집계는 여기서만
type Aggregator struct {
	logger *logger.Logger
}

// New creates a new sector aggregator
func New(log *logger.Logger) *Aggregator {
	return &Aggregator{
		logger: log.WithField("module", "sector"),
	}
}

// Aggregate computes the mean percent change per sector group across
// member instruments that produced a valid FeatureSet this cycle.
//
// Every configured sector gets an entry. A sector whose members all
// dropped out this cycle is kept with Members == 0 so downstream
// confluence checks can skip it instead of reading a fake flat reading.
func (a *Aggregator) Aggregate(
	featuresBySymbol map[string]contracts.FeatureSet,
	sectorOf map[string]string,
	sectors []string,
	benchmarkChange map[string]float64,
) map[string]contracts.SectorAggregate {
	sums := make(map[string]float64, len(sectors))
	counts := make(map[string]int, len(sectors))

	for symbol, fs := range featuresBySymbol {
		sector, ok := sectorOf[symbol]
		if !ok {
			continue
		}
		sums[sector] += fs.PercentChange
		counts[sector]++
	}

	aggregates := make(map[string]contracts.SectorAggregate, len(sectors))
	for _, sector := range sectors {
		agg := contracts.SectorAggregate{
			Sector:          sector,
			Members:         counts[sector],
			BenchmarkChange: benchmarkChange[sector],
		}
		if agg.Members > 0 {
			agg.MeanPercentChange = round2(sums[sector] / float64(agg.Members))
		}
		aggregates[sector] = agg

		if agg.Members == 0 {
			a.logger.WithField("sector", sector).Warn("Sector has no resolved members this cycle")
		}
	}

	return aggregates
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
