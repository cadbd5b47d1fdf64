package scoring

import (
	"math"

	"github.com/proquant/screener/internal/contracts"
	"github.com/proquant/screener/pkg/logger"
)

// Tier awards points once a value reaches its threshold; only the
// highest tier reached is awarded.
type Tier struct {
	Threshold float64
	Points    int
}

// Config defines the factor set and its weights
// ⭐ SSOT: 점수 가중치 설정은 이 구조체로만 전달
// A factor with zero points is disabled and drops out of MaxScore.
type Config struct {
	// Range-breakout factor: close outside the prior high/low band
	BreakoutPoints int

	// Sector-confluence factor: breakout direction agrees with the
	// sector aggregate beyond ConfluenceThreshold (in percent)
	ConfluencePoints    int
	ConfluenceThreshold float64

	// Velocity factor: tiers on the larger of |percentChange| and
	// |rateOfChange|, strictly-greater thresholds
	VelocityTiers []Tier

	// Range-normalized velocity factor: |percentChange| consumed more
	// than RangeVelocityFraction of the average daily range
	RangeVelocityPoints   int
	RangeVelocityFraction float64

	// Volume-surge factor: tiers on volumeRatio, >= thresholds
	VolumeTiers []Tier

	// Opening-pattern factor: bullish open==low / bearish open==high
	OpeningPatternPoints int
}

// DefaultConfig returns the standard 100-point factor set
func DefaultConfig() Config {
	return Config{
		BreakoutPoints: 20,

		ConfluencePoints:    20,
		ConfluenceThreshold: 0.5,

		VelocityTiers: []Tier{
			{Threshold: 1.0, Points: 5},
			{Threshold: 2.0, Points: 10},
			{Threshold: 3.0, Points: 15},
			{Threshold: 4.0, Points: 20},
		},

		RangeVelocityPoints:   10,
		RangeVelocityFraction: 0.45,

		VolumeTiers: []Tier{
			{Threshold: 1.0, Points: 2},
			{Threshold: 1.1, Points: 4},
			{Threshold: 1.25, Points: 8},
			{Threshold: 1.5, Points: 12},
			{Threshold: 2.0, Points: 16},
			{Threshold: 2.5, Points: 18},
			{Threshold: 3.0, Points: 20},
		},

		OpeningPatternPoints: 10,
	}
}

// MaxScore is the sum of the enabled factors' maxima
func (c Config) MaxScore() int {
	max := c.BreakoutPoints +
		c.ConfluencePoints +
		maxTierPoints(c.VelocityTiers) +
		c.RangeVelocityPoints +
		maxTierPoints(c.VolumeTiers) +
		c.OpeningPatternPoints
	return max
}

func maxTierPoints(tiers []Tier) int {
	max := 0
	for _, t := range tiers {
		if t.Points > max {
			max = t.Points
		}
	}
	return max
}

// Engine computes the composite conviction score
// ⭐ SSOT: 종합 점수 계산은 여기서만
type Engine struct {
	config Config
	logger *logger.Logger
}

// NewEngine creates a new scoring engine
func NewEngine(config Config, log *logger.Logger) *Engine {
	return &Engine{
		config: config,
		logger: log.WithField("module", "scoring"),
	}
}

// Config returns the active factor configuration
func (e *Engine) Config() Config {
	return e.config
}

// Score combines one instrument's features and its sector aggregate
// into a bounded composite score and a directional signal.
//
// Pure function of its inputs: same FeatureSet and aggregate always
// produce the same score. The sector aggregate may be nil for
// instruments without a sector mapping.
func (e *Engine) Score(fs contracts.FeatureSet, sector *contracts.SectorAggregate) (int, contracts.Signal) {
	score := 0

	score += e.breakoutFactor(fs)
	score += e.confluenceFactor(fs, sector)
	score += e.velocityFactor(fs)
	score += e.rangeVelocityFactor(fs)
	score += e.volumeSurgeFactor(fs)
	score += e.openingPatternFactor(fs)

	if max := e.config.MaxScore(); score > max {
		score = max
	}
	if score < 0 {
		score = 0
	}

	return score, fs.Breakout
}

// breakoutFactor awards fixed points for a directional breakout
func (e *Engine) breakoutFactor(fs contracts.FeatureSet) int {
	if fs.IsBreakout() {
		return e.config.BreakoutPoints
	}
	return 0
}

// confluenceFactor awards fixed points when the breakout direction
// agrees with the sector's aggregate direction beyond the threshold.
// Unmapped instruments and unresolved sectors never match.
func (e *Engine) confluenceFactor(fs contracts.FeatureSet, sector *contracts.SectorAggregate) int {
	if sector == nil || !sector.Resolved() {
		return 0
	}

	threshold := e.config.ConfluenceThreshold
	switch fs.Breakout {
	case contracts.SignalBullish:
		if sector.MeanPercentChange > threshold {
			return e.config.ConfluencePoints
		}
	case contracts.SignalBearish:
		if sector.MeanPercentChange < -threshold {
			return e.config.ConfluencePoints
		}
	}
	return 0
}

// velocityFactor awards the highest tier reached by the move's magnitude
func (e *Engine) velocityFactor(fs contracts.FeatureSet) int {
	velocity := math.Abs(fs.PercentChange)
	if roc := math.Abs(fs.RateOfChange); roc > velocity {
		velocity = roc
	}

	points := 0
	for _, tier := range e.config.VelocityTiers {
		if velocity > tier.Threshold {
			points = tier.Points
		}
	}
	return points
}

// rangeVelocityFactor awards points when the move consumed a large
// share of the instrument's typical daily range
func (e *Engine) rangeVelocityFactor(fs contracts.FeatureSet) int {
	if fs.AvgRangePct == 0 {
		// Degenerate range: contribute nothing rather than divide
		return 0
	}

	if math.Abs(fs.PercentChange)/fs.AvgRangePct > e.config.RangeVelocityFraction {
		return e.config.RangeVelocityPoints
	}
	return 0
}

// volumeSurgeFactor awards the highest volume-ratio tier reached
func (e *Engine) volumeSurgeFactor(fs contracts.FeatureSet) int {
	points := 0
	for _, tier := range e.config.VolumeTiers {
		if fs.VolumeRatio >= tier.Threshold {
			points = tier.Points
		}
	}
	return points
}

// openingPatternFactor awards points for directional conviction from
// the open: bullish day opening at its low, bearish day at its high
func (e *Engine) openingPatternFactor(fs contracts.FeatureSet) int {
	switch fs.Breakout {
	case contracts.SignalBullish:
		if fs.LastOpen == fs.LastLow {
			return e.config.OpeningPatternPoints
		}
	case contracts.SignalBearish:
		if fs.LastOpen == fs.LastHigh {
			return e.config.OpeningPatternPoints
		}
	}
	return 0
}
