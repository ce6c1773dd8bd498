// Package audience implements the targeting engine: reach estimation over a
// pluggable population source, rule validation and refinement
// recommendations. All components are stateless and safe for concurrent use.
package audience

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radiusdt/vector-reach/internal/metrics"
	"github.com/radiusdt/vector-reach/internal/models"
)

// Estimator computes audience reach for a targeting rule set by running the
// three-stage reduction pipeline against a population source.
type Estimator struct {
	source  PopulationSource
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewEstimator constructs an estimator over the given population source.
func NewEstimator(source PopulationSource, logger *zap.Logger, m *metrics.Metrics) *Estimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Estimator{source: source, logger: logger, metrics: m}
}

// Source returns the population source backing this estimator.
func (e *Estimator) Source() PopulationSource { return e.source }

// Estimate runs the pipeline for the rule set. Stage order is fixed:
// demographics, location, behavior; each stage reduces the previous stage's
// output. A source failure surfaces as ErrSourceUnavailable, never as a
// silently zeroed estimate.
func (e *Estimator) Estimate(ctx context.Context, rules *models.TargetingRules) (*models.AudienceEstimate, error) {
	if rules == nil {
		rules = &models.TargetingRules{}
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()

	base, err := e.source.BaseSize(ctx)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordSourceError(e.source.Name())
		}
		return nil, fmt.Errorf("%w: base size from %s: %w", ErrSourceUnavailable, e.source.Name(), err)
	}

	pop := base
	for _, stage := range Pipeline {
		pop, err = e.source.CountStage(ctx, stage, rules, pop)
		if err != nil {
			if e.metrics != nil {
				e.metrics.RecordSourceError(e.source.Name())
			}
			return nil, fmt.Errorf("%w: %s stage from %s: %w", ErrSourceUnavailable, stage, e.source.Name(), err)
		}
		if pop < 0 {
			pop = 0
		}
	}

	// A campaign must never be told "zero reach" due to rounding: any
	// filtered estimate over a non-empty population floors at 1.
	if pop < 1 && base > 0 && !rules.IsEmpty() {
		pop = 1
	}

	est := &models.AudienceEstimate{
		ID:              uuid.NewString(),
		TotalReach:      pop,
		DriversCount:    driversCount(pop, rules.DriversOnly),
		ConfidenceLevel: e.confidence(pop),
		Scope:           models.ScopeGeneral,
		Source:          e.source.Name(),
		EstimatedAt:     time.Now().UTC(),
	}
	if len(rules.AgeRanges) > 0 {
		est.BreakdownByAge = rankedShares(pop, ageLabels(rules.AgeRanges))
	}
	if len(rules.Cities) > 0 {
		est.BreakdownByCity = rankedShares(pop, rules.Cities)
	}

	if e.metrics != nil {
		e.metrics.RecordEstimate(string(models.ScopeGeneral), e.source.Name(), pop, time.Since(start))
	}
	e.logger.Debug("audience estimated",
		zap.String("source", e.source.Name()),
		zap.Int64("base", base),
		zap.Int64("total_reach", pop),
		zap.String("confidence", string(est.ConfidenceLevel)),
	)

	return est, nil
}

// confidence classifies the estimate magnitude, capping heuristic-mode
// results at medium.
func (e *Estimator) confidence(totalReach int64) models.ConfidenceLevel {
	c := ClassifyConfidence(totalReach)
	if e.source.Mode() == ModeHeuristic && c == models.ConfidenceHigh {
		c = models.ConfidenceMedium
	}
	return c
}

// ClassifyConfidence maps an estimate magnitude to a confidence tier.
func ClassifyConfidence(totalReach int64) models.ConfidenceLevel {
	switch {
	case totalReach >= 1000:
		return models.ConfidenceHigh
	case totalReach >= 100:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

func driversCount(totalReach int64, driversOnly bool) int64 {
	if driversOnly {
		return totalReach
	}
	return int64(math.Floor(float64(totalReach) * DriverShare))
}

// rankedShares splits total across labels with monotonically non-decreasing
// shares: later labels receive proportionally larger cuts, reflecting the
// platform's demographic skew. Shares always sum to at most total.
func rankedShares(total int64, labels []string) map[string]int64 {
	if len(labels) == 0 {
		return nil
	}
	n := int64(len(labels))
	denom := n * (n + 1) / 2
	out := make(map[string]int64, len(labels))
	for i, label := range labels {
		out[label] = total * int64(i+1) / denom
	}
	return out
}

func ageLabels(ranges []models.AgeRange) []string {
	out := make([]string, len(ranges))
	for i, r := range ranges {
		out[i] = string(r)
	}
	return out
}
