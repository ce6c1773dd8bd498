package audience

import (
	"context"
	"errors"
	"math"

	"github.com/radiusdt/vector-reach/internal/models"
)

// ErrSourceUnavailable marks a population/follower/profile source that could
// not be reached or timed out. Distinguishable from a zero-count success so
// callers can fall back to heuristic mode instead of reporting zero reach.
var ErrSourceUnavailable = errors.New("population source unavailable")

// Stage identifies one step of the estimation pipeline. Stages run in a
// fixed order and each one reduces the population produced by the previous
// stage, not the original base.
type Stage string

const (
	StageDemographics Stage = "demographics"
	StageLocation     Stage = "location"
	StageBehavior     Stage = "behavior"
)

// Pipeline is the fixed stage order: demographics, then location, then
// behavior.
var Pipeline = [3]Stage{StageDemographics, StageLocation, StageBehavior}

// SourceMode distinguishes live aggregate counting from the fixed-factor
// heuristic model.
type SourceMode string

const (
	ModeLive      SourceMode = "live"
	ModeHeuristic SourceMode = "heuristic"
)

// PopulationSource supplies population counts to the estimator. Both live
// and heuristic implementations satisfy the same contract; the estimator
// never branches on which is behind the interface.
type PopulationSource interface {
	// Name identifies the source in estimates and logs.
	Name() string

	// Mode reports whether counts are live aggregates or heuristic.
	Mode() SourceMode

	// BaseSize returns the unfiltered population size.
	BaseSize(ctx context.Context) (int64, error)

	// CountStage returns how many of the population remaining after the
	// previous stage survive this stage's filters. Live sources may count
	// records directly and ignore population; heuristic sources reduce it
	// multiplicatively.
	CountStage(ctx context.Context, stage Stage, rules *models.TargetingRules, population int64) (int64, error)
}

// DriverShare is the designed share of the general population in the
// privileged driver segment.
const DriverShare = 0.15

// Heuristic reduction factors. These are a designed contract, not incidental:
// downstream UI and tests depend on them.
const (
	locationFactor  = 0.6
	interestsFactor = 0.7
)

// HeuristicSource applies fixed multiplicative reduction factors to a
// configured base population size. Used when live aggregation is unavailable
// or too costly.
type HeuristicSource struct {
	base int64
}

// NewHeuristicSource returns a heuristic source seeded with the given base
// population size.
func NewHeuristicSource(basePopulation int64) *HeuristicSource {
	return &HeuristicSource{base: basePopulation}
}

func (s *HeuristicSource) Name() string     { return "heuristic" }
func (s *HeuristicSource) Mode() SourceMode { return ModeHeuristic }

func (s *HeuristicSource) BaseSize(ctx context.Context) (int64, error) {
	return s.base, nil
}

func (s *HeuristicSource) CountStage(ctx context.Context, stage Stage, rules *models.TargetingRules, population int64) (int64, error) {
	if population <= 0 {
		return 0, nil
	}
	factor := 1.0
	switch stage {
	case StageDemographics:
		if n := len(rules.AgeRanges); n > 0 {
			factor *= 0.3 + float64(n)/models.TotalAgeRanges*0.7
		}
		if n := len(rules.IncomeLevels); n > 0 {
			factor *= 0.4 + float64(n)/models.TotalIncomeLevels*0.6
		}
		// Gender carries no heuristic factor.
	case StageLocation:
		// One locality constraint, one flat factor, whether it is a
		// city list or a geo circle.
		if len(rules.Cities) > 0 || rules.GeoCenter != nil {
			factor *= locationFactor
		}
	case StageBehavior:
		if len(rules.Interests) > 0 {
			factor *= interestsFactor
		}
		if s := rules.MinActivityScore; s > 0 {
			factor *= 1 - float64(s)/100*0.5
		}
		if rules.DriversOnly {
			factor *= DriverShare
		}
	}
	return int64(math.Floor(float64(population) * factor)), nil
}
