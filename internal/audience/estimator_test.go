package audience

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiusdt/vector-reach/internal/models"
)

// stubSource lets tests control mode, counts and failures.
type stubSource struct {
	name    string
	mode    SourceMode
	base    int64
	baseErr error
	count   func(stage Stage, rules *models.TargetingRules, population int64) (int64, error)
}

func (s *stubSource) Name() string     { return s.name }
func (s *stubSource) Mode() SourceMode { return s.mode }

func (s *stubSource) BaseSize(ctx context.Context) (int64, error) {
	return s.base, s.baseErr
}

func (s *stubSource) CountStage(ctx context.Context, stage Stage, rules *models.TargetingRules, population int64) (int64, error) {
	if s.count != nil {
		return s.count(stage, rules, population)
	}
	return population, nil
}

func TestEstimateHeuristicPipeline(t *testing.T) {
	t.Parallel()

	est := NewEstimator(NewHeuristicSource(10000), nil, nil)

	rules := &models.TargetingRules{
		AgeRanges:        []models.AgeRange{models.Age25to34, models.Age35to44},
		MinActivityScore: 50,
		DriversOnly:      true,
	}

	got, err := est.Estimate(context.Background(), rules)
	require.NoError(t, err)

	// 10000 -> floor(10000 * (0.3 + 2/6*0.7)) = 5333 after demographics,
	// unchanged by location, floor(5333 * 0.75 * 0.15) = 599 after behavior.
	assert.Equal(t, int64(599), got.TotalReach)
	assert.Equal(t, models.ConfidenceMedium, got.ConfidenceLevel)
	assert.Equal(t, got.TotalReach, got.DriversCount)
	assert.Equal(t, models.ScopeGeneral, got.Scope)
	assert.Equal(t, "heuristic", got.Source)
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.EstimatedAt.IsZero())
}

func TestEstimateEmptyRulesReturnsBase(t *testing.T) {
	t.Parallel()

	est := NewEstimator(NewHeuristicSource(10000), nil, nil)

	got, err := est.Estimate(context.Background(), &models.TargetingRules{})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), got.TotalReach)
	// Heuristic mode never reports high confidence.
	assert.Equal(t, models.ConfidenceMedium, got.ConfidenceLevel)
	// Not drivers-only: the driver segment is the designed share.
	assert.Equal(t, int64(1500), got.DriversCount)
}

func TestEstimateNilRulesSameAsEmpty(t *testing.T) {
	t.Parallel()

	est := NewEstimator(NewHeuristicSource(5000), nil, nil)

	fromNil, err := est.Estimate(context.Background(), nil)
	require.NoError(t, err)
	fromEmpty, err := est.Estimate(context.Background(), &models.TargetingRules{})
	require.NoError(t, err)
	assert.Equal(t, fromEmpty.TotalReach, fromNil.TotalReach)
}

func TestEstimateFloorsAtOne(t *testing.T) {
	t.Parallel()

	est := NewEstimator(NewHeuristicSource(5), nil, nil)

	got, err := est.Estimate(context.Background(), &models.TargetingRules{DriversOnly: true})
	require.NoError(t, err)
	// floor(5 * 0.15) = 0, floored to 1 over a non-empty population.
	assert.Equal(t, int64(1), got.TotalReach)
	assert.Equal(t, models.ConfidenceLow, got.ConfidenceLevel)
}

func TestEstimateZeroBaseStaysZero(t *testing.T) {
	t.Parallel()

	est := NewEstimator(NewHeuristicSource(0), nil, nil)

	got, err := est.Estimate(context.Background(), &models.TargetingRules{DriversOnly: true})
	require.NoError(t, err)
	assert.Zero(t, got.TotalReach)
}

func TestEstimateMoreFiltersNeverIncreaseReach(t *testing.T) {
	t.Parallel()

	est := NewEstimator(NewHeuristicSource(100000), nil, nil)
	ctx := context.Background()

	broad := &models.TargetingRules{
		AgeRanges: []models.AgeRange{models.Age25to34, models.Age35to44},
	}
	narrower := broad.Clone()
	narrower.IncomeLevels = []models.IncomeLevel{models.IncomeMiddle}
	narrowest := narrower.Clone()
	narrowest.Cities = []string{"Moscow"}
	narrowest.MinActivityScore = 70
	narrowest.DriversOnly = true

	a, err := est.Estimate(ctx, broad)
	require.NoError(t, err)
	b, err := est.Estimate(ctx, narrower)
	require.NoError(t, err)
	c, err := est.Estimate(ctx, narrowest)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, a.TotalReach, b.TotalReach)
	assert.GreaterOrEqual(t, b.TotalReach, c.TotalReach)
}

func TestEstimateLocationFactorAppliesOnce(t *testing.T) {
	t.Parallel()

	est := NewEstimator(NewHeuristicSource(10000), nil, nil)
	ctx := context.Background()

	cityOnly, err := est.Estimate(ctx, &models.TargetingRules{Cities: []string{"Moscow"}})
	require.NoError(t, err)
	both, err := est.Estimate(ctx, &models.TargetingRules{
		Cities:    []string{"Moscow"},
		GeoCenter: &models.GeoCircle{Latitude: 55.75, Longitude: 37.61, RadiusKm: 10},
	})
	require.NoError(t, err)

	// City list and geo circle are one locality constraint, not two.
	assert.Equal(t, cityOnly.TotalReach, both.TotalReach)
	assert.Equal(t, int64(6000), cityOnly.TotalReach)
}

func TestEstimateInvalidRules(t *testing.T) {
	t.Parallel()

	est := NewEstimator(NewHeuristicSource(10000), nil, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		rules *models.TargetingRules
	}{
		{"unknown age bucket", &models.TargetingRules{AgeRanges: []models.AgeRange{"13-17"}}},
		{"activity score above 100", &models.TargetingRules{MinActivityScore: 101}},
		{"zero radius", &models.TargetingRules{GeoCenter: &models.GeoCircle{Latitude: 55, Longitude: 37}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := est.Estimate(ctx, tt.rules)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}
}

func TestEstimateSourceFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")

	t.Run("base size failure", func(t *testing.T) {
		t.Parallel()
		est := NewEstimator(&stubSource{name: "stub", mode: ModeLive, baseErr: boom}, nil, nil)
		_, err := est.Estimate(context.Background(), &models.TargetingRules{})
		assert.ErrorIs(t, err, ErrSourceUnavailable)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("stage failure", func(t *testing.T) {
		t.Parallel()
		src := &stubSource{
			name: "stub", mode: ModeLive, base: 1000,
			count: func(stage Stage, _ *models.TargetingRules, pop int64) (int64, error) {
				if stage == StageLocation {
					return 0, boom
				}
				return pop, nil
			},
		}
		est := NewEstimator(src, nil, nil)
		_, err := est.Estimate(context.Background(), &models.TargetingRules{})
		assert.ErrorIs(t, err, ErrSourceUnavailable)
	})
}

func TestEstimateLiveSourceAllowsHighConfidence(t *testing.T) {
	t.Parallel()

	src := &stubSource{name: "stub", mode: ModeLive, base: 50000}
	est := NewEstimator(src, nil, nil)

	got, err := est.Estimate(context.Background(), &models.TargetingRules{})
	require.NoError(t, err)
	assert.Equal(t, models.ConfidenceHigh, got.ConfidenceLevel)
	assert.Equal(t, "stub", got.Source)
}

func TestClassifyConfidence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reach int64
		want  models.ConfidenceLevel
	}{
		{0, models.ConfidenceLow},
		{99, models.ConfidenceLow},
		{100, models.ConfidenceMedium},
		{999, models.ConfidenceMedium},
		{1000, models.ConfidenceHigh},
		{1000000, models.ConfidenceHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyConfidence(tt.reach), "reach %d", tt.reach)
	}
}

func TestEstimateBreakdowns(t *testing.T) {
	t.Parallel()

	est := NewEstimator(NewHeuristicSource(100000), nil, nil)

	rules := &models.TargetingRules{
		AgeRanges: []models.AgeRange{models.Age18to24, models.Age25to34, models.Age35to44},
		Cities:    []string{"Moscow", "Kazan"},
	}
	got, err := est.Estimate(context.Background(), rules)
	require.NoError(t, err)

	require.Len(t, got.BreakdownByAge, 3)
	require.Len(t, got.BreakdownByCity, 2)

	// Shares never decrease across the label order and never exceed the total.
	var prev, sum int64
	for _, label := range []string{"18-24", "25-34", "35-44"} {
		share := got.BreakdownByAge[label]
		assert.GreaterOrEqual(t, share, prev)
		prev = share
		sum += share
	}
	assert.LessOrEqual(t, sum, got.TotalReach)

	sum = 0
	for _, share := range got.BreakdownByCity {
		sum += share
	}
	assert.LessOrEqual(t, sum, got.TotalReach)
}

func TestEstimateNoBreakdownsWithoutDimensions(t *testing.T) {
	t.Parallel()

	est := NewEstimator(NewHeuristicSource(10000), nil, nil)
	got, err := est.Estimate(context.Background(), &models.TargetingRules{DriversOnly: true})
	require.NoError(t, err)
	assert.Nil(t, got.BreakdownByAge)
	assert.Nil(t, got.BreakdownByCity)
}

func TestRankedShares(t *testing.T) {
	t.Parallel()

	shares := rankedShares(600, []string{"a", "b", "c"})
	assert.Equal(t, int64(100), shares["a"])
	assert.Equal(t, int64(200), shares["b"])
	assert.Equal(t, int64(300), shares["c"])

	assert.Nil(t, rankedShares(100, nil))
}
