package audience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiusdt/vector-reach/internal/models"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[string]*models.AudienceEstimate
	sets    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]*models.AudienceEstimate{}}
}

func (c *mapCache) key(rules *models.TargetingRules) string {
	if rules == nil || rules.IsEmpty() {
		return "empty"
	}
	return string(rules.AgeRanges[0])
}

func (c *mapCache) Get(ctx context.Context, rules *models.TargetingRules) (*models.AudienceEstimate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	est, ok := c.entries[c.key(rules)]
	return est, ok
}

func (c *mapCache) Set(ctx context.Context, rules *models.TargetingRules, est *models.AudienceEstimate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.key(rules)] = est
	c.sets++
}

func newTestService(t *testing.T, cfg ServiceConfig) *Service {
	t.Helper()
	if cfg.Follower == nil {
		cfg.Follower = NewFollowerEstimator(&stubFollowers{count: 1000}, nil, nil)
	}
	if cfg.Recommender == nil {
		cfg.Recommender = NewRecommender(nil, nil, nil)
	}
	return NewService(cfg)
}

func TestServiceEstimateReach(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, ServiceConfig{
		Estimator: NewEstimator(NewHeuristicSource(10000), nil, nil),
	})

	got, err := svc.EstimateReach(context.Background(), &models.TargetingRules{DriversOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), got.TotalReach)
}

func TestServiceFallsBackToHeuristic(t *testing.T) {
	t.Parallel()

	broken := &stubSource{name: "postgres", mode: ModeLive, baseErr: errors.New("connection refused")}
	svc := newTestService(t, ServiceConfig{
		Estimator: NewEstimator(broken, nil, nil),
		Fallback:  NewEstimator(NewHeuristicSource(10000), nil, nil),
	})

	got, err := svc.EstimateReach(context.Background(), &models.TargetingRules{})
	require.NoError(t, err)
	assert.Equal(t, "heuristic", got.Source)
	assert.Equal(t, int64(10000), got.TotalReach)
}

func TestServiceNoFallbackPropagates(t *testing.T) {
	t.Parallel()

	broken := &stubSource{name: "postgres", mode: ModeLive, baseErr: errors.New("connection refused")}
	svc := newTestService(t, ServiceConfig{
		Estimator: NewEstimator(broken, nil, nil),
	})

	_, err := svc.EstimateReach(context.Background(), &models.TargetingRules{})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestServiceInvalidInputSkipsFallback(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, ServiceConfig{
		Estimator: NewEstimator(NewHeuristicSource(10000), nil, nil),
		Fallback:  NewEstimator(NewHeuristicSource(10000), nil, nil),
	})

	_, err := svc.EstimateReach(context.Background(), &models.TargetingRules{MinActivityScore: 200})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestServiceCache(t *testing.T) {
	t.Parallel()

	cache := newMapCache()
	svc := newTestService(t, ServiceConfig{
		Estimator: NewEstimator(NewHeuristicSource(10000), nil, nil),
		Cache:     cache,
	})
	ctx := context.Background()
	rules := &models.TargetingRules{AgeRanges: []models.AgeRange{models.Age25to34}}

	first, err := svc.EstimateReach(ctx, rules)
	require.NoError(t, err)
	second, err := svc.EstimateReach(ctx, rules)
	require.NoError(t, err)

	// Same estimate served from cache, stored exactly once.
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, cache.sets)
}

func TestServiceSourceTimeout(t *testing.T) {
	t.Parallel()

	src := &deadlineCheckingSource{inner: &stubSource{name: "stub", mode: ModeLive, base: 1000}}
	svc := newTestService(t, ServiceConfig{
		Estimator:     NewEstimator(src, nil, nil),
		SourceTimeout: 50 * time.Millisecond,
	})

	_, err := svc.EstimateReach(context.Background(), &models.TargetingRules{})
	require.NoError(t, err)
	assert.True(t, src.sawDeadline)
}

type deadlineCheckingSource struct {
	inner       PopulationSource
	sawDeadline bool
}

func (d *deadlineCheckingSource) Name() string     { return d.inner.Name() }
func (d *deadlineCheckingSource) Mode() SourceMode { return d.inner.Mode() }

func (d *deadlineCheckingSource) BaseSize(ctx context.Context) (int64, error) {
	if _, ok := ctx.Deadline(); ok {
		d.sawDeadline = true
	}
	return d.inner.BaseSize(ctx)
}

func (d *deadlineCheckingSource) CountStage(ctx context.Context, stage Stage, rules *models.TargetingRules, population int64) (int64, error) {
	return d.inner.CountStage(ctx, stage, rules, population)
}

func TestServiceFollowerReachPropagatesFailure(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, ServiceConfig{
		Estimator: NewEstimator(NewHeuristicSource(10000), nil, nil),
		Fallback:  NewEstimator(NewHeuristicSource(10000), nil, nil),
		Follower:  NewFollowerEstimator(&stubFollowers{err: errors.New("down")}, nil, nil),
	})

	_, err := svc.EstimateFollowerReach(context.Background(), "biz-1", nil)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestServiceValidateAndRecommend(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, ServiceConfig{
		Estimator: NewEstimator(NewHeuristicSource(10000), nil, nil),
	})

	res := svc.ValidateTargeting(&models.TargetingRules{})
	assert.True(t, res.Valid)

	rec := svc.Recommendations(context.Background(), "biz-1", nil)
	require.NotNil(t, rec)
	assert.True(t, rec.DriversOnly)
}

func TestServiceSourceName(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, ServiceConfig{
		Estimator: NewEstimator(NewHeuristicSource(10000), nil, nil),
	})
	assert.Equal(t, "heuristic", svc.SourceName())
}
