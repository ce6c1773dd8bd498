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

// FollowerCountSource supplies the active follower count for a business.
type FollowerCountSource interface {
	ActiveFollowerCount(ctx context.Context, businessID string) (int64, error)
}

// FollowerEstimator estimates reach within a single business's follower
// graph. Same pipeline shape as the general estimator, different input
// domain: the base population is the business's active follower count.
type FollowerEstimator struct {
	followers FollowerCountSource
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewFollowerEstimator constructs a follower-scoped estimator.
func NewFollowerEstimator(followers FollowerCountSource, logger *zap.Logger, m *metrics.Metrics) *FollowerEstimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FollowerEstimator{followers: followers, logger: logger, metrics: m}
}

// Engagement-level factors are top/bottom percentile semantics over the
// follower base, not literal sub-filtering of individual users.
var engagementFactors = map[models.EngagementLevel]float64{
	models.EngagementAll:    1.0,
	models.EngagementHigh:   0.3,
	models.EngagementMedium: 0.5,
	models.EngagementLow:    0.2,
}

// Estimate computes follower reach for the business. A source failure
// surfaces as ErrSourceUnavailable.
func (e *FollowerEstimator) Estimate(ctx context.Context, businessID string, rules *models.FollowerTargetingRules) (*models.AudienceEstimate, error) {
	if businessID == "" {
		return nil, fmt.Errorf("%w: business_id is required", models.ErrInvalidInput)
	}
	if rules == nil {
		rules = &models.FollowerTargetingRules{}
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()

	base, err := e.followers.ActiveFollowerCount(ctx, businessID)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordSourceError("followers")
		}
		return nil, fmt.Errorf("%w: follower count for %s: %w", ErrSourceUnavailable, businessID, err)
	}

	engagement := rules.EngagementLevel
	if engagement == "" {
		engagement = models.EngagementAll
	}

	// Duration thresholds are not cumulative: only the highest threshold
	// met applies, against the original follower count.
	duration := 1.0
	switch {
	case rules.MinFollowDays >= 90:
		duration = 0.5
	case rules.MinFollowDays >= 30:
		duration = 0.7
	}

	reach := int64(math.Floor(float64(base) * engagementFactors[engagement] * duration))
	if reach < 1 && base > 0 {
		reach = 1
	}

	est := &models.AudienceEstimate{
		ID:              uuid.NewString(),
		TotalReach:      reach,
		DriversCount:    driversCount(reach, rules.DriversOnly),
		ConfidenceLevel: ClassifyConfidence(reach),
		Scope:           models.ScopeFollowers,
		Source:          "followers",
		// Additive framing only: documents inclusion of the last-7-days
		// cohort without changing the computed number.
		IncludesRecentFollowers: rules.IncludeRecentFollowers,
		EstimatedAt:             time.Now().UTC(),
	}

	if e.metrics != nil {
		e.metrics.RecordEstimate(string(models.ScopeFollowers), "followers", reach, time.Since(start))
	}
	e.logger.Debug("follower reach estimated",
		zap.String("business_id", businessID),
		zap.Int64("followers", base),
		zap.Int64("total_reach", reach),
	)

	return est, nil
}
