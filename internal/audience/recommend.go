package audience

import (
	"context"

	"go.uber.org/zap"

	"github.com/radiusdt/vector-reach/internal/metrics"
	"github.com/radiusdt/vector-reach/internal/models"
)

// BusinessProfile carries contextual hints for the recommender.
type BusinessProfile struct {
	BusinessID       string
	City             string
	HasRunCampaigns  bool
	AvgCampaignReach int64
}

// BusinessProfileSource supplies business profiles. Optional: absence or
// failure degrades to the default recommendation.
type BusinessProfileSource interface {
	Profile(ctx context.Context, businessID string) (*BusinessProfile, error)
}

// Recommender generates suggested rule adjustments. Best-effort by design:
// it never mutates its input and never propagates upstream failure.
type Recommender struct {
	profiles BusinessProfileSource
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewRecommender constructs a recommender. profiles may be nil.
func NewRecommender(profiles BusinessProfileSource, logger *zap.Logger, m *metrics.Metrics) *Recommender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recommender{profiles: profiles, logger: logger, metrics: m}
}

const (
	defaultActivityScore = 50
	addedActivityScore   = 60
	minLoosenedActivity  = 40
)

// Recommend returns a new rule set with suggested adjustments. Passing nil
// or an empty rule set yields the balanced default.
func (r *Recommender) Recommend(ctx context.Context, businessID string, current *models.TargetingRules) *models.TargetingRules {
	profile := r.lookupProfile(ctx, businessID)

	hasAge := current != nil && len(current.AgeRanges) > 0
	hasIncome := current != nil && len(current.IncomeLevels) > 0
	hasActivity := current != nil && current.MinActivityScore > 0

	var out *models.TargetingRules
	var kind string

	switch {
	case !hasAge && !hasIncome && !hasActivity:
		// "Nothing set" is treated identically whether the caller omits
		// rules entirely or passes an empty rule set.
		out = r.balancedDefault(profile)
		kind = "default"

	case hasAge && !hasIncome:
		out = current.Clone()
		out.IncomeLevels = []models.IncomeLevel{models.IncomeMiddle, models.IncomeUpperMiddle}
		kind = "add_income"

	case hasIncome && !hasActivity:
		out = current.Clone()
		out.MinActivityScore = addedActivityScore
		kind = "add_activity"

	case hasAge && hasIncome && hasActivity:
		// Well-targeted already: suggest a slight loosening.
		out = current.Clone()
		out.MinActivityScore = current.MinActivityScore - 10
		if out.MinActivityScore < minLoosenedActivity {
			out.MinActivityScore = minLoosenedActivity
		}
		kind = "loosen_activity"

	default:
		out = current.Clone()
		kind = "unchanged"
	}

	if r.metrics != nil {
		r.metrics.RecordRecommendation(kind)
	}
	return out
}

func (r *Recommender) lookupProfile(ctx context.Context, businessID string) *BusinessProfile {
	if r.profiles == nil || businessID == "" {
		return nil
	}
	p, err := r.profiles.Profile(ctx, businessID)
	if err != nil {
		// Recommendations must never block the caller's workflow.
		r.logger.Debug("business profile unavailable, using defaults",
			zap.String("business_id", businessID),
			zap.Error(err),
		)
		if r.metrics != nil {
			r.metrics.RecordSourceError("profiles")
		}
		return nil
	}
	return p
}

// balancedDefault is the fixed moderate starting point: a middle age band,
// middle and upper-middle income, a moderate activity bar and the driver
// segment. Profile hints add the business's own city when known.
func (r *Recommender) balancedDefault(profile *BusinessProfile) *models.TargetingRules {
	out := &models.TargetingRules{
		AgeRanges:        []models.AgeRange{models.Age25to34, models.Age35to44},
		IncomeLevels:     []models.IncomeLevel{models.IncomeMiddle, models.IncomeUpperMiddle},
		MinActivityScore: defaultActivityScore,
		DriversOnly:      true,
	}
	if profile != nil && profile.City != "" {
		out.Cities = []string{profile.City}
	}
	return out
}
