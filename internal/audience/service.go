package audience

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radiusdt/vector-reach/internal/metrics"
	"github.com/radiusdt/vector-reach/internal/models"
)

// EstimateCache memoizes estimates keyed by a canonical serialization of the
// rule set. The estimator itself performs no caching; this boundary wraps it.
type EstimateCache interface {
	Get(ctx context.Context, rules *models.TargetingRules) (*models.AudienceEstimate, bool)
	Set(ctx context.Context, rules *models.TargetingRules, est *models.AudienceEstimate)
}

// Service ties the validator, estimators and recommender together and owns
// the degradation policy: live source failures fall back to the heuristic
// estimator instead of failing the request.
type Service struct {
	estimator     *Estimator
	fallback      *Estimator // heuristic, nil when the primary already is
	follower      *FollowerEstimator
	validator     *Validator
	recommender   *Recommender
	cache         EstimateCache // nil disables memoization
	sourceTimeout time.Duration
	logger        *zap.Logger
	metrics       *metrics.Metrics
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Estimator     *Estimator
	Fallback      *Estimator
	Follower      *FollowerEstimator
	Recommender   *Recommender
	Cache         EstimateCache
	SourceTimeout time.Duration
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
}

// NewService constructs the audience service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		estimator:     cfg.Estimator,
		fallback:      cfg.Fallback,
		follower:      cfg.Follower,
		validator:     NewValidator(),
		recommender:   cfg.Recommender,
		cache:         cfg.Cache,
		sourceTimeout: cfg.SourceTimeout,
		logger:        logger,
		metrics:       cfg.Metrics,
	}
}

// SourceName reports which population source backs the primary estimator.
func (s *Service) SourceName() string {
	return s.estimator.Source().Name()
}

// ValidateTargeting reports rule quality. No external dependency, cannot
// fail with a source error.
func (s *Service) ValidateTargeting(rules *models.TargetingRules) *models.ValidationResult {
	res := s.validator.Validate(rules)
	if s.metrics != nil {
		s.metrics.RecordValidation(len(res.Errors), len(res.Warnings), len(res.Suggestions))
	}
	return res
}

// EstimateReach estimates audience size for the rule set, consulting the
// memoization cache first and degrading to the heuristic estimator when the
// live source is unreachable.
func (s *Service) EstimateReach(ctx context.Context, rules *models.TargetingRules) (*models.AudienceEstimate, error) {
	if s.cache != nil {
		if est, ok := s.cache.Get(ctx, rules); ok {
			if s.metrics != nil {
				s.metrics.RecordCacheLookup(true)
			}
			return est, nil
		}
		if s.metrics != nil {
			s.metrics.RecordCacheLookup(false)
		}
	}

	ctx, cancel := s.withSourceTimeout(ctx)
	defer cancel()

	est, err := s.estimator.Estimate(ctx, rules)
	if err != nil {
		if !errors.Is(err, ErrSourceUnavailable) || s.fallback == nil {
			return nil, err
		}
		s.logger.Warn("live population source unavailable, falling back to heuristic", zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordFallback()
		}
		est, err = s.fallback.Estimate(ctx, rules)
		if err != nil {
			return nil, err
		}
	}

	if s.cache != nil {
		s.cache.Set(ctx, rules, est)
	}
	return est, nil
}

// EstimateFollowerReach estimates reach within one business's follower set.
// Source failures propagate: there is no meaningful heuristic base for an
// unknown follower graph.
func (s *Service) EstimateFollowerReach(ctx context.Context, businessID string, rules *models.FollowerTargetingRules) (*models.AudienceEstimate, error) {
	ctx, cancel := s.withSourceTimeout(ctx)
	defer cancel()
	return s.follower.Estimate(ctx, businessID, rules)
}

// Recommendations returns suggested rule adjustments. Best-effort, never an
// error.
func (s *Service) Recommendations(ctx context.Context, businessID string, current *models.TargetingRules) *models.TargetingRules {
	ctx, cancel := s.withSourceTimeout(ctx)
	defer cancel()
	return s.recommender.Recommend(ctx, businessID, current)
}

func (s *Service) withSourceTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.sourceTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.sourceTimeout)
}
