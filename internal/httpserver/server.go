package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/radiusdt/vector-reach/internal/audience"
	"github.com/radiusdt/vector-reach/internal/cache"
	"github.com/radiusdt/vector-reach/internal/config"
	"github.com/radiusdt/vector-reach/internal/database"
	"github.com/radiusdt/vector-reach/internal/geoip"
	"github.com/radiusdt/vector-reach/internal/metrics"
	"github.com/radiusdt/vector-reach/internal/middleware"
	"github.com/radiusdt/vector-reach/internal/models"
	"github.com/radiusdt/vector-reach/internal/storage"
)

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	DB         *database.PostgresDB
	Redis      *database.RedisDB
	ClickHouse *database.ClickHouseDB
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Server wraps HTTP handlers around the audience service.
type Server struct {
	service     *audience.Service
	geoResolver *geoip.Resolver
	logger      *zap.Logger
	config      *config.Config
	metrics     *metrics.Metrics
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	cfg := deps.Config

	// Primary population source per config, degrading to heuristic when
	// the configured backend is unavailable.
	var primary audience.PopulationSource
	switch cfg.Estimator.Source {
	case "postgres":
		if deps.DB != nil {
			primary = storage.NewPostgresPopulationSource(deps.DB.Pool)
		}
	case "clickhouse":
		if deps.ClickHouse != nil {
			primary = storage.NewClickHousePopulationSource(deps.ClickHouse.Conn)
		}
	case "memory":
		mem := storage.NewInMemoryPopulationSource()
		mem.Add(storage.SampleUsers(int(cfg.Estimator.BasePopulation))...)
		primary = mem
	}
	if primary == nil {
		if cfg.Estimator.Source != "heuristic" {
			deps.Logger.Warn("configured population source unavailable, using heuristic estimates",
				zap.String("source", cfg.Estimator.Source),
			)
		}
		primary = audience.NewHeuristicSource(cfg.Estimator.BasePopulation)
	}

	estimator := audience.NewEstimator(primary, deps.Logger, deps.Metrics)

	// Heuristic safety net behind every live source.
	var fallback *audience.Estimator
	if primary.Mode() == audience.ModeLive {
		fallback = audience.NewEstimator(audience.NewHeuristicSource(cfg.Estimator.BasePopulation), deps.Logger, deps.Metrics)
	}

	var followerSource audience.FollowerCountSource
	var profileSource audience.BusinessProfileSource
	if deps.DB != nil {
		followerSource = storage.NewPostgresFollowerSource(deps.DB.Pool)
		profileSource = storage.NewPostgresProfileSource(deps.DB.Pool)
	} else {
		followerSource = storage.NewInMemoryFollowerSource()
		profileSource = storage.NewInMemoryProfileSource()
	}

	var estimateCache audience.EstimateCache
	if deps.Redis != nil && cfg.Cache.Enabled {
		estimateCache = cache.NewRedisEstimateCache(deps.Redis.Client, cfg.Cache.TTL, deps.Logger)
	}

	var geoResolver *geoip.Resolver
	if cfg.Geo.Enabled {
		provider, err := geoip.NewMaxMindProvider(cfg.Geo.DatabasePath)
		if err != nil {
			deps.Logger.Warn("failed to initialize geo provider, client_ip resolution disabled", zap.Error(err))
		} else {
			geoResolver = geoip.NewResolver(provider, cfg.Geo.CacheSize, cfg.Geo.CacheTTL, deps.Metrics)
		}
	}

	svc := audience.NewService(audience.ServiceConfig{
		Estimator:     estimator,
		Fallback:      fallback,
		Follower:      audience.NewFollowerEstimator(followerSource, deps.Logger, deps.Metrics),
		Recommender:   audience.NewRecommender(profileSource, deps.Logger, deps.Metrics),
		Cache:         estimateCache,
		SourceTimeout: cfg.Estimator.SourceTimeout,
		Logger:        deps.Logger,
		Metrics:       deps.Metrics,
	})

	s := &Server{
		service:     svc,
		geoResolver: geoResolver,
		logger:      deps.Logger,
		config:      cfg,
		metrics:     deps.Metrics,
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	// Targeting API
	mux.HandleFunc("/targeting/validate", s.handleValidate)
	mux.HandleFunc("/targeting/estimate", s.handleEstimate)
	mux.HandleFunc("/targeting/followers/estimate", s.handleFollowerEstimate)
	mux.HandleFunc("/targeting/recommendations", s.handleRecommendations)

	// Middleware chain, outermost first: logging, recovery, auth, limits.
	var handler http.Handler = mux
	handler = middleware.NewRateLimitMiddleware(cfg.RateLimit, deps.Logger, deps.Metrics).Handler(handler)
	handler = middleware.NewAuthMiddleware(cfg.Auth, deps.Logger).Handler(handler)
	handler = middleware.NewRecoveryMiddleware(deps.Logger).Handler(handler)
	handler = middleware.NewLoggingMiddleware(deps.Logger).Handler(handler)

	return handler
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"source": s.service.SourceName(),
	})
}

// ---- Validation ----

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var rules models.TargetingRules
	if err := json.NewDecoder(r.Body).Decode(&rules); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	// Structural errors surface inside the result so the caller can block
	// submission on errors while showing warnings as guidance.
	s.jsonResponse(w, s.service.ValidateTargeting(&rules))
}

// ---- Reach Estimation ----

type estimateRequest struct {
	Rules *models.TargetingRules `json:"rules"`

	// ClientIP asks for an "around me" estimate: when no explicit
	// geo_center is set, the IP is resolved into one.
	ClientIP string `json:"client_ip,omitempty"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Rules == nil {
		req.Rules = &models.TargetingRules{}
	}

	if req.Rules.GeoCenter == nil && req.ClientIP != "" && s.geoResolver != nil {
		if center, ok := s.geoResolver.Center(req.ClientIP); ok {
			req.Rules = req.Rules.Clone()
			req.Rules.GeoCenter = &models.GeoCircle{
				Latitude:  center.Latitude,
				Longitude: center.Longitude,
				RadiusKm:  s.config.Geo.DefaultRadiusKm,
			}
		}
	}

	est, err := s.service.EstimateReach(r.Context(), req.Rules)
	if err != nil {
		s.estimateError(w, err)
		return
	}
	s.jsonResponse(w, est)
}

type followerEstimateRequest struct {
	BusinessID string                         `json:"business_id"`
	Rules      *models.FollowerTargetingRules `json:"rules"`
}

func (s *Server) handleFollowerEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req followerEstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.BusinessID == "" {
		s.errorResponse(w, "business_id is required", http.StatusBadRequest)
		return
	}

	est, err := s.service.EstimateFollowerReach(r.Context(), req.BusinessID, req.Rules)
	if err != nil {
		s.estimateError(w, err)
		return
	}
	s.jsonResponse(w, est)
}

// ---- Recommendations ----

type recommendRequest struct {
	BusinessID string                 `json:"business_id"`
	Rules      *models.TargetingRules `json:"rules,omitempty"`
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.BusinessID == "" {
		s.errorResponse(w, "business_id is required", http.StatusBadRequest)
		return
	}

	// Best-effort by contract: never an error.
	s.jsonResponse(w, s.service.Recommendations(r.Context(), req.BusinessID, req.Rules))
}

// ---- Helper Methods ----

func (s *Server) estimateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, audience.ErrSourceUnavailable):
		s.logger.Error("estimate failed, source unavailable", zap.Error(err))
		s.errorResponse(w, "population source unavailable", http.StatusServiceUnavailable)
	default:
		s.logger.Error("estimate failed", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
