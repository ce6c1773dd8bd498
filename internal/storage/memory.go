package storage

import (
	"context"
	"strings"
	"sync"

	"github.com/radiusdt/vector-reach/internal/audience"
	"github.com/radiusdt/vector-reach/internal/geo"
	"github.com/radiusdt/vector-reach/internal/models"
)

// AudienceUser is one row of the population store. The in-memory source
// filters these records directly, giving live-mode semantics without a
// database.
type AudienceUser struct {
	ID               string             `json:"id"`
	AgeRange         models.AgeRange    `json:"age_range,omitempty"`
	Gender           string             `json:"gender,omitempty"`
	IncomeLevel      models.IncomeLevel `json:"income_level,omitempty"`
	City             string             `json:"city,omitempty"`
	Latitude         *float64           `json:"latitude,omitempty"`
	Longitude        *float64           `json:"longitude,omitempty"`
	Interests        []string           `json:"interests,omitempty"`
	ActivityScore    int                `json:"activity_score"`
	Purchases        int                `json:"purchases"`
	IsDriver         bool               `json:"is_driver"`
	ExistingCustomer bool               `json:"existing_customer"`
	RecentVisitor    bool               `json:"recent_visitor"`
}

// Coordinates returns the user's location, reporting false when no location
// data is stored. Absence of location must never match a radius filter.
func (u *AudienceUser) Coordinates() (geo.Point, bool) {
	if u.Latitude == nil || u.Longitude == nil {
		return geo.Point{}, false
	}
	return geo.Point{Latitude: *u.Latitude, Longitude: *u.Longitude}, true
}

// InMemoryPopulationSource counts real user records held in memory. Used in
// development and as the degraded mode when PostgreSQL is unreachable.
type InMemoryPopulationSource struct {
	mu    sync.RWMutex
	users []*AudienceUser
}

// NewInMemoryPopulationSource returns an empty in-memory source.
func NewInMemoryPopulationSource() *InMemoryPopulationSource {
	return &InMemoryPopulationSource{}
}

// Add inserts users into the population.
func (s *InMemoryPopulationSource) Add(users ...*AudienceUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, users...)
}

func (s *InMemoryPopulationSource) Name() string              { return "memory" }
func (s *InMemoryPopulationSource) Mode() audience.SourceMode { return audience.ModeLive }

func (s *InMemoryPopulationSource) BaseSize(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

// CountStage counts records surviving every stage up to and including the
// requested one. Counting cumulatively over rows is exactly the sequential
// reduction the pipeline contract requires.
func (s *InMemoryPopulationSource) CountStage(ctx context.Context, stage audience.Stage, rules *models.TargetingRules, _ int64) (int64, error) {
	s.mu.RLock()
	users := append([]*AudienceUser(nil), s.users...)
	s.mu.RUnlock()

	users = filterDemographics(users, rules)
	if stage == audience.StageDemographics {
		return int64(len(users)), nil
	}
	users = filterLocation(users, rules)
	if stage == audience.StageLocation {
		return int64(len(users)), nil
	}
	users = filterBehavior(users, rules)
	return int64(len(users)), nil
}

// Demographics are an intersection: every populated dimension must match.
func filterDemographics(users []*AudienceUser, rules *models.TargetingRules) []*AudienceUser {
	out := users[:0:0]
	for _, u := range users {
		if len(rules.AgeRanges) > 0 && !containsAge(rules.AgeRanges, u.AgeRange) {
			continue
		}
		if len(rules.Genders) > 0 && !containsFold(rules.Genders, u.Gender) {
			continue
		}
		if len(rules.IncomeLevels) > 0 && !containsIncome(rules.IncomeLevels, u.IncomeLevel) {
			continue
		}
		out = append(out, u)
	}
	return out
}

func filterLocation(users []*AudienceUser, rules *models.TargetingRules) []*AudienceUser {
	if len(rules.Cities) > 0 {
		filtered := users[:0:0]
		for _, u := range users {
			if containsFold(rules.Cities, u.City) {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}
	if c := rules.GeoCenter; c != nil {
		center := geo.Point{Latitude: c.Latitude, Longitude: c.Longitude}
		users = geo.FilterByRadius(users, (*AudienceUser).Coordinates, center, c.RadiusKm*1000)
	}
	return users
}

func filterBehavior(users []*AudienceUser, rules *models.TargetingRules) []*AudienceUser {
	out := users[:0:0]
	for _, u := range users {
		if len(rules.Interests) > 0 && !anyOverlapFold(rules.Interests, u.Interests) {
			continue
		}
		if rules.MinActivityScore > 0 && u.ActivityScore < rules.MinActivityScore {
			continue
		}
		if rules.MinPurchases != nil && u.Purchases < *rules.MinPurchases {
			continue
		}
		if rules.DriversOnly && !u.IsDriver {
			continue
		}
		if rules.ExcludeExistingCustomers && u.ExistingCustomer {
			continue
		}
		if rules.ExcludeRecentVisitors && u.RecentVisitor {
			continue
		}
		out = append(out, u)
	}
	return out
}

func containsAge(set []models.AgeRange, v models.AgeRange) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsIncome(set []models.IncomeLevel, v models.IncomeLevel) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func anyOverlapFold(want, have []string) bool {
	if len(have) == 0 {
		return false
	}
	haveSet := make(map[string]bool, len(have))
	for _, h := range have {
		haveSet[strings.ToLower(h)] = true
	}
	for _, w := range want {
		if haveSet[strings.ToLower(w)] {
			return true
		}
	}
	return false
}

// InMemoryFollowerSource holds follower counts per business.
type InMemoryFollowerSource struct {
	mu     sync.RWMutex
	counts map[string]int64
}

func NewInMemoryFollowerSource() *InMemoryFollowerSource {
	return &InMemoryFollowerSource{counts: make(map[string]int64)}
}

// SetFollowers sets the active follower count for a business.
func (s *InMemoryFollowerSource) SetFollowers(businessID string, count int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[businessID] = count
}

func (s *InMemoryFollowerSource) ActiveFollowerCount(ctx context.Context, businessID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[businessID], nil
}

// InMemoryProfileSource holds business profiles.
type InMemoryProfileSource struct {
	mu       sync.RWMutex
	profiles map[string]*audience.BusinessProfile
}

func NewInMemoryProfileSource() *InMemoryProfileSource {
	return &InMemoryProfileSource{profiles: make(map[string]*audience.BusinessProfile)}
}

// SetProfile stores a business profile.
func (s *InMemoryProfileSource) SetProfile(p *audience.BusinessProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.BusinessID] = p
}

func (s *InMemoryProfileSource) Profile(ctx context.Context, businessID string) (*audience.BusinessProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles[businessID], nil
}
