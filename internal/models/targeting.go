package models

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks structurally malformed targeting input. Wrapped
// errors name the offending field.
var ErrInvalidInput = errors.New("invalid targeting input")

type AgeRange string

const (
	Age18to24 AgeRange = "18-24"
	Age25to34 AgeRange = "25-34"
	Age35to44 AgeRange = "35-44"
	Age45to54 AgeRange = "45-54"
	Age55to64 AgeRange = "55-64"
	Age65Plus AgeRange = "65+"
)

// TotalAgeRanges is the number of defined age buckets.
const TotalAgeRanges = 6

func (a AgeRange) IsValid() bool {
	switch a {
	case Age18to24, Age25to34, Age35to44, Age45to54, Age55to64, Age65Plus:
		return true
	}
	return false
}

type IncomeLevel string

const (
	IncomeLow         IncomeLevel = "low"
	IncomeMiddle      IncomeLevel = "middle"
	IncomeUpperMiddle IncomeLevel = "upper_middle"
	IncomeHigh        IncomeLevel = "high"
)

// TotalIncomeLevels is the number of defined income tiers.
const TotalIncomeLevels = 4

func (l IncomeLevel) IsValid() bool {
	switch l {
	case IncomeLow, IncomeMiddle, IncomeUpperMiddle, IncomeHigh:
		return true
	}
	return false
}

type EngagementLevel string

const (
	EngagementAll    EngagementLevel = "all"
	EngagementHigh   EngagementLevel = "high"
	EngagementMedium EngagementLevel = "medium"
	EngagementLow    EngagementLevel = "low"
)

func (l EngagementLevel) IsValid() bool {
	switch l {
	case EngagementAll, EngagementHigh, EngagementMedium, EngagementLow:
		return true
	}
	return false
}

// GeoCircle defines radius-based geo targeting around a center point.
type GeoCircle struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusKm  float64 `json:"radius_km"`
}

// TargetingRules is the declarative audience filter set. Every
// field is optional; an absent field places no constraint on that dimension.
// A rule set with nothing set means "match the entire population" and is
// valid by design.
type TargetingRules struct {
	// Demographics
	AgeRanges    []AgeRange    `json:"age_ranges,omitempty"`
	Genders      []string      `json:"genders,omitempty"`
	IncomeLevels []IncomeLevel `json:"income_levels,omitempty"`

	// Location
	Cities    []string   `json:"cities,omitempty"` // exact-match locality names
	GeoCenter *GeoCircle `json:"geo_center,omitempty"`

	// Behavior
	Interests        []string `json:"interests,omitempty"`
	MinActivityScore int      `json:"min_activity_score,omitempty"` // 0-100 inclusive lower bound
	MinPurchases     *int     `json:"min_purchases,omitempty"`
	DriversOnly      bool     `json:"drivers_only,omitempty"`

	// Exclusions
	ExcludeExistingCustomers bool `json:"exclude_existing_customers,omitempty"`
	ExcludeRecentVisitors    bool `json:"exclude_recent_visitors,omitempty"`
}

// FollowerTargetingRules scopes targeting to a single business's follower
// graph. Embeds the general rule set for shared dimensions.
type FollowerTargetingRules struct {
	TargetingRules

	TargetFollowersOnly    bool            `json:"target_followers_only,omitempty"`
	MinFollowDays          int             `json:"min_follow_days,omitempty"`
	EngagementLevel        EngagementLevel `json:"engagement_level,omitempty"`
	IncludeRecentFollowers bool            `json:"include_recent_followers,omitempty"` // followed within 7 days
}

// Validate rejects structurally malformed rule sets. An empty rule set is
// valid. Error messages name the offending field.
func (r *TargetingRules) Validate() error {
	for _, a := range r.AgeRanges {
		if !a.IsValid() {
			return fmt.Errorf("%w: age_ranges contains unknown bucket %q", ErrInvalidInput, a)
		}
	}
	for _, l := range r.IncomeLevels {
		if !l.IsValid() {
			return fmt.Errorf("%w: income_levels contains unknown tier %q", ErrInvalidInput, l)
		}
	}
	if r.MinActivityScore < 0 || r.MinActivityScore > 100 {
		return fmt.Errorf("%w: min_activity_score must be within 0-100, got %d", ErrInvalidInput, r.MinActivityScore)
	}
	if r.MinPurchases != nil && *r.MinPurchases < 0 {
		return fmt.Errorf("%w: min_purchases must be >= 0, got %d", ErrInvalidInput, *r.MinPurchases)
	}
	if c := r.GeoCenter; c != nil {
		if c.Latitude < -90 || c.Latitude > 90 {
			return fmt.Errorf("%w: geo_center.latitude out of range: %v", ErrInvalidInput, c.Latitude)
		}
		if c.Longitude < -180 || c.Longitude > 180 {
			return fmt.Errorf("%w: geo_center.longitude out of range: %v", ErrInvalidInput, c.Longitude)
		}
		if c.RadiusKm <= 0 {
			return fmt.Errorf("%w: geo_center.radius_km must be > 0, got %v", ErrInvalidInput, c.RadiusKm)
		}
	}
	return nil
}

// Validate checks the follower-scoped fields on top of the general ones.
func (r *FollowerTargetingRules) Validate() error {
	if err := r.TargetingRules.Validate(); err != nil {
		return err
	}
	if r.MinFollowDays < 0 {
		return fmt.Errorf("%w: min_follow_days must be >= 0, got %d", ErrInvalidInput, r.MinFollowDays)
	}
	if r.EngagementLevel != "" && !r.EngagementLevel.IsValid() {
		return fmt.Errorf("%w: engagement_level must be one of all/high/medium/low, got %q", ErrInvalidInput, r.EngagementLevel)
	}
	return nil
}

// IsEmpty reports whether no dimension at all is constrained, i.e. the rule
// set matches the entire population.
func (r *TargetingRules) IsEmpty() bool {
	return len(r.AgeRanges) == 0 &&
		len(r.Genders) == 0 &&
		len(r.IncomeLevels) == 0 &&
		len(r.Cities) == 0 &&
		r.GeoCenter == nil &&
		len(r.Interests) == 0 &&
		r.MinActivityScore == 0 &&
		r.MinPurchases == nil &&
		!r.DriversOnly &&
		!r.ExcludeExistingCustomers &&
		!r.ExcludeRecentVisitors
}

// DimensionCount returns how many of the five core audience dimensions
// (age, gender, income, interests, cities) are populated.
func (r *TargetingRules) DimensionCount() int {
	n := 0
	if len(r.AgeRanges) > 0 {
		n++
	}
	if len(r.Genders) > 0 {
		n++
	}
	if len(r.IncomeLevels) > 0 {
		n++
	}
	if len(r.Interests) > 0 {
		n++
	}
	if len(r.Cities) > 0 {
		n++
	}
	return n
}

// Clone returns a deep copy. Estimation and recommendation never mutate a
// caller's rule set.
func (r *TargetingRules) Clone() *TargetingRules {
	if r == nil {
		return nil
	}
	out := *r
	out.AgeRanges = append([]AgeRange(nil), r.AgeRanges...)
	out.Genders = append([]string(nil), r.Genders...)
	out.IncomeLevels = append([]IncomeLevel(nil), r.IncomeLevels...)
	out.Cities = append([]string(nil), r.Cities...)
	out.Interests = append([]string(nil), r.Interests...)
	if r.GeoCenter != nil {
		c := *r.GeoCenter
		out.GeoCenter = &c
	}
	if r.MinPurchases != nil {
		p := *r.MinPurchases
		out.MinPurchases = &p
	}
	return &out
}
