package models

import "time"

// ConfidenceLevel classifies how trustworthy a reach estimate is, driven by
// the absolute magnitude of the estimate.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// EstimateScope distinguishes general-population estimates from estimates
// scoped to a single business's follower graph.
type EstimateScope string

const (
	ScopeGeneral   EstimateScope = "general"
	ScopeFollowers EstimateScope = "followers"
)

// AudienceEstimate is the output of reach estimation.
type AudienceEstimate struct {
	ID         string `json:"id,omitempty"`
	TotalReach int64  `json:"total_reach"`

	// DriversCount equals TotalReach when drivers_only is set, otherwise
	// the driver subset of the reach.
	DriversCount int64 `json:"drivers_count"`

	// Breakdowns are populated only for dimensions actually filtered.
	BreakdownByAge  map[string]int64 `json:"breakdown_by_age,omitempty"`
	BreakdownByCity map[string]int64 `json:"breakdown_by_city,omitempty"`

	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`

	Scope  EstimateScope `json:"scope,omitempty"`
	Source string        `json:"source,omitempty"` // which population source produced the estimate

	// IncludesRecentFollowers documents inclusion of the last-7-days
	// follower cohort. Informational only, never changes the number.
	IncludesRecentFollowers bool `json:"includes_recent_followers,omitempty"`

	EstimatedAt time.Time `json:"estimated_at,omitempty"`
}

// ValidationResult is structured rule-quality feedback. Valid is false iff
// Errors is non-empty; warnings and suggestions never affect validity.
type ValidationResult struct {
	Valid       bool     `json:"valid"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
}
