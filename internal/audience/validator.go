package audience

import (
	"github.com/radiusdt/vector-reach/internal/models"
)

// Validator produces structured quality feedback for a targeting rule set.
// Pure function, no I/O. Broad targeting is valid: warnings and suggestions
// never affect validity; errors are reserved for structurally malformed
// input, which is rejected before any quality rule runs.
type Validator struct{}

// NewValidator returns a rule validator.
func NewValidator() *Validator { return &Validator{} }

// Validate evaluates every applicable quality rule independently.
func (v *Validator) Validate(rules *models.TargetingRules) *models.ValidationResult {
	res := &models.ValidationResult{
		Valid:       true,
		Errors:      []string{},
		Warnings:    []string{},
		Suggestions: []string{},
	}
	if rules == nil {
		rules = &models.TargetingRules{}
	}

	if err := rules.Validate(); err != nil {
		res.Valid = false
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	if rules.IsEmpty() {
		res.Warnings = append(res.Warnings, "no targeting filters applied; campaign will target all users")
		res.Suggestions = append(res.Suggestions, "add at least one targeting dimension to focus the campaign")
	}

	if len(rules.AgeRanges) > 4 {
		res.Warnings = append(res.Warnings, "targeting is broad across age ranges")
		res.Suggestions = append(res.Suggestions, "narrow to 2-3 age ranges for a sharper audience")
	}

	// The designed over-constrained detector: narrow dimensions plus the
	// driver restriction plus a high activity bar.
	if rules.DimensionCount() > 3 && rules.DriversOnly && rules.MinActivityScore > 70 {
		res.Warnings = append(res.Warnings, "audience may be very small with this combination of filters")
		res.Suggestions = append(res.Suggestions, "relax one or more filters to broaden the audience")
	}

	if rules.DriversOnly {
		res.Suggestions = append(res.Suggestions, "driver-only campaigns typically reach 10-15% of the total population")
	}

	if rules.MinActivityScore > 80 {
		res.Suggestions = append(res.Suggestions, "lower min_activity_score for broader reach")
	}

	if includesIncome(rules.IncomeLevels, models.IncomeHigh) && rules.MinActivityScore >= 70 {
		res.Suggestions = append(res.Suggestions, "premium targeting: expect higher engagement")
	}

	return res
}

func includesIncome(levels []models.IncomeLevel, want models.IncomeLevel) bool {
	for _, l := range levels {
		if l == want {
			return true
		}
	}
	return false
}
