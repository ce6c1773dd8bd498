package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetingRulesValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rules   TargetingRules
		wantErr string
	}{
		{"empty is valid", TargetingRules{}, ""},
		{"full valid set", TargetingRules{
			AgeRanges:        []AgeRange{Age25to34},
			IncomeLevels:     []IncomeLevel{IncomeMiddle},
			Cities:           []string{"Moscow"},
			GeoCenter:        &GeoCircle{Latitude: 55.75, Longitude: 37.61, RadiusKm: 10},
			MinActivityScore: 50,
		}, ""},
		{"unknown age bucket", TargetingRules{AgeRanges: []AgeRange{"13-17"}}, "age_ranges"},
		{"unknown income tier", TargetingRules{IncomeLevels: []IncomeLevel{"oligarch"}}, "income_levels"},
		{"activity score too high", TargetingRules{MinActivityScore: 101}, "min_activity_score"},
		{"negative activity score", TargetingRules{MinActivityScore: -1}, "min_activity_score"},
		{"negative purchases", TargetingRules{MinPurchases: intPtr(-1)}, "min_purchases"},
		{"latitude out of range", TargetingRules{GeoCenter: &GeoCircle{Latitude: 91, RadiusKm: 5}}, "latitude"},
		{"longitude out of range", TargetingRules{GeoCenter: &GeoCircle{Longitude: -181, RadiusKm: 5}}, "longitude"},
		{"non-positive radius", TargetingRules{GeoCenter: &GeoCircle{Latitude: 55, Longitude: 37}}, "radius_km"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.rules.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFollowerRulesValidate(t *testing.T) {
	t.Parallel()

	ok := FollowerTargetingRules{MinFollowDays: 30, EngagementLevel: EngagementHigh}
	assert.NoError(t, ok.Validate())

	bad := FollowerTargetingRules{EngagementLevel: "extreme"}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInput)

	// Embedded general rules still apply.
	nested := FollowerTargetingRules{
		TargetingRules: TargetingRules{MinActivityScore: 500},
	}
	assert.ErrorIs(t, nested.Validate(), ErrInvalidInput)
}

func TestIsEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, (&TargetingRules{}).IsEmpty())
	assert.False(t, (&TargetingRules{DriversOnly: true}).IsEmpty())
	assert.False(t, (&TargetingRules{MinPurchases: intPtr(0)}).IsEmpty())
	assert.False(t, (&TargetingRules{ExcludeRecentVisitors: true}).IsEmpty())
}

func TestDimensionCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, (&TargetingRules{}).DimensionCount())
	assert.Equal(t, 0, (&TargetingRules{DriversOnly: true, MinActivityScore: 90}).DimensionCount())

	full := &TargetingRules{
		AgeRanges:    []AgeRange{Age25to34},
		Genders:      []string{"female"},
		IncomeLevels: []IncomeLevel{IncomeMiddle},
		Interests:    []string{"fitness"},
		Cities:       []string{"Moscow"},
	}
	assert.Equal(t, 5, full.DimensionCount())
}

func TestClone(t *testing.T) {
	t.Parallel()

	orig := &TargetingRules{
		AgeRanges:    []AgeRange{Age25to34},
		Cities:       []string{"Moscow"},
		GeoCenter:    &GeoCircle{Latitude: 55.75, Longitude: 37.61, RadiusKm: 10},
		MinPurchases: intPtr(3),
	}

	clone := orig.Clone()
	require.Equal(t, orig, clone)

	clone.AgeRanges[0] = Age65Plus
	clone.Cities[0] = "Kazan"
	clone.GeoCenter.RadiusKm = 99
	*clone.MinPurchases = 7

	assert.Equal(t, Age25to34, orig.AgeRanges[0])
	assert.Equal(t, "Moscow", orig.Cities[0])
	assert.Equal(t, float64(10), orig.GeoCenter.RadiusKm)
	assert.Equal(t, 3, *orig.MinPurchases)

	var nilRules *TargetingRules
	assert.Nil(t, nilRules.Clone())
}

func intPtr(v int) *int { return &v }
