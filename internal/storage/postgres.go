package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/radiusdt/vector-reach/internal/audience"
	"github.com/radiusdt/vector-reach/internal/geo"
	"github.com/radiusdt/vector-reach/internal/models"
)

// PgxQuerier is the subset of pgxpool.Pool the sources need. Satisfied by
// *pgxpool.Pool and by pgxmock pools in tests.
type PgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresPopulationSource issues live aggregate COUNT queries per pipeline
// stage against the audience_users table.
type PostgresPopulationSource struct {
	db PgxQuerier
}

func NewPostgresPopulationSource(db PgxQuerier) *PostgresPopulationSource {
	return &PostgresPopulationSource{db: db}
}

func (s *PostgresPopulationSource) Name() string              { return "postgres" }
func (s *PostgresPopulationSource) Mode() audience.SourceMode { return audience.ModeLive }

func (s *PostgresPopulationSource) BaseSize(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM audience_users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count population: %w", err)
	}
	return count, nil
}

// CountStage counts rows matching every stage's conditions up to and
// including the requested one, which equals the sequential pipeline
// reduction.
func (s *PostgresPopulationSource) CountStage(ctx context.Context, stage audience.Stage, rules *models.TargetingRules, _ int64) (int64, error) {
	where, args := stageConditions(stage, rules)

	query := `SELECT COUNT(*) FROM audience_users`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	var count int64
	if err := s.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s stage: %w", stage, err)
	}
	return count, nil
}

// stageConditions builds the cumulative WHERE clause for a stage.
func stageConditions(stage audience.Stage, rules *models.TargetingRules) ([]string, []any) {
	var where []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	// Demographics
	if len(rules.AgeRanges) > 0 {
		where = append(where, "age_range = ANY("+arg(ageStrings(rules.AgeRanges))+")")
	}
	if len(rules.Genders) > 0 {
		where = append(where, "LOWER(gender) = ANY("+arg(lowered(rules.Genders))+")")
	}
	if len(rules.IncomeLevels) > 0 {
		where = append(where, "income_level = ANY("+arg(incomeStrings(rules.IncomeLevels))+")")
	}
	if stage == audience.StageDemographics {
		return where, args
	}

	// Location
	if len(rules.Cities) > 0 {
		where = append(where, "LOWER(city) = ANY("+arg(lowered(rules.Cities))+")")
	}
	if c := rules.GeoCenter; c != nil {
		// Bounding box narrows by index; the spherical distance check is
		// exact. Rows without stored coordinates never match.
		box := geo.BoundsAround(geo.Point{Latitude: c.Latitude, Longitude: c.Longitude}, c.RadiusKm)
		where = append(where,
			"latitude IS NOT NULL",
			"longitude IS NOT NULL",
			"latitude BETWEEN "+arg(box.South)+" AND "+arg(box.North),
			"longitude BETWEEN "+arg(box.West)+" AND "+arg(box.East),
			fmt.Sprintf(
				"(%v * acos(LEAST(1.0, cos(radians(%s)) * cos(radians(latitude)) * cos(radians(longitude) - radians(%s)) + sin(radians(%s)) * sin(radians(latitude))))) <= %s",
				geo.EarthRadiusMeters, arg(c.Latitude), arg(c.Longitude), arg(c.Latitude), arg(c.RadiusKm*1000),
			),
		)
	}
	if stage == audience.StageLocation {
		return where, args
	}

	// Behavior
	if len(rules.Interests) > 0 {
		where = append(where, "interests && "+arg(lowered(rules.Interests)))
	}
	if rules.MinActivityScore > 0 {
		where = append(where, "activity_score >= "+arg(rules.MinActivityScore))
	}
	if rules.MinPurchases != nil {
		where = append(where, "purchases >= "+arg(*rules.MinPurchases))
	}
	if rules.DriversOnly {
		where = append(where, "is_driver = TRUE")
	}
	if rules.ExcludeExistingCustomers {
		where = append(where, "existing_customer = FALSE")
	}
	if rules.ExcludeRecentVisitors {
		where = append(where, "recent_visitor = FALSE")
	}
	return where, args
}

func ageStrings(in []models.AgeRange) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func incomeStrings(in []models.IncomeLevel) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func lowered(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.ToLower(v)
	}
	return out
}

// PostgresFollowerSource reads active follower counts.
type PostgresFollowerSource struct {
	db PgxQuerier
}

func NewPostgresFollowerSource(db PgxQuerier) *PostgresFollowerSource {
	return &PostgresFollowerSource{db: db}
}

func (s *PostgresFollowerSource) ActiveFollowerCount(ctx context.Context, businessID string) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM business_followers
		WHERE business_id = $1 AND active = TRUE
	`, businessID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count followers: %w", err)
	}
	return count, nil
}

// PostgresProfileSource reads business profile hints for the recommender.
type PostgresProfileSource struct {
	db PgxQuerier
}

func NewPostgresProfileSource(db PgxQuerier) *PostgresProfileSource {
	return &PostgresProfileSource{db: db}
}

func (s *PostgresProfileSource) Profile(ctx context.Context, businessID string) (*audience.BusinessProfile, error) {
	p := &audience.BusinessProfile{BusinessID: businessID}
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(city, ''), has_run_campaigns, COALESCE(avg_campaign_reach, 0)
		FROM business_profiles WHERE business_id = $1
	`, businessID).Scan(&p.City, &p.HasRunCampaigns, &p.AvgCampaignReach)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get business profile: %w", err)
	}
	return p, nil
}
