package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/radiusdt/vector-reach/internal/audience"
	"github.com/radiusdt/vector-reach/internal/geo"
	"github.com/radiusdt/vector-reach/internal/models"
)

// ClickHousePopulationSource serves the live PopulationSource contract from
// an analytical user store. Selected by config when aggregate counting over
// very large populations is too costly for PostgreSQL.
type ClickHousePopulationSource struct {
	conn driver.Conn
}

func NewClickHousePopulationSource(conn driver.Conn) *ClickHousePopulationSource {
	return &ClickHousePopulationSource{conn: conn}
}

func (s *ClickHousePopulationSource) Name() string              { return "clickhouse" }
func (s *ClickHousePopulationSource) Mode() audience.SourceMode { return audience.ModeLive }

func (s *ClickHousePopulationSource) BaseSize(ctx context.Context) (int64, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count() FROM audience_users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count population: %w", err)
	}
	return int64(count), nil
}

func (s *ClickHousePopulationSource) CountStage(ctx context.Context, stage audience.Stage, rules *models.TargetingRules, _ int64) (int64, error) {
	where, args := chStageConditions(stage, rules)

	query := `SELECT count() FROM audience_users`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	var count uint64
	if err := s.conn.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s stage: %w", stage, err)
	}
	return int64(count), nil
}

func chStageConditions(stage audience.Stage, rules *models.TargetingRules) ([]string, []any) {
	var where []string
	var args []any

	// Demographics
	if len(rules.AgeRanges) > 0 {
		where = append(where, "age_range IN (?)")
		args = append(args, ageStrings(rules.AgeRanges))
	}
	if len(rules.Genders) > 0 {
		where = append(where, "lower(gender) IN (?)")
		args = append(args, lowered(rules.Genders))
	}
	if len(rules.IncomeLevels) > 0 {
		where = append(where, "income_level IN (?)")
		args = append(args, incomeStrings(rules.IncomeLevels))
	}
	if stage == audience.StageDemographics {
		return where, args
	}

	// Location
	if len(rules.Cities) > 0 {
		where = append(where, "lower(city) IN (?)")
		args = append(args, lowered(rules.Cities))
	}
	if c := rules.GeoCenter; c != nil {
		// greatCircleDistance takes (lng, lat) pairs and returns meters.
		// Rows with the (0,0) null-island sentinel never match.
		box := geo.BoundsAround(geo.Point{Latitude: c.Latitude, Longitude: c.Longitude}, c.RadiusKm)
		where = append(where,
			"(latitude != 0 OR longitude != 0)",
			"latitude BETWEEN ? AND ?",
			"longitude BETWEEN ? AND ?",
			"greatCircleDistance(?, ?, longitude, latitude) <= ?",
		)
		args = append(args,
			box.South, box.North,
			box.West, box.East,
			c.Longitude, c.Latitude, c.RadiusKm*1000,
		)
	}
	if stage == audience.StageLocation {
		return where, args
	}

	// Behavior
	if len(rules.Interests) > 0 {
		where = append(where, "hasAny(interests, ?)")
		args = append(args, lowered(rules.Interests))
	}
	if rules.MinActivityScore > 0 {
		where = append(where, "activity_score >= ?")
		args = append(args, rules.MinActivityScore)
	}
	if rules.MinPurchases != nil {
		where = append(where, "purchases >= ?")
		args = append(args, *rules.MinPurchases)
	}
	if rules.DriversOnly {
		where = append(where, "is_driver = 1")
	}
	if rules.ExcludeExistingCustomers {
		where = append(where, "existing_customer = 0")
	}
	if rules.ExcludeRecentVisitors {
		where = append(where, "recent_visitor = 0")
	}
	return where, args
}
