package storage

import (
	"fmt"
	"math/rand"

	"github.com/radiusdt/vector-reach/internal/models"
)

type sampleCity struct {
	name     string
	lat, lng float64
}

var sampleCities = []sampleCity{
	{"Moscow", 55.7558, 37.6173},
	{"Saint Petersburg", 59.9311, 30.3609},
	{"Novosibirsk", 55.0084, 82.9357},
	{"Yekaterinburg", 56.8389, 60.6057},
	{"Kazan", 55.7963, 49.1088},
}

var sampleInterests = []string{
	"food", "fitness", "travel", "auto", "fashion",
	"electronics", "beauty", "sports", "music", "pets",
}

var sampleAges = []models.AgeRange{
	models.Age18to24, models.Age25to34, models.Age35to44,
	models.Age45to54, models.Age55to64, models.Age65Plus,
}

var sampleIncomes = []models.IncomeLevel{
	models.IncomeLow, models.IncomeMiddle,
	models.IncomeUpperMiddle, models.IncomeHigh,
}

// SampleUsers generates n deterministic synthetic population rows for the
// in-memory source. The same n always produces the same rows, so development
// estimates are reproducible across restarts.
func SampleUsers(n int) []*AudienceUser {
	rng := rand.New(rand.NewSource(42))
	users := make([]*AudienceUser, 0, n)
	for i := 0; i < n; i++ {
		city := sampleCities[rng.Intn(len(sampleCities))]
		u := &AudienceUser{
			ID:            fmt.Sprintf("user-%06d", i),
			AgeRange:      sampleAges[rng.Intn(len(sampleAges))],
			IncomeLevel:   sampleIncomes[rng.Intn(len(sampleIncomes))],
			City:          city.name,
			ActivityScore: rng.Intn(101),
			Purchases:     rng.Intn(20),
			IsDriver:      rng.Float64() < 0.15,
		}
		if rng.Float64() < 0.5 {
			u.Gender = "female"
		} else {
			u.Gender = "male"
		}
		// ~80% of rows carry coordinates, jittered around the city center.
		if rng.Float64() < 0.8 {
			lat := city.lat + (rng.Float64()-0.5)*0.2
			lng := city.lng + (rng.Float64()-0.5)*0.3
			u.Latitude = &lat
			u.Longitude = &lng
		}
		for _, interest := range sampleInterests {
			if rng.Float64() < 0.2 {
				u.Interests = append(u.Interests, interest)
			}
		}
		u.ExistingCustomer = rng.Float64() < 0.1
		u.RecentVisitor = rng.Float64() < 0.05
		users = append(users, u)
	}
	return users
}
