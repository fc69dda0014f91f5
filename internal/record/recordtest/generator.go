// Package recordtest generates realistic records for resolver tests.
package recordtest

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/smallbiznis/territorial/internal/record"
)

// LeadConfig pins fields that a test rule depends on; empty values are faked.
type LeadConfig struct {
	Title    string
	State    string
	Country  string
	Industry string
	Value    *float64
}

// Generator wraps a seeded faker so generated records are reproducible.
type Generator struct {
	faker *gofakeit.Faker
}

func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

func (g *Generator) Lead(cfg LeadConfig) *record.Lead {
	title := cfg.Title
	if title == "" {
		title = g.faker.Company() + " Lead"
	}
	state := cfg.State
	if state == "" {
		state = g.faker.StateAbr()
	}
	country := cfg.Country
	if country == "" {
		country = "US"
	}
	industry := cfg.Industry
	if industry == "" {
		industry = g.faker.JobDescriptor()
	}
	value := cfg.Value
	if value == nil {
		v := g.faker.Price(1000, 250000)
		value = &v
	}

	return &record.Lead{
		LeadID:   g.faker.UUID(),
		Title:    title,
		Source:   g.faker.RandomString([]string{"web", "referral", "event", "import"}),
		Status:   "new",
		Industry: industry,
		Value:    value,
		Email:    g.faker.Email(),
		Address: &record.Address{
			Street:     g.faker.Street(),
			City:       g.faker.City(),
			State:      state,
			PostalCode: g.faker.Zip(),
			Country:    country,
		},
		CreatedAt: time.Now().UTC(),
	}
}

func (g *Generator) Organization(industry string, employees int) *record.Organization {
	return &record.Organization{
		OrganizationID: g.faker.UUID(),
		Name:           g.faker.Company(),
		Industry:       industry,
		EmployeeCount:  &employees,
		Website:        g.faker.URL(),
		Address: &record.Address{
			City:    g.faker.City(),
			State:   g.faker.StateAbr(),
			Country: "US",
		},
	}
}

func (g *Generator) Person(org *record.Organization) *record.Person {
	return &record.Person{
		PersonID:     g.faker.UUID(),
		Name:         g.faker.Name(),
		Email:        g.faker.Email(),
		JobTitle:     g.faker.JobTitle(),
		Organization: org,
	}
}
