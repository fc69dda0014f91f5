package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" lead ")
	require.NoError(t, err)
	assert.Equal(t, KindLead, k)

	k, err = ParseKind("ORGANIZATION")
	require.NoError(t, err)
	assert.Equal(t, KindOrganization, k)

	_, err = ParseKind("Invoice")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestMapRecordDottedPaths(t *testing.T) {
	rec := FromMap(KindLead, "lead-1", map[string]any{
		"title": "California Lead",
		"address": map[string]any{
			"state": "CA",
			"geo":   map[string]any{"zone": "west"},
		},
		"owner": nil,
	})

	v, ok := rec.FieldValue("title")
	assert.True(t, ok)
	assert.Equal(t, "California Lead", v)

	v, ok = rec.FieldValue("address.state")
	assert.True(t, ok)
	assert.Equal(t, "CA", v)

	v, ok = rec.FieldValue("address.geo.zone")
	assert.True(t, ok)
	assert.Equal(t, "west", v)

	v, ok = rec.FieldValue("owner")
	assert.True(t, ok, "present null is still present")
	assert.Nil(t, v)

	_, ok = rec.FieldValue("owner.name")
	assert.False(t, ok)

	_, ok = rec.FieldValue("address.city")
	assert.False(t, ok)

	_, ok = rec.FieldValue("title.length")
	assert.False(t, ok, "scalars have no sub-fields")

	_, ok = rec.FieldValue("address..state")
	assert.False(t, ok)

	_, ok = rec.FieldValue("")
	assert.False(t, ok)
}

func TestLeadFieldValue(t *testing.T) {
	value := 1500.0
	lead := &Lead{
		LeadID:  "l-1",
		Title:   "Premium California Account",
		Value:   &value,
		Address: &Address{State: "CA", City: "San Jose"},
		Attributes: Fields{
			"segment": "enterprise",
			"tags":    map[string]any{"tier": "gold"},
		},
	}

	v, ok := lead.FieldValue("address.state")
	assert.True(t, ok)
	assert.Equal(t, "CA", v)

	v, ok = lead.FieldValue("value")
	assert.True(t, ok)
	assert.Equal(t, 1500.0, v)

	v, ok = lead.FieldValue("segment")
	assert.True(t, ok)
	assert.Equal(t, "enterprise", v)

	v, ok = lead.FieldValue("tags.tier")
	assert.True(t, ok)
	assert.Equal(t, "gold", v)

	_, ok = lead.FieldValue("address.region")
	assert.False(t, ok)

	v, ok = lead.FieldValue("expected_close_date")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestNilNestedValues(t *testing.T) {
	lead := &Lead{LeadID: "l-2"}

	v, ok := lead.FieldValue("address")
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = lead.FieldValue("address.state")
	assert.False(t, ok)

	person := &Person{PersonID: "p-1"}
	_, ok = person.FieldValue("organization.name")
	assert.False(t, ok)
}

func TestPersonResolvesThroughOrganization(t *testing.T) {
	employees := 120
	person := &Person{
		PersonID: "p-1",
		Organization: &Organization{
			OrganizationID: "o-1",
			Name:           "Acme",
			EmployeeCount:  &employees,
			Address:        &Address{State: "NY"},
		},
	}

	v, ok := person.FieldValue("organization.employee_count")
	assert.True(t, ok)
	assert.Equal(t, 120, v)

	v, ok = person.FieldValue("organization.address.state")
	assert.True(t, ok)
	assert.Equal(t, "NY", v)
}

func TestReference(t *testing.T) {
	ref := RefOf(&Organization{OrganizationID: "o-9"})
	assert.Equal(t, Reference{Kind: KindOrganization, ID: "o-9"}, ref)
	assert.True(t, ref.Valid())
	assert.False(t, Reference{Kind: KindLead}.Valid())
}
