package evaluator

import (
	"testing"
	"time"

	"github.com/smallbiznis/territorial/internal/record"
	"github.com/smallbiznis/territorial/internal/rule/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newRule(t *testing.T, field string, op domain.Operator, values ...any) domain.Rule {
	t.Helper()
	value, err := domain.EncodeOperands(values)
	require.NoError(t, err)
	return domain.Rule{
		ID:        1,
		FieldName: field,
		Operator:  op,
		Value:     value,
		IsActive:  true,
	}
}

func sampleRecord() record.Record {
	return record.FromMap(record.KindLead, "lead-1", map[string]any{
		"title":     "California Lead",
		"employees": 250,
		"revenue":   1250.5,
		"zip":       "94107",
		"vip":       true,
		"owner":     nil,
		"address":   map[string]any{"state": "CA", "city": "San Francisco"},
		"tags":      []any{"a", "b"},
		"opened_at": time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
}

func TestOperatorTable(t *testing.T) {
	rec := sampleRecord()

	cases := []struct {
		name   string
		field  string
		op     domain.Operator
		values []any
		want   bool
	}{
		{"equals match", "address.state", domain.OpEquals, []any{"CA"}, true},
		{"equals mismatch", "address.state", domain.OpEquals, []any{"NY"}, false},
		{"equals is case sensitive", "address.state", domain.OpEquals, []any{"ca"}, false},
		{"equals numeric string vs int", "employees", domain.OpEquals, []any{"250"}, true},
		{"equals float vs int operand", "revenue", domain.OpEquals, []any{1250.5}, true},
		{"equals bool vs string", "vip", domain.OpEquals, []any{"true"}, true},
		{"equals bool mismatch", "vip", domain.OpEquals, []any{false}, false},
		{"equals time instant", "opened_at", domain.OpEquals, []any{"2024-03-01T14:00:00+02:00"}, true},
		{"not equals match", "address.state", domain.OpNotEquals, []any{"NY"}, true},
		{"not equals mismatch", "address.state", domain.OpNotEquals, []any{"CA"}, false},
		{"greater match", "employees", domain.OpGreater, []any{100}, true},
		{"greater mismatch", "employees", domain.OpGreater, []any{250}, false},
		{"greater non numeric", "title", domain.OpGreater, []any{1}, false},
		{"less match", "revenue", domain.OpLess, []any{"2000"}, true},
		{"less mismatch", "revenue", domain.OpLess, []any{1000}, false},
		{"in match", "address.state", domain.OpIn, []any{"NY", "CA"}, true},
		{"in mismatch", "address.state", domain.OpIn, []any{"NY", "TX"}, false},
		{"in empty list", "address.state", domain.OpIn, []any{}, false},
		{"in numeric", "zip", domain.OpIn, []any{94107, 10001}, true},
		{"not in match", "address.state", domain.OpNotIn, []any{"NY", "TX"}, true},
		{"not in mismatch", "address.state", domain.OpNotIn, []any{"CA"}, false},
		{"not in empty list", "address.state", domain.OpNotIn, []any{}, false},
		{"contains match", "title", domain.OpContains, []any{"California"}, true},
		{"contains mismatch", "title", domain.OpContains, []any{"New York"}, false},
		{"contains case sensitive", "title", domain.OpContains, []any{"california"}, false},
		{"contains on number", "employees", domain.OpContains, []any{"25"}, true},
		{"starts with match", "title", domain.OpStartsWith, []any{"Cali"}, true},
		{"starts with mismatch", "title", domain.OpStartsWith, []any{"Lead"}, false},
		{"ends with match", "title", domain.OpEndsWith, []any{"Lead"}, true},
		{"ends with mismatch", "title", domain.OpEndsWith, []any{"Cali"}, false},
		{"is null on present", "title", domain.OpIsNull, nil, false},
		{"is null on null", "owner", domain.OpIsNull, nil, true},
		{"is not null on present", "title", domain.OpIsNotNull, nil, true},
		{"is not null on null", "owner", domain.OpIsNotNull, nil, false},
		{"between match", "employees", domain.OpBetween, []any{100, 500}, true},
		{"between inclusive bounds", "employees", domain.OpBetween, []any{250, 250}, true},
		{"between mismatch", "employees", domain.OpBetween, []any{300, 500}, false},
		{"between reversed bounds", "employees", domain.OpBetween, []any{500, 100}, false},
		{"composite value", "tags", domain.OpEquals, []any{"a"}, false},
		{"composite contains", "tags", domain.OpContains, []any{"a"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Evaluate(newRule(t, tc.field, tc.op, tc.values...), rec))
		})
	}
}

func TestMissingValues(t *testing.T) {
	rec := sampleRecord()
	expect := map[domain.Operator]bool{
		domain.OpEquals:     false,
		domain.OpNotEquals:  true,
		domain.OpGreater:    false,
		domain.OpLess:       false,
		domain.OpIn:         false,
		domain.OpNotIn:      true,
		domain.OpContains:   false,
		domain.OpStartsWith: false,
		domain.OpEndsWith:   false,
		domain.OpIsNull:     true,
		domain.OpIsNotNull:  false,
		domain.OpBetween:    false,
	}

	for _, field := range []string{"address.country", "nothing", "owner"} {
		for op, want := range expect {
			values := []any{"x"}
			if op == domain.OpBetween {
				values = []any{1, 2}
			}
			r := newRule(t, field, op, values...)
			assert.Equal(t, want, Evaluate(r, rec), "field %s operator %s", field, op)
		}
	}
}

func TestInactiveRuleNeverMatches(t *testing.T) {
	r := newRule(t, "owner", domain.OpIsNull)
	r.IsActive = false
	assert.False(t, Evaluate(r, sampleRecord()))

	r = newRule(t, "title", domain.OpContains, "California")
	r.IsActive = false
	assert.False(t, Evaluate(r, sampleRecord()))
}

func TestMalformedRulesFailClosed(t *testing.T) {
	rec := sampleRecord()

	unknown := newRule(t, "title", domain.Operator("like"), "California")
	assert.False(t, Evaluate(unknown, rec))

	notAList := newRule(t, "title", domain.OpContains)
	notAList.Value = datatypes.JSON(`{"value":"California"}`)
	assert.False(t, Evaluate(notAList, rec))

	garbage := newRule(t, "title", domain.OpNotEquals)
	garbage.Value = datatypes.JSON(`[not json`)
	assert.False(t, Evaluate(garbage, rec), "decode failure wins over the missing-value branch")

	empty := newRule(t, "title", domain.OpEquals)
	assert.False(t, Evaluate(empty, rec))

	emptyNotIn := newRule(t, "nothing", domain.OpNotIn)
	assert.False(t, Evaluate(emptyNotIn, rec), "an empty list fails closed even for a missing field")

	oneBound := newRule(t, "employees", domain.OpBetween, 1)
	assert.False(t, Evaluate(oneBound, rec))

	nonNumericBound := newRule(t, "employees", domain.OpBetween, "low", 500)
	assert.False(t, Evaluate(nonNumericBound, rec))

	unaryWithJunk := newRule(t, "owner", domain.OpIsNull)
	unaryWithJunk.Value = datatypes.JSON(`"ignored"`)
	assert.True(t, Evaluate(unaryWithJunk, rec), "unary operators ignore operands")

	assert.False(t, Evaluate(newRule(t, "title", domain.OpContains, "California"), nil))
}

func TestLargeIntegersCompareExactly(t *testing.T) {
	rec := record.FromMap(record.KindOrganization, "org-1", map[string]any{
		"external_id": int64(9007199254740993),
		"quota":       uint64(18446744073709551615),
		"ref":         "9007199254740993",
	})

	cases := []struct {
		name   string
		field  string
		op     domain.Operator
		values []any
		want   bool
	}{
		{"equals neighbour beyond float precision", "external_id", domain.OpEquals, []any{int64(9007199254740992)}, false},
		{"equals same large int", "external_id", domain.OpEquals, []any{int64(9007199254740993)}, true},
		{"equals large int as string", "external_id", domain.OpEquals, []any{"9007199254740993"}, true},
		{"string field vs neighbour", "ref", domain.OpEquals, []any{int64(9007199254740992)}, false},
		{"not equals neighbour", "external_id", domain.OpNotEquals, []any{int64(9007199254740992)}, true},
		{"in list of neighbours", "external_id", domain.OpIn, []any{int64(9007199254740992), int64(9007199254740994)}, false},
		{"greater than neighbour", "external_id", domain.OpGreater, []any{int64(9007199254740992)}, true},
		{"less than neighbour", "external_id", domain.OpLess, []any{int64(9007199254740994)}, true},
		{"between tight bounds", "external_id", domain.OpBetween, []any{int64(9007199254740993), int64(9007199254740993)}, true},
		{"between excluding value", "external_id", domain.OpBetween, []any{int64(9007199254740994), int64(9007199254740999)}, false},
		{"uint64 max", "quota", domain.OpEquals, []any{uint64(18446744073709551615)}, true},
		{"uint64 max neighbour", "quota", domain.OpEquals, []any{uint64(18446744073709551614)}, false},
		{"float operand still numeric", "external_id", domain.OpGreater, []any{1.5}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Evaluate(newRule(t, tc.field, tc.op, tc.values...), rec))
		})
	}
}

func TestEvaluateAll(t *testing.T) {
	rec := record.FromMap(record.KindLead, "lead-2", map[string]any{
		"title": "Premium California Account",
	})

	california := newRule(t, "title", domain.OpContains, "California")
	premium := newRule(t, "title", domain.OpContains, "Premium")
	texas := newRule(t, "title", domain.OpContains, "Texas")

	assert.True(t, EvaluateAll([]domain.Rule{california, premium}, rec))
	assert.False(t, EvaluateAll([]domain.Rule{california, texas}, rec))
	assert.False(t, EvaluateAll(nil, rec))
}

func TestTypedRecords(t *testing.T) {
	employees := 40
	org := &record.Organization{
		OrganizationID: "org-1",
		Name:           "Acme",
		EmployeeCount:  &employees,
		Address:        &record.Address{State: "TX"},
	}

	assert.True(t, Evaluate(newRule(t, "employee_count", domain.OpBetween, 1, 50), org))
	assert.True(t, Evaluate(newRule(t, "address.state", domain.OpIn, "TX", "OK"), org))
	assert.True(t, Evaluate(newRule(t, "annual_revenue", domain.OpIsNull), org))
	assert.True(t, Evaluate(newRule(t, "address.postal_code", domain.OpEquals, ""), org))
}
