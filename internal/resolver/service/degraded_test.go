package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	assignmentdomain "github.com/smallbiznis/territorial/internal/assignment/domain"
	"github.com/smallbiznis/territorial/internal/record"
	"github.com/smallbiznis/territorial/internal/resolver/domain"
	ruledomain "github.com/smallbiznis/territorial/internal/rule/domain"
	territorydomain "github.com/smallbiznis/territorial/internal/territory/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type territoryStore struct {
	mock.Mock
	territorydomain.Service
}

func (m *territoryStore) ListActive(ctx context.Context) ([]territorydomain.Territory, error) {
	args := m.Called(ctx)
	items, _ := args.Get(0).([]territorydomain.Territory)
	return items, args.Error(1)
}

type ruleStore struct {
	mock.Mock
	ruledomain.Service
}

func (m *ruleStore) ListActiveByTerritoryIDs(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID][]ruledomain.Rule, error) {
	args := m.Called(ctx, ids)
	grouped, _ := args.Get(0).(map[snowflake.ID][]ruledomain.Rule)
	return grouped, args.Error(1)
}

func (m *ruleStore) ListByTerritory(ctx context.Context, territoryID snowflake.ID, activeOnly bool) ([]ruledomain.Rule, error) {
	args := m.Called(ctx, territoryID, activeOnly)
	rules, _ := args.Get(0).([]ruledomain.Rule)
	return rules, args.Error(1)
}

type ledger struct {
	mock.Mock
	assignmentdomain.Service
}

func (m *ledger) CreateAutomaticOnce(ctx context.Context, req assignmentdomain.CreateAssignmentRequest) (assignmentdomain.Assignment, bool, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(assignmentdomain.Assignment), args.Bool(1), args.Error(2)
}

func activeTerritory(id snowflake.ID, code string) territorydomain.Territory {
	return territorydomain.Territory{
		ID:        id,
		Code:      code,
		Status:    territorydomain.StatusActive,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func containsRule(t *testing.T, territoryID snowflake.ID, needle string, priority int) ruledomain.Rule {
	t.Helper()
	value, err := ruledomain.EncodeOperands([]any{needle})
	require.NoError(t, err)
	return ruledomain.Rule{
		ID:          territoryID + 100,
		TerritoryID: territoryID,
		FieldName:   "title",
		Operator:    ruledomain.OpContains,
		Value:       value,
		Priority:    priority,
		IsActive:    true,
	}
}

func newMockedResolver(territories *territoryStore, rules *ruleStore, assignments *ledger) *Service {
	return NewService(Params{
		Log:         zap.NewNop(),
		Territories: territories,
		Rules:       rules,
		Assignments: assignments,
	})
}

func TestTerritoryListFailureIsNoMatch(t *testing.T) {
	territories := &territoryStore{}
	territories.On("ListActive", mock.Anything).Return(nil, errors.New("connection reset"))
	assignments := &ledger{}

	resolver := newMockedResolver(territories, &ruleStore{}, assignments)
	outcome, err := resolver.AssignIfMatched(context.Background(), lead("lead-1", "California Lead"), "")
	require.NoError(t, err)
	assert.False(t, outcome.Matched())
	assignments.AssertNotCalled(t, "CreateAutomaticOnce", mock.Anything, mock.Anything)
}

func TestRuleReadFailureDegradesOnlyThatTerritory(t *testing.T) {
	broken := activeTerritory(1, "broken")
	healthy := activeTerritory(2, "healthy")

	territories := &territoryStore{}
	territories.On("ListActive", mock.Anything).Return([]territorydomain.Territory{broken, healthy}, nil)

	rules := &ruleStore{}
	rules.On("ListActiveByTerritoryIDs", mock.Anything, []snowflake.ID{1, 2}).Return(nil, errors.New("timeout"))
	rules.On("ListByTerritory", mock.Anything, snowflake.ID(1), true).Return(nil, errors.New("timeout"))
	rules.On("ListByTerritory", mock.Anything, snowflake.ID(2), true).
		Return([]ruledomain.Rule{containsRule(t, 2, "California", 5)}, nil)

	resolver := newMockedResolver(territories, rules, &ledger{})
	res, err := resolver.Resolve(context.Background(), lead("lead-1", "California Lead"))
	require.NoError(t, err)
	require.True(t, res.Matched())
	assert.Equal(t, snowflake.ID(2), *res.TerritoryID)
	assert.Equal(t, []snowflake.ID{1}, res.Degraded)
	assert.Equal(t, 1, res.Evaluated)
	rules.AssertExpectations(t)
}

type panickingRecord struct{}

func (panickingRecord) Kind() record.Kind { return record.KindLead }
func (panickingRecord) ID() string        { return "lead-p" }
func (panickingRecord) FieldValue(path string) (any, bool) {
	if path == "title" {
		panic("accessor failure")
	}
	return "ok", true
}

func TestRecordAccessorPanicDegradesTerritory(t *testing.T) {
	first := activeTerritory(1, "first")
	second := activeTerritory(2, "second")

	territories := &territoryStore{}
	territories.On("ListActive", mock.Anything).Return([]territorydomain.Territory{first, second}, nil)

	statusRule := containsRule(t, 2, "o", 1)
	statusRule.FieldName = "status"

	rules := &ruleStore{}
	rules.On("ListActiveByTerritoryIDs", mock.Anything, mock.Anything).Return(map[snowflake.ID][]ruledomain.Rule{
		1: {containsRule(t, 1, "California", 50)},
		2: {statusRule},
	}, nil)

	resolver := newMockedResolver(territories, rules, &ledger{})
	res, err := resolver.Resolve(context.Background(), panickingRecord{})
	require.NoError(t, err)
	require.True(t, res.Matched())
	assert.Equal(t, snowflake.ID(2), *res.TerritoryID)
	assert.Equal(t, []snowflake.ID{1}, res.Degraded)
}

func TestWriteFailureIsSurfaced(t *testing.T) {
	territory := activeTerritory(7, "ca-01")

	territories := &territoryStore{}
	territories.On("ListActive", mock.Anything).Return([]territorydomain.Territory{territory}, nil)

	rules := &ruleStore{}
	rules.On("ListActiveByTerritoryIDs", mock.Anything, mock.Anything).Return(map[snowflake.ID][]ruledomain.Rule{
		7: {containsRule(t, 7, "California", 10)},
	}, nil)

	writeErr := errors.New("disk full")
	assignments := &ledger{}
	assignments.On("CreateAutomaticOnce", mock.Anything, mock.MatchedBy(func(req assignmentdomain.CreateAssignmentRequest) bool {
		return req.TerritoryID == 7 &&
			req.AssignableType == "Lead" &&
			req.AssignableID == "lead-1" &&
			req.AssignedBy == "system:territory-resolver"
	})).Return(assignmentdomain.Assignment{}, false, writeErr)

	resolver := newMockedResolver(territories, rules, assignments)
	outcome, err := resolver.AssignIfMatched(context.Background(), lead("lead-1", "California Lead"), " ")
	require.ErrorIs(t, err, writeErr)
	assert.True(t, outcome.Matched(), "the resolution is still reported")
	assert.Nil(t, outcome.Assignment)
	assignments.AssertExpectations(t)
}

func TestRankOrdersByPriorityThenTieBreaker(t *testing.T) {
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	matches := []domain.Match{
		{TerritoryID: 3, Code: "b", EffectivePriority: 10, CreatedAt: early},
		{TerritoryID: 1, Code: "c", EffectivePriority: 10, CreatedAt: late},
		{TerritoryID: 2, Code: "a", EffectivePriority: 20, CreatedAt: late},
	}

	ranked := append([]domain.Match(nil), matches...)
	domain.Rank(ranked, domain.LowestID)
	assert.Equal(t, []snowflake.ID{2, 1, 3}, matchIDs(ranked))

	ranked = append([]domain.Match(nil), matches...)
	domain.Rank(ranked, domain.Oldest)
	assert.Equal(t, []snowflake.ID{2, 3, 1}, matchIDs(ranked))

	ranked = append([]domain.Match(nil), matches...)
	domain.Rank(ranked, domain.ByCode)
	assert.Equal(t, []snowflake.ID{2, 3, 1}, matchIDs(ranked))

	ranked = append([]domain.Match(nil), matches...)
	domain.Rank(ranked, domain.TieBreakerFor("unknown"))
	assert.Equal(t, []snowflake.ID{2, 1, 3}, matchIDs(ranked))
}

func matchIDs(matches []domain.Match) []snowflake.ID {
	out := make([]snowflake.ID, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.TerritoryID)
	}
	return out
}
