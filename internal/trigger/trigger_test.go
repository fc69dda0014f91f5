package trigger

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/territorial/internal/record"
	resolverdomain "github.com/smallbiznis/territorial/internal/resolver/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type resolverMock struct {
	mock.Mock
}

func (m *resolverMock) Resolve(ctx context.Context, rec record.Record) (resolverdomain.Resolution, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(resolverdomain.Resolution), args.Error(1)
}

func (m *resolverMock) AssignIfMatched(ctx context.Context, rec record.Record, actor string) (resolverdomain.AssignOutcome, error) {
	args := m.Called(ctx, rec, actor)
	return args.Get(0).(resolverdomain.AssignOutcome), args.Error(1)
}

func newHandler(t *testing.T, resolver resolverdomain.Service) *Handler {
	return NewHandler(Params{Log: zaptest.NewLogger(t), Resolver: resolver})
}

func TestHandleRecordCreated(t *testing.T) {
	territoryID := snowflake.ID(10)
	resolver := &resolverMock{}
	resolver.On("AssignIfMatched", mock.Anything, mock.MatchedBy(func(rec record.Record) bool {
		title, ok := rec.FieldValue("title")
		state, _ := rec.FieldValue("address.state")
		return rec.Kind() == record.KindLead && rec.ID() == "lead-1" && ok && title == "California Lead" && state == "CA"
	}), "user-9").Return(resolverdomain.AssignOutcome{
		Resolution: resolverdomain.Resolution{TerritoryID: &territoryID},
		Created:    true,
	}, nil).Once()

	h := newHandler(t, resolver)
	err := h.Handle(context.Background(), TopicRecordCreated, []byte(`{
		"assignable_type": "lead",
		"assignable_id": "lead-1",
		"actor_id": "user-9",
		"fields": {"title": "California Lead", "address": {"state": "CA"}},
		"occurred_at": "2025-01-01T00:00:00Z"
	}`))
	require.NoError(t, err)
	resolver.AssertExpectations(t)
}

func TestUpdatesAndUnknownTopicsAreIgnored(t *testing.T) {
	resolver := &resolverMock{}
	h := newHandler(t, resolver)

	require.NoError(t, h.Handle(context.Background(), TopicRecordUpdated, []byte(`{"assignable_type":"Lead","assignable_id":"1"}`)))
	require.NoError(t, h.Handle(context.Background(), "invoice.paid", []byte(`garbage`)))
	resolver.AssertNotCalled(t, "AssignIfMatched", mock.Anything, mock.Anything, mock.Anything)
}

func TestInvalidEvents(t *testing.T) {
	resolver := &resolverMock{}
	h := newHandler(t, resolver)
	ctx := context.Background()

	err := h.Handle(ctx, TopicRecordCreated, []byte(`{`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = h.HandleRecordCreated(ctx, RecordCreatedEvent{Kind: "Invoice", ID: "1"})
	assert.ErrorIs(t, err, ErrInvalidKind)

	_, err = h.HandleRecordCreated(ctx, RecordCreatedEvent{Kind: "Person", ID: " "})
	assert.ErrorIs(t, err, ErrInvalidID)

	resolver.AssertNotCalled(t, "AssignIfMatched", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolverErrorsPropagate(t *testing.T) {
	writeErr := errors.New("write assignment: disk full")
	resolver := &resolverMock{}
	resolver.On("AssignIfMatched", mock.Anything, mock.Anything, "").
		Return(resolverdomain.AssignOutcome{}, writeErr)

	h := newHandler(t, resolver)
	_, err := h.HandleRecordCreated(context.Background(), RecordCreatedEvent{Kind: "Organization", ID: "org-1"})
	assert.ErrorIs(t, err, writeErr)
}
