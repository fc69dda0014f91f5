// Package trigger turns record lifecycle events into resolver calls. Only
// creation resolves; updates are acknowledged and ignored.
package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/territorial/internal/record"
	resolverdomain "github.com/smallbiznis/territorial/internal/resolver/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	TopicRecordCreated = "record.created"
	TopicRecordUpdated = "record.updated"
)

var (
	ErrInvalidPayload = errors.New("invalid_payload")
	ErrInvalidKind    = errors.New("invalid_assignable_type")
	ErrInvalidID      = errors.New("invalid_assignable_id")
)

// RecordCreatedEvent is the envelope published when a CRM record is created.
type RecordCreatedEvent struct {
	Kind       string         `json:"assignable_type"`
	ID         string         `json:"assignable_id"`
	ActorID    string         `json:"actor_id,omitempty"`
	Fields     map[string]any `json:"fields"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Record builds the evaluator view of the event.
func (e RecordCreatedEvent) Record() (record.Record, error) {
	kind, err := record.ParseKind(e.Kind)
	if err != nil {
		return nil, ErrInvalidKind
	}
	id := strings.TrimSpace(e.ID)
	if id == "" {
		return nil, ErrInvalidID
	}
	return record.FromMap(kind, id, e.Fields), nil
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Resolver resolverdomain.Service
}

type Handler struct {
	log      *zap.Logger
	resolver resolverdomain.Service
}

func NewHandler(p Params) *Handler {
	return &Handler{
		log:      p.Log.Named("trigger"),
		resolver: p.Resolver,
	}
}

var Module = fx.Module("trigger",
	fx.Provide(NewHandler),
)

// HandleRecordCreated resolves and assigns the new record. Redelivery of the
// same event is safe: the ledger absorbs the duplicate.
func (h *Handler) HandleRecordCreated(ctx context.Context, evt RecordCreatedEvent) (resolverdomain.AssignOutcome, error) {
	rec, err := evt.Record()
	if err != nil {
		return resolverdomain.AssignOutcome{}, err
	}

	outcome, err := h.resolver.AssignIfMatched(ctx, rec, evt.ActorID)
	if err != nil {
		return outcome, err
	}

	fields := []zap.Field{
		zap.String("assignable_type", string(rec.Kind())),
		zap.Bool("matched", outcome.Matched()),
		zap.Bool("created", outcome.Created),
	}
	if !evt.OccurredAt.IsZero() {
		fields = append(fields, zap.Time("occurred_at", evt.OccurredAt))
	}
	h.log.Debug("record created handled", fields...)
	return outcome, nil
}

// Handle dispatches a raw message by topic. Unknown topics are ignored.
func (h *Handler) Handle(ctx context.Context, topic string, payload []byte) error {
	switch strings.TrimSpace(topic) {
	case TopicRecordCreated:
		var evt RecordCreatedEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		_, err := h.HandleRecordCreated(ctx, evt)
		return err
	default:
		h.log.Debug("topic ignored", zap.String("topic", topic))
		return nil
	}
}
