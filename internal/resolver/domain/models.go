package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	assignmentdomain "github.com/smallbiznis/territorial/internal/assignment/domain"
	"github.com/smallbiznis/territorial/internal/record"
)

// Match is a territory whose active rules all matched the record.
type Match struct {
	TerritoryID       snowflake.ID `json:"territory_id"`
	Code              string       `json:"code"`
	EffectivePriority int          `json:"effective_priority"`
	RuleCount         int          `json:"rule_count"`
	CreatedAt         time.Time    `json:"-"`
}

// Resolution is the outcome of evaluating one record against every active
// territory. Matches are ordered best first; TerritoryID is the winner.
type Resolution struct {
	TerritoryID *snowflake.ID  `json:"territory_id"`
	Matches     []Match        `json:"matches"`
	Evaluated   int            `json:"evaluated"`
	Degraded    []snowflake.ID `json:"degraded,omitempty"`
}

func (r Resolution) Matched() bool {
	return r.TerritoryID != nil
}

type AssignOutcome struct {
	Resolution
	Assignment *assignmentdomain.Assignment `json:"assignment,omitempty"`
	// Created is false when no territory matched or the automatic
	// assignment already existed.
	Created bool `json:"created"`
}

type Service interface {
	// Resolve picks the winning territory without writing anything.
	Resolve(ctx context.Context, rec record.Record) (Resolution, error)
	// AssignIfMatched resolves and records an automatic assignment for the
	// winner. An empty actor means the configured system identity.
	AssignIfMatched(ctx context.Context, rec record.Record, actor string) (AssignOutcome, error)
}

var (
	ErrNilRecord       = errors.New("invalid_record")
	ErrUnsupportedKind = errors.New("unsupported_assignable_type")
)
