package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateRuleRequest struct {
	TerritoryID snowflake.ID
	RuleType    string
	FieldName   string
	Operator    string
	Value       []any
	Priority    int
	// IsActive defaults to true when nil.
	IsActive *bool
}

// UpdateRuleRequest changes only the non-nil fields.
type UpdateRuleRequest struct {
	ID        snowflake.ID
	RuleType  *string
	FieldName *string
	Operator  *string
	Value     *[]any
	Priority  *int
}

type Service interface {
	Create(context.Context, CreateRuleRequest) (Rule, error)
	Update(context.Context, UpdateRuleRequest) (Rule, error)
	SetActive(ctx context.Context, id snowflake.ID, active bool) (Rule, error)
	Get(ctx context.Context, id snowflake.ID) (Rule, error)
	ListByTerritory(ctx context.Context, territoryID snowflake.ID, activeOnly bool) ([]Rule, error)
	// ListActiveByTerritoryIDs groups active rules by territory. Territories
	// without active rules are absent from the map.
	ListActiveByTerritoryIDs(ctx context.Context, territoryIDs []snowflake.ID) (map[snowflake.ID][]Rule, error)
}

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidTerritory  = errors.New("invalid_territory")
	ErrTerritoryNotFound = errors.New("territory_not_found")
	ErrInvalidRuleType   = errors.New("invalid_rule_type")
	ErrInvalidFieldName  = errors.New("invalid_field_name")
	ErrInvalidOperator   = errors.New("invalid_operator")
	ErrInvalidOperands   = errors.New("invalid_operands")
	ErrNotFound          = errors.New("not_found")
)
