package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Rule is one field/operator/value test attached to a territory. Every rule
// of a territory must match for the territory to match.
type Rule struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	TerritoryID snowflake.ID   `gorm:"not null;index" json:"territory_id"`
	RuleType    RuleType       `gorm:"type:varchar(32);not null" json:"rule_type"`
	FieldName   string         `gorm:"type:varchar(255);not null" json:"field_name"`
	Operator    Operator       `gorm:"type:varchar(32);not null" json:"operator"`
	Value       datatypes.JSON `gorm:"not null" json:"value"`
	Priority    int            `gorm:"not null;default:0" json:"priority"`
	IsActive    bool           `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (Rule) TableName() string { return "territory_rules" }

var errValueNotList = errors.New("rule value is not a list")

// Operands decodes the stored operand list. Numbers are kept as json.Number
// so integers survive without float rounding.
func (r Rule) Operands() ([]any, error) {
	raw := bytes.TrimSpace(r.Value)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, errValueNotList
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out []any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

// EncodeOperands stores values as a JSON list; nil becomes an empty list.
func EncodeOperands(values []any) (datatypes.JSON, error) {
	if values == nil {
		values = []any{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// RuleType is informational and never affects evaluation.
type RuleType string

const (
	RuleTypeGeographic  RuleType = "geographic"
	RuleTypeIndustry    RuleType = "industry"
	RuleTypeAccountSize RuleType = "account_size"
	RuleTypeCustom      RuleType = "custom"
)

func (t RuleType) Valid() bool {
	switch t {
	case RuleTypeGeographic, RuleTypeIndustry, RuleTypeAccountSize, RuleTypeCustom:
		return true
	}
	return false
}

type Operator string

const (
	OpEquals     Operator = "="
	OpNotEquals  Operator = "!="
	OpGreater    Operator = ">"
	OpLess       Operator = "<"
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpIsNull     Operator = "is_null"
	OpIsNotNull  Operator = "is_not_null"
	OpBetween    Operator = "between"
)

// Operators lists every supported operator.
func Operators() []Operator {
	return []Operator{
		OpEquals, OpNotEquals, OpGreater, OpLess, OpIn, OpNotIn,
		OpContains, OpStartsWith, OpEndsWith, OpIsNull, OpIsNotNull, OpBetween,
	}
}

func (o Operator) Valid() bool {
	for _, op := range Operators() {
		if op == o {
			return true
		}
	}
	return false
}

// Unary operators ignore their operand list.
func (o Operator) Unary() bool {
	return o == OpIsNull || o == OpIsNotNull
}

// AcceptsOperands reports whether n operands are a valid shape for o.
func (o Operator) AcceptsOperands(n int) bool {
	switch o {
	case OpEquals, OpNotEquals, OpGreater, OpLess, OpContains, OpStartsWith, OpEndsWith, OpIn, OpNotIn:
		return n >= 1
	case OpBetween:
		return n == 2
	case OpIsNull, OpIsNotNull:
		return true
	}
	return false
}
