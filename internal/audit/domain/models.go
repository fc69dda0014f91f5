package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

const (
	ActionTerritoryCreate  = "territory.create"
	ActionTerritoryUpdate  = "territory.update"
	ActionTerritoryDelete  = "territory.delete"
	ActionTerritoryRestore = "territory.restore"
	ActionRuleCreate       = "rule.create"
	ActionRuleUpdate       = "rule.update"
	ActionRuleActivate     = "rule.activate"
	ActionRuleDeactivate   = "rule.deactivate"
	ActionAssignmentCreate = "assignment.create"
)

const (
	TargetTerritory  = "territory"
	TargetRule       = "rule"
	TargetAssignment = "assignment"
)

// AuditLog is one administrative change. Automatic assignments are not
// audited here; the assignment ledger already records them.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorType  ActorType         `gorm:"type:varchar(16);not null" json:"actor_type"`
	ActorID    *string           `gorm:"type:varchar(128);index" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:varchar(64);not null;index" json:"action"`
	TargetType string            `gorm:"type:varchar(64);not null;index:idx_audit_logs_target,priority:1" json:"target_type"`
	TargetID   *string           `gorm:"type:varchar(128);index:idx_audit_logs_target,priority:2" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	RequestID  *string           `gorm:"type:varchar(64)" json:"request_id,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
