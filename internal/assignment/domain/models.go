package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/territorial/internal/record"
)

type AssignmentType string

const (
	AssignmentTypeManual    AssignmentType = "manual"
	AssignmentTypeAutomatic AssignmentType = "automatic"
)

func (t AssignmentType) Valid() bool {
	return t == AssignmentTypeManual || t == AssignmentTypeAutomatic
}

// Assignment records that a business record belongs to a territory. Rows
// are written once and never updated.
type Assignment struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	TerritoryID    snowflake.ID   `gorm:"not null;index" json:"territory_id"`
	AssignableType record.Kind    `gorm:"type:varchar(64);not null;index:idx_territory_assignments_assignable,priority:1" json:"assignable_type"`
	AssignableID   string         `gorm:"type:varchar(128);not null;index:idx_territory_assignments_assignable,priority:2" json:"assignable_id"`
	AssignedBy     string         `gorm:"type:varchar(128);not null" json:"assigned_by"`
	AssignmentType AssignmentType `gorm:"type:varchar(16);not null;index" json:"assignment_type"`
	AssignedAt     time.Time      `gorm:"not null;index" json:"assigned_at"`
}

func (Assignment) TableName() string { return "territory_assignments" }

func (a Assignment) Assignable() record.Reference {
	return record.Reference{Kind: a.AssignableType, ID: a.AssignableID}
}
