package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Type string

const (
	TypeGeographic   Type = "geographic"
	TypeAccountBased Type = "account_based"
)

func (t Type) Valid() bool {
	return t == TypeGeographic || t == TypeAccountBased
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Territory is a node of the hierarchy. Nodes live in one flat table and
// point at their parent by id; a soft-deleted node has its children detached.
type Territory struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID   `gorm:"not null;default:0;index" json:"organization_id,omitempty"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	Code        string         `gorm:"type:varchar(128);not null;uniqueIndex" json:"code"`
	Type        Type           `gorm:"type:varchar(32);not null" json:"type"`
	Status      Status         `gorm:"type:varchar(16);not null;index" json:"status"`
	ParentID    *snowflake.ID  `gorm:"index" json:"parent_id,omitempty"`
	Boundaries  datatypes.JSON `json:"boundaries,omitempty"`
	OwnerID     string         `gorm:"type:varchar(128)" json:"owner_id,omitempty"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Territory) TableName() string { return "territories" }

func (t Territory) IsActive() bool {
	return t.Status == StatusActive && !t.DeletedAt.Valid
}

func (t Territory) IsRoot() bool {
	return t.ParentID == nil
}
