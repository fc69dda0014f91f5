package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/territorial/pkg/db/pagination"
)

type CreateAssignmentRequest struct {
	TerritoryID    snowflake.ID
	AssignableType string
	AssignableID   string
	AssignedBy     string
	AssignmentType string
}

type ListRequest struct {
	Scopes    []Scope
	PageToken string
	PageSize  int
}

type ListResponse struct {
	pagination.PageInfo
	Assignments []Assignment `json:"assignments"`
}

type Service interface {
	// Create inserts a manual or automatic assignment unconditionally.
	Create(context.Context, CreateAssignmentRequest) (Assignment, error)
	// CreateAutomaticOnce inserts an automatic assignment unless one already
	// exists for the same record and territory, in which case the existing
	// row is returned with created=false.
	CreateAutomaticOnce(context.Context, CreateAssignmentRequest) (Assignment, bool, error)
	Get(ctx context.Context, id snowflake.ID) (Assignment, error)
	List(context.Context, ListRequest) (ListResponse, error)
}

var (
	ErrInvalidID             = errors.New("invalid_id")
	ErrInvalidTerritory      = errors.New("invalid_territory")
	ErrTerritoryNotFound     = errors.New("territory_not_found")
	ErrInvalidAssignableType = errors.New("invalid_assignable_type")
	ErrInvalidAssignableID   = errors.New("invalid_assignable_id")
	ErrInvalidAssignedBy     = errors.New("invalid_assigned_by")
	ErrInvalidAssignmentType = errors.New("invalid_assignment_type")
	ErrNotFound              = errors.New("not_found")
)
