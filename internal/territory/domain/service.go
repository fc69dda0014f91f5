package domain

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateTerritoryRequest struct {
	OrgID       snowflake.ID
	Name        string
	Code        string
	Type        string
	Status      string
	ParentID    *snowflake.ID
	Boundaries  json.RawMessage
	OwnerID     string
	Description string
}

// UpdateTerritoryRequest changes only the non-nil fields. ClearParent makes
// the territory a root and wins over ParentID.
type UpdateTerritoryRequest struct {
	ID          snowflake.ID
	Name        *string
	Code        *string
	Type        *string
	Status      *string
	ParentID    *snowflake.ID
	ClearParent bool
	Boundaries  json.RawMessage
	OwnerID     *string
	Description *string
}

type ListTerritoryRequest struct {
	Status    string
	Type      string
	ParentID  *snowflake.ID
	RootsOnly bool
}

type Service interface {
	Create(context.Context, CreateTerritoryRequest) (Territory, error)
	Update(context.Context, UpdateTerritoryRequest) (Territory, error)
	Get(ctx context.Context, id snowflake.ID) (Territory, error)
	List(context.Context, ListTerritoryRequest) ([]Territory, error)
	// Roots returns territories without a parent; an empty status means any.
	Roots(ctx context.Context, status Status) ([]Territory, error)
	Children(ctx context.Context, id snowflake.ID) ([]Territory, error)
	Descendants(ctx context.Context, id snowflake.ID) ([]Territory, error)
	// Ancestors walks from the direct parent up to the root.
	Ancestors(ctx context.Context, id snowflake.ID) ([]Territory, error)
	// Parent returns nil when the territory has no live parent.
	Parent(ctx context.Context, id snowflake.ID) (*Territory, error)
	Delete(ctx context.Context, id snowflake.ID) error
	Restore(ctx context.Context, id snowflake.ID) (Territory, error)
	SetStatus(ctx context.Context, id snowflake.ID, status Status) (Territory, error)
	ListActive(ctx context.Context) ([]Territory, error)
}

var (
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidCode     = errors.New("invalid_code")
	ErrInvalidType     = errors.New("invalid_type")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrInvalidBoundary = errors.New("invalid_boundaries")
	ErrCodeTaken       = errors.New("code_taken")
	ErrParentNotFound  = errors.New("parent_not_found")
	ErrInvalidParent   = errors.New("invalid_parent")
	ErrCycle           = errors.New("hierarchy_cycle")
	ErrNotFound        = errors.New("not_found")
	ErrNotDeleted      = errors.New("not_deleted")
)
