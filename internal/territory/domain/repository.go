package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status    Status
	Type      Type
	ParentID  *snowflake.ID
	RootsOnly bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, territory *Territory) error
	Update(ctx context.Context, db *gorm.DB, territory *Territory) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Territory, error)
	FindDeletedByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Territory, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Territory, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Territory, error)
	ListChildren(ctx context.Context, db *gorm.DB, parentIDs []snowflake.ID) ([]*Territory, error)
	DetachChildren(ctx context.Context, db *gorm.DB, parentID snowflake.ID, at time.Time) (int64, error)
	SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (int64, error)
	Restore(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (int64, error)
}
