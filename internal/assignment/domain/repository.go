package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/territorial/internal/record"
	"github.com/smallbiznis/territorial/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, assignment *Assignment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Assignment, error)
	FindAutomatic(ctx context.Context, db *gorm.DB, ref record.Reference, territoryID snowflake.ID) (*Assignment, error)
	List(ctx context.Context, db *gorm.DB, scopes []Scope, page pagination.Pagination) ([]*Assignment, error)
}
