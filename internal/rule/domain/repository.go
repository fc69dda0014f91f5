package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rule *Rule) error
	Update(ctx context.Context, db *gorm.DB, rule *Rule) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Rule, error)
	ListByTerritory(ctx context.Context, db *gorm.DB, territoryID snowflake.ID, activeOnly bool) ([]*Rule, error)
	ListActiveByTerritoryIDs(ctx context.Context, db *gorm.DB, territoryIDs []snowflake.ID) ([]*Rule, error)
}
