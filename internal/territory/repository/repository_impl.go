package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/territorial/internal/territory/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, territory *domain.Territory) error {
	return db.WithContext(ctx).Create(territory).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, territory *domain.Territory) error {
	return db.WithContext(ctx).
		Model(&domain.Territory{}).
		Where("id = ?", territory.ID).
		Updates(map[string]any{
			"name":        territory.Name,
			"code":        territory.Code,
			"type":        territory.Type,
			"status":      territory.Status,
			"parent_id":   territory.ParentID,
			"boundaries":  territory.Boundaries,
			"owner_id":    territory.OwnerID,
			"description": territory.Description,
			"updated_at":  territory.UpdatedAt,
		}).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Territory, error) {
	var territory domain.Territory
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&territory).Error
	if err != nil {
		return nil, err
	}
	if territory.ID == 0 {
		return nil, nil
	}
	return &territory, nil
}

func (r *repo) FindDeletedByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Territory, error) {
	var territory domain.Territory
	err := db.WithContext(ctx).
		Unscoped().
		Where("id = ? AND deleted_at IS NOT NULL", id).
		Limit(1).
		Find(&territory).Error
	if err != nil {
		return nil, err
	}
	if territory.ID == 0 {
		return nil, nil
	}
	return &territory, nil
}

// FindByCode also sees soft-deleted rows since codes stay reserved for
// restore.
func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Territory, error) {
	var territory domain.Territory
	err := db.WithContext(ctx).
		Unscoped().
		Where("code = ?", code).
		Limit(1).
		Find(&territory).Error
	if err != nil {
		return nil, err
	}
	if territory.ID == 0 {
		return nil, nil
	}
	return &territory, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Territory, error) {
	var territories []*domain.Territory
	stmt := db.WithContext(ctx).Model(&domain.Territory{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		stmt = stmt.Where("type = ?", filter.Type)
	}
	if filter.RootsOnly {
		stmt = stmt.Where("parent_id IS NULL")
	} else if filter.ParentID != nil {
		stmt = stmt.Where("parent_id = ?", *filter.ParentID)
	}
	if err := stmt.Order("id asc").Find(&territories).Error; err != nil {
		return nil, err
	}
	return territories, nil
}

func (r *repo) ListChildren(ctx context.Context, db *gorm.DB, parentIDs []snowflake.ID) ([]*domain.Territory, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var territories []*domain.Territory
	err := db.WithContext(ctx).
		Model(&domain.Territory{}).
		Where("parent_id IN ?", parentIDs).
		Order("id asc").
		Find(&territories).Error
	if err != nil {
		return nil, err
	}
	return territories, nil
}

// DetachChildren clears parent_id on every direct child, soft-deleted ones
// included, so no row is left pointing at a deleted parent.
func (r *repo) DetachChildren(ctx context.Context, db *gorm.DB, parentID snowflake.ID, at time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Unscoped().
		Model(&domain.Territory{}).
		Where("parent_id = ?", parentID).
		Updates(map[string]any{
			"parent_id":  nil,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *repo) SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Territory{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"deleted_at": at,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *repo) Restore(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Unscoped().
		Model(&domain.Territory{}).
		Where("id = ? AND deleted_at IS NOT NULL", id).
		Updates(map[string]any{
			"deleted_at": nil,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}
