package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/territorial/internal/assignment/domain"
	"github.com/smallbiznis/territorial/internal/record"
	"github.com/smallbiznis/territorial/pkg/db/option"
	"github.com/smallbiznis/territorial/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, assignment *domain.Assignment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO territory_assignments (id, territory_id, assignable_type, assignable_id, assigned_by, assignment_type, assigned_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		assignment.ID,
		assignment.TerritoryID,
		assignment.AssignableType,
		assignment.AssignableID,
		assignment.AssignedBy,
		assignment.AssignmentType,
		assignment.AssignedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Assignment, error) {
	var assignment domain.Assignment
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&assignment).Error
	if err != nil {
		return nil, err
	}
	if assignment.ID == 0 {
		return nil, nil
	}
	return &assignment, nil
}

func (r *repo) FindAutomatic(ctx context.Context, db *gorm.DB, ref record.Reference, territoryID snowflake.ID) (*domain.Assignment, error) {
	var assignment domain.Assignment
	stmt := domain.Apply(
		db.WithContext(ctx).Model(&domain.Assignment{}),
		domain.Automatic(),
		domain.ByAssignable(ref),
		domain.ByTerritory(territoryID),
	)
	if err := stmt.Order("id asc").Limit(1).Find(&assignment).Error; err != nil {
		return nil, err
	}
	if assignment.ID == 0 {
		return nil, nil
	}
	return &assignment, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, scopes []domain.Scope, page pagination.Pagination) ([]*domain.Assignment, error) {
	var assignments []*domain.Assignment
	stmt := domain.Apply(db.WithContext(ctx).Model(&domain.Assignment{}), scopes...)
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}
