package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/territorial/internal/rule/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rule *domain.Rule) error {
	return db.WithContext(ctx).Create(rule).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, rule *domain.Rule) error {
	return db.WithContext(ctx).
		Model(&domain.Rule{}).
		Where("id = ?", rule.ID).
		Updates(map[string]any{
			"rule_type":  rule.RuleType,
			"field_name": rule.FieldName,
			"operator":   rule.Operator,
			"value":      rule.Value,
			"priority":   rule.Priority,
			"is_active":  rule.IsActive,
			"updated_at": rule.UpdatedAt,
		}).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Rule, error) {
	var rule domain.Rule
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&rule).Error
	if err != nil {
		return nil, err
	}
	if rule.ID == 0 {
		return nil, nil
	}
	return &rule, nil
}

func (r *repo) ListByTerritory(ctx context.Context, db *gorm.DB, territoryID snowflake.ID, activeOnly bool) ([]*domain.Rule, error) {
	var rules []*domain.Rule
	stmt := db.WithContext(ctx).
		Model(&domain.Rule{}).
		Where("territory_id = ?", territoryID)
	if activeOnly {
		stmt = stmt.Where("is_active = ?", true)
	}
	if err := stmt.Order("priority desc, id asc").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repo) ListActiveByTerritoryIDs(ctx context.Context, db *gorm.DB, territoryIDs []snowflake.ID) ([]*domain.Rule, error) {
	if len(territoryIDs) == 0 {
		return nil, nil
	}
	var rules []*domain.Rule
	err := db.WithContext(ctx).
		Model(&domain.Rule{}).
		Where("territory_id IN ?", territoryIDs).
		Where("is_active = ?", true).
		Order("territory_id asc, priority desc, id asc").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}
