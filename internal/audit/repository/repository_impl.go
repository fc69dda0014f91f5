package repository

import (
	"context"

	"github.com/smallbiznis/territorial/internal/audit/domain"
	"github.com/smallbiznis/territorial/pkg/db/option"
	"github.com/smallbiznis/territorial/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.AuditLog, error) {
	var logs []*domain.AuditLog
	err := db.WithContext(ctx).
		Scopes(matching(filter), option.ApplyPagination(page).Apply).
		Find(&logs).Error
	return logs, err
}

func matching(filter domain.ListFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		equals := [...]struct{ column, value string }{
			{"action", filter.Action},
			{"target_type", filter.TargetType},
			{"target_id", filter.TargetID},
			{"actor_id", filter.ActorID},
		}
		for _, eq := range equals {
			if eq.value != "" {
				db = db.Where(eq.column+" = ?", eq.value)
			}
		}
		if filter.StartAt != nil {
			db = db.Where("created_at >= ?", filter.StartAt.UTC())
		}
		if filter.EndAt != nil {
			db = db.Where("created_at <= ?", filter.EndAt.UTC())
		}
		return db
	}
}
