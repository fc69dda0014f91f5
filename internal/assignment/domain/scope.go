package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/territorial/internal/record"
	"gorm.io/gorm"
)

// Scope narrows an assignment query. Scopes compose by intersection, so any
// subset may be applied together.
type Scope func(db *gorm.DB) *gorm.DB

func Manual() Scope {
	return ByType(AssignmentTypeManual)
}

func Automatic() Scope {
	return ByType(AssignmentTypeAutomatic)
}

func ByType(t AssignmentType) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("assignment_type = ?", t)
	}
}

func ByTerritory(id snowflake.ID) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("territory_id = ?", id)
	}
}

func ByAssignableType(kind record.Kind) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("assignable_type = ?", kind)
	}
}

func ByAssignable(ref record.Reference) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("assignable_type = ? AND assignable_id = ?", ref.Kind, ref.ID)
	}
}

// AssignedBetween bounds assigned_at; either end may be nil.
func AssignedBetween(from, to *time.Time) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if from != nil {
			db = db.Where("assigned_at >= ?", *from)
		}
		if to != nil {
			db = db.Where("assigned_at <= ?", *to)
		}
		return db
	}
}

func toGorm(scopes []Scope) []func(*gorm.DB) *gorm.DB {
	out := make([]func(*gorm.DB) *gorm.DB, 0, len(scopes))
	for _, scope := range scopes {
		if scope != nil {
			out = append(out, scope)
		}
	}
	return out
}

// Apply attaches scopes to a statement.
func Apply(db *gorm.DB, scopes ...Scope) *gorm.DB {
	return db.Scopes(toGorm(scopes)...)
}
