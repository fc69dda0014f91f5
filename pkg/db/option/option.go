package option

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/territorial/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

// ApplyPagination applies id-based keyset pagination. Snowflake ids are time
// ordered, so newest-first is "id desc". One extra row is fetched to detect
// whether another page exists. Callers reject malformed tokens with
// Pagination.Validate; here they are ignored.
func ApplyPagination(page pagination.Pagination) QueryOption {
	page = page.Normalize()
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if token := strings.TrimSpace(page.PageToken); token != "" {
			if cursor, err := pagination.DecodeCursor(token); err == nil {
				if id, err := snowflake.ParseString(cursor.ID); err == nil && id != 0 {
					db = db.Where("id < ?", id)
				}
			}
		}
		return db.Order("id desc").Limit(page.PageSize + 1)
	})
}
