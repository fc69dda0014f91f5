package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	assignmentdomain "github.com/smallbiznis/territorial/internal/assignment/domain"
	auditdomain "github.com/smallbiznis/territorial/internal/audit/domain"
	ruledomain "github.com/smallbiznis/territorial/internal/rule/domain"
	territorydomain "github.com/smallbiznis/territorial/internal/territory/domain"
	"gorm.io/gorm"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var embeddedMigrations embed.FS

// automaticAssignmentIndex backs the at-most-one automatic assignment rule.
// MySQL has no partial indexes; there the write path relies on the
// transactional existence check and the Redis lock.
const automaticAssignmentIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_territory_assignments_automatic
	ON territory_assignments (assignable_type, assignable_id, territory_id)
	WHERE assignment_type = 'automatic'`

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate builds the schema from the gorm models. It serves sqlite and
// mysql, and tests.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	if err := db.AutoMigrate(
		&territorydomain.Territory{},
		&ruledomain.Rule{},
		&assignmentdomain.Assignment{},
		&auditdomain.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if db.Dialector.Name() == "mysql" {
		return nil
	}
	if err := db.Exec(automaticAssignmentIndex).Error; err != nil {
		return fmt.Errorf("create automatic assignment index: %w", err)
	}
	return nil
}
