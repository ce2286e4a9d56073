package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsTableName = "schema_migrations"

var ErrMigrationExecution = errors.New("migration execution failed")

// MigrationSource returns the embedded schema migrations.
func MigrationSource() migrate.MigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationsFS,
		Root:       "migrations",
	}
}

// MigrationSet is the sql-migrate bookkeeping configuration.
func MigrationSet() *migrate.MigrationSet {
	return &migrate.MigrationSet{TableName: migrationsTableName}
}

// ApplyMigrations migrates the database behind pool up and returns how many migrations ran.
func ApplyMigrations(pool *pgxpool.Pool) (int, error) {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return applyMigrations(db, migrate.Up, 0)
}

// RollbackMigrations undoes the last steps migrations.
func RollbackMigrations(pool *pgxpool.Pool, steps int) (int, error) {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return applyMigrations(db, migrate.Down, steps)
}

// MigrationStatus lists every known migration and whether it has been applied.
func MigrationStatus(pool *pgxpool.Pool) ([]MigrationRecord, error) {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	migrations, err := MigrationSource().FindMigrations()
	if err != nil {
		return nil, fmt.Errorf("find migrations: %w", err)
	}
	applied, err := MigrationSet().GetMigrationRecords(db, "postgres")
	if err != nil {
		return nil, fmt.Errorf("read migration records: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, r := range applied {
		done[r.Id] = true
	}

	out := make([]MigrationRecord, 0, len(migrations))
	for _, m := range migrations {
		out = append(out, MigrationRecord{ID: m.Id, Applied: done[m.Id]})
	}
	return out, nil
}

// MigrationRecord is the state of one migration.
type MigrationRecord struct {
	ID      string `json:"id"`
	Applied bool   `json:"applied"`
}

func applyMigrations(db *sql.DB, dir migrate.MigrationDirection, max int) (int, error) {
	n, err := MigrationSet().ExecMax(db, "postgres", MigrationSource(), dir, max)
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrMigrationExecution, err)
	}
	return n, nil
}
