package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"homly-notify/internal/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator applies the embedded SQL migrations. Files are named
// <version>_<name>.<up|down>.sql, e.g. 000001_create_notifications.up.sql.
type Migrator struct {
	db     *sql.DB
	fsys   fs.FS
	logger *logrus.Logger
}

// Migration is one versioned schema change.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

func NewMigrator(db *sql.DB, logger *logrus.Logger) *Migrator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Migrator{db: db, fsys: migrationsFS, logger: logger}
}

// Migrate applies every migration that is not recorded in schema_migrations.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.createMigrationTable(ctx); err != nil {
		return err
	}

	migrations, err := m.loadMigrations()
	if err != nil {
		return err
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		log := m.logger.WithFields(logrus.Fields{
			"version": migration.Version,
			"name":    migration.Name,
		})
		if applied[migration.Version] {
			log.Debug("migration already applied, skipping")
			continue
		}

		log.Info("applying migration")
		if err := m.runInTx(ctx, migration.UpSQL,
			`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, migration.Version, migration.Name); err != nil {
			return errors.NewDatabaseError(fmt.Sprintf("apply_migration_%d", migration.Version), err)
		}
	}

	return nil
}

// Rollback reverts the newest `steps` applied migrations.
func (m *Migrator) Rollback(ctx context.Context, steps int) error {
	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return err
	}

	migrations, err := m.loadMigrations()
	if err != nil {
		return err
	}

	done := 0
	for i := len(migrations) - 1; i >= 0 && done < steps; i-- {
		migration := migrations[i]
		if !applied[migration.Version] {
			continue
		}
		done++

		log := m.logger.WithFields(logrus.Fields{
			"version": migration.Version,
			"name":    migration.Name,
		})
		if migration.DownSQL == "" {
			log.Warn("migration has no down SQL, skipping rollback")
			continue
		}

		log.Info("rolling back migration")
		if err := m.runInTx(ctx, migration.DownSQL,
			`DELETE FROM schema_migrations WHERE version = ?`, migration.Version); err != nil {
			return errors.NewDatabaseError(fmt.Sprintf("rollback_migration_%d", migration.Version), err)
		}
	}

	return nil
}

func (m *Migrator) createMigrationTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return errors.NewDatabaseError("create_migration_table", err)
	}
	return nil
}

func (m *Migrator) loadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(m.fsys, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		filename := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(filename, ".sql") {
			continue
		}

		version, name, direction, ok := parseMigrationName(filename)
		if !ok {
			m.logger.WithField("filename", filename).Warn("skipping invalid migration filename")
			continue
		}

		content, err := fs.ReadFile(m.fsys, "migrations/"+filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		migration, exists := byVersion[version]
		if !exists {
			migration = &Migration{Version: version, Name: name}
			byVersion[version] = migration
		}
		switch direction {
		case "up":
			migration.UpSQL = string(content)
		case "down":
			migration.DownSQL = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, migration := range byVersion {
		if migration.UpSQL == "" {
			m.logger.WithField("version", migration.Version).Warn("migration missing up SQL, skipping")
			continue
		}
		migrations = append(migrations, *migration)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// parseMigrationName splits "000001_create_notifications.up.sql".
func parseMigrationName(filename string) (version int, name, direction string, ok bool) {
	prefix, rest, found := strings.Cut(strings.TrimSuffix(filename, ".sql"), "_")
	if !found {
		return 0, "", "", false
	}
	version, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, "", "", false
	}
	dot := strings.LastIndex(rest, ".")
	if dot <= 0 {
		return 0, "", "", false
	}
	direction = rest[dot+1:]
	if direction != "up" && direction != "down" {
		return 0, "", "", false
	}
	return version, rest[:dot], direction, true
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, errors.NewDatabaseError("get_applied_versions", err)
	}
	defer rows.Close()

	versions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, errors.NewDatabaseError("scan_version", err)
		}
		versions[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError("iterate_versions", err)
	}
	return versions, nil
}

// runInTx executes script and the bookkeeping statement atomically.
func (m *Migrator) runInTx(ctx context.Context, script, bookkeeping string, args ...interface{}) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, args...); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}
