package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/DARIONZITA/backend-professorIA/internal/infra/sqlite"
)

// TestMigrate_RunsAllMigrations verifies that MigrateUp applies all pending migrations.
func TestMigrate_RunsAllMigrations(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)

	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v; want nil", err)
	}

	// After migration, schema_migrations table must exist with at least 1 row
	var count int
	row := db.QueryRow("SELECT COUNT(*) FROM schema_migrations")
	if err := row.Scan(&count); err != nil {
		t.Fatalf("SELECT COUNT(*) FROM schema_migrations error = %v", err)
	}

	if count == 0 {
		t.Error("schema_migrations has 0 rows after MigrateUp; want > 0")
	}
}

// TestMigrate_Idempotent verifies that running MigrateUp twice does not fail.
// Migrations must be idempotent: re-running on an already-migrated DB is safe.
func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)

	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() first run error = %v; want nil", err)
	}

	// Second run must not fail (already-applied migrations are skipped)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() second run error = %v; want nil (idempotent)", err)
	}
}

// TestMigrate_StudentTableCreated verifies the student table exists after migration.
func TestMigrate_StudentTableCreated(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	assertTableExists(t, db, "student")
}

// TestMigrate_AnalysisTableCreated verifies the analysis table exists.
func TestMigrate_AnalysisTableCreated(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	assertTableExists(t, db, "analysis")
}

// TestMigrate_StudentNameUniquePerClass verifies the case-insensitive
// UNIQUE(name, class_name) index on student.
func TestMigrate_StudentNameUniquePerClass(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	if _, err := db.Exec(`
		INSERT INTO student (id, name, class_name, created_at)
		VALUES ('s-1', 'Anna Smith', '5th A', datetime('now'))
	`); err != nil {
		t.Fatalf("first student insert: %v", err)
	}

	// Same name in another class is fine
	if _, err := db.Exec(`
		INSERT INTO student (id, name, class_name, created_at)
		VALUES ('s-2', 'Anna Smith', '6th B', datetime('now'))
	`); err != nil {
		t.Fatalf("same name in other class: %v", err)
	}

	// Different case, same class: must fail
	_, err := db.Exec(`
		INSERT INTO student (id, name, class_name, created_at)
		VALUES ('s-3', 'anna smith', '5TH A', datetime('now'))
	`)
	if err == nil {
		t.Error("duplicate student in same class succeeded; want UNIQUE constraint error")
	}
}

// TestMigrate_ErrorPercentageChecked verifies the CHECK constraint keeps
// analysis.error_percentage inside 0..100.
func TestMigrate_ErrorPercentageChecked(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	_, err := db.Exec(`
		INSERT INTO analysis (id, student_name, class_name, subject, detected_text, main_error, error_percentage, insight, created_at)
		VALUES ('a-1', 'Anna', '5th A', 'Math', 'x', 'e', 140, '{}', datetime('now'))
	`)
	if err == nil {
		t.Error("error_percentage=140 accepted; want CHECK constraint error")
	}
}

// TestMigrate_Version returns the current applied migration version.
func TestMigrate_Version(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	version, err := sqlite.MigrationVersion(db)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v; want nil", err)
	}

	if version == 0 {
		t.Error("MigrationVersion() = 0; want > 0 after MigrateUp")
	}
}

// TestMigrate_OnlyAppliesPending verifies that already-applied migrations are NOT re-run.
func TestMigrate_OnlyAppliesPending(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() first error = %v", err)
	}

	var countBefore int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&countBefore); err != nil {
		t.Fatalf("count before: %v", err)
	}

	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() second error = %v", err)
	}

	var countAfter int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&countAfter); err != nil {
		t.Fatalf("count after: %v", err)
	}

	if countAfter != countBefore {
		t.Errorf("schema_migrations count changed from %d to %d; want unchanged", countBefore, countAfter)
	}
}

// TestMigrate_LogsAppliedVersions checks each applied step is reported once.
func TestMigrate_LogsAppliedVersions(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	applied, err := sqlite.Migrate(context.Background(), db, logger)
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if len(applied) == 0 || applied[0].Version != 1 || applied[0].Name != "001_init_schema.up.sql" {
		t.Fatalf("Migrate() applied = %+v; want 001_init_schema first", applied)
	}

	entries := logs.FilterMessage("schema migration applied").All()
	if len(entries) != len(applied) {
		t.Fatalf("logged %d applied migrations; want %d", len(entries), len(applied))
	}
	if got := entries[0].ContextMap()["version"]; got != int64(1) {
		t.Errorf("version field = %v; want 1", got)
	}

	again, err := sqlite.Migrate(context.Background(), db, logger)
	if err != nil {
		t.Fatalf("Migrate() second run error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second Migrate() applied %d; want 0", len(again))
	}
	if n := logs.FilterMessage("schema migration applied").Len(); n != len(applied) {
		t.Errorf("second run logged more applied migrations: %d", n)
	}
}

// TestMigrationVersion_NoMigrations verifies version is 0 on fresh DB.
func TestMigrationVersion_NoMigrations(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	// Do NOT call MigrateUp: fresh DB

	version, err := sqlite.MigrationVersion(db)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}

	if version != 0 {
		t.Errorf("MigrationVersion() = %d; want 0 on fresh DB", version)
	}
}

// assertTableExists fails the test if the given table doesn't exist in the DB.
func assertTableExists(t *testing.T, db *sql.DB, tableName string) {
	t.Helper()

	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
		tableName,
	).Scan(&name)

	if err == sql.ErrNoRows {
		t.Errorf("table %q not found in sqlite_master after MigrateUp", tableName)
		return
	}
	if err != nil {
		t.Fatalf("assertTableExists(%q) query error = %v", tableName, err)
	}
}
