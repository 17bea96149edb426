package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    started_at DATETIME NOT NULL,
    finished_at DATETIME NOT NULL,
    outcome TEXT NOT NULL,
    tolerance_psi REAL NOT NULL,
    energy_variant TEXT NOT NULL,
    accepted INTEGER NOT NULL,
    rejected INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_files (
    run_id TEXT NOT NULL REFERENCES runs(run_id),
    file TEXT NOT NULL,
    accepted BOOLEAN NOT NULL,
    reason TEXT,
    rows_read INTEGER,
    rows_eligible INTEGER,
    PRIMARY KEY (run_id, file)
);

CREATE TABLE IF NOT EXISTS readings (
    run_id TEXT NOT NULL REFERENCES runs(run_id),
    archivo TEXT NOT NULL,
    fila INTEGER NOT NULL,
    patente TEXT,
    ruta TEXT,
    sede TEXT,
    operacion TEXT,
    eje_tipo TEXT,
    posicion TEXT,
    fecha DATETIME,
    presion_psi REAL,
    presion_optima_psi REAL,
    optima_estimada BOOLEAN NOT NULL DEFAULT FALSE,
    delta_psi REAL,
    delta_pct REAL,
    energia REAL,
    estado TEXT,
    PRIMARY KEY (run_id, archivo, fila)
);

CREATE TABLE IF NOT EXISTS summaries (
    run_id TEXT NOT NULL REFERENCES runs(run_id),
    report TEXT NOT NULL,
    group_keys TEXT NOT NULL,
    n_registros INTEGER NOT NULL,
    delta_prom REAL,
    delta_abs_prom REAL,
    energia_total REAL NOT NULL,
    pct_sub REAL NOT NULL,
    pct_sobre REAL NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "Plate history indexes",
		SQL: `
CREATE INDEX IF NOT EXISTS idx_readings_patente ON readings(patente, fecha);
CREATE INDEX IF NOT EXISTS idx_summaries_report ON summaries(run_id, report);
`,
	},
}

// Migrate applies every migration not yet recorded in schema_migrations.
func (a *Archive) Migrate(ctx context.Context) error {
	if err := a.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := a.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		a.logger.Info("applying migration", "version", m.Version, "description", m.Description)

		tx, err := a.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (a *Archive) ensureMigrationsTable(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (a *Archive) appliedMigrations(ctx context.Context) (map[int]bool, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// MigrationVersion returns the highest applied migration, or 0.
func (a *Archive) MigrationVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	if err := a.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
