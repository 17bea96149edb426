// Package sqlite archives run results in a SQLite database so deviations can
// be compared across runs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gasparespejo/EFILabs/internal/domain"
	"github.com/gasparespejo/EFILabs/internal/pipeline"
	_ "modernc.org/sqlite"
)

// Archive implements pipeline.Loader on top of a SQLite database.
type Archive struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path and applies migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	a := &Archive{db: db, logger: logger}
	if err := a.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) Name() string { return "sqlite" }

func (a *Archive) Close() error {
	return a.db.Close()
}

// Load stores the run, its file outcomes, every detail row and every summary
// group in one transaction.
func (a *Archive) Load(ctx context.Context, res *pipeline.Result) (err error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_at, finished_at, outcome, tolerance_psi, energy_variant, accepted, rejected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, res.RunID, res.StartedAt.UTC(), res.FinishedAt.UTC(), string(res.Outcome()), res.TolerancePSI,
		string(res.Energy), len(res.Accepted), len(res.Rejected)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if err = insertFiles(ctx, tx, res); err != nil {
		return err
	}
	if err = insertReadings(ctx, tx, res); err != nil {
		return err
	}
	if err = insertSummaries(ctx, tx, res); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", res.RunID, err)
	}
	a.logger.Info("run archived", "run_id", res.RunID, "readings", len(res.Detail))
	return nil
}

func insertFiles(ctx context.Context, tx *sql.Tx, res *pipeline.Result) error {
	const q = `INSERT INTO run_files (run_id, file, accepted, reason, rows_read, rows_eligible) VALUES (?, ?, ?, ?, ?, ?)`
	for _, f := range res.Accepted {
		if _, err := tx.ExecContext(ctx, q, res.RunID, f.File, true, nil, f.Rows, f.Eligible); err != nil {
			return fmt.Errorf("insert file %s: %w", f.File, err)
		}
	}
	for _, r := range res.Rejected {
		if _, err := tx.ExecContext(ctx, q, res.RunID, r.File, false, r.Reason.Error(), nil, nil); err != nil {
			return fmt.Errorf("insert file %s: %w", r.File, err)
		}
	}
	return nil
}

func insertReadings(ctx context.Context, tx *sql.Tx, res *pipeline.Result) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO readings (run_id, archivo, fila, patente, ruta, sede, operacion, eje_tipo, posicion, fecha,
			presion_psi, presion_optima_psi, optima_estimada, delta_psi, delta_pct, energia, estado)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare readings: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range res.Detail {
		var estado *string
		if r.Estado != "" {
			s := string(r.Estado)
			estado = &s
		}
		if _, err := stmt.ExecContext(ctx,
			res.RunID, r.Archivo, r.Fila, r.Patente, r.Ruta, r.Sede, r.Operacion, r.EjeTipo, r.Posicion, r.Fecha,
			r.PresionPSI, r.PresionOptimaPSI, r.OptimaEstimada, r.DeltaPSI, r.DeltaPct, r.Energy(), estado,
		); err != nil {
			return fmt.Errorf("insert reading %s:%d: %w", r.Archivo, r.Fila, err)
		}
	}
	return nil
}

func insertSummaries(ctx context.Context, tx *sql.Tx, res *pipeline.Result) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO summaries (run_id, report, group_keys, n_registros, delta_prom, delta_abs_prom, energia_total, pct_sub, pct_sobre)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare summaries: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, s := range res.Summaries {
		for _, g := range s.Groups {
			keys, err := groupKeys(g)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx,
				res.RunID, s.Name, keys, g.NRegistros, g.DeltaProm, g.DeltaAbsProm, g.EnergiaTotal, g.PctSub, g.PctSobre,
			); err != nil {
				return fmt.Errorf("insert summary %s: %w", s.Name, err)
			}
		}
	}
	return nil
}

// groupKeys encodes the group as a JSON object, e.g. {"patente":"ABC123","operacion":null}.
func groupKeys(g domain.GroupSummary) (string, error) {
	m := make(map[string]*string, len(g.GroupBy))
	for _, f := range g.GroupBy {
		m[string(f)] = g.Key(f)
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode group keys: %w", err)
	}
	return string(b), nil
}

// PlateRun is the average deviation of one plate in one archived run.
type PlateRun struct {
	RunID     string
	Readings  int
	DeltaProm float64
}

// PlateHistory returns the mean deviation of patente in every archived run,
// oldest first.
func (a *Archive) PlateHistory(ctx context.Context, patente string) ([]PlateRun, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT r.run_id, COUNT(*), AVG(r.delta_psi)
		FROM readings r JOIN runs u ON u.run_id = r.run_id
		WHERE r.patente = ? AND r.delta_psi IS NOT NULL
		GROUP BY r.run_id
		ORDER BY MIN(u.started_at), r.run_id
	`, patente)
	if err != nil {
		return nil, fmt.Errorf("query plate history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []PlateRun
	for rows.Next() {
		var pr PlateRun
		if err := rows.Scan(&pr.RunID, &pr.Readings, &pr.DeltaProm); err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}
