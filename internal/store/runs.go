// Package store persists solver results: gob+gzip snapshot files and a
// SQLite run store with embedded schema migrations.
package store

import (
	"bytes"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/refinencbf/localhjr/internal/localsolver"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRunNotFound is returned by LoadRun for an unknown run ID.
var ErrRunNotFound = errors.New("store: run not found")

// RunStore persists solver runs in SQLite: one row per run holding the
// snapshot, and one summary row per iteration.
type RunStore struct {
	db *sql.DB
}

// RunMeta is stored alongside a run.
type RunMeta struct {
	SolverKind string
	// Params is any JSON-encodable description of the solver parameters.
	Params interface{}
}

// RunSummary is a run row without its snapshot.
type RunSummary struct {
	ID            string
	ParentID      string
	System        string
	SolverKind    string
	GridShape     string // comma list like "3,201,201", the -shape flag syntax
	StopReason    string
	NumIterations int
	FinalActive   int
	StartedAt     time.Time
	CreatedAt     time.Time
	ParamsJSON    json.RawMessage
}

// IterationSummary is the per-iteration row of a run.
type IterationSummary struct {
	Iteration    int
	PreFiltered  int
	Expanded     int
	PostFiltered int
	ValueMin     float64
	ValueMax     float64
	StepSeconds  float64
}

// OpenRunStore opens (or creates) the database at path and migrates it to
// the latest schema.
func OpenRunStore(path string) (*RunStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// PRAGMAs are per connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	s := &RunStore{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the applied migration version.
func (s *RunStore) SchemaVersion() (uint, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

func (s *RunStore) migrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// Note: m is not closed because that would close the underlying DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

func (s *RunStore) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger interface
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// SaveRun stores r and its iteration summaries in one transaction.
// Saving the same run ID again replaces it.
func (s *RunStore) SaveRun(r *localsolver.Result, meta RunMeta) error {
	var blob bytes.Buffer
	if err := EncodeSnapshot(&blob, r); err != nil {
		return err
	}
	var params interface{}
	if meta.Params != nil {
		b, err := json.Marshal(meta.Params)
		if err != nil {
			return fmt.Errorf("failed to marshal run params: %w", err)
		}
		params = string(b)
	}
	var parent interface{}
	if r.ParentID != "" {
		parent = r.ParentID
	}

	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, table := range []string{"solver_iterations", "solver_runs"} {
			if _, err := tx.Exec(`DELETE FROM `+table+` WHERE run_id = ?`, r.ID); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		_, err = tx.Exec(`
			INSERT INTO solver_runs (
				run_id, parent_run_id, system, solver_kind, grid_shape, stop_reason,
				num_iterations, final_active, started_at, created_at, params_json, snapshot
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, parent, r.Setup().Dynamics.Name(), meta.SolverKind, strings.Trim(r.Grid().Shape().String(), "()"), r.StopReason,
			r.NumIterations(), r.LastActiveSet().Count(), r.StartedAt().UnixNano(), time.Now().UnixNano(),
			params, blob.Bytes(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO solver_iterations (
				run_id, iteration, pre_filtered, expanded, post_filtered,
				value_min, value_max, step_seconds
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for n, it := range r.Iterations() {
			if _, err := stmt.Exec(r.ID, n+1, it.PreFiltered.Count(), it.Expanded.Count(), it.PostFiltered.Count(),
				it.Values.Min(), it.Values.Max(), it.StepDuration.Seconds()); err != nil {
				return fmt.Errorf("failed to insert iteration %d: %w", n+1, err)
			}
		}
		return tx.Commit()
	})
}

// LoadRun reads a run back, rebinding its dynamics by system name.
func (s *RunStore) LoadRun(id string) (*localsolver.Result, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT snapshot FROM solver_runs WHERE run_id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}
	return DecodeSnapshot(bytes.NewReader(blob))
}

// ListRuns returns run summaries, newest first. An empty system lists all runs.
func (s *RunStore) ListRuns(system string) ([]RunSummary, error) {
	rows, err := s.db.Query(`
		SELECT run_id, COALESCE(parent_run_id, ''), system, solver_kind, grid_shape, stop_reason,
			num_iterations, final_active, started_at, created_at, params_json
		FROM solver_runs
		WHERE ? = '' OR system = ?
		ORDER BY started_at DESC, created_at DESC`, system, system)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var (
			sum              RunSummary
			started, created int64
			params           sql.NullString
		)
		if err := rows.Scan(&sum.ID, &sum.ParentID, &sum.System, &sum.SolverKind, &sum.GridShape, &sum.StopReason,
			&sum.NumIterations, &sum.FinalActive, &started, &created, &params); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		sum.StartedAt = time.Unix(0, started)
		sum.CreatedAt = time.Unix(0, created)
		if params.Valid {
			sum.ParamsJSON = json.RawMessage(params.String)
		}
		runs = append(runs, sum)
	}
	return runs, rows.Err()
}

// Iterations returns the iteration summaries of a run in order.
func (s *RunStore) Iterations(id string) ([]IterationSummary, error) {
	rows, err := s.db.Query(`
		SELECT iteration, pre_filtered, expanded, post_filtered, value_min, value_max, step_seconds
		FROM solver_iterations
		WHERE run_id = ?
		ORDER BY iteration`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query iterations: %w", err)
	}
	defer rows.Close()

	var its []IterationSummary
	for rows.Next() {
		var it IterationSummary
		if err := rows.Scan(&it.Iteration, &it.PreFiltered, &it.Expanded, &it.PostFiltered,
			&it.ValueMin, &it.ValueMax, &it.StepSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan iteration: %w", err)
		}
		its = append(its, it)
	}
	return its, rows.Err()
}

// DeleteRun removes a run and its iteration rows.
func (s *RunStore) DeleteRun(id string) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM solver_iterations WHERE run_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.Exec(`DELETE FROM solver_runs WHERE run_id = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return tx.Commit()
	})
}
