package stresstest

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/studiowebux/execbench/internal/migrations"
)

// ErrRunNotFound is returned when a run id does not exist
var ErrRunNotFound = errors.New("run not found")

const runColumns = `
	id, base_url, policy, response_shape, payload_shape, actors, duration_ms, pacing_ms, seed,
	started_at, completed_at, status, total_checks, total_passed, total_failed, total_transport_errors,
	COALESCE(avg_duration_ms, 0), COALESCE(min_duration_ms, 0), COALESCE(max_duration_ms, 0),
	COALESCE(p50_duration_ms, 0), COALESCE(p95_duration_ms, 0), COALESCE(p99_duration_ms, 0)`

// Manager handles run persistence
type Manager struct {
	db *sql.DB
}

// NewManager opens (or creates) the database at dbPath and applies migrations
func NewManager(dbPath string) (*Manager, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	m := &Manager{db: db}

	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return m, nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.db.Close()
}

// CreateRun inserts a run record and sets its ID
func (m *Manager) CreateRun(run *Run) error {
	result, err := m.db.Exec(`
		INSERT INTO runs
		(base_url, policy, response_shape, payload_shape, actors, duration_ms, pacing_ms, seed, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.BaseURL, run.Policy, run.ResponseShape, run.PayloadShape, run.Actors,
		run.DurationMs, run.PacingMs, run.Seed, run.StartedAt, run.Status)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	run.ID = id
	return nil
}

// UpdateRun stores the final state of a run
func (m *Manager) UpdateRun(run *Run) error {
	_, err := m.db.Exec(`
		UPDATE runs
		SET completed_at = ?, status = ?, total_checks = ?, total_passed = ?, total_failed = ?,
		    total_transport_errors = ?, avg_duration_ms = ?, min_duration_ms = ?, max_duration_ms = ?,
		    p50_duration_ms = ?, p95_duration_ms = ?, p99_duration_ms = ?
		WHERE id = ?
	`, run.CompletedAt, run.Status, run.TotalChecks, run.TotalPassed, run.TotalFailed,
		run.TotalTransportErrors, run.AvgDurationMs, run.MinDurationMs, run.MaxDurationMs,
		run.P50DurationMs, run.P95DurationMs, run.P99DurationMs, run.ID)
	return err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var completedAt sql.NullTime

	err := row.Scan(&run.ID, &run.BaseURL, &run.Policy, &run.ResponseShape, &run.PayloadShape,
		&run.Actors, &run.DurationMs, &run.PacingMs, &run.Seed,
		&run.StartedAt, &completedAt, &run.Status, &run.TotalChecks, &run.TotalPassed,
		&run.TotalFailed, &run.TotalTransportErrors, &run.AvgDurationMs, &run.MinDurationMs,
		&run.MaxDurationMs, &run.P50DurationMs, &run.P95DurationMs, &run.P99DurationMs)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return run, nil
}

// GetRun retrieves a run by ID
func (m *Manager) GetRun(id int64) (*Run, error) {
	run, err := scanRun(m.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns returns the most recent runs first; limit <= 0 returns all
func (m *Manager) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := m.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun deletes a run and all its metrics
func (m *Manager) DeleteRun(id int64) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM run_metrics WHERE run_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete metrics: %w", err)
	}
	result, err := tx.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}

	return tx.Commit()
}

// SaveMetricsBatch saves multiple metrics in a single transaction
func (m *Manager) SaveMetricsBatch(metrics []*Metric) error {
	if len(metrics) == 0 {
		return nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO run_metrics
		(run_id, timestamp, elapsed_ms, actor, test, language, status_code, duration_ms,
		 request_size, response_size, passed, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, metric := range metrics {
		_, err := stmt.Exec(metric.RunID, metric.Timestamp, metric.ElapsedMs, metric.Actor,
			metric.Test, metric.Language, metric.StatusCode, metric.DurationMs,
			metric.RequestSize, metric.ResponseSize, metric.Passed, metric.Reason)
		if err != nil {
			return fmt.Errorf("failed to insert metric: %w", err)
		}
	}

	return tx.Commit()
}

// GetMetrics retrieves all metrics for a run in elapsed order
func (m *Manager) GetMetrics(runID int64) ([]*Metric, error) {
	rows, err := m.db.Query(`
		SELECT id, run_id, timestamp, elapsed_ms, actor, test, language, status_code, duration_ms,
		       request_size, response_size, passed, COALESCE(reason, '')
		FROM run_metrics
		WHERE run_id = ?
		ORDER BY elapsed_ms, id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metrics []*Metric
	for rows.Next() {
		metric := &Metric{}
		err := rows.Scan(&metric.ID, &metric.RunID, &metric.Timestamp, &metric.ElapsedMs,
			&metric.Actor, &metric.Test, &metric.Language, &metric.StatusCode, &metric.DurationMs,
			&metric.RequestSize, &metric.ResponseSize, &metric.Passed, &metric.Reason)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, metric)
	}
	return metrics, rows.Err()
}

// FailureCounts returns failed checks per reason for a run
func (m *Manager) FailureCounts(runID int64) (map[string]int, error) {
	rows, err := m.db.Query(`
		SELECT reason, COUNT(*) FROM run_metrics
		WHERE run_id = ? AND passed = 0
		GROUP BY reason
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var reason sql.NullString
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, err
		}
		counts[reason.String] = n
	}
	return counts, rows.Err()
}
