// Package history records matrix runs in a SQLite database so results can
// be compared across runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/collectspec/packages/core/runner"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at  TEXT    NOT NULL,
	duration_ms INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	p50_ms      INTEGER NOT NULL,
	p95_ms      INTEGER NOT NULL,
	label       TEXT    NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS cases (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	scenario     TEXT    NOT NULL,
	runner       TEXT    NOT NULL,
	target       TEXT    NOT NULL,
	in_isolation INTEGER NOT NULL,
	status       TEXT    NOT NULL,
	attempts     INTEGER NOT NULL,
	exit_code    INTEGER,
	duration_ms  INTEGER NOT NULL,
	error        TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS cases_run_id ON cases(run_id);
`

// Case statuses
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Run is one recorded matrix run
type Run struct {
	ID        int64
	StartedAt time.Time
	Duration  time.Duration
	Passed    int
	Failed    int
	Skipped   int
	P50       time.Duration
	P95       time.Duration
	Label     string
}

// Case is one recorded case of a run
type Case struct {
	Scenario    string
	Runner      string
	Target      string
	InIsolation bool
	Status      string
	Attempts    int
	ExitCode    *int
	Duration    time.Duration
	Error       string
}

// Store is a history database
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// Open opens or creates the history database. Accepted forms are a plain
// file path, sqlite://path and sqlite:path.
func Open(connectionString string) (*Store, error) {
	dsn, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &Store{
		db:           db,
		queryTimeout: 30 * time.Second,
	}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores result and all of its cases in one transaction and returns
// the new run ID.
func (s *Store) Record(ctx context.Context, result *runner.RunResult, startedAt time.Time, label string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, duration_ms, passed, failed, skipped, p50_ms, p95_ms, label)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		startedAt.UTC().Format(time.RFC3339Nano),
		result.Duration.Milliseconds(),
		result.Passed, result.Failed, result.Skipped,
		result.Timings.P50.Milliseconds(), result.Timings.P95.Milliseconds(),
		label)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cases (run_id, scenario, runner, target, in_isolation, status, attempts, exit_code, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare case insert: %w", err)
	}
	defer stmt.Close()

	for _, cr := range result.Results {
		var exitCode any
		if cr.Output != nil {
			exitCode = cr.Output.ExitCode
		}
		errText := ""
		if cr.Err != nil {
			errText = cr.Err.Error()
		}

		_, err := stmt.ExecContext(ctx,
			runID,
			cr.Scenario,
			cr.Runner.RunnerFramework,
			cr.Runner.TargetFramework,
			cr.Runner.InIsolation,
			caseStatus(cr),
			cr.Attempts,
			exitCode,
			cr.Duration.Milliseconds(),
			errText)
		if err != nil {
			return 0, fmt.Errorf("insert case %s: %w", cr.Name(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

func caseStatus(cr *runner.CaseResult) string {
	switch {
	case cr.Skipped:
		return StatusSkipped
	case cr.Passed():
		return StatusPassed
	default:
		return StatusFailed
	}
}

// Recent returns up to n runs, newest first
func (s *Store) Recent(ctx context.Context, n int) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, duration_ms, passed, failed, skipped, p50_ms, p95_ms, label
		 FROM runs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                        Run
			startedAt                string
			durationMs, p50Ms, p95Ms int64
		)
		if err := rows.Scan(&r.ID, &startedAt, &durationMs, &r.Passed, &r.Failed, &r.Skipped, &p50Ms, &p95Ms, &r.Label); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("run %d: bad start time: %w", r.ID, err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.P50 = time.Duration(p50Ms) * time.Millisecond
		r.P95 = time.Duration(p95Ms) * time.Millisecond
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// Cases returns the cases recorded for a run, in recording order
func (s *Store) Cases(ctx context.Context, runID int64) ([]Case, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT scenario, runner, target, in_isolation, status, attempts, exit_code, duration_ms, error
		 FROM cases WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var cases []Case
	for rows.Next() {
		var (
			c          Case
			exitCode   sql.NullInt64
			durationMs int64
		)
		if err := rows.Scan(&c.Scenario, &c.Runner, &c.Target, &c.InIsolation, &c.Status, &c.Attempts, &exitCode, &durationMs, &c.Error); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if exitCode.Valid {
			code := int(exitCode.Int64)
			c.ExitCode = &code
		}
		c.Duration = time.Duration(durationMs) * time.Millisecond
		cases = append(cases, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return cases, nil
}

// parseConnectionString strips the optional sqlite scheme
// Path returns the database file named by a connection string, with any
// sqlite:// or sqlite: scheme removed.
func Path(connectionString string) (string, error) {
	return parseConnectionString(connectionString)
}

func parseConnectionString(connStr string) (string, error) {
	connStr = strings.TrimSpace(connStr)

	switch {
	case connStr == "":
		return "", fmt.Errorf("empty history database path")
	case strings.HasPrefix(connStr, "sqlite://"):
		return strings.TrimPrefix(connStr, "sqlite://"), nil
	case strings.HasPrefix(connStr, "sqlite:"):
		return strings.TrimPrefix(connStr, "sqlite:"), nil
	case strings.Contains(connStr, "://"):
		scheme, _, _ := strings.Cut(connStr, "://")
		return "", fmt.Errorf("unsupported database scheme: %s", scheme)
	}
	return connStr, nil
}
