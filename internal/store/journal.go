package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/LW1989/red-data-database/internal/model"
)

// SQLiteJournal is the local run journal: one SQLite file recording
// stats runs, per-row failures and optional audit traces. It lives next
// to the CLI rather than in the warehouse so a run leaves a usable
// trail even when the database connection is the thing that failed.
type SQLiteJournal struct {
	db *sql.DB
}

var _ Journal = (*SQLiteJournal)(nil)

// NewSQLiteJournal opens (and if needed creates) the journal at path.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "journal: open sqlite")
	}
	j := &SQLiteJournal{db: sqlDB}
	if err := j.migrate(context.Background()); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return j, nil
}

const journalMigration = `
CREATE TABLE IF NOT EXISTS stats_runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	summary     TEXT
);

CREATE TABLE IF NOT EXISTS run_failures (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL REFERENCES stats_runs(id),
	property_id TEXT NOT NULL,
	error       TEXT NOT NULL,
	recorded_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_traces (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL REFERENCES stats_runs(id),
	property_id TEXT NOT NULL,
	grid_id     TEXT NOT NULL,
	metric      TEXT NOT NULL,
	ratio       REAL,
	density     REAL,
	weight      REAL,
	value       REAL
);

CREATE INDEX IF NOT EXISTS idx_run_failures_run ON run_failures(run_id);
CREATE INDEX IF NOT EXISTS idx_audit_traces_run ON audit_traces(run_id, property_id);
`

func (j *SQLiteJournal) migrate(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, journalMigration)
	return eris.Wrap(err, "journal: migrate")
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func (j *SQLiteJournal) CreateRun(ctx context.Context, run *model.StatsRun) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO stats_runs (id, status, started_at) VALUES (?, ?, ?)`,
		run.ID, string(run.Status), run.StartedAt.UTC(),
	)
	return eris.Wrapf(err, "journal: create run %s", run.ID)
}

func (j *SQLiteJournal) FinishRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "journal: marshal summary")
	}
	res, err := j.db.ExecContext(ctx,
		`UPDATE stats_runs SET status = ?, finished_at = ?, summary = ? WHERE id = ?`,
		string(status), time.Now().UTC(), string(summaryJSON), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "journal: finish run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "journal: rows affected")
	}
	if n == 0 {
		return eris.Errorf("journal: run not found: %s", runID)
	}
	return nil
}

func (j *SQLiteJournal) RecordFailure(ctx context.Context, runID string, failure model.RowFailure) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO run_failures (run_id, property_id, error, recorded_at) VALUES (?, ?, ?, ?)`,
		runID, failure.PropertyID, failure.Err, time.Now().UTC(),
	)
	return eris.Wrapf(err, "journal: record failure for %s", failure.PropertyID)
}

// AppendTraces writes one property's audit contributions in a single
// transaction.
func (j *SQLiteJournal) AppendTraces(ctx context.Context, runID string, traces []model.AuditTrace) error {
	if len(traces) == 0 {
		return nil
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "journal: begin trace tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO audit_traces (run_id, property_id, grid_id, metric, ratio, density, weight, value)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "journal: prepare trace insert")
	}
	defer stmt.Close()

	for _, tr := range traces {
		if _, err := stmt.ExecContext(ctx,
			runID, tr.PropertyID, tr.GridID, tr.Group,
			tr.Ratio, tr.Density, tr.Weight, nullFloat(tr.Value),
		); err != nil {
			return eris.Wrap(err, "journal: insert trace")
		}
	}
	return eris.Wrap(tx.Commit(), "journal: commit traces")
}

// RecentRuns returns the latest runs, newest first, with their parsed
// summaries.
func (j *SQLiteJournal) RecentRuns(ctx context.Context, limit int) ([]model.StatsRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, status, started_at, finished_at, summary
		 FROM stats_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "journal: recent runs")
	}
	defer rows.Close()

	var runs []model.StatsRun
	for rows.Next() {
		var r model.StatsRun
		var status string
		var finished sql.NullTime
		var summaryJSON sql.NullString
		if err := rows.Scan(&r.ID, &status, &r.StartedAt, &finished, &summaryJSON); err != nil {
			return nil, eris.Wrap(err, "journal: scan run")
		}
		r.Status = model.RunStatus(status)
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		if summaryJSON.Valid && summaryJSON.String != "" {
			if err := json.Unmarshal([]byte(summaryJSON.String), &r.Summary); err != nil {
				return nil, eris.Wrap(err, "journal: unmarshal summary")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "journal: recent runs iterate")
}

// FailureCount returns how many row failures a run recorded.
func (j *SQLiteJournal) FailureCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx,
		`SELECT count(*) FROM run_failures WHERE run_id = ?`, runID,
	).Scan(&n)
	return n, eris.Wrapf(err, "journal: failure count %s", runID)
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
