package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fuels-pipeline/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Store persists pipeline runs, stage progress, logs and errors in sqlite.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	project_name TEXT NOT NULL,
	status TEXT NOT NULL,
	domain_id TEXT NOT NULL DEFAULT '',
	current_stage TEXT NOT NULL DEFAULT '',
	error_kind TEXT NOT NULL DEFAULT '',
	output_dir TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	finished_at DATETIME,
	elapsed_ms INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS stage_progress (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at DATETIME,
	ended_at DATETIME,
	attempts INTEGER NOT NULL DEFAULT 0,
	detail TEXT NOT NULL DEFAULT '',
	UNIQUE(run_id, stage)
);
CREATE TABLE IF NOT EXISTS run_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	stage TEXT NOT NULL DEFAULT '',
	level TEXT NOT NULL,
	message TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS run_errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	stage TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL,
	error_message TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

// Open opens (creating if needed) the sqlite database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; a single connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// CreateRun stores a new pipeline run.
func (s *Store) CreateRun(run model.Run) error {
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	if run.Status == "" {
		run.Status = model.StatusPending
	}
	_, err := s.db.Exec(`INSERT INTO runs (id, project_name, status, output_dir, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.ProjectName, run.Status, run.OutputDir, run.CreatedAt, now)
	return err
}

// UpdateRunStatus updates a run's status.
func (s *Store) UpdateRunStatus(runID, status string) error {
	return s.exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now().UTC(), runID)
}

// UpdateRunStage records the stage a run is executing.
func (s *Store) UpdateRunStage(runID string, stage model.StageName) error {
	return s.exec(`UPDATE runs SET current_stage = ?, updated_at = ? WHERE id = ?`, string(stage), time.Now().UTC(), runID)
}

// SetRunDomain records the resolved domain id.
func (s *Store) SetRunDomain(runID, domainID string) error {
	return s.exec(`UPDATE runs SET domain_id = ?, updated_at = ? WHERE id = ?`, domainID, time.Now().UTC(), runID)
}

// FinishRun marks a run completed or failed.
func (s *Store) FinishRun(runID, status, errorKind string, elapsed time.Duration) error {
	now := time.Now().UTC()
	return s.exec(`UPDATE runs SET status = ?, error_kind = ?, finished_at = ?, elapsed_ms = ?, updated_at = ? WHERE id = ?`,
		status, errorKind, now, elapsed.Milliseconds(), now, runID)
}

func (s *Store) exec(query string, args ...any) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const runColumns = `id, project_name, status, domain_id, current_stage, error_kind, output_dir, created_at, updated_at, finished_at, elapsed_ms`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (model.Run, error) {
	var (
		r        model.Run
		stage    string
		finished sql.NullTime
	)
	err := sc.Scan(&r.ID, &r.ProjectName, &r.Status, &r.DomainID, &stage, &r.ErrorKind, &r.OutputDir,
		&r.CreatedAt, &r.UpdatedAt, &finished, &r.ElapsedMS)
	if err != nil {
		return r, err
	}
	r.CurrentStage = model.StageName(stage)
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, nil
}

// GetRun fetches one run.
func (s *Store) GetRun(runID string) (*model.Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns() ([]model.Run, error) {
	rows, err := s.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []model.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SaveStageProgress inserts or updates the progress row of a stage.
func (s *Store) SaveStageProgress(p model.StageProgress) error {
	_, err := s.db.Exec(`
		INSERT INTO stage_progress (run_id, stage, status, started_at, ended_at, attempts, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, stage) DO UPDATE SET
			status = excluded.status,
			started_at = COALESCE(excluded.started_at, stage_progress.started_at),
			ended_at = excluded.ended_at,
			attempts = excluded.attempts,
			detail = excluded.detail`,
		p.RunID, string(p.Stage), p.Status, nullTime(p.StartedAt), nullTime(p.EndedAt), p.Attempts, p.Detail)
	return err
}

// GetStageProgress returns the stages of a run in execution order.
func (s *Store) GetStageProgress(runID string) ([]model.StageProgress, error) {
	rows, err := s.db.Query(`SELECT run_id, stage, status, started_at, ended_at, attempts, detail
		FROM stage_progress WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := []model.StageProgress{}
	for rows.Next() {
		var (
			p              model.StageProgress
			stage          string
			started, ended sql.NullTime
		)
		if err := rows.Scan(&p.RunID, &stage, &p.Status, &started, &ended, &p.Attempts, &p.Detail); err != nil {
			return nil, err
		}
		p.Stage = model.StageName(stage)
		if started.Valid {
			t := started.Time
			p.StartedAt = &t
		}
		if ended.Valid {
			t := ended.Time
			p.EndedAt = &t
		}
		stages = append(stages, p)
	}
	return stages, rows.Err()
}

// SavePipelineLog appends a log line to a run.
func (s *Store) SavePipelineLog(runID string, stage model.StageName, level, message string, details map[string]any) error {
	var detailJSON []byte
	if len(details) > 0 {
		var err error
		if detailJSON, err = json.Marshal(details); err != nil {
			return err
		}
	}
	_, err := s.db.Exec(`INSERT INTO run_logs (run_id, stage, level, message, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, string(stage), level, message, string(detailJSON), time.Now().UTC())
	return err
}

// GetPipelineLogs returns a run's log lines, oldest first.
func (s *Store) GetPipelineLogs(runID string) ([]model.RunLog, error) {
	rows, err := s.db.Query(`SELECT id, run_id, stage, level, message, details, created_at
		FROM run_logs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []model.RunLog{}
	for rows.Next() {
		var (
			l       model.RunLog
			stage   string
			details string
		)
		if err := rows.Scan(&l.ID, &l.RunID, &stage, &l.Level, &l.Message, &details, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Stage = model.StageName(stage)
		if details != "" {
			if err := json.Unmarshal([]byte(details), &l.Details); err != nil {
				return nil, err
			}
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// SaveRunError records the error that halted a run.
func (s *Store) SaveRunError(runID string, stage model.StageName, kind string, err error) error {
	if err == nil {
		return nil
	}
	_, e := s.db.Exec(`INSERT INTO run_errors (run_id, stage, kind, error_message, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, string(stage), kind, err.Error(), time.Now().UTC())
	return e
}

// GetRunErrors returns the errors of a run.
func (s *Store) GetRunErrors(runID string) ([]model.RunError, error) {
	rows, err := s.db.Query(`SELECT id, run_id, stage, kind, error_message, created_at
		FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.RunError{}
	for rows.Next() {
		var (
			e     model.RunError
			stage string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &stage, &e.Kind, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Stage = model.StageName(stage)
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
