package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
	StatusFailed   Status = "failed"
)

// Run is one pipeline run as recorded in the ledger.
type Run struct {
	ID                 string     `json:"id"`
	From               string     `json:"from"`
	To                 string     `json:"to"`
	Products           []string   `json:"products"`
	Source             string     `json:"source"`
	Status             Status     `json:"status"`
	StartedAt          time.Time  `json:"started_at"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
	TotalCalls         int        `json:"total_calls"`
	IncludedCalls      int        `json:"included_calls"`
	TotalUtterances    int        `json:"total_utterances"`
	IncludedUtterances int        `json:"included_utterances"`
	ArtifactFailures   int        `json:"artifact_failures"`
	Error              string     `json:"error,omitempty"`
}

// Outcome is what Finish records once a run ends.
type Outcome struct {
	Status             Status
	FinishedAt         time.Time
	TotalCalls         int
	IncludedCalls      int
	TotalUtterances    int
	IncludedUtterances int
	ArtifactFailures   int
	Err                error
}

// Store wraps SQLite access for the run history.
type Store struct {
	db *sql.DB
}

var ErrNotFound = errors.New("run not found")

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection keeps :memory: databases and writes consistent
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			range_from TEXT,
			range_to TEXT,
			products_json TEXT,
			source TEXT,
			status TEXT,
			started_at TIMESTAMP,
			finished_at TIMESTAMP,
			total_calls INTEGER DEFAULT 0,
			included_calls INTEGER DEFAULT 0,
			total_utterances INTEGER DEFAULT 0,
			included_utterances INTEGER DEFAULT 0,
			artifact_failures INTEGER DEFAULT 0,
			last_error TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Begin records a run as running.
func (s *Store) Begin(ctx context.Context, r Run) error {
	products, _ := json.Marshal(r.Products)
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs(id, range_from, range_to, products_json, source, status, started_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)`, r.ID, r.From, r.To, string(products), r.Source, StatusRunning, r.StartedAt.UTC())
	return err
}

// Finish stores the outcome of run id.
func (s *Store) Finish(ctx context.Context, id string, o Outcome) error {
	var errMsg *string
	if o.Err != nil {
		m := o.Err.Error()
		errMsg = &m
	}
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET status=?, finished_at=?, total_calls=?, included_calls=?,
		total_utterances=?, included_utterances=?, artifact_failures=?, last_error=? WHERE id=?`,
		o.Status, o.FinishedAt.UTC(), o.TotalCalls, o.IncludedCalls, o.TotalUtterances, o.IncludedUtterances,
		o.ArtifactFailures, errMsg, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish %s: %w", id, ErrNotFound)
	}
	return nil
}

const selectRun = `SELECT id, range_from, range_to, products_json, source, status, started_at, finished_at,
	total_calls, included_calls, total_utterances, included_utterances, artifact_failures, last_error FROM runs`

func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectRun+` WHERE id=?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectRun+` ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r        Run
		products string
		status   string
		finished sql.NullTime
		lastErr  sql.NullString
	)
	if err := sc.Scan(&r.ID, &r.From, &r.To, &products, &r.Source, &status, &r.StartedAt, &finished,
		&r.TotalCalls, &r.IncludedCalls, &r.TotalUtterances, &r.IncludedUtterances, &r.ArtifactFailures, &lastErr); err != nil {
		return nil, err
	}
	r.Status = Status(status)
	_ = json.Unmarshal([]byte(products), &r.Products)
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	if lastErr.Valid {
		r.Error = lastErr.String
	}
	return &r, nil
}
