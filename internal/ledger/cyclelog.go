package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// CycleTrace is one orchestrator cycle's terminal record: the phase it
// ended in, the decision it produced (if any), and the failure reason when
// it did not complete. Every cycle leaves exactly one trace; no failure is
// silently dropped.
type CycleTrace struct {
	ID         int64     `json:"id"`
	TraceID    string    `json:"trace_id"`
	ProductID  string    `json:"product_id"`
	Phase      string    `json:"phase"`
	Status     string    `json:"status"` // applied | proposed | failed | rejected
	DecisionID string    `json:"decision_id,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// CycleTraceStore keeps cycle traces in a standalone sqlite file, separate
// from the ledger so operational queries never contend with price commits.
type CycleTraceStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func NewCycleTraceStore(path string) (*CycleTraceStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("cycle trace store requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureCycleTraceSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &CycleTraceStore{db: db, path: path}, nil
}

func (s *CycleTraceStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureCycleTraceSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycle_traces (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			phase TEXT,
			status TEXT,
			decision_id TEXT,
			confidence REAL,
			reason TEXT,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_cycle_traces_product ON cycle_traces(product_id);`,
		`CREATE INDEX IF NOT EXISTS idx_cycle_traces_started ON cycle_traces(started_at);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Append records one finished cycle.
func (s *CycleTraceStore) Append(ctx context.Context, trace CycleTrace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return fmt.Errorf("cycle trace store closed")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cycle_traces
			(trace_id, product_id, phase, status, decision_id, confidence, reason, started_at, finished_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trace.TraceID, trace.ProductID, trace.Phase, trace.Status, trace.DecisionID,
		trace.Confidence, trace.Reason, trace.StartedAt.Unix(), trace.FinishedAt.Unix(), time.Now().Unix())
	return persistErr("append cycle trace", err)
}

// Recent returns the newest traces for a product (all products when
// productID is empty).
func (s *CycleTraceStore) Recent(ctx context.Context, productID string, limit int) ([]CycleTrace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("cycle trace store closed")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT id, trace_id, product_id, phase, status, decision_id, confidence, reason, started_at, finished_at
		FROM cycle_traces`
	args := []any{}
	if productID != "" {
		query += ` WHERE product_id = ?`
		args = append(args, productID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CycleTrace
	for rows.Next() {
		var t CycleTrace
		var started, finished int64
		if err := rows.Scan(&t.ID, &t.TraceID, &t.ProductID, &t.Phase, &t.Status,
			&t.DecisionID, &t.Confidence, &t.Reason, &started, &finished); err != nil {
			return nil, err
		}
		t.StartedAt = time.Unix(started, 0)
		t.FinishedAt = time.Unix(finished, 0)
		out = append(out, t)
	}
	return out, rows.Err()
}
