// Package scoredb records batch run outcomes in a SQLite database so
// repeated solver sweeps over the same problem set can be compared.
package scoredb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	db *sql.DB

	ch   chan Run
	wg   sync.WaitGroup
	once sync.Once
}

// Run is one scored problem. Err is empty when the trace simulated to
// a halt; Energy and Steps are zero when it did not.
type Run struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Energy int64  `json:"energy"`
	Steps  int    `json:"steps"`
	Err    string `json:"err,omitempty"`
}

func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &DB{
		db: db,
		ch: make(chan Run, 1024),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only write pattern of a batch sweep.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			energy INTEGER NOT NULL,
			steps INTEGER NOT NULL,
			err TEXT,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_name ON runs(name, recorded_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordRun queues a run for insertion. Unlike a secondary index this
// database is the record of the sweep, so the send blocks rather than
// dropping when the writer falls behind.
func (s *DB) RecordRun(r Run) {
	if s == nil {
		return
	}
	s.ch <- r
}

// Close drains queued runs, stops the writer and closes the database.
func (s *DB) Close() error {
	var err error
	s.once.Do(func() {
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *DB) loop() {
	insert, err := s.db.Prepare(`INSERT INTO runs(name,status,energy,steps,err,recorded_at) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		for range s.ch {
		}
		return
	}
	defer insert.Close()

	for r := range s.ch {
		now := time.Now().UTC().Format(time.RFC3339Nano)
		_, _ = insert.Exec(r.Name, r.Status, r.Energy, r.Steps, r.Err, now)
	}
}

// BestEnergy returns the lowest matching energy ever recorded for a
// problem name, with ok=false when no matching run exists.
func (s *DB) BestEnergy(name string) (int64, bool, error) {
	var e sql.NullInt64
	err := s.db.QueryRow(
		`SELECT MIN(energy) FROM runs WHERE name = ? AND status = 'match'`, name,
	).Scan(&e)
	if err != nil {
		return 0, false, err
	}
	if !e.Valid {
		return 0, false, nil
	}
	return e.Int64, true, nil
}

// Runs returns every recorded run for a name, oldest first.
func (s *DB) Runs(name string) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT name, status, energy, steps, COALESCE(err,'') FROM runs WHERE name = ? ORDER BY id`, name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.Name, &r.Status, &r.Energy, &r.Steps, &r.Err); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
