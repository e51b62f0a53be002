package sink

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// commitEvery is the number of records grouped into one transaction.
const commitEvery = 256

const schema = `
CREATE TABLE IF NOT EXISTS batches (
	run_id    TEXT    NOT NULL,
	seq       INTEGER NOT NULL,
	branch    TEXT    NOT NULL,
	start     INTEGER NOT NULL,
	count     INTEGER NOT NULL,
	clamped   INTEGER NOT NULL,
	val0      TEXT    NOT NULL,
	val1      TEXT    NOT NULL,
	sha3_256  TEXT    NOT NULL,
	coalesced INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
) WITHOUT ROWID;`

const insertBatch = `
INSERT OR REPLACE INTO batches
	(run_id, seq, branch, start, count, clamped, val0, val1, sha3_256, coalesced)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLite logs records into a batches table, committing in groups.
type SQLite struct {
	db      *sql.DB
	tx      *sql.Tx
	stmt    *sql.Stmt
	pending int
}

// OpenSQLite opens or creates the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: ping %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sink: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) begin() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sink: begin: %w", err)
	}
	stmt, err := tx.Prepare(insertBatch)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sink: prepare: %w", err)
	}
	s.tx, s.stmt = tx, stmt
	return nil
}

// Write inserts r into the open transaction, committing every commitEvery
// records.
func (s *SQLite) Write(r Record) error {
	if s.tx == nil {
		if err := s.begin(); err != nil {
			return err
		}
	}
	clamped := 0
	if r.Clamped {
		clamped = 1
	}
	if _, err := s.stmt.Exec(r.RunID, r.Seq, r.Branch, r.Start, r.Count, clamped,
		r.Val0, r.Val1, r.Fingerprint, r.Coalesced); err != nil {
		return fmt.Errorf("sink: insert: %w", err)
	}
	if s.pending++; s.pending >= commitEvery {
		return s.Flush()
	}
	return nil
}

// Flush commits the open transaction, if any.
func (s *SQLite) Flush() error {
	if s.tx == nil {
		return nil
	}
	s.stmt.Close()
	err := s.tx.Commit()
	s.tx, s.stmt, s.pending = nil, nil, 0
	if err != nil {
		return fmt.Errorf("sink: commit: %w", err)
	}
	return nil
}

// Count commits pending rows and returns the row count for run.
func (s *SQLite) Count(run string) (int, error) {
	if err := s.Flush(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM batches WHERE run_id = ?", run).Scan(&n)
	return n, err
}

// Close commits pending rows and closes the database. A failed final
// commit is reported alongside any close error.
func (s *SQLite) Close() error {
	return errors.Join(s.Flush(), s.db.Close())
}
