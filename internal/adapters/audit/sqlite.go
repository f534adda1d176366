package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_entries (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	ledger_id TEXT    NOT NULL,
	ts        TEXT    NOT NULL,
	message   TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_entries_ledger ON audit_entries(ledger_id, id);
`

// SQLiteStore holds the audit entries of every ledger in one database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("audit db path is required")
	}
	dsn := path
	if path != ":memory:" {
		path = filepath.Clean(path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Sink returns the sink for one ledger.
func (s *SQLiteStore) Sink(ledgerID string) *SQLiteSink {
	return &SQLiteSink{db: s.db, ledgerID: ledgerID}
}

// SQLiteSink is one ledger's view of a SQLiteStore.
type SQLiteSink struct {
	db       *sql.DB
	ledgerID string
}

func (s *SQLiteSink) Append(ctx context.Context, entries ...Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO audit_entries(ledger_id, ts, message) VALUES(?, ?, ?)",
			s.ledgerID, e.Time.UTC().Format(time.RFC3339Nano), e.Message,
		); err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (s *SQLiteSink) ListAll(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT ts, message FROM audit_entries WHERE ledger_id = ? ORDER BY id",
		s.ledgerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var ts, msg string
		if err := rows.Scan(&ts, &msg); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse audit timestamp %q: %w", ts, err)
		}
		out = append(out, Entry{Time: t, Message: msg})
	}
	return out, rows.Err()
}

func (s *SQLiteSink) DeleteFirst(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_entries WHERE id IN (
			SELECT id FROM audit_entries WHERE ledger_id = ? ORDER BY id LIMIT ?
		)`,
		s.ledgerID, n,
	)
	if err != nil {
		return fmt.Errorf("delete audit entries: %w", err)
	}
	return nil
}
