package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/atendelab/chatwoot-harvest/internal/export"
)

const schema = `CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  started_at TEXT NOT NULL,
  window_label TEXT NOT NULL,
  conversations INTEGER NOT NULL,
  skipped INTEGER NOT NULL,
  records INTEGER NOT NULL,
  elapsed_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
  run_id INTEGER NOT NULL REFERENCES runs(id),
  conversation_id INTEGER NOT NULL,
  customer_name TEXT NOT NULL,
  customer_email TEXT NOT NULL,
  channel_name TEXT NOT NULL,
  message_type TEXT NOT NULL,
  created_at_iso TEXT,
  sender_name TEXT NOT NULL,
  content TEXT NOT NULL,
  agent_email TEXT
);

CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id);
CREATE INDEX IF NOT EXISTS idx_records_conversation ON records(conversation_id);`

// Store archives export runs in a local SQLite database.
type Store struct {
	conn *sql.DB
	path string
}

// Stats summarizes the archive contents.
type Stats struct {
	Runs          int       `json:"runs"`
	Records       int       `json:"records"`
	Conversations int       `json:"conversations"`
	LastRunAt     string    `json:"last_run_at,omitempty"`
	Generated     time.Time `json:"generated"`
}

// Open opens or creates the archive database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "create database directory")
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_timeout=5000", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	// SQLite works best with a single writer
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "apply schema")
	}

	return &Store{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// ArchiveRun stores a completed export run and all its records in a single
// transaction. Returns the new run id.
func (s *Store) ArchiveRun(windowLabel string, started time.Time, res *export.Result) (int64, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return 0, errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	insert, err := tx.Exec(
		`INSERT INTO runs (started_at, window_label, conversations, skipped, records, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		started.UTC().Format(time.RFC3339), windowLabel,
		res.Conversations, res.Skipped, len(res.Records), res.Elapsed.Milliseconds(),
	)
	if err != nil {
		return 0, errors.Wrap(err, "insert run")
	}

	runID, err := insert.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "run id")
	}

	stmt, err := tx.Prepare(
		`INSERT INTO records (run_id, conversation_id, customer_name, customer_email,
		 channel_name, message_type, created_at_iso, sender_name, content, agent_email)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, errors.Wrap(err, "prepare record insert")
	}
	defer stmt.Close()

	for _, r := range res.Records {
		if _, err := stmt.Exec(runID, r.ConversationID, r.CustomerName, r.CustomerEmail,
			r.ChannelName, r.MessageType, r.CreatedAtISO, r.SenderName, r.Content, r.AgentEmail); err != nil {
			return 0, errors.Wrapf(err, "insert record for conversation %d", r.ConversationID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit run")
	}
	return runID, nil
}

// ReadStats reports totals across all archived runs.
func (s *Store) ReadStats() (*Stats, error) {
	st := &Stats{Generated: time.Now().UTC()}

	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&st.Runs); err != nil {
		return nil, errors.Wrap(err, "count runs")
	}
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&st.Records); err != nil {
		return nil, errors.Wrap(err, "count records")
	}
	if err := s.conn.QueryRow(`SELECT COUNT(DISTINCT conversation_id) FROM records`).Scan(&st.Conversations); err != nil {
		return nil, errors.Wrap(err, "count conversations")
	}

	var last sql.NullString
	if err := s.conn.QueryRow(`SELECT started_at FROM runs ORDER BY id DESC LIMIT 1`).Scan(&last); err != nil && err != sql.ErrNoRows {
		return nil, errors.Wrap(err, "last run")
	}
	if last.Valid {
		st.LastRunAt = last.String
	}

	return st, nil
}
