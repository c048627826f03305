// Package audit keeps a local append-only journal of every attempted write
// to the external ledger. The ledger has no transactions, so this journal is
// the recovery trail when a confirmed mutation set half-applies.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Entry is one attempted external write.
type Entry struct {
	ID             string
	ConversationID string
	Sheet          string
	Target         string // cell ref or "row N"
	Value          string
	Outcome        string // "ok" | "error"
	Detail         string // error text when Outcome is "error"
	CreatedAt      time.Time
}

const createJournalTableSQL = `
CREATE TABLE IF NOT EXISTS write_journal (
    id              TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    sheet           TEXT NOT NULL,
    target          TEXT NOT NULL,
    value           TEXT DEFAULT '',
    outcome         TEXT NOT NULL,
    detail          TEXT DEFAULT '',
    created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_write_journal_created_at ON write_journal(created_at);
`

// Journal is the SQLite-backed write journal. A nil *Journal is a valid
// no-op journal: recording is best-effort and must never block the write
// path.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if _, err := db.Exec(createJournalTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal table: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record appends one entry. ID and CreatedAt are filled in when empty.
func (j *Journal) Record(e Entry) error {
	if j == nil || j.db == nil {
		return nil
	}
	if e.ID == "" {
		e.ID = uuid.New().String()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := j.db.Exec(`
		INSERT INTO write_journal (id, conversation_id, sheet, target, value, outcome, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ConversationID, e.Sheet, e.Target, e.Value, e.Outcome, e.Detail,
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	if j == nil || j.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.Query(`
		SELECT id, conversation_id, sheet, target, value, outcome, detail, created_at
		FROM write_journal
		ORDER BY created_at DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.ConversationID, &e.Sheet, &e.Target, &e.Value, &e.Outcome, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the underlying database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}
