package fetch

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Fetch attempt statuses recorded in fetch_log.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Ledger records attachment fetch attempts in SQLite. Purely observational:
// nothing consults it before fetching, so redundant fetches of the same file
// id simply produce more rows.
type Ledger struct {
	db *sql.DB
}

// NewLedger creates a Ledger backed by db.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Begin inserts a running fetch_log row and returns its id.
func (l *Ledger) Begin(ctx context.Context, teamID, fileID string) (string, error) {
	if teamID == "" {
		return "", fmt.Errorf("team id is empty")
	}
	if fileID == "" {
		return "", fmt.Errorf("file id is empty")
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := l.db.ExecContext(ctx, `
INSERT INTO fetch_log(id, team_id, file_id, status, created_at)
VALUES(?, ?, ?, ?, ?);
`, id, teamID, fileID, StatusRunning, now)
	if err != nil {
		return "", fmt.Errorf("record fetch start: %w", err)
	}
	return id, nil
}

// Complete marks a fetch finished with the byte count and content checksum.
func (l *Ledger) Complete(ctx context.Context, id string, bytes int64, checksum string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := l.db.ExecContext(ctx, `
UPDATE fetch_log
SET status = ?, bytes = ?, checksum = ?, completed_at = ?
WHERE id = ?;
`, StatusCompleted, bytes, checksum, now, id)
	if err != nil {
		return fmt.Errorf("record fetch completion: %w", err)
	}
	return nil
}

// Fail marks a fetch failed with its error message.
func (l *Ledger) Fail(ctx context.Context, id, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := l.db.ExecContext(ctx, `
UPDATE fetch_log
SET status = ?, last_error = ?, completed_at = ?
WHERE id = ?;
`, StatusFailed, message, now, id)
	if err != nil {
		return fmt.Errorf("record fetch failure: %w", err)
	}
	return nil
}

// Attempt is a fetch_log row projection used by tests and the CLI.
type Attempt struct {
	ID       string
	TeamID   string
	FileID   string
	Status   string
	Bytes    sql.NullInt64
	Checksum sql.NullString
	LastErr  sql.NullString
}

// Attempts returns fetch_log rows for a team and file, newest first.
func (l *Ledger) Attempts(ctx context.Context, teamID, fileID string) ([]Attempt, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT id, team_id, file_id, status, bytes, checksum, last_error
FROM fetch_log
WHERE team_id = ? AND file_id = ?
ORDER BY created_at DESC;
`, teamID, fileID)
	if err != nil {
		return nil, fmt.Errorf("query fetch_log: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.TeamID, &a.FileID, &a.Status, &a.Bytes, &a.Checksum, &a.LastErr); err != nil {
			return nil, fmt.Errorf("scan fetch_log row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
