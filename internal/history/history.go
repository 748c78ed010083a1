// Package history keeps a SQLite record of finished transfers.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded transfer.
type Entry struct {
	ID         string
	URL        string
	Backend    string
	Dest       string
	Status     string
	Message    string
	Total      int64
	Completed  int64
	StartedAt  time.Time
	FinishedAt time.Time
}

// Record adds or updates e, assigning an ID when it has none.
func Record(e Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	err := withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO transfers (
				id, url, backend, dest, status, message, total, completed, started_at, finished_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				url=excluded.url,
				backend=excluded.backend,
				dest=excluded.dest,
				status=excluded.status,
				message=excluded.message,
				total=excluded.total,
				completed=excluded.completed,
				started_at=excluded.started_at,
				finished_at=excluded.finished_at
		`,
			e.ID, e.URL, e.Backend, e.Dest, e.Status, e.Message, e.Total, e.Completed,
			unix(e.StartedAt), unix(e.FinishedAt))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to record transfer: %w", err)
	}
	return e.ID, nil
}

// List returns up to limit entries, most recently finished first. A limit
// of zero or less returns everything.
func List(limit int) ([]Entry, error) {
	d := getDBHelper()
	if d == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := d.Query(`
		SELECT id, url, backend, dest, status, message, total, completed, started_at, finished_at
		FROM transfers
		ORDER BY finished_at DESC, started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns the entry with id, or nil when there is none.
func Get(id string) (*Entry, error) {
	d := getDBHelper()
	if d == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	row := d.QueryRow(`
		SELECT id, url, backend, dest, status, message, total, completed, started_at, finished_at
		FROM transfers
		WHERE id = ?
	`, id)
	e, err := scan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Clear removes every entry and returns how many there were.
func Clear() (int64, error) {
	d := getDBHelper()
	if d == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	result, err := d.Exec("DELETE FROM transfers")
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	count, _ := result.RowsAffected()
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (Entry, error) {
	var e Entry
	var dest, status, message sql.NullString
	var total, completed, started, finished sql.NullInt64

	if err := s.Scan(&e.ID, &e.URL, &e.Backend, &dest, &status, &message,
		&total, &completed, &started, &finished); err != nil {
		if err == sql.ErrNoRows {
			return e, err
		}
		return e, fmt.Errorf("failed to read history entry: %w", err)
	}

	e.Dest = dest.String
	e.Status = status.String
	e.Message = message.String
	e.Total = total.Int64
	e.Completed = completed.Int64
	if started.Valid && started.Int64 > 0 {
		e.StartedAt = time.Unix(started.Int64, 0)
	}
	if finished.Valid && finished.Int64 > 0 {
		e.FinishedAt = time.Unix(finished.Int64, 0)
	}
	return e, nil
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
