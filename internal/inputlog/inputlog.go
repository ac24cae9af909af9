// Package inputlog durably records operator inputs in SQLite.
//
// Only operator submissions are persisted, never conversation turns;
// replay/restore of a session is out of scope.
package inputlog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Log is an append-only record of operator inputs.
type Log struct {
	db *sql.DB
}

// Open initializes the SQLite database at the given path, creating parent
// directories and the schema as needed.
func Open(path string) (*Log, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	l := &Log{db: db}
	if err := l.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS operator_inputs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Record appends one operator input.
func (l *Log) Record(text string) error {
	_, err := l.db.Exec("INSERT INTO operator_inputs (content) VALUES (?)", text)
	if err != nil {
		return fmt.Errorf("failed to record input: %w", err)
	}
	return nil
}

// Recent returns up to limit inputs, newest first.
func (l *Log) Recent(limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.Query(
		"SELECT content FROM operator_inputs ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query inputs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		out = append(out, content)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (l *Log) Close() error {
	return l.db.Close()
}
