// Package history persists confirmed classifications across runs. The
// scored classifier trains from this store at startup; the pipeline itself
// never reads it mid-file.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/xmou/bento/internal/classify"
)

// Store is a SQLite-backed archive of (payee, narration, account) triples.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS classifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	payee TEXT NOT NULL,
	narration TEXT NOT NULL DEFAULT '',
	account TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_classifications_account ON classifications(account);
`

// Open creates or opens the history database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history database path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add records confirmed classification samples.
func (s *Store) Add(ctx context.Context, samples []classify.TrainingSample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO classifications (payee, narration, account) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, sample := range samples {
		if sample.Account == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, sample.Payee, sample.Narration, sample.Account); err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}

	return tx.Commit()
}

// Samples returns every stored sample, oldest first.
func (s *Store) Samples(ctx context.Context) ([]classify.TrainingSample, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT payee, narration, account FROM classifications ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var samples []classify.TrainingSample
	for rows.Next() {
		var sample classify.TrainingSample
		if err := rows.Scan(&sample.Payee, &sample.Narration, &sample.Account); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}

	return samples, nil
}

// Count reports how many samples are stored.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM classifications").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}
	return n, nil
}
