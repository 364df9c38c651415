package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/psantana5/landing/pkg/models"
)

// SQLiteStore is a SQLite-based implementation of the data store
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// WAL plus a busy timeout lets the CLI read while the server writes.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to avoid SQLITE_BUSY
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		remote_addr TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_kind ON submissions(kind);
	CREATE INDEX IF NOT EXISTS idx_submissions_created_at ON submissions(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveSubmission inserts sub
func (s *SQLiteStore) SaveSubmission(sub *models.Submission) error {
	if err := validate(sub); err != nil {
		return err
	}

	_, err := s.db.Exec(`
		INSERT INTO submissions (id, kind, name, email, subject, message, remote_addr, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, string(sub.Kind), sub.Name, sub.Email, sub.Subject, sub.Message, sub.RemoteAddr, sub.CreatedAt.UTC(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return ErrDuplicateID
		}
		return fmt.Errorf("failed to save submission: %w", err)
	}
	return nil
}

// GetSubmission retrieves a submission by ID
func (s *SQLiteStore) GetSubmission(id string) (*models.Submission, error) {
	row := s.db.QueryRow(`
		SELECT id, kind, name, email, subject, message, remote_addr, created_at
		FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sub, err
}

// ListSubmissions returns submissions newest first
func (s *SQLiteStore) ListSubmissions(kind models.SubmissionKind, limit int) ([]*models.Submission, error) {
	query := `SELECT id, kind, name, email, subject, message, remote_addr, created_at FROM submissions`
	var args []interface{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at DESC, id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

// CountByKind returns the number of submissions per kind
func (s *SQLiteStore) CountByKind() (map[string]int, error) {
	return countByKind(s.db, `SELECT kind, COUNT(*) FROM submissions GROUP BY kind`)
}

// HealthCheck pings the database
func (s *SQLiteStore) HealthCheck() error {
	return s.db.Ping()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var sub models.Submission
	var kind string
	if err := row.Scan(&sub.ID, &kind, &sub.Name, &sub.Email, &sub.Subject, &sub.Message, &sub.RemoteAddr, &sub.CreatedAt); err != nil {
		return nil, err
	}
	sub.Kind = models.SubmissionKind(kind)
	return &sub, nil
}

func scanSubmissions(rows *sql.Rows) ([]*models.Submission, error) {
	var out []*models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func countByKind(db *sql.DB, query string) (map[string]int, error) {
	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{
		string(models.KindContact):    0,
		string(models.KindNewsletter): 0,
	}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}
