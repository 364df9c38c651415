package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/psantana5/landing/pkg/models"
	"github.com/psantana5/landing/pkg/retry"
)

// PostgreSQLStore implements Store interface using PostgreSQL
type PostgreSQLStore struct {
	db *sql.DB
}

// NewPostgreSQLStore connects to PostgreSQL. The first ping is retried so
// the service can start alongside its database.
func NewPostgreSQLStore(config Config) (*PostgreSQLStore, error) {
	return newPostgreSQLStore(context.Background(), config, retry.DefaultConfig())
}

func newPostgreSQLStore(ctx context.Context, config Config, rc retry.Config) (*PostgreSQLStore, error) {
	dsn := config.DSN
	if dsn == "" {
		return nil, fmt.Errorf("PostgreSQL DSN is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(orDefault(config.MaxOpenConns, 10))
	db.SetMaxIdleConns(orDefault(config.MaxIdleConns, 2))
	db.SetConnMaxLifetime(orDefaultDuration(config.ConnMaxLifetime, 5*time.Minute))
	db.SetConnMaxIdleTime(orDefaultDuration(config.ConnMaxIdleTime, time.Minute))

	err = retry.Do(ctx, rc, func(int) error {
		if err := db.PingContext(ctx); err != nil {
			if retry.IsRetryable(err) {
				return err
			}
			return retry.Permanent(err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgreSQLStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orDefaultDuration(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

func (s *PostgreSQLStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL CHECK (kind IN ('contact', 'newsletter')),
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		remote_addr TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_kind ON submissions(kind);
	CREATE INDEX IF NOT EXISTS idx_submissions_created_at ON submissions(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveSubmission inserts sub
func (s *PostgreSQLStore) SaveSubmission(sub *models.Submission) error {
	if err := validate(sub); err != nil {
		return err
	}

	_, err := s.db.Exec(`
		INSERT INTO submissions (id, kind, name, email, subject, message, remote_addr, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sub.ID, string(sub.Kind), sub.Name, sub.Email, sub.Subject, sub.Message, sub.RemoteAddr, sub.CreatedAt.UTC(),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateID
		}
		return fmt.Errorf("failed to save submission: %w", err)
	}
	return nil
}

// GetSubmission retrieves a submission by ID
func (s *PostgreSQLStore) GetSubmission(id string) (*models.Submission, error) {
	row := s.db.QueryRow(`
		SELECT id, kind, name, email, subject, message, remote_addr, created_at
		FROM submissions WHERE id = $1`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sub, err
}

// ListSubmissions returns submissions newest first
func (s *PostgreSQLStore) ListSubmissions(kind models.SubmissionKind, limit int) ([]*models.Submission, error) {
	query := `SELECT id, kind, name, email, subject, message, remote_addr, created_at FROM submissions`
	var args []interface{}
	if kind != "" {
		args = append(args, string(kind))
		query += fmt.Sprintf(` WHERE kind = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC, id ASC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

// CountByKind returns the number of submissions per kind
func (s *PostgreSQLStore) CountByKind() (map[string]int, error) {
	return countByKind(s.db, `SELECT kind, COUNT(*) FROM submissions GROUP BY kind`)
}

// HealthCheck pings the database
func (s *PostgreSQLStore) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}
