package store

import (
	"errors"
	"time"

	"github.com/psantana5/landing/pkg/models"
)

// Store persists form submissions.
// Memory, SQLite and PostgreSQL implement this interface.
type Store interface {
	SaveSubmission(sub *models.Submission) error
	GetSubmission(id string) (*models.Submission, error)
	// ListSubmissions returns submissions newest first. An empty kind
	// lists every kind; limit <= 0 means no limit.
	ListSubmissions(kind models.SubmissionKind, limit int) ([]*models.Submission, error)
	CountByKind() (map[string]int, error)

	Close() error
	HealthCheck() error
}

// Config holds database configuration
type Config struct {
	Type string `mapstructure:"type" yaml:"type"` // "memory", "sqlite" or "postgres"
	DSN  string `mapstructure:"dsn" yaml:"dsn"`

	// PostgreSQL specific
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`

	// SQLite specific
	Path string `mapstructure:"path" yaml:"path"`
}

var (
	ErrNotFound            = errors.New("submission not found")
	ErrDuplicateID         = errors.New("submission id already exists")
	ErrUnsupportedDatabase = errors.New("unsupported database type")
)

// NewStore creates a store based on configuration
func NewStore(config Config) (Store, error) {
	switch config.Type {
	case "memory", "":
		return NewMemoryStore(), nil
	case "sqlite":
		path := config.Path
		if path == "" {
			path = config.DSN
		}
		if path == "" {
			path = "landing.db"
		}
		s, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres", "postgresql":
		s, err := NewPostgreSQLStore(config)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, ErrUnsupportedDatabase
	}
}

func validate(sub *models.Submission) error {
	if sub == nil || sub.ID == "" {
		return errors.New("submission id is required")
	}
	if !sub.Kind.IsValid() {
		return errors.New("submission kind must be contact or newsletter")
	}
	return nil
}
