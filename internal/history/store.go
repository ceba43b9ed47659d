// Package history records every search request in MySQL for auditing. The
// store is optional and must never fail a search: callers log recording
// errors and move on.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"medgraph-search/internal/logging"

	sq "github.com/Masterminds/squirrel"
	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const tableName = "search_history"

// Entry is one recorded search request.
type Entry struct {
	ID        string        `json:"id"`
	Question  string        `json:"question"`
	Cypher    string        `json:"cypher"`
	Status    string        `json:"status"`
	Attempts  int           `json:"attempts"`
	Duration  time.Duration `json:"duration"`
	ErrorKind string        `json:"error_kind,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Config holds history store settings.
type Config struct {
	Enabled bool
	DSN     string
	// Instrument enables otelsql tracing/metrics on the connection.
	Instrument bool

	// Pool settings; zero values leave the driver defaults in place.
	PoolMaxOpen     int
	PoolMaxIdle     int
	PoolMaxLifetime time.Duration
}

// Store writes and reads search history rows.
type Store struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	logger  *logging.Logger
}

// Open connects to MySQL, instrumented when configured, and verifies the
// connection.
func Open(ctx context.Context, cfg Config, logger *logging.Logger) (*Store, error) {
	var db *sql.DB
	var err error
	if cfg.Instrument {
		db, err = otelsql.Open("mysql", cfg.DSN, otelsql.WithAttributes(semconv.DBSystemMySQL))
	} else {
		db, err = sql.Open("mysql", cfg.DSN)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if cfg.PoolMaxOpen > 0 {
		db.SetMaxOpenConns(cfg.PoolMaxOpen)
	}
	if cfg.PoolMaxIdle > 0 {
		db.SetMaxIdleConns(cfg.PoolMaxIdle)
	}
	if cfg.PoolMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.PoolMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history database not reachable: %w", err)
	}
	return NewStore(db, logger), nil
}

// NewStore wraps an existing handle, mainly for tests.
func NewStore(db *sql.DB, logger *logging.Logger) *Store {
	return &Store{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
		logger:  logger.WithFields(slog.String("component", "history")),
	}
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one entry. A missing ID or timestamp is filled in.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query, args, err := s.builder.
		Insert(tableName).
		Columns("id", "question", "cypher", "status", "attempts", "duration_ms", "error_kind", "created_at").
		Values(entry.ID, entry.Question, entry.Cypher, entry.Status, entry.Attempts,
			entry.Duration.Milliseconds(), entry.ErrorKind, entry.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build history insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record search history: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query, args, err := s.builder.
		Select("id", "question", "cypher", "status", "attempts", "duration_ms", "error_kind", "created_at").
		From(tableName).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build history select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query search history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var durationMS int64
		var errorKind sql.NullString
		if err := rows.Scan(&entry.ID, &entry.Question, &entry.Cypher, &entry.Status,
			&entry.Attempts, &durationMS, &errorKind, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entry.Duration = time.Duration(durationMS) * time.Millisecond
		entry.ErrorKind = errorKind.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
