package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/skin-lesion-advisor/internal/domain"
)

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite results store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteRecord(s scanner) (*Record, error) {
	r := &Record{}
	var createdAt string

	if err := s.Scan(&r.ID, &r.Prediction, &r.Confidence, &r.UserID, &r.ImageName, &createdAt); err != nil {
		return nil, err
	}

	t, err := time.Parse(sqliteTimeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	r.CreatedAt = t
	return r, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS prediction_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		prediction TEXT NOT NULL,
		confidence REAL NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		image_name TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_results_prediction ON prediction_results(prediction);
	CREATE INDEX IF NOT EXISTS idx_results_user_id ON prediction_results(user_id);
	CREATE INDEX IF NOT EXISTS idx_results_created_at ON prediction_results(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Timestamps are fixed-width text, so string comparison orders them.
var sqliteDialect = dialect{
	placeholder: func(int) string { return "?" },
	timeArg:     func(t time.Time) interface{} { return t.Format(sqliteTimeLayout) },
}

// Save stores a prediction result.
func (s *SQLiteStore) Save(ctx context.Context, record *Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	record.CreatedAt = record.CreatedAt.UTC()

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO prediction_results (prediction, confidence, user_id, image_name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		record.Prediction,
		record.Confidence,
		record.UserID,
		record.ImageName,
		record.CreatedAt.Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	record.ID = id
	return nil
}

// List returns a page of results, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]*Record, int64, error) {
	filter = filter.Normalize()
	where, args := buildWhere(filter, sqliteDialect)

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM prediction_results"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count: %w", err)
	}

	query := `SELECT id, prediction, confidence, user_id, image_name, created_at
		FROM prediction_results` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0, filter.Limit)
	for rows.Next() {
		r, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, r)
	}
	return records, total, rows.Err()
}

// All returns every stored result, oldest first.
func (s *SQLiteStore) All(ctx context.Context) ([]domain.PredictionResult, error) {
	records, err := s.allRecords(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PredictionResult, 0, len(records))
	for _, r := range records {
		out = append(out, r.Result())
	}
	return out, nil
}

func (s *SQLiteStore) allRecords(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, prediction, confidence, user_id, image_name, created_at
		FROM prediction_results
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		r, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Count returns the total number of stored results.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM prediction_results").Scan(&count)
	return count, err
}

// Delete removes a result by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM prediction_results WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ExportJSON exports all results to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.allRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to list results: %w", err)
	}
	return writeExport(writer, all)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func writeExport(writer io.Writer, records []*Record) error {
	if records == nil {
		records = []*Record{}
	}
	export := &ResultsExport{
		Version:    "1.0",
		ExportedAt: time.Now().UTC(),
		Count:      len(records),
		Results:    records,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}
