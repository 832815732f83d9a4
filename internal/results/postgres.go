package results

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"time"

	_ "github.com/lib/pq"

	"github.com/skin-lesion-advisor/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL results store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL results store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string, cfg domain.DatabaseConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

var postgresDialect = dialect{
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	timeArg:     func(t time.Time) interface{} { return t },
}

// Save stores a prediction result.
func (s *PostgresStore) Save(ctx context.Context, record *Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	record.CreatedAt = record.CreatedAt.UTC()

	query := `
		INSERT INTO prediction_results (prediction, confidence, user_id, image_name, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		record.Prediction,
		record.Confidence,
		record.UserID,
		record.ImageName,
		record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// List returns a page of results, newest first.
func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*Record, int64, error) {
	filter = filter.Normalize()
	where, args := buildWhere(filter, postgresDialect)

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM prediction_results"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count results: %w", err)
	}

	query := fmt.Sprintf(`SELECT id, prediction, confidence, user_id, image_name, created_at
		FROM prediction_results%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)

	rows, err := s.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0, filter.Limit)
	for rows.Next() {
		r := &Record{}
		if err := rows.Scan(&r.ID, &r.Prediction, &r.Confidence, &r.UserID, &r.ImageName, &r.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan row: %w", err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		records = append(records, r)
	}

	return records, total, rows.Err()
}

// All returns every stored result, oldest first.
func (s *PostgresStore) All(ctx context.Context) ([]domain.PredictionResult, error) {
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

func (s *PostgresStore) allRecords(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, prediction, confidence, user_id, image_name, created_at
		FROM prediction_results
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		r := &Record{}
		if err := rows.Scan(&r.ID, &r.Prediction, &r.Confidence, &r.UserID, &r.ImageName, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

// Count returns the total number of stored results.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM prediction_results").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return count, nil
}

// Delete removes a result by ID.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM prediction_results WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
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
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.allRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to list results: %w", err)
	}
	return writeExport(writer, all)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
