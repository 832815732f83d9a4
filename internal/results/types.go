// Package results persists prediction results for history and reporting views.
package results

import (
	"context"
	"io"
	"math"
	"strings"
	"time"

	"github.com/skin-lesion-advisor/internal/domain"
)

// Pagination bounds applied by Filter.Normalize
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Record is a stored prediction result.
type Record struct {
	ID         int64     `json:"id,omitempty"`
	Prediction string    `json:"prediction"`
	Confidence float64   `json:"confidence"`
	UserID     string    `json:"userId,omitempty"`
	ImageName  string    `json:"imageName,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Result converts the record into the core prediction type.
func (r *Record) Result() domain.PredictionResult {
	return domain.PredictionResult{
		Label:      r.Prediction,
		Confidence: r.Confidence,
		CreatedAt:  r.CreatedAt,
		UserID:     r.UserID,
	}
}

// Validate checks the record before it is written.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.Prediction) == "" {
		return domain.NewValidationError("prediction", "prediction is required", r.Prediction)
	}
	if math.IsNaN(r.Confidence) || math.IsInf(r.Confidence, 0) || r.Confidence < 0 || r.Confidence > 100 {
		return domain.NewValidationError("confidence", "confidence must be between 0 and 100", r.Confidence)
	}
	return nil
}

// Filter selects a page of records. Empty fields match everything.
type Filter struct {
	Prediction string
	UserID     string
	Since      time.Time // inclusive lower bound on CreatedAt
	Page       int       // 1-based
	Limit      int
}

// Normalize clamps page and limit into their valid ranges.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f
}

// Offset returns the row offset of the page.
func (f Filter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Store defines the interface for result storage operations.
type Store interface {
	// Save validates and inserts a record, assigning ID and CreatedAt when unset.
	Save(ctx context.Context, record *Record) error

	// List returns one page of records, newest first, and the total matching count.
	List(ctx context.Context, filter Filter) ([]*Record, int64, error)

	// All returns every stored result, oldest first.
	All(ctx context.Context) ([]domain.PredictionResult, error)

	// Count returns the total number of records.
	Count(ctx context.Context) (int64, error)

	// Delete removes a record by ID. Missing records yield domain.ErrNotFound.
	Delete(ctx context.Context, id int64) error

	// ExportJSON writes every record to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// Close closes the store and releases resources.
	Close() error
}

// ResultsExport represents the JSON export format.
type ResultsExport struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Count      int       `json:"count"`
	Results    []*Record `json:"results"`
}

// dialect adapts buildWhere to one SQL driver.
type dialect struct {
	placeholder func(n int) string // the n-th (1-based) bind parameter
	timeArg     func(t time.Time) interface{}
}

// buildWhere renders the filter as a WHERE clause.
func buildWhere(filter Filter, d dialect) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	if filter.Prediction != "" {
		args = append(args, filter.Prediction)
		clauses = append(clauses, "prediction = "+d.placeholder(len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		clauses = append(clauses, "user_id = "+d.placeholder(len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, d.timeArg(filter.Since.UTC()))
		clauses = append(clauses, "created_at >= "+d.placeholder(len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
