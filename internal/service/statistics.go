package service

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/skin-lesion-advisor/internal/domain"
)

// StoredRecord is a persisted prediction as the results store hands it over,
// with the timestamp still in its serialized form.
type StoredRecord struct {
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
	CreatedAt  string  `json:"createdAt"`
	UserID     string  `json:"userId,omitempty"`
}

var timestampLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

// ParseTimestamp accepts RFC 3339 timestamps and bare YYYY-MM-DD dates (read as UTC).
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, domain.NewValidationError("createdAt", "timestamp must be RFC 3339 or YYYY-MM-DD", value)
}

// BucketKey returns the sortable bucket key of t. Keys are computed in UTC.
func BucketKey(t time.Time, bucketing domain.Bucketing) (string, error) {
	t = t.UTC()
	switch bucketing {
	case domain.BucketDaily:
		return t.Format("2006-01-02"), nil
	case domain.BucketWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week), nil
	case domain.BucketMonthly:
		return t.Format("2006-01"), nil
	case domain.BucketYearly:
		return t.Format("2006"), nil
	default:
		return "", invalidBucketing(bucketing)
	}
}

// ValidateBucketing rejects bucketings other than daily, weekly, monthly and yearly.
func ValidateBucketing(bucketing domain.Bucketing) error {
	if !bucketing.IsValid() {
		return invalidBucketing(bucketing)
	}
	return nil
}

func invalidBucketing(bucketing domain.Bucketing) error {
	return fmt.Errorf("%w: %w", domain.ErrInvalidBucketing,
		domain.NewValidationError("bucketing", "must be one of daily, weekly, monthly, yearly", string(bucketing)))
}

type accumulator struct {
	count int
	sum   float64
	min   float64
	max   float64
}

func (a *accumulator) add(v float64) {
	if a.count == 0 || v < a.min {
		a.min = v
	}
	if a.count == 0 || v > a.max {
		a.max = v
	}
	a.count++
	a.sum += v
}

func (a *accumulator) mean() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}

// Summarize derives per-label and per-bucket statistics from results. The
// input slice is only read.
func Summarize(results []domain.PredictionResult, bucketing domain.Bucketing) (domain.StatisticsSummary, error) {
	if err := ValidateBucketing(bucketing); err != nil {
		return domain.StatisticsSummary{}, err
	}

	var (
		overall accumulator
		high    int
	)
	byLabel := make(map[string]*accumulator)
	byBucket := make(map[string]*accumulator)

	for i, result := range results {
		if strings.TrimSpace(result.Label) == "" {
			return domain.StatisticsSummary{}, fmt.Errorf("result %d: %w", i,
				domain.NewValidationError("prediction", "label is required", result.Label))
		}
		if math.IsNaN(result.Confidence) || math.IsInf(result.Confidence, 0) {
			return domain.StatisticsSummary{}, fmt.Errorf("result %d: %w", i,
				domain.NewValidationError("confidence", "confidence must be a finite number", result.Confidence))
		}
		if result.CreatedAt.IsZero() {
			return domain.StatisticsSummary{}, fmt.Errorf("result %d: %w", i,
				domain.NewValidationError("createdAt", "timestamp is required", nil))
		}

		key, err := BucketKey(result.CreatedAt, bucketing)
		if err != nil {
			return domain.StatisticsSummary{}, err
		}

		overall.add(result.Confidence)
		if tier := Classify(result.Confidence).Tier; tier == domain.TierHigh || tier == domain.TierVeryHigh {
			high++
		}

		if byLabel[result.Label] == nil {
			byLabel[result.Label] = &accumulator{}
		}
		byLabel[result.Label].add(result.Confidence)

		if byBucket[key] == nil {
			byBucket[key] = &accumulator{}
		}
		byBucket[key].add(result.Confidence)
	}

	summary := domain.StatisticsSummary{
		Bucketing:  bucketing,
		TotalCount: len(results),
		Confidence: domain.ConfidenceStats{
			AvgConfidence: overall.mean(),
			MinConfidence: overall.min,
			MaxConfidence: overall.max,
		},
		BreakdownByLabel: make(map[string]domain.LabelBreakdown, len(byLabel)),
		TimeBuckets:      make([]domain.TimeBucket, 0, len(byBucket)),
	}
	if len(results) > 0 {
		summary.HighConfidenceShare = float64(high) / float64(len(results))
	}

	for label, acc := range byLabel {
		summary.BreakdownByLabel[label] = domain.LabelBreakdown{
			Count:         acc.count,
			AvgConfidence: acc.mean(),
			MinConfidence: acc.min,
			MaxConfidence: acc.max,
		}
	}

	for key, acc := range byBucket {
		summary.TimeBuckets = append(summary.TimeBuckets, domain.TimeBucket{
			BucketKey:     key,
			Count:         acc.count,
			AvgConfidence: acc.mean(),
		})
	}
	sort.Slice(summary.TimeBuckets, func(i, j int) bool {
		return summary.TimeBuckets[i].BucketKey < summary.TimeBuckets[j].BucketKey
	})

	return summary, nil
}

// SummarizeRecords parses stored records and summarizes them.
func SummarizeRecords(records []StoredRecord, bucketing domain.Bucketing) (domain.StatisticsSummary, error) {
	results, err := RecordsToResults(records)
	if err != nil {
		return domain.StatisticsSummary{}, err
	}
	return Summarize(results, bucketing)
}

// RecordsToResults converts stored records into prediction results.
func RecordsToResults(records []StoredRecord) ([]domain.PredictionResult, error) {
	results := make([]domain.PredictionResult, 0, len(records))
	for i, record := range records {
		createdAt, err := ParseTimestamp(record.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		results = append(results, domain.PredictionResult{
			Label:      record.Prediction,
			Confidence: record.Confidence,
			CreatedAt:  createdAt,
			UserID:     record.UserID,
		})
	}
	return results, nil
}

// IsInvalidBucketing reports whether err came from an unsupported bucketing.
func IsInvalidBucketing(err error) bool {
	return errors.Is(err, domain.ErrInvalidBucketing)
}
