// Package reporting serves statistics views over the results store.
package reporting

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/skin-lesion-advisor/internal/cache"
	"github.com/skin-lesion-advisor/internal/domain"
	"github.com/skin-lesion-advisor/internal/results"
	"github.com/skin-lesion-advisor/internal/service"
)

// generationKey names the cache counter Invalidate bumps. It lives in the
// cache backend so every replica sharing the cache sees the same value.
const generationKey = "stats:generation"

// DefaultRecentWindow is the span RecentCount covers unless overridden.
const DefaultRecentWindow = 7 * 24 * time.Hour

// StatisticsService summarizes stored results and caches the summaries.
// Cached entries are keyed on the record count and the shared generation
// counter, so a write through any service using the same cache is visible
// immediately.
type StatisticsService struct {
	store        results.Store
	cache        cache.Cache
	catalog      domain.ConditionCatalog
	logger       *logrus.Logger
	ttl          time.Duration
	recentWindow time.Duration
	now          func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Option configures a StatisticsService.
type Option func(*StatisticsService)

// WithRecentWindow sets the span counted by Report.RecentCount.
func WithRecentWindow(window time.Duration) Option {
	return func(s *StatisticsService) {
		if window > 0 {
			s.recentWindow = window
		}
	}
}

// WithClock replaces time.Now as the reference for the recent window.
func WithClock(now func() time.Time) Option {
	return func(s *StatisticsService) {
		if now != nil {
			s.now = now
		}
	}
}

// Report is a statistics summary of the stored results plus the number
// recorded at or after RecentSince.
type Report struct {
	domain.StatisticsSummary
	RecentCount int64     `json:"recentCount"`
	RecentSince time.Time `json:"recentSince"`
}

// PredictionDetails is one page of stored results for a single label.
type PredictionDetails struct {
	Label      string                 `json:"label"`
	Recognized bool                   `json:"recognized"`
	Condition  domain.ConditionRecord `json:"condition"`
	Results    []*results.Record      `json:"results"`
	Total      int64                  `json:"total"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
	TotalPages int                    `json:"totalPages"`
}

// NewStatisticsService creates a statistics service
func NewStatisticsService(
	store results.Store,
	summaryCache cache.Cache,
	catalog domain.ConditionCatalog,
	logger *logrus.Logger,
	ttl time.Duration,
	opts ...Option,
) *StatisticsService {
	s := &StatisticsService{
		store:        store,
		cache:        summaryCache,
		catalog:      catalog,
		logger:       logger,
		ttl:          ttl,
		recentWindow: DefaultRecentWindow,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cacheKey(bucketing domain.Bucketing, count, generation int64) string {
	return fmt.Sprintf("stats:%s:%d:%d", bucketing, count, generation)
}

// Summary returns the statistics of every stored result in the given bucketing.
func (s *StatisticsService) Summary(ctx context.Context, bucketing domain.Bucketing) (domain.StatisticsSummary, error) {
	if err := service.ValidateBucketing(bucketing); err != nil {
		return domain.StatisticsSummary{}, err
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return domain.StatisticsSummary{}, fmt.Errorf("failed to count results: %w", err)
	}

	// Without the generation a cached entry cannot be trusted, so the
	// summary is computed and left uncached.
	key := ""
	if generation, err := s.cache.Incr(ctx, generationKey, 0); err != nil {
		s.logger.WithError(err).Warn("Statistics cache generation unavailable")
	} else {
		key = cacheKey(bucketing, count, generation)
	}

	if key != "" {
		if cached, ok, err := cache.GetJSON[domain.StatisticsSummary](ctx, s.cache, key); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Statistics cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	all, err := s.store.All(ctx)
	if err != nil {
		return domain.StatisticsSummary{}, fmt.Errorf("failed to load results: %w", err)
	}

	summary, err := service.Summarize(all, bucketing)
	if err != nil {
		return domain.StatisticsSummary{}, fmt.Errorf("failed to summarize results: %w", err)
	}

	if key != "" {
		if err := cache.SetJSON(ctx, s.cache, key, summary, s.ttl); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Statistics cache write failed")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"bucketing": bucketing,
		"total":     summary.TotalCount,
		"buckets":   len(summary.TimeBuckets),
	}).Debug("Computed statistics summary")

	return summary, nil
}

// Report returns Summary together with the number of results recorded
// within the recent window ending now.
func (s *StatisticsService) Report(ctx context.Context, bucketing domain.Bucketing) (*Report, error) {
	summary, err := s.Summary(ctx, bucketing)
	if err != nil {
		return nil, err
	}

	since := s.now().UTC().Add(-s.recentWindow)
	recent, err := s.RecentCount(ctx, since)
	if err != nil {
		return nil, err
	}

	return &Report{
		StatisticsSummary: summary,
		RecentCount:       recent,
		RecentSince:       since,
	}, nil
}

// RecentCount returns the number of results created at or after since.
func (s *StatisticsService) RecentCount(ctx context.Context, since time.Time) (int64, error) {
	_, total, err := s.store.List(ctx, results.Filter{Since: since, Limit: 1})
	if err != nil {
		return 0, fmt.Errorf("failed to count recent results: %w", err)
	}
	return total, nil
}

// Invalidate makes every cached summary stale for all services sharing the
// cache.
func (s *StatisticsService) Invalidate(ctx context.Context) error {
	if _, err := s.cache.Incr(ctx, generationKey, 1); err != nil {
		return fmt.Errorf("failed to invalidate statistics: %w", err)
	}
	return nil
}

// Record saves a result and invalidates cached summaries. A failed
// invalidation is logged; the record count in the cache key still changes.
func (s *StatisticsService) Record(ctx context.Context, record *results.Record) error {
	if err := s.store.Save(ctx, record); err != nil {
		return err
	}
	if err := s.Invalidate(ctx); err != nil {
		s.logger.WithError(err).Warn("Statistics cache not invalidated after save")
	}
	return nil
}

// PredictionDetails lists the stored results for label, newest first.
func (s *StatisticsService) PredictionDetails(ctx context.Context, label string, page, limit int) (*PredictionDetails, error) {
	if strings.TrimSpace(label) == "" {
		return nil, domain.NewValidationError("prediction", "prediction is required", label)
	}

	filter := results.Filter{Prediction: label, Page: page, Limit: limit}.Normalize()
	records, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list results for %s: %w", label, err)
	}

	condition, recognized := s.catalog.Lookup(label)
	if !recognized {
		condition = service.UnknownCondition(label)
	}

	return &PredictionDetails{
		Label:      label,
		Recognized: recognized,
		Condition:  condition,
		Results:    records,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int((total + int64(filter.Limit) - 1) / int64(filter.Limit)),
	}, nil
}

// Warm precomputes the summary of every bucketing.
func (s *StatisticsService) Warm(ctx context.Context) error {
	for _, bucketing := range domain.AllBucketings() {
		if _, err := s.Summary(ctx, bucketing); err != nil {
			return fmt.Errorf("warming %s statistics: %w", bucketing, err)
		}
	}
	return nil
}

// ParseSchedule parses a standard 5-field cron expression
// (minute hour day-of-month month day-of-week).
func ParseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(strings.TrimSpace(expr))
}

// StartWarmer warms the cache on the given cron schedule until ctx is
// cancelled or Stop is called. An empty schedule disables warming.
func (s *StatisticsService) StartWarmer(ctx context.Context, schedule string) error {
	if strings.TrimSpace(schedule) == "" {
		s.logger.Info("Statistics warmer disabled (warm_schedule not set)")
		return nil
	}

	sched, err := ParseSchedule(schedule)
	if err != nil {
		return fmt.Errorf("invalid warm schedule %q: %w", schedule, err)
	}

	s.logger.WithField("schedule", schedule).Info("Statistics warmer scheduled")
	s.runWarmer(ctx, sched)
	return nil
}

func (s *StatisticsService) runWarmer(ctx context.Context, sched cron.Schedule) {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		for {
			now := time.Now()
			next := sched.Next(now)
			timer := time.NewTimer(next.Sub(now))

			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-s.stop:
				timer.Stop()
				return
			case <-timer.C:
			}

			start := time.Now()
			if err := s.Warm(ctx); err != nil {
				s.logger.WithError(err).Warn("Statistics warm-up failed")
				continue
			}
			s.logger.WithField("duration", time.Since(start)).Debug("Statistics cache warmed")
		}
	}()
}

// Stop halts the warmer and waits for it to exit.
func (s *StatisticsService) Stop() {
	if s.stop == nil {
		return
	}
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}
