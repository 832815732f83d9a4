package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skin-lesion-advisor/internal/domain"
	"github.com/skin-lesion-advisor/internal/results"
	"github.com/skin-lesion-advisor/internal/service"
)

// ClassifyConfidenceParams defines parameters for the classify_confidence tool
type ClassifyConfidenceParams struct {
	Confidence float64 `json:"confidence" jsonschema:"confidence percentage between 0 and 100"`
}

// LookupConditionParams defines parameters for the lookup_condition tool
type LookupConditionParams struct {
	Label string `json:"label" jsonschema:"condition label as emitted by the classifier, e.g. Measles"`
}

// ListConditionsParams takes no arguments
type ListConditionsParams struct{}

// ConditionSummary is one entry of the list_conditions result
type ConditionSummary struct {
	Label       string          `json:"label"`
	DisplayName string          `json:"display_name"`
	Severity    domain.Severity `json:"severity"`
}

// ResolvePredictionParams defines parameters for the resolve_prediction tool
type ResolvePredictionParams struct {
	Prediction string  `json:"prediction" jsonschema:"predicted condition label"`
	Confidence float64 `json:"confidence" jsonschema:"confidence percentage between 0 and 100"`
}

// SummarizeResultsParams defines parameters for the summarize_results tool
type SummarizeResultsParams struct {
	Bucketing string                 `json:"bucketing,omitempty" jsonschema:"daily, weekly, monthly or yearly (default daily)"`
	Results   []service.StoredRecord `json:"results" jsonschema:"prediction results with RFC 3339 createdAt timestamps"`
}

// RecordResultParams defines parameters for the record_result tool
type RecordResultParams struct {
	Prediction string  `json:"prediction" jsonschema:"predicted condition label"`
	Confidence float64 `json:"confidence" jsonschema:"confidence percentage between 0 and 100"`
	UserID     string  `json:"user_id,omitempty" jsonschema:"owner of the result"`
	CreatedAt  string  `json:"created_at,omitempty" jsonschema:"RFC 3339 timestamp, defaults to now"`
}

// RecordResultOutput is returned by the record_result tool
type RecordResultOutput struct {
	ID         int64   `json:"id"`
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
	CreatedAt  string  `json:"created_at"`
}

// StoredStatisticsParams defines parameters for the stored_statistics tool
type StoredStatisticsParams struct {
	Bucketing string `json:"bucketing,omitempty" jsonschema:"daily, weekly, monthly or yearly (default daily)"`
}

func (s *Server) handleClassifyConfidence(ctx context.Context, req *mcp.CallToolRequest, params ClassifyConfidenceParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "classify_confidence").Debug("Tool invoked")

	tier := service.Classify(params.Confidence)
	return textResult(fmt.Sprintf("Confidence %.1f%% is %s (%d/5)", service.ClampConfidence(params.Confidence), tier.Tier, tier.Segments)), tier, nil
}

func (s *Server) handleLookupCondition(ctx context.Context, req *mcp.CallToolRequest, params LookupConditionParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "lookup_condition").Debug("Tool invoked")

	if strings.TrimSpace(params.Label) == "" {
		return createErrorResult("Missing required parameter", fmt.Errorf("label is required")), nil, nil
	}

	record, ok := s.catalog.Lookup(params.Label)
	if !ok {
		return createErrorResult("Condition not found", fmt.Errorf("known labels: %s", strings.Join(s.catalog.Labels(), ", "))), nil, nil
	}

	return textResult(fmt.Sprintf("%s: severity %s. %s", record.DisplayName, record.Severity, record.Description)), record, nil
}

func (s *Server) handleListConditions(ctx context.Context, req *mcp.CallToolRequest, _ ListConditionsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "list_conditions").Debug("Tool invoked")

	summaries := make([]ConditionSummary, 0, s.catalog.Len())
	for _, record := range s.catalog.Records() {
		summaries = append(summaries, ConditionSummary{
			Label:       record.Label,
			DisplayName: record.DisplayName,
			Severity:    record.Severity,
		})
	}

	return textResult(fmt.Sprintf("%d conditions: %s", len(summaries), strings.Join(s.catalog.Labels(), ", "))),
		map[string]any{"conditions": summaries}, nil
}

func (s *Server) handleResolvePrediction(ctx context.Context, req *mcp.CallToolRequest, params ResolvePredictionParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "resolve_prediction").Debug("Tool invoked")

	advisory, err := s.resolver.Resolve(domain.PredictionResult{
		Label:      params.Prediction,
		Confidence: params.Confidence,
	})
	if err != nil {
		return createErrorResult("Invalid prediction", err), nil, nil
	}

	text := fmt.Sprintf("%s (%s confidence, %.1f%%). Severity %s.",
		advisory.Condition.DisplayName, advisory.Tier.Tier, advisory.Confidence, advisory.Condition.Severity)
	if !advisory.Recognized {
		text = fmt.Sprintf("%q is not a recognized condition. Consult a healthcare provider.", advisory.Label)
	} else if advisory.Condition.UrgencyLevel.RequiresMedicalAttention() {
		text += " Seek medical attention."
	}

	return textResult(text + " " + advisory.Disclaimer), advisory, nil
}

func (s *Server) handleSummarizeResults(ctx context.Context, req *mcp.CallToolRequest, params SummarizeResultsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "summarize_results").Debug("Tool invoked")

	summary, err := service.SummarizeRecords(params.Results, bucketingOrDefault(params.Bucketing))
	if err != nil {
		return createErrorResult("Unable to summarize results", err), nil, nil
	}
	return textResult(describeSummary(summary)), summary, nil
}

func (s *Server) handleRecordResult(ctx context.Context, req *mcp.CallToolRequest, params RecordResultParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "record_result").Debug("Tool invoked")

	record := &results.Record{
		Prediction: params.Prediction,
		Confidence: params.Confidence,
		UserID:     params.UserID,
	}
	if params.CreatedAt != "" {
		createdAt, err := service.ParseTimestamp(params.CreatedAt)
		if err != nil {
			return createErrorResult("Invalid created_at", err), nil, nil
		}
		record.CreatedAt = createdAt
	}

	if err := s.statistics.Record(ctx, record); err != nil {
		return createErrorResult("Unable to save result", err), nil, nil
	}

	out := RecordResultOutput{
		ID:         record.ID,
		Prediction: record.Prediction,
		Confidence: record.Confidence,
		CreatedAt:  record.CreatedAt.Format(time.RFC3339),
	}
	return textResult(fmt.Sprintf("Saved result %d (%s, %.1f%%)", out.ID, out.Prediction, out.Confidence)), out, nil
}

func (s *Server) handleStoredStatistics(ctx context.Context, req *mcp.CallToolRequest, params StoredStatisticsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "stored_statistics").Debug("Tool invoked")

	report, err := s.statistics.Report(ctx, bucketingOrDefault(params.Bucketing))
	if err != nil {
		return createErrorResult("Unable to compute statistics", err), nil, nil
	}
	text := fmt.Sprintf("%s, %d since %s", describeSummary(report.StatisticsSummary),
		report.RecentCount, report.RecentSince.Format(time.RFC3339))
	return textResult(text), report, nil
}

func bucketingOrDefault(value string) domain.Bucketing {
	if value == "" {
		return domain.BucketDaily
	}
	return domain.Bucketing(value)
}

func describeSummary(summary domain.StatisticsSummary) string {
	return fmt.Sprintf("%d results across %d labels in %d %s buckets, %.0f%% high confidence",
		summary.TotalCount, len(summary.BreakdownByLabel), len(summary.TimeBuckets), summary.Bucketing,
		summary.HighConfidenceShare*100)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// createErrorResult creates a standardized error result for tool calls
func createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
