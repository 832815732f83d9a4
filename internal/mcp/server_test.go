package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skin-lesion-advisor/internal/config"
	"github.com/skin-lesion-advisor/internal/domain"
	"github.com/skin-lesion-advisor/internal/reporting"
	"github.com/skin-lesion-advisor/internal/service"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger, _ := test.NewNullLogger()

	cfg := config.DefaultLiteConfig()
	cfg.DataDir = t.TempDir()

	server, err := NewServer(cfg, WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })
	return server
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestNewServer(t *testing.T) {
	server := newTestServer(t)

	assert.NotNil(t, server.mcpServer)
	assert.Equal(t, 6, server.catalog.Len())
	assert.NotNil(t, server.statistics)
	assert.FileExists(t, server.config.ResultsDBPath())
}

func TestClassifyConfidenceTool(t *testing.T) {
	server := newTestServer(t)

	result, out, err := server.handleClassifyConfidence(context.Background(), nil, ClassifyConfidenceParams{Confidence: 64})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	tier, ok := out.(domain.ConfidenceTier)
	require.True(t, ok)
	assert.Equal(t, domain.TierMedium, tier.Tier)
	assert.Equal(t, 3, tier.Segments)
	assert.Contains(t, resultText(t, result), "Medium")
}

func TestLookupConditionTool(t *testing.T) {
	server := newTestServer(t)

	result, out, err := server.handleLookupCondition(context.Background(), nil, LookupConditionParams{Label: "HFMD"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "Hand, Foot, and Mouth Disease", out.(domain.ConditionRecord).DisplayName)

	result, out, err = server.handleLookupCondition(context.Background(), nil, LookupConditionParams{Label: "hfmd"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Nil(t, out)
	assert.Contains(t, resultText(t, result), "Chickenpox")

	result, _, err = server.handleLookupCondition(context.Background(), nil, LookupConditionParams{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestListConditionsTool(t *testing.T) {
	server := newTestServer(t)

	result, out, err := server.handleListConditions(context.Background(), nil, ListConditionsParams{})
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "6 conditions")

	summaries := out.(map[string]any)["conditions"].([]ConditionSummary)
	require.Len(t, summaries, 6)
	assert.Equal(t, "Chickenpox", summaries[0].Label)
}

func TestResolvePredictionTool(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name       string
		params     ResolvePredictionParams
		wantError  bool
		recognized bool
		contains   string
	}{
		{"high urgency", ResolvePredictionParams{Prediction: "Measles", Confidence: 93}, false, true, "Seek medical attention"},
		{"no urgency", ResolvePredictionParams{Prediction: "Healthy", Confidence: 88}, false, true, "Healthy"},
		{"unknown label", ResolvePredictionParams{Prediction: "Foobar", Confidence: 50}, false, false, "not a recognized condition"},
		{"empty label", ResolvePredictionParams{Prediction: " ", Confidence: 50}, true, false, "prediction"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, out, err := server.handleResolvePrediction(context.Background(), nil, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.wantError, result.IsError)
			assert.Contains(t, resultText(t, result), tt.contains)

			if !tt.wantError {
				advisory := out.(domain.Advisory)
				assert.Equal(t, tt.recognized, advisory.Recognized)
				assert.Equal(t, service.Disclaimer, advisory.Disclaimer)
			}
		})
	}
}

func TestSummarizeResultsTool(t *testing.T) {
	server := newTestServer(t)

	params := SummarizeResultsParams{
		Bucketing: "weekly",
		Results: []service.StoredRecord{
			{Prediction: "Measles", Confidence: 80, CreatedAt: "2024-01-01T08:00:00Z"},
			{Prediction: "Cowpox", Confidence: 60, CreatedAt: "2024-01-03T08:00:00Z"},
			{Prediction: "Measles", Confidence: 70, CreatedAt: "2024-01-09T08:00:00Z"},
		},
	}

	result, out, err := server.handleSummarizeResults(context.Background(), nil, params)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	summary := out.(domain.StatisticsSummary)
	assert.Equal(t, 3, summary.TotalCount)
	require.Len(t, summary.TimeBuckets, 2)
	assert.Equal(t, "2024-W01", summary.TimeBuckets[0].BucketKey)
	assert.Equal(t, 2, summary.TimeBuckets[0].Count)

	result, _, err = server.handleSummarizeResults(context.Background(), nil, SummarizeResultsParams{Bucketing: "hourly"})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, out, err = server.handleSummarizeResults(context.Background(), nil, SummarizeResultsParams{})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, domain.BucketDaily, out.(domain.StatisticsSummary).Bucketing)
}

func TestRecordAndStoredStatisticsTools(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	result, out, err := server.handleRecordResult(ctx, nil, RecordResultParams{
		Prediction: "Monkeypox",
		Confidence: 77,
		UserID:     "user-1",
		CreatedAt:  "2024-05-01T10:00:00Z",
	})
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	saved := out.(RecordResultOutput)
	assert.Positive(t, saved.ID)
	assert.Equal(t, "2024-05-01T10:00:00Z", saved.CreatedAt)

	_, out, err = server.handleRecordResult(ctx, nil, RecordResultParams{Prediction: "Healthy", Confidence: 91})
	require.NoError(t, err)
	_, parseErr := time.Parse(time.RFC3339, out.(RecordResultOutput).CreatedAt)
	assert.NoError(t, parseErr)

	result, _, err = server.handleRecordResult(ctx, nil, RecordResultParams{Prediction: "Healthy", Confidence: 120})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, _, err = server.handleRecordResult(ctx, nil, RecordResultParams{Prediction: "Healthy", Confidence: 50, CreatedAt: "yesterday"})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, out, err = server.handleStoredStatistics(ctx, nil, StoredStatisticsParams{Bucketing: "yearly"})
	require.NoError(t, err)
	require.False(t, result.IsError)
	report := out.(*reporting.Report)
	assert.Equal(t, 2, report.TotalCount)
	assert.Equal(t, 1, report.BreakdownByLabel["Monkeypox"].Count)
	assert.Equal(t, 1.0, report.HighConfidenceShare)
	assert.Equal(t, int64(1), report.RecentCount, "only the result saved without a timestamp is recent")
	assert.Contains(t, resultText(t, result), "100% high confidence")

	result, _, err = server.handleStoredStatistics(ctx, nil, StoredStatisticsParams{Bucketing: "hourly"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
