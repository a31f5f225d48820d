package summarize

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contribpulse/contribpulse/internal/config"
	"github.com/contribpulse/contribpulse/internal/monitoring"
	"github.com/contribpulse/contribpulse/internal/types"
)

func testSummaryConfig(endpoint string) config.SummaryConfig {
	return config.SummaryConfig{
		Enabled:    true,
		Endpoint:   endpoint,
		APIKey:     "test-key",
		Model:      "test-model",
		Timeout:    5 * time.Second,
		RatePerMin: 600,
		MaxTokens:  200,
	}
}

func chatHandler(t *testing.T, responses []string) http.HandlerFunc {
	t.Helper()
	call := 0
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)

		content := responses[call]
		if call < len(responses)-1 {
			call++
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func activeMetrics() types.ContributorMetrics {
	return types.ContributorMetrics{
		Username: "alice",
		PullRequests: types.PullRequestStats{
			Total:  1,
			Merged: 1,
			Items:  []types.PRItem{{ID: "pr-1", Title: "feat: add endpoint", Merged: true}},
		},
		CodeChanges: types.CodeChanges{Additions: 100, Deletions: 20, Files: 3},
	}
}

func TestClient_Enabled(t *testing.T) {
	logger := monitoring.NewLogger()

	cfg := testSummaryConfig("http://example.invalid")
	assert.True(t, NewClient(cfg, logger).Enabled())

	cfg.APIKey = ""
	assert.False(t, NewClient(cfg, logger).Enabled())

	cfg = testSummaryConfig("http://example.invalid")
	cfg.Enabled = false
	assert.False(t, NewClient(cfg, logger).Enabled())
}

func TestClient_Generate(t *testing.T) {
	srv := httptest.NewServer(chatHandler(t, []string{
		"alice: Merged 1 PR in backend (+100/-20 lines).",
	}))
	defer srv.Close()

	client := NewClient(testSummaryConfig(srv.URL), monitoring.NewLogger())

	summary, err := client.Generate(context.Background(), activeMetrics(), types.IntervalDay)
	require.NoError(t, err)
	assert.Equal(t, "alice: Merged 1 PR in backend (+100/-20 lines).", summary)
}

func TestClient_GenerateNoActivity(t *testing.T) {
	// No HTTP server: the short-circuit must not issue a request.
	client := NewClient(testSummaryConfig("http://example.invalid"), monitoring.NewLogger())

	summary, err := client.Generate(context.Background(),
		types.ContributorMetrics{Username: "ghost"}, types.IntervalWeek)
	require.NoError(t, err)
	assert.Equal(t, "ghost: No activity this week.", summary)
}

func TestClient_GenerateDisabled(t *testing.T) {
	cfg := testSummaryConfig("http://example.invalid")
	cfg.Enabled = false
	client := NewClient(cfg, monitoring.NewLogger())

	summary, err := client.Generate(context.Background(), activeMetrics(), types.IntervalDay)
	require.NoError(t, err)
	assert.Empty(t, summary)
}

func TestClient_GenerateRegeneratesSuspiciousSummary(t *testing.T) {
	srv := httptest.NewServer(chatHandler(t, []string{
		"alice: Merged #101 and #102 in backend.",
		"alice: Merged 1 PR in backend (+100/-20 lines).",
	}))
	defer srv.Close()

	client := NewClient(testSummaryConfig(srv.URL), monitoring.NewLogger())

	summary, err := client.Generate(context.Background(), activeMetrics(), types.IntervalDay)
	require.NoError(t, err)
	assert.Equal(t, "alice: Merged 1 PR in backend (+100/-20 lines).", summary)
}

func TestClient_GenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testSummaryConfig(srv.URL)
	client := NewClient(cfg, monitoring.NewLogger())

	_, err := client.Generate(context.Background(), activeMetrics(), types.IntervalDay)
	assert.Error(t, err)
}
