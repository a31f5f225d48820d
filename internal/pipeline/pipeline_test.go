package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contribpulse/contribpulse/internal/analysis"
	"github.com/contribpulse/contribpulse/internal/config"
	"github.com/contribpulse/contribpulse/internal/monitoring"
	"github.com/contribpulse/contribpulse/internal/types"
)

// memStore backs pipeline tests with in-memory activity and captures
// every write.
type memStore struct {
	prAuthors map[string]int
	prs       map[string][]types.PullRequest
	failFor   string

	existing  map[string]string
	summaries []types.UserSummary
	updates   []bool
	stats     []types.UserStats
}

func newMemStore() *memStore {
	return &memStore{
		prAuthors: map[string]int{},
		prs:       map[string][]types.PullRequest{},
		existing:  map[string]string{},
	}
}

func (m *memStore) PRAuthorCounts(_ context.Context, _ string, _ types.DateRange) (map[string]int, error) {
	return m.prAuthors, nil
}

func (m *memStore) IssueAuthorCounts(_ context.Context, _ string, _ types.DateRange) (map[string]int, error) {
	return nil, nil
}

func (m *memStore) ReviewerCounts(_ context.Context, _ string, _ types.DateRange) (map[string]int, error) {
	return nil, nil
}

func (m *memStore) PRCommenterCounts(_ context.Context, _ string, _ types.DateRange) (map[string]int, error) {
	return nil, nil
}

func (m *memStore) IssueCommenterCounts(_ context.Context, _ string, _ types.DateRange) (map[string]int, error) {
	return nil, nil
}

func (m *memStore) PullRequestsByAuthor(_ context.Context, username, _ string, _ types.DateRange) ([]types.PullRequest, error) {
	if username == m.failFor {
		return nil, errors.New("storage unavailable")
	}
	return m.prs[username], nil
}

func (m *memStore) PullRequestFiles(_ context.Context, _ string) ([]types.FileDiff, error) {
	return nil, nil
}

func (m *memStore) IssuesByAuthor(_ context.Context, _, _ string, _ types.DateRange) ([]types.Issue, error) {
	return nil, nil
}

func (m *memStore) IssueComments(_ context.Context, _ string) ([]types.Comment, error) {
	return nil, nil
}

func (m *memStore) ReviewsByAuthor(_ context.Context, _, _ string, _ types.DateRange) ([]types.Review, error) {
	return nil, nil
}

func (m *memStore) PRCommentsByAuthor(_ context.Context, _, _ string, _ types.DateRange) ([]types.Comment, error) {
	return nil, nil
}

func (m *memStore) UserProfile(_ context.Context, _ string) (*types.UserProfile, error) {
	return nil, nil
}

func (m *memStore) UpsertUser(_ context.Context, _ types.UserProfile, _ int) error { return nil }

func (m *memStore) UpsertTag(_ context.Context, _, _ string) error { return nil }

func (m *memStore) UpsertTagScore(_ context.Context, _ types.TagScore) error { return nil }

func (m *memStore) ExistingSummary(_ context.Context, username, date string, interval types.IntervalType) (string, error) {
	return m.existing[username+"_"+date+"_"+string(interval)], nil
}

func (m *memStore) UpsertUserSummary(_ context.Context, summary types.UserSummary, updateSummary bool) error {
	m.summaries = append(m.summaries, summary)
	m.updates = append(m.updates, updateSummary)
	return nil
}

func (m *memStore) UpsertUserStats(_ context.Context, stats types.UserStats) error {
	m.stats = append(m.stats, stats)
	return nil
}

type fakeSummarizer struct {
	enabled bool
	err     error
	calls   int
}

func (f *fakeSummarizer) Enabled() bool { return f.enabled }

func (f *fakeSummarizer) Generate(_ context.Context, metrics types.ContributorMetrics, _ types.IntervalType) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return metrics.Username + ": did things.", nil
}

type fakeExporter struct {
	calls int
	date  string
}

func (f *fakeExporter) ExportSummary(_ context.Context, _, date string, _ types.IntervalType) error {
	f.calls++
	f.date = date
	return nil
}

func newTestPipeline(store *memStore, summarizer Summarizer) (*Pipeline, *fakeExporter) {
	cfg := config.New()
	logger := monitoring.NewLogger()
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	engine := analysis.NewEngine(store, cfg.Scoring, cfg.Tags, logger)
	exporter := &fakeExporter{}
	return New(store, engine, summarizer, exporter, cfg, logger, metrics), exporter
}

func seedPR(store *memStore, username string, n int) {
	store.prAuthors[username] = n
	for i := 0; i < n; i++ {
		store.prs[username] = append(store.prs[username], types.PullRequest{
			ID:        username + string(rune('a'+i)),
			Title:     "change",
			Author:    username,
			Merged:    true,
			State:     types.PRMerged,
			CreatedAt: time.Date(2026, 1, 5, 9+i, 0, 0, 0, time.UTC),
		})
	}
}

func defaultOptions() Options {
	return Options{
		Repository: "acme/widgets",
		Window:     types.DateRange{StartDate: "2026-01-01", EndDate: "2026-01-07"},
		Interval:   types.IntervalDay,
	}
}

func TestProcessTimeframe(t *testing.T) {
	store := newMemStore()
	seedPR(store, "alice", 3)
	seedPR(store, "bob", 1)

	summarizer := &fakeSummarizer{enabled: true}
	p, exporter := newTestPipeline(store, summarizer)

	result, err := p.ProcessTimeframe(context.Background(), defaultOptions())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 2, result.Totals.Contributors)
	assert.Equal(t, 4, result.Totals.PullRequests)

	// Sorted descending by score.
	require.Len(t, result.Metrics, 2)
	assert.Equal(t, "alice", result.Metrics[0].Username)
	assert.GreaterOrEqual(t, result.Metrics[0].Score, result.Metrics[1].Score)

	// One summary and one stats record per contributor, then one export.
	assert.Len(t, store.summaries, 2)
	assert.Len(t, store.stats, 2)
	assert.Equal(t, 2, summarizer.calls)
	assert.Equal(t, 1, exporter.calls)
	assert.Equal(t, "2026-01-07", exporter.date)

	for _, summary := range store.summaries {
		assert.Equal(t, "2026-01-07", summary.Date)
		assert.Equal(t, types.IntervalDay, summary.IntervalType)
		assert.NotEmpty(t, summary.Summary)
	}
}

func TestProcessTimeframe_ContributorFailureIsIsolated(t *testing.T) {
	store := newMemStore()
	seedPR(store, "alice", 1)
	seedPR(store, "broken", 1)
	store.failFor = "broken"

	p, exporter := newTestPipeline(store, &fakeSummarizer{})

	result, err := p.ProcessTimeframe(context.Background(), defaultOptions())
	require.NoError(t, err)

	require.Len(t, result.Metrics, 1)
	assert.Equal(t, "alice", result.Metrics[0].Username)
	assert.Equal(t, 1, result.Totals.Contributors)
	assert.Equal(t, 1, exporter.calls)
}

func TestProcessTimeframe_NoContributors(t *testing.T) {
	store := newMemStore()
	p, exporter := newTestPipeline(store, &fakeSummarizer{})

	result, err := p.ProcessTimeframe(context.Background(), defaultOptions())
	require.NoError(t, err)

	assert.Empty(t, result.Metrics)
	assert.Zero(t, result.Totals.Contributors)
	// No artifacts are produced for an empty window.
	assert.Zero(t, exporter.calls)
	assert.Empty(t, store.summaries)
}

func TestProcessTimeframe_ExistingSummarySkipped(t *testing.T) {
	store := newMemStore()
	seedPR(store, "alice", 1)
	store.existing["alice_2026-01-07_day"] = "alice: already summarized."

	summarizer := &fakeSummarizer{enabled: true}
	p, _ := newTestPipeline(store, summarizer)

	_, err := p.ProcessTimeframe(context.Background(), defaultOptions())
	require.NoError(t, err)

	assert.Zero(t, summarizer.calls)
	require.Len(t, store.updates, 1)
	// The stored summary text is left untouched.
	assert.False(t, store.updates[0])
}

func TestProcessTimeframe_ForceRegenerates(t *testing.T) {
	store := newMemStore()
	seedPR(store, "alice", 1)
	store.existing["alice_2026-01-07_day"] = "alice: already summarized."

	summarizer := &fakeSummarizer{enabled: true}
	p, _ := newTestPipeline(store, summarizer)

	opts := defaultOptions()
	opts.Force = true
	_, err := p.ProcessTimeframe(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, summarizer.calls)
	require.Len(t, store.updates, 1)
	assert.True(t, store.updates[0])
}

func TestProcessTimeframe_SummaryFailureRecordsEmpty(t *testing.T) {
	store := newMemStore()
	seedPR(store, "alice", 1)

	summarizer := &fakeSummarizer{enabled: true, err: errors.New("model unavailable")}
	p, exporter := newTestPipeline(store, summarizer)

	result, err := p.ProcessTimeframe(context.Background(), defaultOptions())
	require.NoError(t, err)

	require.Len(t, result.Metrics, 1)
	require.Len(t, store.summaries, 1)
	assert.Empty(t, store.summaries[0].Summary)
	assert.Equal(t, 1, exporter.calls)
}

func TestProcessTimeframe_Cancellation(t *testing.T) {
	store := newMemStore()
	seedPR(store, "alice", 1)

	p, _ := newTestPipeline(store, &fakeSummarizer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.ProcessTimeframe(ctx, defaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}
