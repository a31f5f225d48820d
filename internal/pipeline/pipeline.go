package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/contribpulse/contribpulse/internal/analysis"
	"github.com/contribpulse/contribpulse/internal/config"
	"github.com/contribpulse/contribpulse/internal/monitoring"
	"github.com/contribpulse/contribpulse/internal/types"
)

// Store is the storage surface the pipeline needs on top of the engine's.
type Store interface {
	analysis.Store
	ExistingSummary(ctx context.Context, username, date string, interval types.IntervalType) (string, error)
	UpsertUserSummary(ctx context.Context, summary types.UserSummary, updateSummary bool) error
	UpsertUserStats(ctx context.Context, stats types.UserStats) error
}

// Summarizer generates narrative summaries; generation may be disabled.
type Summarizer interface {
	Enabled() bool
	Generate(ctx context.Context, metrics types.ContributorMetrics, interval types.IntervalType) (string, error)
}

// Exporter writes the snapshot artifacts after a run.
type Exporter interface {
	ExportSummary(ctx context.Context, repository, date string, interval types.IntervalType) error
}

// Options parameterizes one pipeline run.
type Options struct {
	Repository string
	Window     types.DateRange
	Interval   types.IntervalType
	// Force regenerates narrative summaries even when a non-empty one
	// is already stored for the key.
	Force bool
}

// Totals aggregates raw activity counters across all contributors of a run.
type Totals struct {
	Contributors int `json:"contributors"`
	PullRequests int `json:"pull_requests"`
	Issues       int `json:"issues"`
	Reviews      int `json:"reviews"`
	Comments     int `json:"comments"`
}

// Result is the outcome of one pipeline run.
type Result struct {
	RunID   string                     `json:"run_id"`
	Metrics []types.ContributorMetrics `json:"metrics"`
	Totals  Totals                     `json:"totals"`
	Window  types.DateRange            `json:"window"`
}

// Pipeline orchestrates discovery, scoring, persistence, summary
// generation, and export for one repository and window. Contributors are
// processed sequentially; tag-score and summary upserts for a key are
// never issued concurrently.
type Pipeline struct {
	store      Store
	engine     *analysis.Engine
	summarizer Summarizer
	exporter   Exporter
	cfg        *config.Config
	logger     *monitoring.Logger
	metrics    *monitoring.Metrics
}

// New creates a pipeline.
func New(store Store, engine *analysis.Engine, summarizer Summarizer, exporter Exporter, cfg *config.Config, logger *monitoring.Logger, metrics *monitoring.Metrics) *Pipeline {
	return &Pipeline{
		store:      store,
		engine:     engine,
		summarizer: summarizer,
		exporter:   exporter,
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
	}
}

// ProcessTimeframe runs the full pipeline over the window. A failure
// while scoring one contributor is logged and skipped; it never aborts
// the batch or corrupts other contributors' state. Cancellation is
// checked between contributors.
func (p *Pipeline) ProcessTimeframe(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	runID := uuid.New().String()

	if opts.Interval == "" {
		opts.Interval = types.IntervalDay
	}

	contributors, err := analysis.DiscoverActiveContributors(ctx, p.store, opts.Repository, opts.Window, p.cfg.BotUsers)
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to discover contributors: %w", err)
	}

	result := &Result{RunID: runID, Window: opts.Window}

	if len(contributors) == 0 {
		p.logger.Warn("No active contributors found",
			"repository", opts.Repository,
			"start_date", opts.Window.StartDate,
			"end_date", opts.Window.EndDate,
		)
		p.metrics.RunsTotal.WithLabelValues("empty").Inc()
		return result, nil
	}

	p.logger.Info("Processing active contributors",
		"run_id", runID, "count", len(contributors), "repository", opts.Repository)

	for _, username := range contributors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		metrics, err := p.engine.ScoreContributor(ctx, username, opts.Repository, opts.Window)
		if err != nil {
			p.logger.Error("Failed to score contributor", "username", username, "error", err)
			p.metrics.ContributorFailures.Inc()
			continue
		}

		p.metrics.ContributorsProcessed.Inc()
		p.metrics.ContributorScore.Observe(float64(metrics.Score))

		result.Metrics = append(result.Metrics, *metrics)
		result.Totals.PullRequests += metrics.PullRequests.Total
		result.Totals.Issues += metrics.Issues.Total
		result.Totals.Reviews += metrics.Reviews.Total
		result.Totals.Comments += metrics.Comments.Total
	}
	result.Totals.Contributors = len(result.Metrics)

	sort.SliceStable(result.Metrics, func(i, j int) bool {
		return result.Metrics[i].Score > result.Metrics[j].Score
	})

	date := normalizeDate(opts.Window.EndDate)
	if err := p.saveSummaries(ctx, result.Metrics, date, opts.Interval, opts.Force); err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if err := p.exporter.ExportSummary(ctx, opts.Repository, date, opts.Interval); err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to export snapshot: %w", err)
	}

	duration := time.Since(start)
	p.metrics.RunsTotal.WithLabelValues("ok").Inc()
	p.metrics.RunDuration.Observe(duration.Seconds())
	p.logger.RunLogger(runID, opts.Repository, opts.Window.StartDate, opts.Window.EndDate,
		len(result.Metrics), duration)

	return result, nil
}

// saveSummaries upserts the per-(user, date, interval) records and the
// cumulative user stats for every scored contributor.
func (p *Pipeline) saveSummaries(ctx context.Context, metrics []types.ContributorMetrics, date string, interval types.IntervalType, force bool) error {
	for _, metric := range metrics {
		summary, generated := p.generateSummary(ctx, metric, date, interval, force)

		record := types.UserSummary{
			Username:     metric.Username,
			Date:         date,
			IntervalType: interval,
			Score:        metric.Score,
			Summary:      summary,
			TotalPRs:     metric.PullRequests.Total,
			Additions:    metric.CodeChanges.Additions,
			Deletions:    metric.CodeChanges.Deletions,
			ChangedFiles: metric.CodeChanges.Files,
			PullRequests: metric.PullRequests.Items,
			Issues:       metric.Issues.Items,
			FocusAreas:   metric.FocusAreas,
		}
		if err := p.store.UpsertUserSummary(ctx, record, generated); err != nil {
			return err
		}

		filesByType := make(map[string]int, len(metric.FileTypes))
		for _, ft := range metric.FileTypes {
			filesByType[ft.Extension] = ft.Count
		}
		stats := types.UserStats{
			Username:       metric.Username,
			TotalPRs:       metric.PullRequests.Total,
			MergedPRs:      metric.PullRequests.Merged,
			ClosedPRs:      metric.PullRequests.Closed,
			TotalFiles:     metric.CodeChanges.Files,
			TotalAdditions: metric.CodeChanges.Additions,
			TotalDeletions: metric.CodeChanges.Deletions,
			FilesByType:    filesByType,
			FocusAreas:     metric.FocusAreas,
		}
		if err := p.store.UpsertUserStats(ctx, stats); err != nil {
			return err
		}
	}

	return nil
}

// generateSummary decides whether a narrative summary is (re)generated
// for the key and returns the text plus whether the stored text should
// be replaced. A generation failure is contributor-scoped: it is logged
// and the summary recorded as empty for the run.
func (p *Pipeline) generateSummary(ctx context.Context, metric types.ContributorMetrics, date string, interval types.IntervalType, force bool) (string, bool) {
	if !p.summarizer.Enabled() {
		return "", false
	}

	if !force {
		existing, err := p.store.ExistingSummary(ctx, metric.Username, date, interval)
		if err != nil {
			p.logger.Error("Failed to check existing summary", "username", metric.Username, "error", err)
		} else if existing != "" {
			return "", false
		}
	}

	summary, err := p.summarizer.Generate(ctx, metric, interval)
	if err != nil {
		p.logger.Error("Failed to generate summary", "username", metric.Username, "error", err)
		p.metrics.SummaryCalls.WithLabelValues("error").Inc()
		return "", true
	}

	p.metrics.SummaryCalls.WithLabelValues("ok").Inc()
	return summary, true
}

// normalizeDate reduces a window boundary to its calendar date.
func normalizeDate(raw string) string {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC().Format("2006-01-02")
	}
	return raw
}
