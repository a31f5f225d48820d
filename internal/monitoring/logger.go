package monitoring

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger provides structured logging for pipeline operations.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger writing to stdout.
func NewLogger() *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{Logger: slog.New(handler)}
}

// RunLogger logs the outcome of a full pipeline run.
func (l *Logger) RunLogger(runID, repository, startDate, endDate string, contributors int, duration time.Duration) {
	l.Info("Pipeline Run Completed",
		"run_id", runID,
		"repository", repository,
		"start_date", startDate,
		"end_date", endDate,
		"contributors", contributors,
		"duration_ms", duration.Milliseconds(),
	)
}

// ContributorLogger logs a single contributor's scoring outcome.
func (l *Logger) ContributorLogger(username string, score int, prs, issues, reviews, comments int) {
	l.Info("Contributor Scored",
		"username", username,
		"score", score,
		"pull_requests", prs,
		"issues", issues,
		"reviews", reviews,
		"comments", comments,
	)
}

// ExternalAPILogger logs external API calls.
func (l *Logger) ExternalAPILogger(apiName, endpoint string, statusCode int, duration time.Duration, success bool) {
	level := slog.LevelInfo
	if !success {
		level = slog.LevelWarn
	}

	l.Log(context.Background(), level, "External API Call",
		"api_name", apiName,
		"endpoint", endpoint,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
		"success", success,
	)
}

// HTTPRequestLogger logs HTTP request details.
func (l *Logger) HTTPRequestLogger(method, path, ip string, statusCode int, duration time.Duration) {
	l.Info("HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}
