package analysis

import (
	"context"

	"github.com/contribpulse/contribpulse/internal/types"
)

// SignalCounts is the per-username activity vector used by discovery.
type SignalCounts struct {
	PRs           int
	Issues        int
	Reviews       int
	PRComments    int
	IssueComments int
}

// ActivityReader is the read surface the engine needs from the storage
// layer. All windows are inclusive calendar date ranges.
type ActivityReader interface {
	PRAuthorCounts(ctx context.Context, repository string, window types.DateRange) (map[string]int, error)
	IssueAuthorCounts(ctx context.Context, repository string, window types.DateRange) (map[string]int, error)
	ReviewerCounts(ctx context.Context, repository string, window types.DateRange) (map[string]int, error)
	PRCommenterCounts(ctx context.Context, repository string, window types.DateRange) (map[string]int, error)
	IssueCommenterCounts(ctx context.Context, repository string, window types.DateRange) (map[string]int, error)

	PullRequestsByAuthor(ctx context.Context, username, repository string, window types.DateRange) ([]types.PullRequest, error)
	PullRequestFiles(ctx context.Context, prID string) ([]types.FileDiff, error)
	IssuesByAuthor(ctx context.Context, username, repository string, window types.DateRange) ([]types.Issue, error)
	IssueComments(ctx context.Context, issueID string) ([]types.Comment, error)
	ReviewsByAuthor(ctx context.Context, username, repository string, window types.DateRange) ([]types.Review, error)
	PRCommentsByAuthor(ctx context.Context, username, repository string, window types.DateRange) ([]types.Comment, error)

	UserProfile(ctx context.Context, username string) (*types.UserProfile, error)
}

// ScoreWriter is the write surface for derived scores. Upserts are
// idempotent; tag scores are overwritten per run, not accumulated.
type ScoreWriter interface {
	UpsertUser(ctx context.Context, profile types.UserProfile, score int) error
	UpsertTag(ctx context.Context, name, category string) error
	UpsertTagScore(ctx context.Context, score types.TagScore) error
}

// Store combines the surfaces the engine depends on.
type Store interface {
	ActivityReader
	ScoreWriter
}
