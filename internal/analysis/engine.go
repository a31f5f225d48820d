package analysis

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/contribpulse/contribpulse/internal/config"
	"github.com/contribpulse/contribpulse/internal/monitoring"
	"github.com/contribpulse/contribpulse/internal/types"
)

// Engine converts one contributor's raw activity in a window into a
// composite score, activity metrics, distributions, and leveled
// expertise. It holds no state across invocations beyond its
// configuration; re-running on unchanged data yields identical output.
type Engine struct {
	store   Store
	scoring config.ScoringConfig
	tags    []config.TagRule
	logger  *monitoring.Logger
}

// NewEngine creates a scoring engine.
func NewEngine(store Store, scoring config.ScoringConfig, tags []config.TagRule, logger *monitoring.Logger) *Engine {
	return &Engine{
		store:   store,
		scoring: scoring,
		tags:    tags,
		logger:  logger,
	}
}

// ScoreContributor fetches the contributor's raw activity for the window
// and applies the scoring algorithm per signal type. Each signal is
// scored by a pure function returning a scalar contribution plus derived
// side collections; the engine sums the scalars and rounds once.
func (e *Engine) ScoreContributor(ctx context.Context, username, repository string, window types.DateRange) (*types.ContributorMetrics, error) {
	metrics := &types.ContributorMetrics{
		Username:       username,
		FocusAreas:     []types.FocusArea{},
		FileTypes:      []types.FileType{},
		ExpertiseAreas: []types.ExpertiseArea{},
	}

	profile, err := e.store.UserProfile(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile for %s: %w", username, err)
	}
	if profile != nil {
		metrics.AvatarURL = profile.AvatarURL
	}

	prs, err := e.store.PullRequestsByAuthor(ctx, username, repository, window)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pull requests for %s: %w", username, err)
	}
	filesByPR := make(map[string][]types.FileDiff, len(prs))
	for _, pr := range prs {
		files, err := e.store.PullRequestFiles(ctx, pr.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch files for PR %s: %w", pr.ID, err)
		}
		filesByPR[pr.ID] = files
	}

	issues, err := e.store.IssuesByAuthor(ctx, username, repository, window)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issues for %s: %w", username, err)
	}
	commentsByIssue := make(map[string][]types.Comment, len(issues))
	for _, issue := range issues {
		comments, err := e.store.IssueComments(ctx, issue.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch comments for issue %s: %w", issue.ID, err)
		}
		commentsByIssue[issue.ID] = comments
	}

	reviews, err := e.store.ReviewsByAuthor(ctx, username, repository, window)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reviews for %s: %w", username, err)
	}

	prComments, err := e.store.PRCommentsByAuthor(ctx, username, repository, window)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch PR comments for %s: %w", username, err)
	}

	prRes := scorePullRequests(prs, filesByPR, e.scoring, e.tags)
	issueRes := scoreIssues(issues, commentsByIssue, e.scoring)
	reviewRes := scoreReviews(reviews, e.scoring)
	commentRes := scorePRComments(prComments, e.scoring)
	codeScore := scoreCode(prRes.Code, prRes.FilePaths, e.scoring)

	metrics.PullRequests = prRes.Stats
	metrics.Issues = issueRes.Stats
	metrics.Reviews = reviewRes.Stats
	metrics.CodeChanges = prRes.Code
	metrics.Comments = types.CommentStats{
		PullRequests: commentRes.PRComments,
		Issues:       issueRes.IssueComments,
		Total:        commentRes.PRComments + issueRes.IssueComments,
	}

	metrics.FocusAreas = FocusAreas(prRes.FilePaths)
	metrics.FileTypes = FileTypes(prRes.FilePaths)
	metrics.ExpertiseAreas = ClassifyExpertise(prRes.FilePaths, prRes.Titles, e.tags)

	metrics.Score = int(math.Round(prRes.Score + issueRes.Score + reviewRes.Score + commentRes.Score + codeScore))

	if err := e.persistExpertise(ctx, username, metrics.ExpertiseAreas); err != nil {
		return nil, err
	}

	if err := e.store.UpsertUser(ctx, types.UserProfile{
		Username:  username,
		AvatarURL: metrics.AvatarURL,
	}, metrics.Score); err != nil {
		return nil, fmt.Errorf("failed to upsert user %s: %w", username, err)
	}

	if e.logger != nil {
		e.logger.ContributorLogger(username, metrics.Score,
			metrics.PullRequests.Total, metrics.Issues.Total,
			metrics.Reviews.Total, metrics.Comments.Total)
	}

	return metrics, nil
}

// persistExpertise upserts the tag catalog entries and the per-(user,
// tag) scores. Scores reflect only the current window and overwrite any
// previously stored value for the key.
func (e *Engine) persistExpertise(ctx context.Context, username string, areas []types.ExpertiseArea) error {
	now := time.Now().UTC()

	for _, area := range areas {
		if err := e.store.UpsertTag(ctx, area.Tag, area.Category); err != nil {
			return fmt.Errorf("failed to upsert tag %s: %w", area.Tag, err)
		}

		if err := e.store.UpsertTagScore(ctx, types.TagScore{
			Username:     username,
			Tag:          area.Tag,
			Category:     area.Category,
			Score:        area.Score,
			Level:        area.Level,
			Progress:     area.Progress,
			PointsToNext: PointsToNextLevel(area.Level),
			LastUpdated:  now,
		}); err != nil {
			return fmt.Errorf("failed to upsert tag score %s/%s: %w", username, area.Tag, err)
		}
	}

	return nil
}
