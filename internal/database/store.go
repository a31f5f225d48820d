package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/contribpulse/contribpulse/internal/types"
)

// Store handles all database operations for the pipeline.
type Store struct {
	db *DB
}

// NewStore creates a new store.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// countsByAuthor runs a grouped count query and collects the result into
// a username -> count map.
func (s *Store) countsByAuthor(ctx context.Context, query string, args ...any) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var username string
		var count int
		if err := rows.Scan(&username, &count); err != nil {
			return nil, err
		}
		counts[username] = count
	}
	return counts, rows.Err()
}

// PRAuthorCounts counts pull requests per author in the window.
func (s *Store) PRAuthorCounts(ctx context.Context, repository string, window types.DateRange) (map[string]int, error) {
	counts, err := s.countsByAuthor(ctx, `
		SELECT author, COUNT(*) FROM raw_pull_requests
		WHERE repository = ? AND date(created_at) >= date(?) AND date(created_at) <= date(?)
		GROUP BY author
	`, repository, window.StartDate, window.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to count PR authors: %w", err)
	}
	return counts, nil
}

// IssueAuthorCounts counts issues per author in the window.
func (s *Store) IssueAuthorCounts(ctx context.Context, repository string, window types.DateRange) (map[string]int, error) {
	counts, err := s.countsByAuthor(ctx, `
		SELECT author, COUNT(*) FROM raw_issues
		WHERE repository = ? AND date(created_at) >= date(?) AND date(created_at) <= date(?)
		GROUP BY author
	`, repository, window.StartDate, window.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to count issue authors: %w", err)
	}
	return counts, nil
}

// ReviewerCounts counts reviews per reviewer in the window, scoped to
// the repository through the reviewed pull request.
func (s *Store) ReviewerCounts(ctx context.Context, repository string, window types.DateRange) (map[string]int, error) {
	counts, err := s.countsByAuthor(ctx, `
		SELECT r.author, COUNT(*) FROM pr_reviews r
		INNER JOIN raw_pull_requests p ON r.pr_id = p.id
		WHERE p.repository = ? AND date(r.submitted_at) >= date(?) AND date(r.submitted_at) <= date(?)
		GROUP BY r.author
	`, repository, window.StartDate, window.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to count reviewers: %w", err)
	}
	return counts, nil
}

// PRCommenterCounts counts PR comments per author in the window.
func (s *Store) PRCommenterCounts(ctx context.Context, repository string, window types.DateRange) (map[string]int, error) {
	counts, err := s.countsByAuthor(ctx, `
		SELECT c.author, COUNT(*) FROM pr_comments c
		INNER JOIN raw_pull_requests p ON c.pr_id = p.id
		WHERE p.repository = ? AND date(c.created_at) >= date(?) AND date(c.created_at) <= date(?)
		GROUP BY c.author
	`, repository, window.StartDate, window.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to count PR commenters: %w", err)
	}
	return counts, nil
}

// IssueCommenterCounts counts issue comments per author in the window.
func (s *Store) IssueCommenterCounts(ctx context.Context, repository string, window types.DateRange) (map[string]int, error) {
	counts, err := s.countsByAuthor(ctx, `
		SELECT c.author, COUNT(*) FROM issue_comments c
		INNER JOIN raw_issues i ON c.issue_id = i.id
		WHERE i.repository = ? AND date(c.created_at) >= date(?) AND date(c.created_at) <= date(?)
		GROUP BY c.author
	`, repository, window.StartDate, window.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to count issue commenters: %w", err)
	}
	return counts, nil
}

// PullRequestsByAuthor fetches the author's pull requests created in the
// window, in creation order.
func (s *Store) PullRequestsByAuthor(ctx context.Context, username, repository string, window types.DateRange) ([]types.PullRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, author, repository, state, merged, created_at, merged_at, closed_at,
		       additions, deletions, changed_files, body
		FROM raw_pull_requests
		WHERE author = ? AND repository = ?
		  AND date(created_at) >= date(?) AND date(created_at) <= date(?)
		ORDER BY created_at
	`, username, repository, window.StartDate, window.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pull requests: %w", err)
	}
	defer rows.Close()

	var prs []types.PullRequest
	for rows.Next() {
		var pr types.PullRequest
		var merged int
		var createdAt string
		var mergedAt, closedAt *string
		if err := rows.Scan(&pr.ID, &pr.Title, &pr.Author, &pr.Repository, &pr.State, &merged,
			&createdAt, &mergedAt, &closedAt, &pr.Additions, &pr.Deletions, &pr.ChangedFiles, &pr.Body); err != nil {
			return nil, fmt.Errorf("failed to scan pull request: %w", err)
		}
		pr.Merged = merged != 0
		pr.CreatedAt = parseTime(createdAt)
		pr.MergedAt = parseTimePtr(mergedAt)
		pr.ClosedAt = parseTimePtr(closedAt)
		prs = append(prs, pr)
	}
	return prs, rows.Err()
}

// PullRequestFiles fetches the file diffs of a pull request in insert order.
func (s *Store) PullRequestFiles(ctx context.Context, prID string) ([]types.FileDiff, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pr_id, path, additions, deletions FROM raw_pull_request_files
		WHERE pr_id = ? ORDER BY id
	`, prID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch PR files: %w", err)
	}
	defer rows.Close()

	var files []types.FileDiff
	for rows.Next() {
		var f types.FileDiff
		if err := rows.Scan(&f.PRID, &f.Path, &f.Additions, &f.Deletions); err != nil {
			return nil, fmt.Errorf("failed to scan PR file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// IssuesByAuthor fetches the author's issues created in the window.
func (s *Store) IssuesByAuthor(ctx context.Context, username, repository string, window types.DateRange) ([]types.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, author, repository, state, created_at, closed_at, labels
		FROM raw_issues
		WHERE author = ? AND repository = ?
		  AND date(created_at) >= date(?) AND date(created_at) <= date(?)
		ORDER BY created_at
	`, username, repository, window.StartDate, window.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issues: %w", err)
	}
	defer rows.Close()

	var issues []types.Issue
	for rows.Next() {
		var issue types.Issue
		var createdAt, labels string
		var closedAt *string
		if err := rows.Scan(&issue.ID, &issue.Title, &issue.Author, &issue.Repository,
			&issue.State, &createdAt, &closedAt, &labels); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issue.CreatedAt = parseTime(createdAt)
		issue.ClosedAt = parseTimePtr(closedAt)
		issue.Labels = decodeLabels(labels)
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// IssueComments fetches all comments on an issue, oldest first.
func (s *Store) IssueComments(ctx context.Context, issueID string) ([]types.Comment, error) {
	return s.comments(ctx, `
		SELECT id, issue_id, author, body, created_at FROM issue_comments
		WHERE issue_id = ? ORDER BY created_at
	`, issueID)
}

// ReviewsByAuthor fetches reviews the user submitted in the window,
// scoped to the repository through the reviewed pull request.
func (s *Store) ReviewsByAuthor(ctx context.Context, username, repository string, window types.DateRange) ([]types.Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.pr_id, r.author, r.state, r.body, r.submitted_at
		FROM pr_reviews r
		INNER JOIN raw_pull_requests p ON r.pr_id = p.id
		WHERE r.author = ? AND p.repository = ?
		  AND date(r.submitted_at) >= date(?) AND date(r.submitted_at) <= date(?)
		ORDER BY r.submitted_at
	`, username, repository, window.StartDate, window.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reviews: %w", err)
	}
	defer rows.Close()

	var reviews []types.Review
	for rows.Next() {
		var review types.Review
		var submittedAt string
		if err := rows.Scan(&review.ID, &review.PRID, &review.Author, &review.State, &review.Body, &submittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		review.SubmittedAt = parseTime(submittedAt)
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

// PRCommentsByAuthor fetches PR comments the user made in the window,
// scoped to the repository through the parent pull request.
func (s *Store) PRCommentsByAuthor(ctx context.Context, username, repository string, window types.DateRange) ([]types.Comment, error) {
	return s.comments(ctx, `
		SELECT c.id, c.pr_id, c.author, c.body, c.created_at
		FROM pr_comments c
		INNER JOIN raw_pull_requests p ON c.pr_id = p.id
		WHERE c.author = ? AND p.repository = ?
		  AND date(c.created_at) >= date(?) AND date(c.created_at) <= date(?)
		ORDER BY c.created_at
	`, username, repository, window.StartDate, window.EndDate)
}

func (s *Store) comments(ctx context.Context, query string, args ...any) ([]types.Comment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comments: %w", err)
	}
	defer rows.Close()

	var comments []types.Comment
	for rows.Next() {
		var c types.Comment
		var createdAt string
		if err := rows.Scan(&c.ID, &c.ParentID, &c.Author, &c.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// UserProfile fetches the stored identity for a contributor. Returns nil
// without error when the user is unknown.
func (s *Store) UserProfile(ctx context.Context, username string) (*types.UserProfile, error) {
	var profile types.UserProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT username, avatar_url FROM users WHERE username = ?
	`, username).Scan(&profile.Username, &profile.AvatarURL)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user profile: %w", err)
	}
	return &profile, nil
}

// UpsertUser stores the contributor's latest composite score.
func (s *Store) UpsertUser(ctx context.Context, profile types.UserProfile, score int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, avatar_url, score, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			avatar_url = excluded.avatar_url,
			score = excluded.score,
			last_updated = excluded.last_updated
	`, profile.Username, profile.AvatarURL, score, now)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// UpsertTag ensures a tag catalog entry exists.
func (s *Store) UpsertTag(ctx context.Context, name, category string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (name, category, description, created_at, last_updated)
		VALUES (?, ?, '', ?, ?)
		ON CONFLICT(name) DO UPDATE SET last_updated = excluded.last_updated
	`, name, category, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert tag: %w", err)
	}
	return nil
}

// UpsertTagScore overwrites the per-(username, tag) expertise score.
// The stored score always reflects the most recent window.
func (s *Store) UpsertTagScore(ctx context.Context, ts types.TagScore) error {
	id := ts.Username + "_" + ts.Tag
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_tag_scores (id, username, tag, category, score, level, progress, points_to_next, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			score = excluded.score,
			level = excluded.level,
			progress = excluded.progress,
			points_to_next = excluded.points_to_next,
			last_updated = excluded.last_updated
	`, id, ts.Username, ts.Tag, ts.Category, ts.Score, ts.Level, ts.Progress, ts.PointsToNext,
		ts.LastUpdated.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert tag score: %w", err)
	}
	return nil
}

// TagScoresByUser returns the stored tag scores for a user, highest first.
func (s *Store) TagScoresByUser(ctx context.Context, username string) ([]types.TagScore, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, tag, category, score, level, progress, points_to_next, last_updated
		FROM user_tag_scores WHERE username = ? ORDER BY score DESC
	`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tag scores: %w", err)
	}
	defer rows.Close()

	var scores []types.TagScore
	for rows.Next() {
		var ts types.TagScore
		var lastUpdated string
		if err := rows.Scan(&ts.Username, &ts.Tag, &ts.Category, &ts.Score, &ts.Level,
			&ts.Progress, &ts.PointsToNext, &lastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan tag score: %w", err)
		}
		ts.LastUpdated = parseTime(lastUpdated)
		scores = append(scores, ts)
	}
	return scores, rows.Err()
}

// ExistingSummary returns the stored narrative text for the summary key,
// if any.
func (s *Store) ExistingSummary(ctx context.Context, username, date string, interval types.IntervalType) (string, error) {
	id := summaryID(username, date, interval)
	var summary string
	err := s.db.QueryRowContext(ctx, `SELECT summary FROM user_summaries WHERE id = ?`, id).Scan(&summary)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch existing summary: %w", err)
	}
	return summary, nil
}

// UpsertUserSummary writes the per-(user, date, interval) record. The
// narrative text is only replaced when updateSummary is set, so a run
// that skipped generation keeps the previous text.
func (s *Store) UpsertUserSummary(ctx context.Context, summary types.UserSummary, updateSummary bool) error {
	id := summaryID(summary.Username, summary.Date, summary.IntervalType)
	prsJSON := mustJSON(summary.PullRequests, "[]")
	issuesJSON := mustJSON(summary.Issues, "[]")
	areasJSON := mustJSON(summary.FocusAreas, "[]")

	summaryUpdate := "summary"
	if updateSummary {
		summaryUpdate = "excluded.summary"
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO user_summaries (id, username, date, interval_type, score, summary,
			total_prs, additions, deletions, changed_files, pull_requests, issues, focus_areas)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			score = excluded.score,
			summary = %s,
			total_prs = excluded.total_prs,
			additions = excluded.additions,
			deletions = excluded.deletions,
			changed_files = excluded.changed_files,
			pull_requests = excluded.pull_requests,
			issues = excluded.issues,
			focus_areas = excluded.focus_areas
	`, summaryUpdate), id, summary.Username, summary.Date, string(summary.IntervalType),
		summary.Score, summary.Summary, summary.TotalPRs, summary.Additions, summary.Deletions,
		summary.ChangedFiles, prsJSON, issuesJSON, areasJSON)
	if err != nil {
		return fmt.Errorf("failed to upsert user summary: %w", err)
	}
	return nil
}

// SummariesForDate returns all summary records for a date and interval,
// highest score first.
func (s *Store) SummariesForDate(ctx context.Context, date string, interval types.IntervalType) ([]types.UserSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, date, interval_type, score, summary, total_prs, additions, deletions,
		       changed_files, pull_requests, issues, focus_areas
		FROM user_summaries
		WHERE date = ? AND interval_type = ?
		ORDER BY score DESC
	`, date, string(interval))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch summaries: %w", err)
	}
	defer rows.Close()

	var summaries []types.UserSummary
	for rows.Next() {
		var us types.UserSummary
		var prsJSON, issuesJSON, areasJSON string
		if err := rows.Scan(&us.Username, &us.Date, &us.IntervalType, &us.Score, &us.Summary,
			&us.TotalPRs, &us.Additions, &us.Deletions, &us.ChangedFiles,
			&prsJSON, &issuesJSON, &areasJSON); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		us.PullRequests = decodePRItems(prsJSON)
		us.Issues = decodeIssueItems(issuesJSON)
		us.FocusAreas = decodeFocusAreas(areasJSON)
		summaries = append(summaries, us)
	}
	return summaries, rows.Err()
}

// UpsertUserStats accumulates the additive counters and replaces the
// file-type and focus-area snapshots.
func (s *Store) UpsertUserStats(ctx context.Context, stats types.UserStats) error {
	filesJSON := mustJSON(stats.FilesByType, "{}")
	areasJSON := mustJSON(stats.FocusAreas, "[]")

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_stats (username, total_prs, merged_prs, closed_prs, total_files,
			total_additions, total_deletions, files_by_type, focus_areas)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			total_prs = total_prs + excluded.total_prs,
			merged_prs = merged_prs + excluded.merged_prs,
			closed_prs = closed_prs + excluded.closed_prs,
			total_files = total_files + excluded.total_files,
			total_additions = total_additions + excluded.total_additions,
			total_deletions = total_deletions + excluded.total_deletions,
			files_by_type = excluded.files_by_type,
			focus_areas = excluded.focus_areas
	`, stats.Username, stats.TotalPRs, stats.MergedPRs, stats.ClosedPRs, stats.TotalFiles,
		stats.TotalAdditions, stats.TotalDeletions, filesJSON, areasJSON)
	if err != nil {
		return fmt.Errorf("failed to upsert user stats: %w", err)
	}
	return nil
}

// UserStatsByUsername returns the cumulative stats record for a user.
// Returns nil without error when none exists.
func (s *Store) UserStatsByUsername(ctx context.Context, username string) (*types.UserStats, error) {
	var stats types.UserStats
	var filesJSON, areasJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT username, total_prs, merged_prs, closed_prs, total_files,
		       total_additions, total_deletions, files_by_type, focus_areas
		FROM user_stats WHERE username = ?
	`, username).Scan(&stats.Username, &stats.TotalPRs, &stats.MergedPRs, &stats.ClosedPRs,
		&stats.TotalFiles, &stats.TotalAdditions, &stats.TotalDeletions, &filesJSON, &areasJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user stats: %w", err)
	}
	stats.FilesByType = decodeFilesByType(filesJSON)
	stats.FocusAreas = decodeFocusAreas(areasJSON)
	return &stats, nil
}

// Leaderboard returns users ordered by their latest composite score.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]types.UserProfile, []int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, avatar_url, score FROM users ORDER BY score DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}
	defer rows.Close()

	var profiles []types.UserProfile
	var scores []int
	for rows.Next() {
		var p types.UserProfile
		var score int
		if err := rows.Scan(&p.Username, &p.AvatarURL, &score); err != nil {
			return nil, nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		profiles = append(profiles, p)
		scores = append(scores, score)
	}
	return profiles, scores, rows.Err()
}

func summaryID(username, date string, interval types.IntervalType) string {
	return username + "_" + date + "_" + string(interval)
}
