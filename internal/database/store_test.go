package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contribpulse/contribpulse/internal/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func insertPR(t *testing.T, s *Store, id, author, repository, createdAt string, merged bool) {
	t.Helper()
	state := "OPEN"
	mergedInt := 0
	if merged {
		state = "MERGED"
		mergedInt = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO raw_pull_requests (id, title, author, repository, state, merged, created_at, additions, deletions, changed_files, body)
		VALUES (?, 'change', ?, ?, ?, ?, ?, 10, 5, 1, '')
	`, id, author, repository, state, mergedInt, createdAt)
	require.NoError(t, err)
}

func insertIssue(t *testing.T, s *Store, id, author, repository, createdAt, labels string) {
	t.Helper()
	_, err := s.db.Exec(`
		INSERT INTO raw_issues (id, title, author, repository, state, created_at, labels)
		VALUES (?, 'problem', ?, ?, 'OPEN', ?, ?)
	`, id, author, repository, createdAt, labels)
	require.NoError(t, err)
}

func window(start, end string) types.DateRange {
	return types.DateRange{StartDate: start, EndDate: end}
}

func TestPRAuthorCounts_WindowIsInclusive(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	insertPR(t, s, "pr-1", "alice", "acme/widgets", "2026-01-01T08:00:00Z", true)
	insertPR(t, s, "pr-2", "alice", "acme/widgets", "2026-01-07T23:30:00Z", false)
	insertPR(t, s, "pr-3", "alice", "acme/widgets", "2026-01-08T00:10:00Z", false)
	insertPR(t, s, "pr-4", "bob", "acme/widgets", "2026-01-03T12:00:00Z", true)
	insertPR(t, s, "pr-5", "alice", "other/repo", "2026-01-03T12:00:00Z", true)

	counts, err := s.PRAuthorCounts(ctx, "acme/widgets", window("2026-01-01", "2026-01-07"))
	require.NoError(t, err)

	// Both boundary days count; the day after the end date does not, and
	// other repositories never leak in.
	assert.Equal(t, map[string]int{"alice": 2, "bob": 1}, counts)
}

func TestPullRequestsByAuthor(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	insertPR(t, s, "pr-2", "alice", "acme/widgets", "2026-01-05T10:00:00Z", false)
	insertPR(t, s, "pr-1", "alice", "acme/widgets", "2026-01-03T10:00:00Z", true)

	prs, err := s.PullRequestsByAuthor(ctx, "alice", "acme/widgets", window("2026-01-01", "2026-01-07"))
	require.NoError(t, err)

	require.Len(t, prs, 2)
	// Creation order, not insert order.
	assert.Equal(t, "pr-1", prs[0].ID)
	assert.True(t, prs[0].Merged)
	assert.Equal(t, types.PRMerged, prs[0].State)
	assert.Equal(t, time.Date(2026, 1, 3, 10, 0, 0, 0, time.UTC), prs[0].CreatedAt)
	assert.False(t, prs[1].Merged)
}

func TestPullRequestFiles_InsertOrder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	insertPR(t, s, "pr-1", "alice", "acme/widgets", "2026-01-03T10:00:00Z", true)
	for _, path := range []string{"api/b.go", "api/a.go", "docs/readme.md"} {
		_, err := s.db.Exec(`
			INSERT INTO raw_pull_request_files (pr_id, path, additions, deletions)
			VALUES ('pr-1', ?, 1, 1)
		`, path)
		require.NoError(t, err)
	}

	files, err := s.PullRequestFiles(ctx, "pr-1")
	require.NoError(t, err)

	require.Len(t, files, 3)
	assert.Equal(t, "api/b.go", files[0].Path)
	assert.Equal(t, "docs/readme.md", files[2].Path)
}

func TestIssuesByAuthor_DecodesLabels(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	insertIssue(t, s, "i-1", "alice", "acme/widgets", "2026-01-04T09:00:00Z", `[{"name":"bug"},{"name":"critical"}]`)
	insertIssue(t, s, "i-2", "alice", "acme/widgets", "2026-01-05T09:00:00Z", `not json`)

	issues, err := s.IssuesByAuthor(ctx, "alice", "acme/widgets", window("2026-01-01", "2026-01-07"))
	require.NoError(t, err)

	require.Len(t, issues, 2)
	assert.Equal(t, []types.Label{{Name: "bug"}, {Name: "critical"}}, issues[0].Labels)
	// Corrupt label payloads degrade to no labels instead of failing.
	assert.Empty(t, issues[1].Labels)
}

func TestReviewsByAuthor_ScopedToRepository(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	insertPR(t, s, "pr-1", "alice", "acme/widgets", "2026-01-03T10:00:00Z", true)
	insertPR(t, s, "pr-2", "alice", "other/repo", "2026-01-03T10:00:00Z", true)

	for _, row := range []struct{ id, prID string }{{"r-1", "pr-1"}, {"r-2", "pr-2"}} {
		_, err := s.db.Exec(`
			INSERT INTO pr_reviews (id, pr_id, author, state, body, submitted_at)
			VALUES (?, ?, 'carol', 'APPROVED', 'looks good', '2026-01-04T11:00:00Z')
		`, row.id, row.prID)
		require.NoError(t, err)
	}

	reviews, err := s.ReviewsByAuthor(ctx, "carol", "acme/widgets", window("2026-01-01", "2026-01-07"))
	require.NoError(t, err)

	require.Len(t, reviews, 1)
	assert.Equal(t, "r-1", reviews[0].ID)
	assert.Equal(t, types.ReviewApproved, reviews[0].State)
}

func TestUserProfile_MissingUserIsNil(t *testing.T) {
	s := testStore(t)

	profile, err := s.UserProfile(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestUpsertUser_OverwritesScore(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	profile := types.UserProfile{Username: "alice", AvatarURL: "https://example.com/a.png"}

	require.NoError(t, s.UpsertUser(ctx, profile, 42))
	require.NoError(t, s.UpsertUser(ctx, profile, 17))

	profiles, scores, err := s.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "alice", profiles[0].Username)
	assert.Equal(t, []int{17}, scores)
}

func TestUpsertTagScore_OverwritesNotAccumulates(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertTag(ctx, "backend", "AREA"))

	ts := types.TagScore{
		Username: "alice", Tag: "backend", Category: "AREA",
		Score: 3.0, Level: 2, Progress: 0.0, PointsToNext: 7,
		LastUpdated: time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.UpsertTagScore(ctx, ts))

	ts.Score = 1.5
	ts.Level = 1
	ts.Progress = 0.25
	ts.PointsToNext = 3
	require.NoError(t, s.UpsertTagScore(ctx, ts))

	scores, err := s.TagScoresByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.InDelta(t, 1.5, scores[0].Score, 0.0001)
	assert.Equal(t, 1, scores[0].Level)
}

func testSummary(username string) types.UserSummary {
	return types.UserSummary{
		Username:     username,
		Date:         "2026-01-07",
		IntervalType: types.IntervalDay,
		Score:        42,
		Summary:      username + ": did things.",
		TotalPRs:     2,
		Additions:    150,
		Deletions:    50,
		ChangedFiles: 4,
		PullRequests: []types.PRItem{{ID: "pr-1", Title: "change", Merged: true}},
		Issues:       []types.IssueItem{{ID: "i-1", Title: "problem"}},
		FocusAreas:   []types.FocusArea{{Area: "api", Count: 3, Percentage: 75}},
	}
}

func TestUpsertUserSummary_ConditionalSummaryUpdate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first := testSummary("alice")
	require.NoError(t, s.UpsertUserSummary(ctx, first, true))

	// A rerun that skipped generation keeps the narrative but refreshes
	// the numbers.
	second := first
	second.Summary = ""
	second.Score = 55
	require.NoError(t, s.UpsertUserSummary(ctx, second, false))

	existing, err := s.ExistingSummary(ctx, "alice", "2026-01-07", types.IntervalDay)
	require.NoError(t, err)
	assert.Equal(t, "alice: did things.", existing)

	summaries, err := s.SummariesForDate(ctx, "2026-01-07", types.IntervalDay)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 55, summaries[0].Score)

	// A forced regeneration replaces the narrative.
	third := first
	third.Summary = "alice: did other things."
	require.NoError(t, s.UpsertUserSummary(ctx, third, true))

	existing, err = s.ExistingSummary(ctx, "alice", "2026-01-07", types.IntervalDay)
	require.NoError(t, err)
	assert.Equal(t, "alice: did other things.", existing)
}

func TestSummariesForDate_SortedAndDecoded(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	low := testSummary("bob")
	low.Score = 10
	high := testSummary("alice")
	high.Score = 99

	require.NoError(t, s.UpsertUserSummary(ctx, low, true))
	require.NoError(t, s.UpsertUserSummary(ctx, high, true))

	summaries, err := s.SummariesForDate(ctx, "2026-01-07", types.IntervalDay)
	require.NoError(t, err)

	require.Len(t, summaries, 2)
	assert.Equal(t, "alice", summaries[0].Username)
	assert.Equal(t, []types.PRItem{{ID: "pr-1", Title: "change", Merged: true}}, summaries[0].PullRequests)
	assert.Equal(t, []types.FocusArea{{Area: "api", Count: 3, Percentage: 75}}, summaries[0].FocusAreas)
}

func TestExistingSummary_MissingKey(t *testing.T) {
	s := testStore(t)

	existing, err := s.ExistingSummary(context.Background(), "nobody", "2026-01-07", types.IntervalDay)
	require.NoError(t, err)
	assert.Empty(t, existing)
}

func TestUpsertUserStats_CountersAccumulateSnapshotsReplace(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first := types.UserStats{
		Username: "alice", TotalPRs: 2, MergedPRs: 1, TotalFiles: 4,
		TotalAdditions: 100, TotalDeletions: 20,
		FilesByType: map[string]int{".go": 4},
		FocusAreas:  []types.FocusArea{{Area: "api", Count: 4, Percentage: 100}},
	}
	require.NoError(t, s.UpsertUserStats(ctx, first))

	second := types.UserStats{
		Username: "alice", TotalPRs: 1, MergedPRs: 1, TotalFiles: 2,
		TotalAdditions: 30, TotalDeletions: 10,
		FilesByType: map[string]int{".ts": 2},
		FocusAreas:  []types.FocusArea{{Area: "web", Count: 2, Percentage: 100}},
	}
	require.NoError(t, s.UpsertUserStats(ctx, second))

	stats, err := s.UserStatsByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, stats)

	assert.Equal(t, 3, stats.TotalPRs)
	assert.Equal(t, 2, stats.MergedPRs)
	assert.Equal(t, 6, stats.TotalFiles)
	assert.Equal(t, 130, stats.TotalAdditions)
	assert.Equal(t, 30, stats.TotalDeletions)
	// Snapshots reflect only the latest run.
	assert.Equal(t, map[string]int{".ts": 2}, stats.FilesByType)
	assert.Equal(t, []types.FocusArea{{Area: "web", Count: 2, Percentage: 100}}, stats.FocusAreas)
}

func TestUserStatsByUsername_MissingUserIsNil(t *testing.T) {
	s := testStore(t)

	stats, err := s.UserStatsByUsername(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, stats)
}

func TestLeaderboard(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertUser(ctx, types.UserProfile{Username: "alice"}, 99))
	require.NoError(t, s.UpsertUser(ctx, types.UserProfile{Username: "bob"}, 10))
	require.NoError(t, s.UpsertUser(ctx, types.UserProfile{Username: "carol"}, 55))

	profiles, scores, err := s.Leaderboard(ctx, 2)
	require.NoError(t, err)

	require.Len(t, profiles, 2)
	assert.Equal(t, "alice", profiles[0].Username)
	assert.Equal(t, "carol", profiles[1].Username)
	assert.Equal(t, []int{99, 55}, scores)
}
