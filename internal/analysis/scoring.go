package analysis

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/contribpulse/contribpulse/internal/config"
	"github.com/contribpulse/contribpulse/internal/types"
)

// Caps on quality bonuses, points.
const (
	maxDescriptionPoints      = 10.0
	maxDetailedFeedbackPoints = 8.0
	maxSubstantivePoints      = 3.0
)

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// matchesAny reports whether s contains any of the rule's patterns,
// case-insensitive.
func matchesAny(s string, patterns []string) bool {
	lower := strings.ToLower(s)
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// prResult carries the pull request signal's score and the side
// collections later stages consume.
type prResult struct {
	Score     float64
	Stats     types.PullRequestStats
	Code      types.CodeChanges
	FilePaths []string
	Titles    []string
}

// scorePullRequests scores the contributor's pull requests with a daily
// cap. The cap gates full processing: a day's overflow PRs are excluded
// from scoring and from the raw counters alike. files maps PR id to its
// file diffs in fetch order.
func scorePullRequests(prs []types.PullRequest, files map[string][]types.FileDiff, cfg config.ScoringConfig, rules []config.TagRule) prResult {
	res := prResult{}

	maxPerDay := cfg.PullRequest.MaxPerDay
	if maxPerDay <= 0 {
		maxPerDay = 10
	}
	complexityMultiplier := cfg.PullRequest.ComplexityMultiplier
	if complexityMultiplier == 0 {
		complexityMultiplier = 0.5
	}
	optimalSizeBonus := cfg.PullRequest.OptimalSizeBonus
	if optimalSizeBonus == 0 {
		optimalSizeBonus = 5
	}

	byDate := make(map[string][]types.PullRequest)
	days := make([]string, 0)
	for _, pr := range prs {
		date := dayKey(pr.CreatedAt)
		if _, ok := byDate[date]; !ok {
			days = append(days, date)
		}
		byDate[date] = append(byDate[date], pr)
	}
	sort.Strings(days)

	for _, date := range days {
		dayPRs := byDate[date]
		if len(dayPRs) > maxPerDay {
			dayPRs = dayPRs[:maxPerDay]
		}

		for _, pr := range dayPRs {
			res.Stats.Total++
			switch {
			case pr.Merged:
				res.Stats.Merged++
			case pr.State == types.PROpen:
				res.Stats.Open++
			default:
				res.Stats.Closed++
			}
			res.Stats.Items = append(res.Stats.Items, types.PRItem{
				ID:     pr.ID,
				Title:  pr.Title,
				Merged: pr.Merged,
			})

			prFiles := files[pr.ID]
			var areaWeights []float64
			for _, file := range prFiles {
				res.FilePaths = append(res.FilePaths, file.Path)
				res.Code.Files++
				res.Code.Additions += file.Additions
				res.Code.Deletions += file.Deletions

				for _, rule := range rules {
					if rule.Category != config.CategoryArea {
						continue
					}
					if matchesAny(file.Path, rule.Patterns) {
						areaWeights = append(areaWeights, rule.Weight)
					}
				}
			}
			// Highest matched area weight wins; unmatched PRs score at 1.0.
			areaMultiplier := 1.0
			if len(areaWeights) > 0 {
				areaMultiplier = areaWeights[0]
				for _, w := range areaWeights[1:] {
					if w > areaMultiplier {
						areaMultiplier = w
					}
				}
			}
			// PRs without file records still contribute their headline
			// totals to code churn.
			if len(prFiles) == 0 {
				res.Code.Additions += pr.Additions
				res.Code.Deletions += pr.Deletions
				res.Code.Files += pr.ChangedFiles
			}

			res.Titles = append(res.Titles, pr.Title)

			base := cfg.PullRequest.Base
			if pr.Merged {
				base += cfg.PullRequest.Merged
			}

			descriptionPoints := math.Min(
				float64(len(pr.Body))*cfg.PullRequest.DescriptionMultiplier,
				maxDescriptionPoints,
			)

			totalChanges := pr.Additions + pr.Deletions
			complexity := math.Min(float64(pr.ChangedFiles), 10) *
				math.Log(math.Min(float64(totalChanges), 1000)+1)
			complexityScore := complexity * complexityMultiplier

			sizeBonus := 0.0
			if totalChanges >= 100 && totalChanges <= 500 {
				sizeBonus = optimalSizeBonus
			} else if totalChanges > 1000 {
				sizeBonus = -5
			}

			res.Score += (base + descriptionPoints + complexityScore + sizeBonus) * areaMultiplier
		}
	}

	return res
}

// issueResult carries the issue signal's score plus the comment counters
// it folds in from the issues' threads.
type issueResult struct {
	Score         float64
	Stats         types.IssueStats
	IssueComments int
}

// scoreIssues scores the contributor's issues. Label multipliers compound
// multiplicatively; closed issues earn a bonus and a resolution-speed
// multiplier applied to the whole issue score. Comments on each issue are
// counted in full but scored only up to the per-thread cap.
func scoreIssues(issues []types.Issue, commentsByIssue map[string][]types.Comment, cfg config.ScoringConfig) issueResult {
	res := issueResult{}

	closedBonus := cfg.Issue.ClosedBonus
	if closedBonus == 0 {
		closedBonus = 5
	}
	speedMultiplier := cfg.Issue.ResolutionSpeedMultiplier
	if speedMultiplier == 0 {
		speedMultiplier = 1.0
	}
	maxPerThread := cfg.Comment.MaxPerThread
	if maxPerThread <= 0 {
		maxPerThread = 3
	}

	for _, issue := range issues {
		res.Stats.Total++
		if issue.State == types.IssueOpen {
			res.Stats.Open++
		} else {
			res.Stats.Closed++
		}
		res.Stats.Items = append(res.Stats.Items, types.IssueItem{
			ID:    issue.ID,
			Title: issue.Title,
		})

		points := cfg.Issue.Base
		for _, label := range issue.Labels {
			if m, ok := cfg.Issue.LabelMultipliers[strings.ToLower(label.Name)]; ok {
				points *= m
			}
		}

		if issue.State != types.IssueOpen && issue.ClosedAt != nil {
			points += closedBonus

			resolutionDays := issue.ClosedAt.Sub(issue.CreatedAt).Hours() / 24
			speed := math.Max(0.5, speedMultiplier*(10/(resolutionDays+1)))
			points *= speed
		}

		res.Score += points

		if comments := commentsByIssue[issue.ID]; len(comments) > 0 {
			effective := len(comments)
			if effective > maxPerThread {
				effective = maxPerThread
			}
			res.IssueComments += len(comments)
			res.Score += float64(effective) * cfg.Issue.PerComment
		}
	}

	return res
}

// reviewResult carries the review signal's score and verdict counters.
type reviewResult struct {
	Score float64
	Stats types.ReviewStats
}

// scoreReviews scores given reviews with a daily cap. Thoroughness
// multipliers compose: long bodies earn the thoroughness multiplier, and
// change requests with detailed feedback are valued another 1.5x on top.
func scoreReviews(reviews []types.Review, cfg config.ScoringConfig) reviewResult {
	res := reviewResult{}

	maxPerDay := cfg.Review.MaxPerDay
	if maxPerDay <= 0 {
		maxPerDay = 8
	}
	thoroughness := cfg.Review.ThoroughnessMultiplier
	if thoroughness == 0 {
		thoroughness = 1.3
	}

	byDate := make(map[string][]types.Review)
	days := make([]string, 0)
	for _, review := range reviews {
		date := dayKey(review.SubmittedAt)
		if _, ok := byDate[date]; !ok {
			days = append(days, date)
		}
		byDate[date] = append(byDate[date], review)
	}
	sort.Strings(days)

	for _, date := range days {
		dayReviews := byDate[date]
		if len(dayReviews) > maxPerDay {
			dayReviews = dayReviews[:maxPerDay]
		}

		for _, review := range dayReviews {
			res.Stats.Total++

			base := cfg.Review.Base
			multiplier := 1.0

			bodyLength := len(review.Body)
			if bodyLength > 100 {
				multiplier = thoroughness
			}

			switch review.State {
			case types.ReviewApproved:
				res.Stats.Approved++
				base += cfg.Review.Approved
			case types.ReviewChangesRequested:
				res.Stats.ChangesRequested++
				base += cfg.Review.ChangesRequested
				if bodyLength > 200 {
					multiplier *= 1.5
				}
			default:
				res.Stats.Commented++
				base += cfg.Review.Commented
			}

			feedbackPoints := math.Min(
				float64(bodyLength)*cfg.Review.DetailedFeedbackMultiplier,
				maxDetailedFeedbackPoints,
			)

			res.Score += (base + feedbackPoints) * multiplier
		}
	}

	return res
}

// commentResult carries the PR comment signal's score and count.
type commentResult struct {
	Score      float64
	PRComments int
}

// scorePRComments scores the contributor's PR comments per thread with
// diminishing returns. All comments count toward raw totals; only the
// first maxPerThread per thread are scored, each at base x factor where
// the factor decays after every scored comment.
func scorePRComments(comments []types.Comment, cfg config.ScoringConfig) commentResult {
	res := commentResult{}

	maxPerThread := cfg.Comment.MaxPerThread
	if maxPerThread <= 0 {
		maxPerThread = 3
	}
	decay := cfg.Comment.DiminishingReturns
	if decay == 0 {
		decay = 0.7
	}

	byPR := make(map[string][]types.Comment)
	prIDs := make([]string, 0)
	for _, comment := range comments {
		if _, ok := byPR[comment.ParentID]; !ok {
			prIDs = append(prIDs, comment.ParentID)
		}
		byPR[comment.ParentID] = append(byPR[comment.ParentID], comment)
	}
	sort.Strings(prIDs)

	for _, prID := range prIDs {
		thread := byPR[prID]
		sort.SliceStable(thread, func(i, j int) bool {
			return thread[i].CreatedAt.Before(thread[j].CreatedAt)
		})

		factor := 1.0
		for i, comment := range thread {
			res.PRComments++

			if i >= maxPerThread {
				continue
			}

			base := cfg.Comment.Base * factor
			substantive := math.Min(
				float64(len(comment.Body))*cfg.Comment.SubstantiveMultiplier,
				maxSubstantivePoints*factor,
			)

			res.Score += base + substantive
			factor *= decay
		}
	}

	return res
}

// isTestPath reports whether a file path looks like a test file.
func isTestPath(path string) bool {
	return strings.Contains(path, ".test.") ||
		strings.Contains(path, ".spec.") ||
		strings.Contains(path, "/__tests__/") ||
		strings.Contains(path, "/test/") ||
		strings.HasSuffix(path, "_test.go")
}

// scoreCode scores the aggregated code churn once per contributor.
// Additions and deletions are capped before weighting so outsized PRs
// cannot dominate, and touched test files earn a coverage bonus.
func scoreCode(code types.CodeChanges, filePaths []string, cfg config.ScoringConfig) float64 {
	testBonus := cfg.CodeChange.TestCoverageBonus
	if testBonus == 0 {
		testBonus = 2.0
	}

	additions := math.Min(float64(code.Additions), float64(cfg.CodeChange.MaxLines))
	deletions := math.Min(float64(code.Deletions), float64(cfg.CodeChange.MaxLines))

	score := additions*cfg.CodeChange.PerLineAddition +
		deletions*cfg.CodeChange.PerLineDeletion +
		float64(code.Files)*cfg.CodeChange.PerFile

	testFiles := 0
	for _, path := range filePaths {
		if isTestPath(path) {
			testFiles++
		}
	}
	if testFiles > 0 {
		score += float64(testFiles) * testBonus
	}

	return score
}
