package summarize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/contribpulse/contribpulse/internal/types"
)

// placeholderPattern matches PR numbers that language models tend to
// invent when none were supplied (#101-#109, #201-#209).
var placeholderPattern = regexp.MustCompile(`#(?:10[1-9]|20[1-9])`)

var prNumberPattern = regexp.MustCompile(`#\d+`)

// intervalPhrase maps an interval type to the wording used in prompts
// and no-activity summaries.
func intervalPhrase(interval types.IntervalType) string {
	switch interval {
	case types.IntervalWeek:
		return "this week"
	case types.IntervalMonth:
		return "this month"
	default:
		return "today"
	}
}

// topDirectories picks the most significant area names from the focus
// areas, collapsing package paths and documentation-looking areas into
// short labels.
func topDirectories(areas []types.FocusArea, n int) []string {
	dirs := make([]string, 0, n)
	for _, area := range areas {
		if len(dirs) >= n {
			break
		}
		dirs = append(dirs, areaLabel(area.Area))
	}
	return dirs
}

func areaLabel(area string) string {
	parts := strings.Split(area, "/")
	for i, part := range parts {
		if part == "packages" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	if parts[0] == "docs" || strings.Contains(area, "/docs/") {
		return "docs"
	}
	if strings.HasSuffix(area, ".md") || strings.Contains(area, "documentation") {
		return "documentation"
	}
	return parts[0]
}

func truncateTitle(title string, maxLength int) string {
	if len(title) <= maxLength {
		return title
	}
	return title[:maxLength-3] + "..."
}

// buildPrompt renders the structured activity prompt for one contributor.
func buildPrompt(metrics types.ContributorMetrics, interval types.IntervalType) string {
	phrase := intervalPhrase(interval)
	topDirs := topDirectories(metrics.FocusAreas, 2)

	var merged, opened []string
	for _, pr := range metrics.PullRequests.Items {
		entry := fmt.Sprintf("%q", truncateTitle(pr.Title, 50))
		if len(topDirs) > 0 {
			entry += " in " + topDirs[0]
		}
		if pr.Merged {
			merged = append(merged, entry)
		} else {
			opened = append(opened, entry)
		}
	}

	var issues []string
	for _, issue := range metrics.Issues.Items {
		issues = append(issues, fmt.Sprintf("%q", truncateTitle(issue.Title, 50)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Summarize %s's actual contributions %s:\n\n", metrics.Username, phrase)

	b.WriteString("Pull Requests:\n")
	fmt.Fprintf(&b, "- Merged: %s\n", orNone(strings.Join(merged, ", ")))
	fmt.Fprintf(&b, "- Opened: %s\n\n", orNone(strings.Join(opened, ", ")))

	fmt.Fprintf(&b, "Issues:\n%s\n\n", orNone(strings.Join(issues, ", ")))

	if metrics.Reviews.Total > 0 {
		fmt.Fprintf(&b, "Reviews: %d total (%d approvals, %d change requests, %d comments)\n\n",
			metrics.Reviews.Total, metrics.Reviews.Approved,
			metrics.Reviews.ChangesRequested, metrics.Reviews.Commented)
	} else {
		b.WriteString("Reviews: None\n\n")
	}

	if metrics.CodeChanges.Files > 0 {
		fmt.Fprintf(&b, "Code Changes:\nModified %d files (+%d/-%d lines)\n\n",
			metrics.CodeChanges.Files, metrics.CodeChanges.Additions, metrics.CodeChanges.Deletions)
	} else {
		b.WriteString("Code Changes:\nNo code changes\n\n")
	}

	fmt.Fprintf(&b, "Primary Areas: %s\n\n", orNone(strings.Join(topDirs, ", ")))

	fmt.Fprintf(&b, `Write a natural, factual summary that:
1. Starts with "%s: "
2. ONLY includes their actual contributions from the data above
3. Uses exact PR/issue numbers ONLY if they are provided in the data (never make up numbers)
4. Groups similar activities by area (e.g., "merged 3 PRs in backend")
5. Includes line changes (+X/-Y) for significant code changes
6. Omits any activity type that shows "None" above
7. Uses at most 2 sentences`, metrics.Username)

	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

// isSuspicious reports whether a generated summary contains
// placeholder-looking PR numbers or repeats the same PR number.
func isSuspicious(summary string) bool {
	if placeholderPattern.MatchString(summary) {
		return true
	}

	numbers := prNumberPattern.FindAllString(summary, -1)
	seen := make(map[string]bool, len(numbers))
	for _, n := range numbers {
		if seen[n] {
			return true
		}
		seen[n] = true
	}

	return false
}
