package analysis

import (
	"context"
	"fmt"

	"github.com/contribpulse/contribpulse/internal/types"
)

// Sentinel author values that mean the account is unknown or deleted.
// Records carrying them are never scored.
const (
	sentinelUnknown = "unknown"
	sentinelDeleted = "[deleted]"
)

// DiscoverActiveContributors returns the usernames with meaningful
// activity in the window: authored a PR or issue, gave a review, or made
// at least one PR/issue comment. Sentinel identities and configured bots
// are excluded regardless of volume. Order of the result is not
// significant; callers re-sort by score.
func DiscoverActiveContributors(ctx context.Context, store ActivityReader, repository string, window types.DateRange, botUsers []string) ([]string, error) {
	counts := make(map[string]*SignalCounts)

	get := func(username string) *SignalCounts {
		c, ok := counts[username]
		if !ok {
			c = &SignalCounts{}
			counts[username] = c
		}
		return c
	}

	prAuthors, err := store.PRAuthorCounts(ctx, repository, window)
	if err != nil {
		return nil, fmt.Errorf("failed to count PR authors: %w", err)
	}
	for username, n := range prAuthors {
		get(username).PRs = n
	}

	issueAuthors, err := store.IssueAuthorCounts(ctx, repository, window)
	if err != nil {
		return nil, fmt.Errorf("failed to count issue authors: %w", err)
	}
	for username, n := range issueAuthors {
		get(username).Issues = n
	}

	reviewers, err := store.ReviewerCounts(ctx, repository, window)
	if err != nil {
		return nil, fmt.Errorf("failed to count reviewers: %w", err)
	}
	for username, n := range reviewers {
		if username == "" {
			continue
		}
		get(username).Reviews = n
	}

	prCommenters, err := store.PRCommenterCounts(ctx, repository, window)
	if err != nil {
		return nil, fmt.Errorf("failed to count PR commenters: %w", err)
	}
	for username, n := range prCommenters {
		if username == "" {
			continue
		}
		get(username).PRComments = n
	}

	issueCommenters, err := store.IssueCommenterCounts(ctx, repository, window)
	if err != nil {
		return nil, fmt.Errorf("failed to count issue commenters: %w", err)
	}
	for username, n := range issueCommenters {
		if username == "" {
			continue
		}
		get(username).IssueComments = n
	}

	bots := make(map[string]bool, len(botUsers))
	for _, b := range botUsers {
		bots[b] = true
	}

	active := make([]string, 0, len(counts))
	for username, c := range counts {
		if username == "" || username == sentinelUnknown || username == sentinelDeleted {
			continue
		}
		if bots[username] {
			continue
		}
		if c.PRs > 0 || c.Issues > 0 || c.Reviews > 0 || c.PRComments+c.IssueComments > 0 {
			active = append(active, username)
		}
	}

	return active, nil
}
