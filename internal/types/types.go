package types

import "time"

// PRState is the lifecycle state of a pull request.
type PRState string

const (
	PROpen   PRState = "OPEN"
	PRClosed PRState = "CLOSED"
	PRMerged PRState = "MERGED"
)

// IssueState is the lifecycle state of an issue.
type IssueState string

const (
	IssueOpen   IssueState = "OPEN"
	IssueClosed IssueState = "CLOSED"
)

// ReviewState is the verdict attached to a pull request review.
type ReviewState string

const (
	ReviewApproved         ReviewState = "APPROVED"
	ReviewChangesRequested ReviewState = "CHANGES_REQUESTED"
	ReviewCommented        ReviewState = "COMMENTED"
)

// FileDiff is a single file change within a pull request.
type FileDiff struct {
	PRID      string `json:"pr_id"`
	Path      string `json:"path"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// PullRequest is a raw pull request record scoped to one repository.
type PullRequest struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Author       string     `json:"author"`
	Repository   string     `json:"repository"`
	State        PRState    `json:"state"`
	Merged       bool       `json:"merged"`
	CreatedAt    time.Time  `json:"created_at"`
	MergedAt     *time.Time `json:"merged_at,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	Additions    int        `json:"additions"`
	Deletions    int        `json:"deletions"`
	ChangedFiles int        `json:"changed_files"`
	Body         string     `json:"body"`
}

// Label is a decoded issue label.
type Label struct {
	Name string `json:"name"`
}

// Issue is a raw issue record scoped to one repository.
type Issue struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Author     string     `json:"author"`
	Repository string     `json:"repository"`
	State      IssueState `json:"state"`
	CreatedAt  time.Time  `json:"created_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	Labels     []Label    `json:"labels,omitempty"`
}

// Review is a review given on a pull request.
type Review struct {
	ID          string      `json:"id"`
	PRID        string      `json:"pr_id"`
	Author      string      `json:"author"`
	State       ReviewState `json:"state"`
	Body        string      `json:"body"`
	SubmittedAt time.Time   `json:"submitted_at"`
}

// Comment is a comment on a pull request or issue. ParentID points at
// whichever of the two it belongs to.
type Comment struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// UserProfile is the stored identity for a contributor.
type UserProfile struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// PRItem is the compact projection of a pull request carried in metrics
// and serialized into summary records.
type PRItem struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Merged bool   `json:"merged"`
}

// IssueItem is the compact projection of an issue carried in metrics.
type IssueItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// PullRequestStats aggregates pull request activity for one contributor.
type PullRequestStats struct {
	Total  int      `json:"total"`
	Merged int      `json:"merged"`
	Open   int      `json:"open"`
	Closed int      `json:"closed"`
	Items  []PRItem `json:"items"`
}

// IssueStats aggregates issue activity for one contributor.
type IssueStats struct {
	Total  int         `json:"total"`
	Open   int         `json:"open"`
	Closed int         `json:"closed"`
	Items  []IssueItem `json:"items"`
}

// ReviewStats aggregates review activity by verdict.
type ReviewStats struct {
	Total            int `json:"total"`
	Approved         int `json:"approved"`
	ChangesRequested int `json:"changes_requested"`
	Commented        int `json:"commented"`
}

// CommentStats aggregates comment activity by parent kind.
type CommentStats struct {
	Total        int `json:"total"`
	PullRequests int `json:"pull_requests"`
	Issues       int `json:"issues"`
}

// CodeChanges aggregates line and file churn across processed PRs.
type CodeChanges struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	Files     int `json:"files"`
}

// FocusArea is a directory-level activity bucket.
type FocusArea struct {
	Area       string `json:"area"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// FileType is a file-extension activity bucket.
type FileType struct {
	Extension  string `json:"extension"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// ExpertiseArea is a leveled tag classification derived from activity.
type ExpertiseArea struct {
	Tag      string  `json:"tag"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
	Level    int     `json:"level"`
	Progress float64 `json:"progress"`
}

// ContributorMetrics is the scoring engine's primary output for one
// contributor over one time window.
type ContributorMetrics struct {
	Username       string           `json:"username"`
	AvatarURL      string           `json:"avatar_url,omitempty"`
	Score          int              `json:"score"`
	PullRequests   PullRequestStats `json:"pull_requests"`
	Issues         IssueStats       `json:"issues"`
	Reviews        ReviewStats      `json:"reviews"`
	Comments       CommentStats     `json:"comments"`
	CodeChanges    CodeChanges      `json:"code_changes"`
	FocusAreas     []FocusArea      `json:"focus_areas"`
	FileTypes      []FileType       `json:"file_types"`
	ExpertiseAreas []ExpertiseArea  `json:"expertise_areas"`
}

// TagScore is the persisted projection of one (username, tag) expertise
// classification. Score reflects only the most recent window; upserts
// overwrite rather than accumulate.
type TagScore struct {
	Username     string    `json:"username"`
	Tag          string    `json:"tag"`
	Category     string    `json:"category"`
	Score        float64   `json:"score"`
	Level        int       `json:"level"`
	Progress     float64   `json:"progress"`
	PointsToNext float64   `json:"points_to_next"`
	LastUpdated  time.Time `json:"last_updated"`
}

// IntervalType distinguishes daily, weekly, and monthly summary records.
type IntervalType string

const (
	IntervalDay   IntervalType = "day"
	IntervalWeek  IntervalType = "week"
	IntervalMonth IntervalType = "month"
)

// DateRange is an inclusive calendar date window, dates as YYYY-MM-DD.
type DateRange struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// UserSummary is the per-(user, date, interval) record written after a
// pipeline run.
type UserSummary struct {
	Username     string       `json:"username"`
	Date         string       `json:"date"`
	IntervalType IntervalType `json:"interval_type"`
	Score        int          `json:"score"`
	Summary      string       `json:"summary"`
	TotalPRs     int          `json:"total_prs"`
	Additions    int          `json:"additions"`
	Deletions    int          `json:"deletions"`
	ChangedFiles int          `json:"changed_files"`
	PullRequests []PRItem     `json:"pull_requests"`
	Issues       []IssueItem  `json:"issues"`
	FocusAreas   []FocusArea  `json:"focus_areas"`
}

// UserStats is the cumulative per-user record. Counters are additive
// across runs; file-type and focus-area snapshots are replaced.
type UserStats struct {
	Username       string         `json:"username"`
	TotalPRs       int            `json:"total_prs"`
	MergedPRs      int            `json:"merged_prs"`
	ClosedPRs      int            `json:"closed_prs"`
	TotalFiles     int            `json:"total_files"`
	TotalAdditions int            `json:"total_additions"`
	TotalDeletions int            `json:"total_deletions"`
	FilesByType    map[string]int `json:"files_by_type"`
	FocusAreas     []FocusArea    `json:"focus_areas"`
}
