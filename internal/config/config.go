package config

import "time"

// TagCategory says what a tag rule matches against. AREA and TECH rules
// match file paths; ROLE and TECH rules match PR titles.
type TagCategory string

const (
	CategoryArea TagCategory = "AREA"
	CategoryRole TagCategory = "ROLE"
	CategoryTech TagCategory = "TECH"
)

// MatchesPaths reports whether rules of this category apply to file paths.
func (c TagCategory) MatchesPaths() bool {
	return c == CategoryArea || c == CategoryTech
}

// MatchesTitles reports whether rules of this category apply to PR titles.
func (c TagCategory) MatchesTitles() bool {
	return c == CategoryRole || c == CategoryTech
}

// TagRule maps case-insensitive substring patterns to a named skill or
// area with a weight. Multiple pattern hits within the same rule
// accumulate, weight per hit.
type TagRule struct {
	Name     string      `koanf:"name" json:"name"`
	Category TagCategory `koanf:"category" json:"category"`
	Patterns []string    `koanf:"patterns" json:"patterns"`
	Weight   float64     `koanf:"weight" json:"weight"`
}

// PullRequestScoring configures the pull request signal.
type PullRequestScoring struct {
	Base                  float64 `koanf:"base"`
	Merged                float64 `koanf:"merged"`
	DescriptionMultiplier float64 `koanf:"description_multiplier"`
	ComplexityMultiplier  float64 `koanf:"complexity_multiplier"`
	OptimalSizeBonus      float64 `koanf:"optimal_size_bonus"`
	MaxPerDay             int     `koanf:"max_per_day"`
}

// IssueScoring configures the issue signal. LabelMultipliers compound
// multiplicatively across an issue's labels, keyed by lowercased name.
type IssueScoring struct {
	Base                      float64            `koanf:"base"`
	PerComment                float64            `koanf:"per_comment"`
	ClosedBonus               float64            `koanf:"closed_bonus"`
	ResolutionSpeedMultiplier float64            `koanf:"resolution_speed_multiplier"`
	LabelMultipliers          map[string]float64 `koanf:"label_multipliers"`
}

// ReviewScoring configures the review signal.
type ReviewScoring struct {
	Base                       float64 `koanf:"base"`
	Approved                   float64 `koanf:"approved"`
	ChangesRequested           float64 `koanf:"changes_requested"`
	Commented                  float64 `koanf:"commented"`
	DetailedFeedbackMultiplier float64 `koanf:"detailed_feedback_multiplier"`
	ThoroughnessMultiplier     float64 `koanf:"thoroughness_multiplier"`
	MaxPerDay                  int     `koanf:"max_per_day"`
}

// CommentScoring configures the PR comment signal.
type CommentScoring struct {
	Base                  float64 `koanf:"base"`
	SubstantiveMultiplier float64 `koanf:"substantive_multiplier"`
	DiminishingReturns    float64 `koanf:"diminishing_returns"`
	MaxPerThread          int     `koanf:"max_per_thread"`
}

// CodeChangeScoring configures the aggregated code change signal.
type CodeChangeScoring struct {
	PerLineAddition   float64 `koanf:"per_line_addition"`
	PerLineDeletion   float64 `koanf:"per_line_deletion"`
	PerFile           float64 `koanf:"per_file"`
	MaxLines          int     `koanf:"max_lines"`
	TestCoverageBonus float64 `koanf:"test_coverage_bonus"`
}

// ScoringConfig is the full per-signal scoring configuration. It is
// immutable for the duration of a run.
type ScoringConfig struct {
	PullRequest PullRequestScoring `koanf:"pull_request"`
	Issue       IssueScoring       `koanf:"issue"`
	Review      ReviewScoring      `koanf:"review"`
	Comment     CommentScoring     `koanf:"comment"`
	CodeChange  CodeChangeScoring  `koanf:"code_change"`
}

// SummaryConfig configures the narrative summary generator. The key is
// passed in explicitly rather than read from ambient process state.
type SummaryConfig struct {
	Enabled     bool          `koanf:"enabled"`
	Endpoint    string        `koanf:"endpoint"`
	APIKey      string        `koanf:"api_key"`
	Model       string        `koanf:"model"`
	Timeout     time.Duration `koanf:"timeout"`
	RatePerMin  int           `koanf:"rate_per_min"`
	Temperature float64       `koanf:"temperature"`
	MaxTokens   int           `koanf:"max_tokens"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr           string   `koanf:"addr"`
	AllowedOrigins []string `koanf:"allowed_origins"`
	RatePerSecond  float64  `koanf:"rate_per_second"`
	RateBurst      int      `koanf:"rate_burst"`
}

// Config is the root configuration for the pipeline.
type Config struct {
	DataDir  string        `koanf:"data_dir"`
	BotUsers []string      `koanf:"bot_users"`
	Scoring  ScoringConfig `koanf:"scoring"`
	Tags     []TagRule     `koanf:"tags"`
	Summary  SummaryConfig `koanf:"summary"`
	Server   ServerConfig  `koanf:"server"`
}

// New returns the default configuration. Scoring defaults follow the
// documented engine defaults; missing sub-fields loaded from file fall
// back to these rather than failing.
func New() *Config {
	return &Config{
		DataDir:  "./data",
		BotUsers: []string{"dependabot[bot]", "github-actions[bot]", "renovate[bot]"},
		Scoring: ScoringConfig{
			PullRequest: PullRequestScoring{
				Base:                  5,
				Merged:                10,
				DescriptionMultiplier: 0.05,
				ComplexityMultiplier:  0.5,
				OptimalSizeBonus:      5,
				MaxPerDay:             10,
			},
			Issue: IssueScoring{
				Base:                      3,
				PerComment:                0.5,
				ClosedBonus:               5,
				ResolutionSpeedMultiplier: 1.0,
				LabelMultipliers: map[string]float64{
					"bug":      1.5,
					"critical": 2.0,
					"security": 2.0,
				},
			},
			Review: ReviewScoring{
				Base:                       3,
				Approved:                   2,
				ChangesRequested:           3,
				Commented:                  1,
				DetailedFeedbackMultiplier: 0.02,
				ThoroughnessMultiplier:     1.3,
				MaxPerDay:                  8,
			},
			Comment: CommentScoring{
				Base:                  1,
				SubstantiveMultiplier: 0.01,
				DiminishingReturns:    0.7,
				MaxPerThread:          3,
			},
			CodeChange: CodeChangeScoring{
				PerLineAddition:   0.01,
				PerLineDeletion:   0.015,
				PerFile:           0.1,
				MaxLines:          2000,
				TestCoverageBonus: 2.0,
			},
		},
		Tags: DefaultTagRules(),
		Summary: SummaryConfig{
			Enabled:     false,
			Endpoint:    "https://openrouter.ai/api/v1/chat/completions",
			Model:       "anthropic/claude-3-sonnet-20240229",
			Timeout:     30 * time.Second,
			RatePerMin:  20,
			Temperature: 0.1,
			MaxTokens:   200,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			RatePerSecond:  5,
			RateBurst:      10,
		},
	}
}

// DefaultTagRules is the built-in tag rule set used when no tags are
// configured.
func DefaultTagRules() []TagRule {
	return []TagRule{
		{Name: "backend", Category: CategoryArea, Patterns: []string{"api/", "server/", "internal/"}, Weight: 1.5},
		{Name: "frontend", Category: CategoryArea, Patterns: []string{"ui/", "components/", "pages/"}, Weight: 1.2},
		{Name: "docs", Category: CategoryArea, Patterns: []string{"docs/", ".md"}, Weight: 0.8},
		{Name: "infra", Category: CategoryArea, Patterns: []string{".github/", "docker", "deploy/"}, Weight: 1.3},
		{Name: "tests", Category: CategoryArea, Patterns: []string{".test.", ".spec.", "/test/"}, Weight: 1.0},
		{Name: "maintainer", Category: CategoryRole, Patterns: []string{"fix", "refactor", "chore"}, Weight: 1.0},
		{Name: "feature-dev", Category: CategoryRole, Patterns: []string{"feat", "add ", "implement"}, Weight: 1.2},
		{Name: "go", Category: CategoryTech, Patterns: []string{".go", "golang"}, Weight: 1.0},
		{Name: "typescript", Category: CategoryTech, Patterns: []string{".ts", ".tsx"}, Weight: 1.0},
		{Name: "sql", Category: CategoryTech, Patterns: []string{".sql", "migration"}, Weight: 1.0},
	}
}
