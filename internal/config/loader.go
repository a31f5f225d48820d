package config

import (
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, an optional YAML file, and
// environment variables.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CONTRIB_CONFIG is set
//  3. env (prefix CONTRIB_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("CONTRIB_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Environment variables: CONTRIB_DATA_DIR, CONTRIB_SUMMARY.API_KEY, ...
	// Dots separate nesting levels; underscores within a level are kept
	// to match the koanf tags on the structs.
	envProvider := env.Provider("CONTRIB_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "contrib_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that the engine relies on.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	if c.Scoring.PullRequest.MaxPerDay <= 0 {
		return errors.New("scoring.pull_request.max_per_day must be positive")
	}
	if c.Scoring.Review.MaxPerDay <= 0 {
		return errors.New("scoring.review.max_per_day must be positive")
	}
	if c.Scoring.Comment.MaxPerThread <= 0 {
		return errors.New("scoring.comment.max_per_thread must be positive")
	}
	if d := c.Scoring.Comment.DiminishingReturns; d <= 0 || d > 1 {
		return errors.New("scoring.comment.diminishing_returns must be in (0, 1]")
	}
	for _, rule := range c.Tags {
		if rule.Weight <= 0 {
			return errors.New("tag rule " + rule.Name + ": weight must be positive")
		}
		switch rule.Category {
		case CategoryArea, CategoryRole, CategoryTech:
		default:
			return errors.New("tag rule " + rule.Name + ": unknown category " + string(rule.Category))
		}
	}
	if c.Summary.Enabled && c.Summary.APIKey == "" {
		return errors.New("summary.api_key is required when summary generation is enabled")
	}
	return nil
}
