package analysis

import (
	"math"
	"sort"
	"strings"

	"github.com/contribpulse/contribpulse/internal/config"
	"github.com/contribpulse/contribpulse/internal/types"
)

// ClassifyExpertise computes per-tag scores from file paths and PR
// titles. AREA and TECH rules match file paths, ROLE and TECH rules
// match PR titles; every pattern hit adds the rule's weight. Only tags
// with a positive score are returned, sorted descending by score.
func ClassifyExpertise(filePaths, prTitles []string, rules []config.TagRule) []types.ExpertiseArea {
	areas := make([]types.ExpertiseArea, 0)

	for _, rule := range rules {
		score := 0.0

		if rule.Category.MatchesPaths() {
			for _, pattern := range rule.Patterns {
				lowerPattern := strings.ToLower(pattern)
				for _, filePath := range filePaths {
					if strings.Contains(strings.ToLower(filePath), lowerPattern) {
						score += rule.Weight
					}
				}
			}
		}

		if rule.Category.MatchesTitles() {
			for _, pattern := range rule.Patterns {
				lowerPattern := strings.ToLower(pattern)
				for _, title := range prTitles {
					if strings.Contains(strings.ToLower(title), lowerPattern) {
						score += rule.Weight
					}
				}
			}
		}

		if score <= 0 {
			continue
		}

		level, progress := LevelForScore(score)
		areas = append(areas, types.ExpertiseArea{
			Tag:      rule.Name,
			Category: string(rule.Category),
			Score:    score,
			Level:    level,
			Progress: progress,
		})
	}

	sort.SliceStable(areas, func(i, j int) bool {
		return areas[i].Score > areas[j].Score
	})

	return areas
}

// LevelForScore converts a raw tag score into a logarithmic level and
// fractional progress toward the next level. Level thresholds are
// 2^level - 1; progress is clamped to 1.
func LevelForScore(score float64) (int, float64) {
	level := int(math.Floor(math.Log2(score + 1)))
	current := math.Pow(2, float64(level)) - 1
	next := math.Pow(2, float64(level)+1) - 1

	progress := (score - current) / (next - current)
	if progress > 1 {
		progress = 1
	}

	return level, progress
}

// PointsToNextLevel returns the absolute score threshold of the next
// level for a tag at the given level.
func PointsToNextLevel(level int) float64 {
	return math.Pow(2, float64(level)+1) - 1
}
