package analysis

import (
	"math"
	"path"
	"sort"
	"strings"

	"github.com/contribpulse/contribpulse/internal/types"
)

const topN = 5

// FocusAreas groups touched file paths by directory and returns the top
// five by count with their share of the directory-qualified total.
// Paths without a directory component are ignored.
func FocusAreas(filePaths []string) []types.FocusArea {
	dirCounts := make(map[string]int)
	total := 0

	for _, filePath := range filePaths {
		idx := strings.LastIndex(filePath, "/")
		if idx <= 0 {
			continue
		}
		dir := filePath[:idx]
		dirCounts[dir]++
		total++
	}

	areas := make([]types.FocusArea, 0, len(dirCounts))
	for dir, count := range dirCounts {
		pct := 0
		if total > 0 {
			pct = int(math.Round(float64(count) / float64(total) * 100))
		}
		areas = append(areas, types.FocusArea{Area: dir, Count: count, Percentage: pct})
	}

	sort.Slice(areas, func(i, j int) bool {
		if areas[i].Count != areas[j].Count {
			return areas[i].Count > areas[j].Count
		}
		return areas[i].Area < areas[j].Area
	})

	if len(areas) > topN {
		areas = areas[:topN]
	}
	return areas
}

// FileTypes groups touched file paths by extension and returns the top
// five by count. Paths without an extension are ignored.
func FileTypes(filePaths []string) []types.FileType {
	extCounts := make(map[string]int)
	total := 0

	for _, filePath := range filePaths {
		ext := path.Ext(filePath)
		if ext == "" {
			continue
		}
		extCounts[ext]++
		total++
	}

	fileTypes := make([]types.FileType, 0, len(extCounts))
	for ext, count := range extCounts {
		pct := 0
		if total > 0 {
			pct = int(math.Round(float64(count) / float64(total) * 100))
		}
		fileTypes = append(fileTypes, types.FileType{Extension: ext, Count: count, Percentage: pct})
	}

	sort.Slice(fileTypes, func(i, j int) bool {
		if fileTypes[i].Count != fileTypes[j].Count {
			return fileTypes[i].Count > fileTypes[j].Count
		}
		return fileTypes[i].Extension < fileTypes[j].Extension
	})

	if len(fileTypes) > topN {
		fileTypes = fileTypes[:topN]
	}
	return fileTypes
}
