package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/contribpulse/contribpulse/internal/monitoring"
	"github.com/contribpulse/contribpulse/internal/types"
)

// Store is the read surface the exporter needs.
type Store interface {
	SummariesForDate(ctx context.Context, date string, interval types.IntervalType) ([]types.UserSummary, error)
	UserStatsByUsername(ctx context.Context, username string) (*types.UserStats, error)
}

// SnapshotMetrics aggregates a snapshot's headline numbers.
type SnapshotMetrics struct {
	Contributors int `json:"contributors"`
	MergedPRs    int `json:"merged_prs"`
	NewIssues    int `json:"new_issues"`
	LinesChanged int `json:"lines_changed"`
}

// TopContributor is one of the snapshot's highlighted contributors.
type TopContributor struct {
	Name    string   `json:"name"`
	Summary string   `json:"summary"`
	Areas   []string `json:"areas"`
}

// AreaChange is the per-area churn breakdown.
type AreaChange struct {
	Name      string `json:"name"`
	Files     int    `json:"files"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// Snapshot is the exported summary document.
type Snapshot struct {
	Title           string           `json:"title"`
	Date            string           `json:"date"`
	Overview        string           `json:"overview"`
	Metrics         SnapshotMetrics  `json:"metrics"`
	TopContributors []TopContributor `json:"top_contributors"`
	Areas           []AreaChange     `json:"areas"`
}

// Exporter writes summary snapshots to JSON files under the data
// directory, both as the current artifact and as a dated history entry.
type Exporter struct {
	store   Store
	dataDir string
	logger  *monitoring.Logger
}

// NewExporter creates an exporter rooted at dataDir.
func NewExporter(store Store, dataDir string, logger *monitoring.Logger) *Exporter {
	return &Exporter{store: store, dataDir: dataDir, logger: logger}
}

// ExportSummary builds and writes the snapshot for a date and interval.
// When no summaries exist for the key it logs a warning and writes
// nothing.
func (e *Exporter) ExportSummary(ctx context.Context, repository, date string, interval types.IntervalType) error {
	summaries, err := e.store.SummariesForDate(ctx, date, interval)
	if err != nil {
		return fmt.Errorf("failed to load summaries for export: %w", err)
	}

	if len(summaries) == 0 {
		e.logger.Warn("No summaries found for export", "date", date, "interval", string(interval))
		return nil
	}

	metrics := SnapshotMetrics{Contributors: len(summaries)}
	for _, s := range summaries {
		metrics.MergedPRs += s.TotalPRs
		metrics.LinesChanged += s.Additions + s.Deletions
	}

	top := make([]TopContributor, 0, 3)
	for _, s := range summaries {
		if len(top) >= 3 {
			break
		}

		var areas []string
		stats, err := e.store.UserStatsByUsername(ctx, s.Username)
		if err != nil {
			return fmt.Errorf("failed to load stats for %s: %w", s.Username, err)
		}
		if stats != nil {
			for _, area := range stats.FocusAreas {
				if len(areas) >= 3 {
					break
				}
				areas = append(areas, area.Area)
			}
		}

		summaryText := s.Summary
		if summaryText == "" {
			summaryText = s.Username + " made various contributions"
		}

		top = append(top, TopContributor{Name: s.Username, Summary: summaryText, Areas: areas})
	}

	snapshot := Snapshot{
		Title:           fmt.Sprintf("%s (%s)", repository, date),
		Date:            date,
		Overview:        buildOverview(summaries),
		Metrics:         metrics,
		TopContributors: top,
		Areas:           areaChanges(summaries),
	}

	dailyDir := filepath.Join(e.dataDir, "daily")
	historyDir := filepath.Join(dailyDir, "history")
	if err := os.MkdirAll(historyDir, 0755); err != nil {
		return fmt.Errorf("failed to create export directories: %w", err)
	}

	if err := writeJSON(filepath.Join(dailyDir, "summary.json"), snapshot); err != nil {
		return err
	}
	return writeJSON(filepath.Join(historyDir, "summary_"+date+".json"), snapshot)
}

// buildOverview renders the one-line development overview.
func buildOverview(summaries []types.UserSummary) string {
	totalPRs := 0
	for _, s := range summaries {
		totalPRs += s.TotalPRs
	}

	overview := fmt.Sprintf("Development activity with %d contributors merging %d PRs. ", len(summaries), totalPRs)
	if summaries[0].Summary != "" {
		overview += "Major work included " + summaries[0].Summary
	}
	return overview
}

// areaChanges accumulates churn per focus area across contributors.
func areaChanges(summaries []types.UserSummary) []AreaChange {
	byArea := make(map[string]*AreaChange)
	order := make([]string, 0)

	for _, summary := range summaries {
		for _, area := range summary.FocusAreas {
			change, ok := byArea[area.Area]
			if !ok {
				change = &AreaChange{Name: area.Area}
				byArea[area.Area] = change
				order = append(order, area.Area)
			}
			change.Files += summary.ChangedFiles
			change.Additions += summary.Additions
			change.Deletions += summary.Deletions
		}
	}

	changes := make([]AreaChange, 0, len(order))
	for _, name := range order {
		changes = append(changes, *byArea[name])
	}
	return changes
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	return nil
}
