package database

import (
	"encoding/json"
	"time"

	"github.com/contribpulse/contribpulse/internal/types"
)

// decodeLabels parses a serialized label list. Malformed input is
// treated as "no labels" rather than failing the record.
func decodeLabels(raw string) []types.Label {
	if raw == "" {
		return nil
	}
	var labels []types.Label
	if err := json.Unmarshal([]byte(raw), &labels); err != nil {
		return nil
	}
	return labels
}

// decodeFocusAreas parses a serialized focus-area snapshot, returning
// an empty result on malformed input.
func decodeFocusAreas(raw string) []types.FocusArea {
	if raw == "" {
		return nil
	}
	var areas []types.FocusArea
	if err := json.Unmarshal([]byte(raw), &areas); err != nil {
		return nil
	}
	return areas
}

// decodePRItems parses a serialized PR item list, empty on malformed input.
func decodePRItems(raw string) []types.PRItem {
	if raw == "" {
		return nil
	}
	var items []types.PRItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}

// decodeIssueItems parses a serialized issue item list, empty on malformed input.
func decodeIssueItems(raw string) []types.IssueItem {
	if raw == "" {
		return nil
	}
	var items []types.IssueItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}

// decodeFilesByType parses a serialized extension->count map, empty on
// malformed input.
func decodeFilesByType(raw string) map[string]int {
	if raw == "" {
		return map[string]int{}
	}
	var m map[string]int
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return map[string]int{}
	}
	return m
}

// mustJSON serializes v, falling back to the given literal on error.
func mustJSON(v any, fallback string) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return string(data)
}

// parseTime parses a stored timestamp. Both RFC3339 and bare dates
// appear in ingested data.
func parseTime(raw string) time.Time {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t
	}
	return time.Time{}
}

// parseTimePtr parses an optional stored timestamp.
func parseTimePtr(raw *string) *time.Time {
	if raw == nil || *raw == "" {
		return nil
	}
	t := parseTime(*raw)
	if t.IsZero() {
		return nil
	}
	return &t
}
