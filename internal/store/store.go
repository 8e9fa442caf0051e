// Package store persists user profiles and training session history in
// SQLite. The coaching engine never touches storage directly; it receives
// a bounded window of recent sessions loaded here.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mlahtinen/coachapp/internal/coaching"
)

const timestampFormat = time.RFC3339
const dateFormat = time.DateOnly

// History window handed to the coaching engine.
const (
	historyLookbackDays = 14
	historyMaxSessions  = 20
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// marshalAreas encodes body area tags as a JSON array column.
func marshalAreas(areas []coaching.BodyArea) (string, error) {
	if areas == nil {
		areas = []coaching.BodyArea{}
	}
	encoded, err := json.Marshal(areas)
	if err != nil {
		return "", fmt.Errorf("marshal body areas: %w", err)
	}
	return string(encoded), nil
}

func unmarshalAreas(encoded string) ([]coaching.BodyArea, error) {
	var areas []coaching.BodyArea
	if err := json.Unmarshal([]byte(encoded), &areas); err != nil {
		return nil, fmt.Errorf("unmarshal body areas: %w", err)
	}
	if len(areas) == 0 {
		return nil, nil
	}
	return areas, nil
}

// formatTimestamp converts a timestamp to a nullable database string. Zero
// timestamps become NULL.
func formatTimestamp(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{String: "", Valid: false}
	}
	return sql.NullString{String: t.UTC().Format(timestampFormat), Valid: true}
}

// parseTimestamp parses a timestamp from a nullable database string.
func parseTimestamp(timestampStr sql.NullString) (time.Time, error) {
	if !timestampStr.Valid {
		return time.Time{}, nil
	}
	t, err := time.Parse(timestampFormat, timestampStr.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", timestampStr.String, err)
	}
	return t, nil
}
