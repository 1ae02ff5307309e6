package core

import (
	"strings"
	"time"
)

// normalizeDate converts a calendar date input to midnight UTC. Empty input
// clears the field (nil). RFC3339 input keeps only its date part.
func normalizeDate(field, value string) (any, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	if d, err := time.Parse(time.DateOnly, value); err == nil {
		return d.UTC().Format(time.RFC3339), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Format(time.RFC3339), nil
	}
	return nil, &ValidationError{Field: field, Message: "expected a YYYY-MM-DD date"}
}

// normalizeText maps blank strings to nil so they are stored as null.
func normalizeText(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
