package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

const dateOnlyLayout = "2006-01-02"

func invalidField(field string) error {
	return newValidationError(field, "invalid_"+field, "invalid "+field)
}

// parseOptionalSnowflakeID returns nil for an empty value.
func parseOptionalSnowflakeID(value, field string) (*snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed <= 0 {
		return nil, invalidField(field)
	}
	return &parsed, nil
}

func parseRequiredSnowflakeID(value, field string) (snowflake.ID, error) {
	id, err := parseOptionalSnowflakeID(value, field)
	if err != nil {
		return 0, err
	}
	if id == nil {
		return 0, invalidField(field)
	}
	return *id, nil
}

// parseOptionalTime accepts RFC3339 or a bare UTC date. A bare date closing a
// range covers the whole day.
func parseOptionalTime(value, field string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		parsed = parsed.UTC()
		return &parsed, nil
	}
	day, err := time.ParseInLocation(dateOnlyLayout, trimmed, time.UTC)
	if err != nil {
		return nil, invalidField(field)
	}
	if endOfDay {
		day = day.Add(24*time.Hour - time.Nanosecond)
	}
	return &day, nil
}
