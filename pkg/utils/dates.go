package utils

import (
	"fmt"
	"time"
)

// ParseDate parses a date in RFC 3339 or plain YYYY-MM-DD form.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date: %s", value)
	}
	return t, nil
}

// ParseOptionalDate parses a date as ParseDate does, mapping the empty
// string to nil.
func ParseOptionalDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := ParseDate(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
