// Package validate holds plain request-field validators used by the
// LIFF API handlers. Each validator returns an error describing the
// first violated rule.
package validate

import (
	"fmt"
	"time"
)

// NonEmpty rejects an empty string.
func NonEmpty(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// MaxLen rejects a string longer than limit bytes. Nil passes.
func MaxLen(field string, v *string, limit int) error {
	if v == nil {
		return nil
	}
	if len(*v) > limit {
		return fmt.Errorf("%s exceeds %d characters", field, limit)
	}
	return nil
}

// PositiveAmount rejects a non-positive money amount.
func PositiveAmount(field string, v int64) error {
	if v <= 0 {
		return fmt.Errorf("%s must be positive", field)
	}
	return nil
}

// IntRange rejects a value outside [min, max].
func IntRange(field string, v, min, max int) error {
	if v < min || v > max {
		return fmt.Errorf("%s must be between %d and %d", field, min, max)
	}
	return nil
}

// OneOf rejects a value not in the allowed set.
func OneOf(field, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %v", field, allowed)
}

// RFC3339 parses a timestamp field. Empty input is an error.
func RFC3339(field, v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be RFC3339", field)
	}
	return t, nil
}
