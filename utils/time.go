// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// HasTimestamp reports whether t carries a usable timestamp
func HasTimestamp(t *time.Time) bool {
	return t != nil && !t.IsZero()
}

// AtOrBefore reports whether t is equal to or earlier than bound
func AtOrBefore(t, bound time.Time) bool {
	return !t.After(bound)
}

// TimeToUTCPtr converts a time pointer to UTC if it's not already
func TimeToUTCPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
