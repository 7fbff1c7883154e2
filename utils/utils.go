// Package utils provides utility functions for the application.
package utils

import "strings"

func ToPtr[T any](v T) *T {
	return &v
}

func IsTrue(b *bool) bool {
	return b != nil && *b
}

// IsFalse reports whether b is explicitly set to false. A nil pointer is not false.
func IsFalse(b *bool) bool {
	return b != nil && !*b
}

// FirstName returns the first whitespace separated word of a full name
func FirstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
