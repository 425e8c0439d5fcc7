package db

import "strings"

// IsUniqueViolation reports whether the error is a unique constraint
// violation. With a constraint name it matches that constraint specifically;
// the message check works for both postgres and the sqlite used in tests.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
