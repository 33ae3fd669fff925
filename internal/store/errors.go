package store

import "strings"

// isConflictError reports whether err is one of SQLite's lock-contention
// failures (SQLITE_BUSY or "database is locked"). Both are transient and
// worth retrying.
func isConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
