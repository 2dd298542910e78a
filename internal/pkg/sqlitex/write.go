// Package sqlitex holds low-level SQLite write helpers shared by the
// model packages.
package sqlitex

import (
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
)

// PerformWrite runs fn inside a transaction, retrying when SQLite reports
// the database as locked. Single-writer contention is expected under WAL;
// a short backoff resolves it without surfacing errors to callers.
func PerformWrite(logger *slog.Logger, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	const maxAttempts = 3

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = db.Transaction(fn)
		if err == nil {
			return nil
		}
		if !isBusyError(err) {
			return err
		}
		logger.Debug("Retrying write after busy database",
			slog.Int("attempt", attempt), slog.Any("error", err))
		time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
	}
	return err
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
