package store

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"
)

// IsSQLiteConflictError checks if the error is a SQLITE_BUSY or
// "database is locked" error. Both are SQLite concurrency errors that
// warrant a retry.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy runs a write with exponential backoff on SQLITE_BUSY errors.
func retryOnBusy(ctx context.Context, fn func() (sql.Result, error)) (sql.Result, error) {
	const maxRetries = 3
	baseDelay := 100 * time.Millisecond

	var result sql.Result
	var err error
	for i := 0; i < maxRetries; i++ {
		result, err = fn()
		if err == nil {
			return result, nil
		}
		if !IsSQLiteConflictError(err) || i == maxRetries-1 {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		delay := baseDelay * time.Duration(1<<i) // 100ms, 200ms, 400ms
		slog.Debug("SQLite write busy, retrying", "attempt", i+1, "delay", delay)
		time.Sleep(delay)
	}
	return nil, err
}
