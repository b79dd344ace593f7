package store

import (
	"errors"
	"strings"
	"time"
)

// busyRetryDelays are the waits between attempts.
var busyRetryDelays = []time.Duration{
	10 * time.Millisecond,
	50 * time.Millisecond,
	200 * time.Millisecond,
	time.Second,
}

// retryOnBusy runs fn, retrying with backoff while SQLite reports the
// database as busy or locked.
func retryOnBusy(fn func() error) error {
	err := fn()
	for _, delay := range busyRetryDelays {
		if !isBusy(err) {
			return err
		}
		time.Sleep(delay)
		err = fn()
	}
	return err
}

func isBusy(err error) bool {
	if err == nil || errors.Is(err, ErrRunNotFound) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
