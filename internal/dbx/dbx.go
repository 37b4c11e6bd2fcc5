// SPDX-License-Identifier: Apache-2.0

// Package dbx wraps *sql.DB with the retry and timeout policy spec §5
// requires: query-time lock-timeout errors are retried with backoff,
// connection establishment is retried a bounded number of times to
// accommodate a sandbox container still booting, and every retry loop
// observes a context cancellation immediately.
package dbx

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/cloudflare/backoff"
	"github.com/lib/pq"
)

// lockTimeoutCodes are the Postgres error codes that a query-time retry
// policy should retry: lock_not_available and deadlock_detected. This
// resolves spec §9's open question on retry scope.
var lockTimeoutCodes = map[pq.ErrorCode]bool{
	"55P03": true, // lock_not_available
	"40P01": true, // deadlock_detected
}

const (
	maxBackoffDuration = 1 * time.Minute
	backoffInterval    = 1 * time.Second

	defaultConnectRetries  = 5
	defaultConnectInterval = 200 * time.Millisecond
)

// DB is the subset of database operations the rest of pgmt depends on,
// satisfied by *RDB in production and by a fake in unit tests.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	WithRetryableTransaction(ctx context.Context, f func(context.Context, *sql.Tx) error) error
	Close() error
}

// RDB wraps a *sql.DB and retries statements on lock-timeout-class errors
// using exponential backoff with jitter. It never retries after a statement
// has begun executing side effects beyond the failed attempt itself, and it
// never retries non-lock-timeout errors.
type RDB struct {
	DB *sql.DB
}

func isRetryable(err error) bool {
	pqErr := &pq.Error{}
	return errors.As(err, &pqErr) && lockTimeoutCodes[pqErr.Code]
}

func (db *RDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	b := backoff.New(maxBackoffDuration, backoffInterval)
	for {
		res, err := db.DB.ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}
		if isRetryable(err) {
			if err := sleepCtx(ctx, b.Duration()); err != nil {
				return nil, err
			}
			continue
		}
		return nil, err
	}
}

func (db *RDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	b := backoff.New(maxBackoffDuration, backoffInterval)
	for {
		rows, err := db.DB.QueryContext(ctx, query, args...)
		if err == nil {
			return rows, nil
		}
		if isRetryable(err) {
			if err := sleepCtx(ctx, b.Duration()); err != nil {
				return nil, err
			}
			continue
		}
		return nil, err
	}
}

func (db *RDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.DB.QueryRowContext(ctx, query, args...)
}

// WithRetryableTransaction runs f in a transaction, retrying the whole
// transaction on lock-timeout-class errors.
func (db *RDB) WithRetryableTransaction(ctx context.Context, f func(context.Context, *sql.Tx) error) error {
	b := backoff.New(maxBackoffDuration, backoffInterval)
	for {
		tx, err := db.DB.BeginTx(ctx, nil)
		if err != nil {
			return err
		}

		err = f(ctx, tx)
		if err == nil {
			return tx.Commit()
		}

		if errRollback := tx.Rollback(); errRollback != nil {
			return errRollback
		}

		if isRetryable(err) {
			if err := sleepCtx(ctx, b.Duration()); err != nil {
				return err
			}
			continue
		}
		return err
	}
}

func (db *RDB) Close() error {
	return db.DB.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// ConnectWithRetry opens a connection and pings it, retrying a bounded
// number of times with a fixed interval. This is only applied to initial
// connection establishment (spec §5), never to query-time errors, so it
// uses a plain linear retry rather than the lock-timeout backoff above.
func ConnectWithRetry(ctx context.Context, dsn string, attempts int, interval time.Duration) (*sql.DB, error) {
	if attempts <= 0 {
		attempts = defaultConnectRetries
	}
	if interval <= 0 {
		interval = defaultConnectInterval
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		conn, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, err
		}

		pingErr := conn.PingContext(ctx)
		if pingErr == nil {
			return conn, nil
		}
		conn.Close()
		lastErr = pingErr

		if i == attempts-1 {
			break
		}
		if err := sleepCtx(ctx, interval); err != nil {
			return nil, err
		}
	}

	return nil, &ConnectError{Attempts: attempts, Cause: lastErr}
}

// ConnectError is returned when every connection attempt failed.
type ConnectError struct {
	Attempts int
	Cause    error
}

func (e *ConnectError) Error() string {
	return "could not connect to database after " + strconv.Itoa(e.Attempts) + " attempts: " + e.Cause.Error()
}

func (e *ConnectError) Unwrap() error { return e.Cause }

// ScanFirstValue scans the first row's single column, leaving dest
// untouched if there were no rows.
func ScanFirstValue[T any](rows *sql.Rows, dest *T) error {
	if rows.Next() {
		if err := rows.Scan(dest); err != nil {
			return err
		}
	}
	return rows.Err()
}
