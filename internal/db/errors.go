package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// IsUniqueViolation reports whether err came from a unique index.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// IsContention reports lock waits that ran out of time or were broken by the
// database. These are safe to retry.
func IsContention(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", // lock_not_available
			"40001", // serialization_failure
			"40P01": // deadlock_detected
			return true
		}
	}
	return false
}

// SetLockTimeout bounds row-lock waits for the rest of tx on postgres.
// SQLite serialises writers through the pool and its busy timeout instead.
func SetLockTimeout(tx *gorm.DB, d time.Duration) error {
	if tx.Dialector.Name() != "postgres" || d <= 0 {
		return nil
	}
	return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", d.Milliseconds())).Error
}
