package db

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// Logger writes SQL traces through the standard log package.
type Logger struct {
	SlowThreshold time.Duration
	LogLevel      logger.LogLevel
}

func NewLogger(level string, slow time.Duration) logger.Interface {
	return &Logger{SlowThreshold: slow, LogLevel: ParseLevel(level)}
}

// ParseLevel maps silent|error|warn|info to a gorm level; unknown values mean warn.
func ParseLevel(s string) logger.LogLevel {
	switch strings.ToLower(s) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func (l *Logger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.LogLevel = level
	return &cp
}

func (l *Logger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Info {
		log.Printf("[db] INFO "+msg, data...)
	}
}

func (l *Logger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Warn {
		log.Printf("[db] WARN "+msg, data...)
	}
}

func (l *Logger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Error {
		log.Printf("[db] ERROR "+msg, data...)
	}
}

func (l *Logger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && l.LogLevel >= logger.Error && !expected(err):
		sql, rows := fc()
		log.Printf("[db] ERROR %s | %v | %s | %d rows | %s", utils.FileWithLineNum(), err, elapsed, rows, sql)
	case l.SlowThreshold > 0 && elapsed > l.SlowThreshold && l.LogLevel >= logger.Warn:
		sql, rows := fc()
		log.Printf("[db] SLOW %s | %s | %d rows | %s", utils.FileWithLineNum(), elapsed, rows, sql)
	case l.LogLevel >= logger.Info:
		sql, rows := fc()
		log.Printf("[db] QUERY %s | %s | %d rows | %s", utils.FileWithLineNum(), elapsed, rows, sql)
	}
}

// Missing rows and unique hits are business outcomes, not failures.
func expected(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || IsUniqueViolation(err)
}
