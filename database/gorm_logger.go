package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes GORM output through zap. SQL is logged at DEBUG; slow
// queries and query errors (other than record-not-found) at WARN.
type GormLogger struct {
	log           *zap.Logger
	slowThreshold time.Duration
}

func NewGormLogger(log *zap.Logger, slowThreshold time.Duration) *GormLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &GormLogger{log: log, slowThreshold: slowThreshold}
}

// LogMode is a no-op; levels come from the zap configuration.
func (l *GormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return l }

func (l *GormLogger) Info(_ context.Context, msg string, data ...any) {
	l.log.Debug(fmt.Sprintf(msg, data...))
}

func (l *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	l.log.Warn(fmt.Sprintf(msg, data...))
}

func (l *GormLogger) Error(_ context.Context, msg string, data ...any) {
	l.log.Error(fmt.Sprintf(msg, data...))
}

func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	if err == nil && !l.log.Core().Enabled(zap.DebugLevel) &&
		(l.slowThreshold == 0 || elapsed <= l.slowThreshold) {
		return
	}
	sql, rows := fc()
	fields := []zap.Field{zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("elapsed", elapsed)}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		l.log.Warn("query error", append(fields, zap.Error(err))...)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		l.log.Warn("slow query", fields...)
	default:
		l.log.Debug("query", fields...)
	}
}
