package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormAdapter routes GORM's logger.Interface into a module Logger.
// Statements are logged at TRACE, so they only show up with
// module_levels.datastore set to "trace". Trace IDs attached to the query
// context by the HTTP layer are carried through.
type GormAdapter struct {
	log           Logger
	slowThreshold time.Duration
}

// NewGormAdapter returns an adapter that warns about statements slower than
// slowThreshold. A zero threshold disables slow statement warnings.
func NewGormAdapter(log Logger, slowThreshold time.Duration) *GormAdapter {
	if log == nil {
		log = NewSlogLogger(nil, LogLevelInfo, nil)
	}
	return &GormAdapter{log: log, slowThreshold: slowThreshold}
}

// LogMode is ignored; levels come from the logging configuration.
func (a *GormAdapter) LogMode(_ gormlogger.LogLevel) gormlogger.Interface {
	return a
}

func (a *GormAdapter) Info(ctx context.Context, msg string, data ...any) {
	a.log.WithContext(ctx).Debug(fmt.Sprintf(msg, data...))
}

func (a *GormAdapter) Warn(ctx context.Context, msg string, data ...any) {
	a.log.WithContext(ctx).Warn(fmt.Sprintf(msg, data...))
}

func (a *GormAdapter) Error(ctx context.Context, msg string, data ...any) {
	a.log.WithContext(ctx).Error(fmt.Sprintf(msg, data...))
}

// Trace logs one executed statement. Failures other than ErrRecordNotFound
// and slow statements are logged at WARN.
func (a *GormAdapter) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	log := a.log.WithContext(ctx).With(
		String("sql", sql),
		Int64("rows", rows),
		Duration("elapsed", elapsed),
	)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		log.Warn("statement failed", Error(err))
	case a.slowThreshold > 0 && elapsed > a.slowThreshold:
		log.Warn("slow statement", Duration("threshold", a.slowThreshold))
	default:
		log.Trace("statement")
	}
}
