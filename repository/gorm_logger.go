package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormLogger forwards GORM's log output to logrus
type GormLogger struct {
	log           logrus.FieldLogger
	level         logger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger returns a GORM logger writing to log. Queries slower than slowThreshold
// are logged as warnings when logSlow is set.
func NewGormLogger(log logrus.FieldLogger, slowThreshold time.Duration, logSlow bool) *GormLogger {
	if !logSlow {
		slowThreshold = 0
	}
	return &GormLogger{log: log, level: logger.Warn, slowThreshold: slowThreshold}
}

func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Info {
		l.log.Infof(msg, args...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Warn {
		l.log.Warnf(msg, args...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Error {
		l.log.Errorf(msg, args...)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.log.WithFields(logrus.Fields{
			"elapsed": elapsed.String(),
			"rows":    rows,
			"sql":     sql,
		}).WithError(err).Error("query failed")
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= logger.Warn:
		sql, rows := fc()
		l.log.WithFields(logrus.Fields{
			"elapsed":   elapsed.String(),
			"threshold": l.slowThreshold.String(),
			"rows":      rows,
			"sql":       sql,
		}).Warn("slow query")
	case l.level >= logger.Info:
		sql, rows := fc()
		l.log.WithFields(logrus.Fields{
			"elapsed": elapsed.String(),
			"rows":    rows,
			"sql":     sql,
		}).Debug("query")
	}
}
