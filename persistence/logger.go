package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"pkt.systems/pslog"

	"github.com/MrEthical07/tenantAuth/internal/logging"
)

// DefaultSlowThreshold marks statements logged as slow.
const DefaultSlowThreshold = 200 * time.Millisecond

// GormLogger adapts a pslog.Logger to gorm's logger interface. SQL text is
// logged only at the Info log mode.
type GormLogger struct {
	logger        pslog.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

var _ gormlogger.Interface = (*GormLogger)(nil)

// NewGormLogger returns a warn-level adapter over logger.
func NewGormLogger(logger pslog.Logger) *GormLogger {
	return &GormLogger{
		logger:        logging.WithSubsystem(logger, "persistence", "gorm"),
		level:         gormlogger.Warn,
		slowThreshold: DefaultSlowThreshold,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *GormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.logger.Info("db.info", "detail", fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.logger.Warn("db.warn", "detail", fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.logger.Error("db.error", "detail", fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		_, rows := fc()
		l.logger.Error("db.query.failed", "rows", rows, "elapsed", elapsed, "error", err)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		_, rows := fc()
		l.logger.Warn("db.query.slow", "rows", rows, "elapsed", elapsed)
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.logger.Debug("db.query", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
