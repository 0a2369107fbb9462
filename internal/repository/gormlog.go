package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/oatdump/pkg/utils"
)

const slowQuery = 200 * time.Millisecond

// gormLogger forwards gorm's log calls to a utils.Logger. Statements are
// logged at debug level, slow ones as warnings and failures as errors.
type gormLogger struct {
	log   utils.Logger
	level gormlogger.LogLevel
}

func newGormLogger(log utils.Logger) *gormLogger {
	return &gormLogger{log: log, level: gormlogger.Info}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.Debug(msg, args...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.Warn(msg, args...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.Error(msg, args...)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	log := l.log.WithFields(map[string]interface{}{"elapsed": elapsed.String(), "rows": rows})

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		log.Error("%s: %v", sql, err)
	case elapsed > slowQuery && l.level >= gormlogger.Warn:
		log.Warn("slow query: %s", sql)
	case l.level >= gormlogger.Info:
		log.Debug("%s", sql)
	}
}
