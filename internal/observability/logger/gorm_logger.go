package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowThreshold = 200 * time.Millisecond

// GormLoggerConfig configures the GORM zap logger.
type GormLoggerConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
}

// GormLoggerConfigFor maps a textual level (silent, error, warn, info) onto
// the GORM level. Unknown values fall back to warn.
func GormLoggerConfigFor(level string, slow time.Duration) GormLoggerConfig {
	if slow <= 0 {
		slow = defaultSlowThreshold
	}
	cfg := GormLoggerConfig{Level: gormlogger.Warn, SlowThreshold: slow}
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent", "off":
		cfg.Level = gormlogger.Silent
	case "error":
		cfg.Level = gormlogger.Error
	case "info", "debug":
		cfg.Level = gormlogger.Info
	}
	return cfg
}

// GormLogger writes GORM statements through the request-scoped zap logger.
// Record-not-found is never logged as an error.
type GormLogger struct {
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func NewGormLogger(cfg GormLoggerConfig) *GormLogger {
	return &GormLogger{level: cfg.Level, slowThreshold: cfg.SlowThreshold}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Info, zap.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Warn, zap.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Error, zap.ErrorLevel, msg, data)
}

func (l *GormLogger) message(ctx context.Context, threshold gormlogger.LogLevel, level zapcore.Level, msg string, data []interface{}) {
	if l.level < threshold {
		return
	}
	fields := []zap.Field{zap.String("component", "gorm")}
	if len(data) > 0 {
		fields = append(fields, zap.Any("data", data))
	}
	if ce := FromContext(ctx).Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}

// Trace logs failed statements at error, slow ones at warn and the rest at
// debug when the level is info.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound) && l.level >= gormlogger.Error:
		l.logQuery(ctx, fc, elapsed, err, zap.ErrorLevel)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		l.logQuery(ctx, fc, elapsed, nil, zap.WarnLevel)
	case l.level >= gormlogger.Info:
		l.logQuery(ctx, fc, elapsed, nil, zap.DebugLevel)
	}
}

// ParamsFilter drops bound values from logged SQL.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *GormLogger) logQuery(ctx context.Context, fc func() (string, int64), elapsed time.Duration, err error, level zapcore.Level) {
	sql, rows := fc()
	stmt := describeSQL(sql)
	fields := []zap.Field{
		zap.String("component", "gorm"),
		zap.String("sql", strings.TrimSpace(sql)),
		zap.String("operation", stmt.operation),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if stmt.table != "" {
		fields = append(fields, zap.String("table", stmt.table))
	}
	if stmt.locking {
		fields = append(fields, zap.Bool("row_lock", true))
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	if ce := FromContext(ctx).Check(level, "gorm.query"); ce != nil {
		ce.Write(fields...)
	}
}

type sqlSummary struct {
	operation string
	table     string
	locking   bool
}

func describeSQL(sql string) sqlSummary {
	tokens := strings.Fields(strings.ToUpper(strings.TrimSpace(sql)))
	raw := strings.Fields(strings.TrimSpace(sql))
	summary := sqlSummary{operation: "UNKNOWN"}

	for i, token := range tokens {
		token = strings.Trim(token, "();")
		switch token {
		case "SELECT", "INSERT", "UPDATE", "DELETE", "MERGE":
			if summary.operation == "UNKNOWN" {
				summary.operation = token
				if token == "UPDATE" && i+1 < len(raw) {
					summary.table = cleanIdent(raw[i+1])
				}
			}
		case "FROM", "INTO":
			if summary.table == "" && i+1 < len(raw) {
				summary.table = cleanIdent(raw[i+1])
			}
		case "FOR":
			if i+1 < len(tokens) && (tokens[i+1] == "UPDATE" || tokens[i+1] == "SHARE") {
				summary.locking = true
			}
		}
	}
	return summary
}

func cleanIdent(ident string) string {
	return strings.Trim(ident, "\"`();")
}

var _ gormlogger.Interface = (*GormLogger)(nil)
