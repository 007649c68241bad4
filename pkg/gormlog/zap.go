package gormlog

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"

	"github.com/fatflowers/storepay/pkg/config"
	"github.com/fatflowers/storepay/pkg/logctx"
)

// msisdn matches payer numbers as they appear in interpolated SQL.
var msisdn = regexp.MustCompile(`\b254(\d{6})(\d{3})\b`)

// ZapLogger implements gorm.io/gorm/logger.Interface on the request-scoped logger from
// logctx.FromCtx, so queries carry the trace_id of the request that issued them.
type ZapLogger struct {
	base   *zap.SugaredLogger
	config gormlogger.Config
}

func ParseLevel(s string) gormlogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

func New(base *zap.SugaredLogger, cfg config.DBConfig) *ZapLogger {
	slow := cfg.SlowThreshold
	if slow <= 0 {
		slow = 500 * time.Millisecond
	}
	return &ZapLogger{base: base, config: gormlogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  ParseLevel(cfg.LogLevel),
		IgnoreRecordNotFoundError: true,
	}}
}

func (z *ZapLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cfg := z.config
	cfg.LogLevel = level
	return &ZapLogger{base: z.base, config: cfg}
}

func (z *ZapLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if z.config.LogLevel >= gormlogger.Info {
		logctx.FromCtx(ctx, z.base).Infow(msg, "args", data)
	}
}

func (z *ZapLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if z.config.LogLevel >= gormlogger.Warn {
		logctx.FromCtx(ctx, z.base).Warnw(msg, "args", data)
	}
}

func (z *ZapLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if z.config.LogLevel >= gormlogger.Error {
		logctx.FromCtx(ctx, z.base).Errorw(msg, "args", data)
	}
}

// Trace logs failed and slow statements, and every statement at info level. Unique
// violations are expected on the pending-payment guard and log at warn.
func (z *ZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if z.config.LogLevel <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	lg := logctx.FromCtx(ctx, z.base)
	fields := func(sql string, rows int64) []interface{} {
		return []interface{}{
			"sql", RedactSQL(sql),
			"rows", rows,
			"elapsed_ms", elapsed.Milliseconds(),
			"caller", shortCaller(utils.FileWithLineNum()),
		}
	}

	switch {
	case err != nil && z.config.LogLevel >= gormlogger.Error &&
		!(z.config.IgnoreRecordNotFoundError && errors.Is(err, gorm.ErrRecordNotFound)):
		sql, rows := fc()
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			lg.Warnw("gorm_duplicate", append(fields(sql, rows), "err", err)...)
			return
		}
		lg.Errorw("gorm_error", append(fields(sql, rows), "err", err)...)
	case z.config.SlowThreshold > 0 && elapsed > z.config.SlowThreshold && z.config.LogLevel >= gormlogger.Warn:
		sql, rows := fc()
		lg.Warnw("gorm_slow", fields(sql, rows)...)
	case z.config.LogLevel >= gormlogger.Info:
		sql, rows := fc()
		lg.Debugw("gorm", fields(sql, rows)...)
	}
}

// RedactSQL masks the middle digits of Kenyan MSISDNs: 254712345678 becomes 254******678.
func RedactSQL(sql string) string {
	return msisdn.ReplaceAllString(sql, "254******$2")
}

// shortCaller trims absolute build paths to the repo-relative part, or the last three segments.
func shortCaller(s string) string {
	if s == "" {
		return s
	}
	pathPart, linePart := s, ""
	if idx := strings.LastIndex(s, ":"); idx >= 0 {
		pathPart, linePart = s[:idx], s[idx:]
	}
	p := filepath.ToSlash(pathPart)
	for _, marker := range []string{"/internal/", "/pkg/", "/cmd/"} {
		if i := strings.Index(p, marker); i >= 0 {
			return p[i+1:] + linePart
		}
	}
	parts := strings.Split(p, "/")
	if n := len(parts); n >= 3 {
		return strings.Join(parts[n-3:], "/") + linePart
	}
	return strings.TrimPrefix(p, "/") + linePart
}
