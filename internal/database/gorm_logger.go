package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// slowQueryThreshold flags statements worth a WARN. The integrator's
// chunked writes and the similarity scan are the usual suspects when a
// statement crosses it.
const slowQueryThreshold = 200 * time.Millisecond

// maxLoggedSQL bounds SQL text in log output.
const maxLoggedSQL = 200

// slogGormLogger bridges GORM's logger.Interface onto slog. Expected
// errors from the pipeline's optimistic writes — "no rows" probes and
// duplicate-key races the registries and linker resolve themselves — are
// not worth an ERROR line and stay at debug level with the rest of the
// SQL trace.
type slogGormLogger struct{}

// LogMode is a no-op: slog's configured level decides what is emitted.
func (l slogGormLogger) LogMode(logger.LogLevel) logger.Interface { return l }

func (l slogGormLogger) Info(_ context.Context, msg string, args ...any) {
	l.slog().Info(fmt.Sprintf(msg, args...))
}

func (l slogGormLogger) Warn(_ context.Context, msg string, args ...any) {
	l.slog().Warn(fmt.Sprintf(msg, args...))
}

func (l slogGormLogger) Error(_ context.Context, msg string, args ...any) {
	l.slog().Error(fmt.Sprintf(msg, args...))
}

// Trace runs after every statement. Real errors log at ERROR, slow
// statements at WARN; everything else is a debug trace that is skipped
// entirely — SQL string included — when debug logging is off.
func (l slogGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	switch {
	case err != nil && !l.expected(err):
		sql, rows := fc()
		l.slog().Error("query failed",
			"sql", truncate(sql),
			"rows", rows,
			"duration", elapsed,
			"error", err,
		)
	case elapsed >= slowQueryThreshold:
		sql, rows := fc()
		l.slog().Warn("slow query",
			"sql", truncate(sql),
			"rows", rows,
			"duration", elapsed,
		)
	case l.slog().Enabled(ctx, slog.LevelDebug):
		sql, rows := fc()
		l.slog().Debug("query",
			"sql", truncate(sql),
			"rows", rows,
			"duration", elapsed,
		)
	}
}

func (l slogGormLogger) slog() *slog.Logger {
	return slog.Default().With("component", "database")
}

// expected reports errors that are normal outcomes of the pipeline's
// write patterns rather than failures.
func (l slogGormLogger) expected(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrDuplicatedKey)
}

// truncate shortens long statement or literal text for log output,
// keeping head and tail around an ellipsis.
func truncate(s string) string {
	if len(s) <= maxLoggedSQL {
		return s
	}
	half := (maxLoggedSQL - 3) / 2
	return s[:half] + "..." + s[len(s)-half:]
}
