// Package obslog is the library-internal structured logger. It wraps
// go.uber.org/zap instead of the teacher's fmt.Printf-based progress
// printer (whose CLI-facing role is now internal/progress), so that
// library log lines carry structured key/value fields a production log
// pipeline can index. Every line carries a component field; further
// fields are attached by callers through With or the *w methods.
package obslog

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	baseOnce sync.Once
	base     *zap.Logger
)

func baseLogger() *zap.Logger {
	baseOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		l, err := cfg.Build()
		if err != nil {
			l = zap.NewNop()
		}
		base = l
	})
	return base
}

// Logger is a per-component logger. Components obtain one via New and
// attach request-scoped fields with With.
type Logger struct {
	z *zap.SugaredLogger
}

// New returns a Logger scoped to the named component (e.g. "selector",
// "decomposer", "refiner", "orchestrator", "retrieval").
func New(component string) *Logger {
	return &Logger{z: baseLogger().Sugar().With("component", component)}
}

// With returns a derived Logger with additional structured key/value
// pairs attached to every subsequent line, e.g. trace_id and database_id.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{z: l.z.With(keysAndValues...)}
}

func (l *Logger) Debugw(msg string, keysAndValues ...any) { l.z.Debugw(msg, keysAndValues...) }
func (l *Logger) Infow(msg string, keysAndValues ...any)  { l.z.Infow(msg, keysAndValues...) }
func (l *Logger) Warnw(msg string, keysAndValues ...any)  { l.z.Warnw(msg, keysAndValues...) }
func (l *Logger) Errorw(msg string, keysAndValues ...any) { l.z.Errorw(msg, keysAndValues...) }

// Sync flushes buffered log entries; callers should defer it at process
// shutdown (best-effort, errors are intentionally discarded: most
// terminals return ENOTTY from Sync and it is not actionable).
func (l *Logger) Sync() {
	_ = l.z.Sync()
}
