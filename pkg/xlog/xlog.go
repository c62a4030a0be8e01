package xlog

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a context-first structured logger. Fields stashed in the
// context via WrapContext are attached to every record logged under
// that context.
type Logger struct {
	l *zap.Logger
}

func New(level string) (Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return Logger{}, fmt.Errorf("xlog: bad level %q: %w", level, err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		return Logger{}, err
	}
	return Logger{l}, nil
}

func NewNop() Logger {
	return Logger{zap.NewNop()}
}

// NewForTest wraps an externally built zap logger, e.g. an observer.
func NewForTest(l *zap.Logger) Logger {
	return Logger{l}
}

////////////////////////////////////////////////////////////////////////////////

type ctxKey struct{}

// WrapContext stashes fields to be logged with every record under ctx.
func WrapContext(ctx context.Context, fields ...zap.Field) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, mergeFields(ctxFields(ctx), fields))
}

func ctxFields(ctx context.Context) []zap.Field {
	fields, _ := ctx.Value(ctxKey{}).([]zap.Field)
	return fields
}

// mergeFields never appends in place, contexts share backing arrays.
func mergeFields(a, b []zap.Field) []zap.Field {
	if len(a) == 0 {
		return b
	}
	merged := make([]zap.Field, 0, len(a)+len(b))
	merged = append(merged, a...)
	return append(merged, b...)
}

////////////////////////////////////////////////////////////////////////////////

func (l Logger) With(fields ...zap.Field) Logger {
	return Logger{l.l.With(fields...)}
}

func (l Logger) WithName(name string) Logger {
	return Logger{l.l.Named(name)}
}

func (l Logger) log(ctx context.Context, level zapcore.Level, msg string, fields []zap.Field) {
	if ce := l.l.Check(level, msg); ce != nil {
		ce.Write(mergeFields(ctxFields(ctx), fields)...)
	}
}

func (l Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields)
}

func (l Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (l Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (l Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields)
}

func (l Logger) Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	l.l.Fatal(msg, mergeFields(ctxFields(ctx), fields)...)
}
