package xlog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MuchToMyDelight/hotspot/pkg/xlog"
)

func TestContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := xlog.NewForTest(zap.New(core))

	ctx := xlog.WrapContext(context.Background(), zap.String("profile", "a.jfr"))
	ctx = xlog.WrapContext(ctx, zap.Int("pass", 2))

	l.Info(ctx, "built trees", zap.Int("nodes", 7))

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "built trees", entries[0].Message)

	fields := entries[0].ContextMap()
	require.Equal(t, "a.jfr", fields["profile"])
	require.Equal(t, int64(2), fields["pass"])
	require.Equal(t, int64(7), fields["nodes"])
}

func TestContextFieldsDoNotLeakAcrossBranches(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := xlog.NewForTest(zap.New(core))

	parent := xlog.WrapContext(context.Background(), zap.String("profile", "a.jfr"))
	left := xlog.WrapContext(parent, zap.String("tree", "bottomup"))
	right := xlog.WrapContext(parent, zap.String("tree", "topdown"))

	l.Info(right, "built")
	l.Info(left, "built")

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "topdown", entries[0].ContextMap()["tree"])
	require.Equal(t, "bottomup", entries[1].ContextMap()["tree"])
}

func TestLevels(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	l := xlog.NewForTest(zap.New(core))
	ctx := context.Background()

	l.Debug(ctx, "dropped")
	l.Info(ctx, "dropped")
	l.Warn(ctx, "kept")
	l.Error(ctx, "kept")

	require.Equal(t, 2, logs.Len())
}

func TestWith(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := xlog.NewForTest(zap.New(core)).With(zap.String("component", "calltree"))
	l.WithName("builder").Info(context.Background(), "done")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "builder", entries[0].LoggerName)
	require.Equal(t, "calltree", entries[0].ContextMap()["component"])
}

func TestNew(t *testing.T) {
	_, err := xlog.New("info")
	require.NoError(t, err)

	_, err = xlog.New("whisper")
	require.Error(t, err)
}

func TestNopDoesNotPanic(t *testing.T) {
	l := xlog.NewNop()
	l.Info(context.Background(), "ignored", zap.String("k", "v"))
}
