package jfrconv_test

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MuchToMyDelight/hotspot/pkg/profile/jfrconv"
)

func TestParseRejectsUnknownEvent(t *testing.T) {
	_, err := jfrconv.Parse([]byte{}, "cache-misses")
	require.Error(t, err)
	require.Contains(t, err.Error(), "cache-misses")
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, event := range jfrconv.Events() {
		_, err := jfrconv.Parse([]byte("definitely not a flight recording"), event)
		require.Error(t, err, "event %s", event)
	}
}

func TestIsRecordingPath(t *testing.T) {
	require.True(t, jfrconv.IsRecordingPath("profile.jfr"))
	require.True(t, jfrconv.IsRecordingPath("profile.JFR"))
	require.True(t, jfrconv.IsRecordingPath("/tmp/app/profile.jfr.gz"))
	require.False(t, jfrconv.IsRecordingPath("profile.pb.gz"))
	require.False(t, jfrconv.IsRecordingPath("stacks.txt"))
}

func TestOpenMissingFile(t *testing.T) {
	_, err := jfrconv.Open(filepath.Join(t.TempDir(), "missing.jfr"), jfrconv.EventCPU)
	require.Error(t, err)
}

func TestOpenBadGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jfr.gz")
	require.NoError(t, os.WriteFile(path, []byte("not gzip"), 0644))

	_, err := jfrconv.Open(path, jfrconv.EventCPU)
	require.Error(t, err)
}

func TestOpenGzipUnwrapping(t *testing.T) {
	// A valid gzip stream wrapping an invalid recording must fail in
	// the JFR parser, not in the gzip layer.
	path := filepath.Join(t.TempDir(), "empty.jfr.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte("JUNK"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = jfrconv.Open(path, jfrconv.EventCPU)
	require.Error(t, err)
	require.NotContains(t, err.Error(), "gzip")
}

func TestEvents(t *testing.T) {
	require.Equal(t, []string{"cpu", "wall", "alloc", "lock"}, jfrconv.Events())
}
