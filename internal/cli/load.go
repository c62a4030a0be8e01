package cli

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"

	pprof "github.com/google/pprof/profile"
	"go.uber.org/zap"

	"github.com/MuchToMyDelight/hotspot/pkg/profile/collapsed"
	"github.com/MuchToMyDelight/hotspot/pkg/profile/jfrconv"
	"github.com/MuchToMyDelight/hotspot/pkg/profile/perfscript"
	"github.com/MuchToMyDelight/hotspot/pkg/profile/pprofconv"
	"github.com/MuchToMyDelight/hotspot/pkg/profile/sample"
	"github.com/MuchToMyDelight/hotspot/pkg/symbolcosts"
	"github.com/MuchToMyDelight/hotspot/pkg/xlog"
)

// openProfile loads samples from any supported container. JFR
// recordings are recognized by extension, everything else is tried as
// pprof first, sniffed for 'perf script' output second and parsed as
// collapsed stacks last.
func openProfile(ctx context.Context, l xlog.Logger, path, event string) (*sample.Profile, error) {
	if jfrconv.IsRecordingPath(path) {
		l.Debug(ctx, "Parsing JFR recording",
			zap.String("path", path), zap.String("event", event))
		return jfrconv.Open(path, event)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data, err = maybeGunzip(data)
	if err != nil {
		return nil, fmt.Errorf("ungzip %s: %w", path, err)
	}

	if p, perr := pprof.ParseData(data); perr == nil {
		l.Debug(ctx, "Parsed pprof profile", zap.String("path", path))
		return pprofconv.FromPProf(p)
	}

	if perfscript.Sniff(data) {
		l.Debug(ctx, "Parsing perf script output",
			zap.String("path", path), zap.String("event", event))
		return perfscript.Unmarshal(data, event)
	}

	l.Debug(ctx, "Falling back to collapsed stacks", zap.String("path", path))
	prof, err := collapsed.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("cannot parse %s as pprof or collapsed stacks: %w", path, err)
	}
	if len(prof.Samples) == 0 && prof.Stats.Discarded > 0 {
		return nil, fmt.Errorf("cannot parse %s: not a pprof profile, perf script output or collapsed stacks", path)
	}
	return prof, nil
}

// jfrEvent resolves the event kind to load, flag over config. The
// config default applies to JFR recordings only: perf script events
// carry names like "cycles", a leaked "cpu" would filter them all out.
func jfrEvent(path, flag string, cfg *Config) string {
	if flag == "" && jfrconv.IsRecordingPath(path) {
		return cfg.Event
	}
	return flag
}

func maybeGunzip(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data, nil
	}
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	return io.ReadAll(gr)
}

// loadResults builds per-symbol, per-address costs for the annotate
// pipeline. Only pprof profiles and perf script output carry the
// instruction addresses it needs. buildIDs lists the profile's mapped
// binaries when it knows them.
func loadResults(path, event string) (results *symbolcosts.Results, buildIDs []string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	data, err = maybeGunzip(data)
	if err != nil {
		return nil, nil, fmt.Errorf("ungzip %s: %w", path, err)
	}

	if p, perr := pprof.ParseData(data); perr == nil {
		for _, m := range p.Mapping {
			if m.BuildID != "" {
				buildIDs = append(buildIDs, m.BuildID)
			}
		}
		results, err = pprofconv.ResultsFromPProf(p)
		return results, buildIDs, err
	}

	if perfscript.Sniff(data) {
		results, err = perfscript.Results(bytes.NewReader(data), event)
		return results, nil, err
	}

	return nil, nil, fmt.Errorf("%s: annotation needs instruction addresses, provide a pprof profile or perf script output", path)
}
