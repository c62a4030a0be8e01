package jfrconv

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grafana/jfr-parser/parser"
	"github.com/grafana/jfr-parser/parser/types"

	"github.com/MuchToMyDelight/hotspot/pkg/profile/sample"
)

// Event kinds extractable from a JFR recording. Each kind becomes a
// single channel profile counting one per recorded event.
const (
	EventCPU   = "cpu"
	EventWall  = "wall"
	EventAlloc = "alloc"
	EventLock  = "lock"
)

func Events() []string {
	return []string{EventCPU, EventWall, EventAlloc, EventLock}
}

func validEvent(event string) bool {
	switch event {
	case EventCPU, EventWall, EventAlloc, EventLock:
		return true
	}
	return false
}

// IsRecordingPath reports whether the file name looks like a JFR
// recording, possibly gzipped.
func IsRecordingPath(path string) bool {
	p := strings.ToLower(path)
	return strings.HasSuffix(p, ".jfr") || strings.HasSuffix(p, ".jfr.gz")
}

// resolveFrame names a JFR frame the way async-profiler renders it,
// "Class.method" with the class part dropped for native frames.
func resolveFrame(p *parser.Parser, sf types.StackFrame) string {
	method := p.GetMethod(sf.Method)
	if method == nil {
		return "<unknown>"
	}
	className := ""
	if class := p.GetClass(method.Type); class != nil {
		className = p.GetSymbolString(class.Name)
	}
	methodName := p.GetSymbolString(method.Name)
	if className == "" {
		return methodName
	}
	return className + "." + methodName
}

// Parse extracts one event kind from a JFR recording. Identical
// stacks are merged up front, keeping their first-seen order so
// repeated runs aggregate identically. Events without a stack trace
// are dropped and counted.
func Parse(buf []byte, event string) (*sample.Profile, error) {
	if !validEvent(event) {
		return nil, fmt.Errorf("jfrconv: unknown event %q, want one of %s", event, strings.Join(Events(), ", "))
	}

	type aggregate struct {
		stack []string
		count int64
	}
	var (
		aggregates []aggregate
		index      = make(map[string]int)
		discarded  = 0
	)

	p := parser.NewParser(buf, parser.Options{})
	for {
		typ, err := p.ParseEvent()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("jfrconv: parse event: %w", err)
		}

		var stRef types.StackTraceRef
		match := false
		switch {
		case event == EventCPU && typ == p.TypeMap.T_EXECUTION_SAMPLE:
			stRef = p.ExecutionSample.StackTrace
			match = true
		case event == EventWall && typ == p.TypeMap.T_WALL_CLOCK_SAMPLE:
			stRef = p.WallClockSample.StackTrace
			match = true
		case event == EventAlloc && typ == p.TypeMap.T_ALLOC_IN_NEW_TLAB:
			stRef = p.ObjectAllocationInNewTLAB.StackTrace
			match = true
		case event == EventAlloc && typ == p.TypeMap.T_ALLOC_OUTSIDE_TLAB:
			stRef = p.ObjectAllocationOutsideTLAB.StackTrace
			match = true
		case event == EventAlloc && typ == p.TypeMap.T_ALLOC_SAMPLE:
			stRef = p.ObjectAllocationSample.StackTrace
			match = true
		case event == EventLock && typ == p.TypeMap.T_MONITOR_ENTER:
			stRef = p.JavaMonitorEnter.StackTrace
			match = true
		}
		if !match {
			continue
		}

		st := p.GetStacktrace(stRef)
		if st == nil || len(st.Frames) == 0 {
			discarded++
			continue
		}

		// JFR frames are already leaf first.
		stack := make([]string, len(st.Frames))
		for i, f := range st.Frames {
			stack[i] = resolveFrame(p, f)
		}

		key := strings.Join(stack, ";")
		if i, ok := index[key]; ok {
			aggregates[i].count++
		} else {
			index[key] = len(aggregates)
			aggregates = append(aggregates, aggregate{stack: stack, count: 1})
		}
	}

	prof := sample.New(event)
	prof.Stats.Discarded = discarded
	for i := range aggregates {
		prof.Add(aggregates[i].stack, []int64{aggregates[i].count})
	}
	return prof, nil
}

// Open reads a recording from disk, transparently ungzipping, and
// parses the given event kind.
func Open(path, event string) (*sample.Profile, error) {
	buf, err := readRecording(path)
	if err != nil {
		return nil, err
	}
	return Parse(buf, event)
}

// Discover counts the samples available per event kind, useful when
// the caller does not know what the recording was made with.
func Discover(path string) (map[string]int, error) {
	buf, err := readRecording(path)
	if err != nil {
		return nil, err
	}

	p := parser.NewParser(buf, parser.Options{})
	counts := make(map[string]int)
	for {
		typ, err := p.ParseEvent()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("jfrconv: parse event: %w", err)
		}
		switch typ {
		case p.TypeMap.T_EXECUTION_SAMPLE:
			counts[EventCPU]++
		case p.TypeMap.T_WALL_CLOCK_SAMPLE:
			counts[EventWall]++
		case p.TypeMap.T_ALLOC_IN_NEW_TLAB, p.TypeMap.T_ALLOC_OUTSIDE_TLAB, p.TypeMap.T_ALLOC_SAMPLE:
			counts[EventAlloc]++
		case p.TypeMap.T_MONITOR_ENTER:
			counts[EventLock]++
		}
	}
	return counts, nil
}

func readRecording(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("jfrconv: gzip: %w", err)
		}
		defer gr.Close()
		return io.ReadAll(gr)
	}
	return io.ReadAll(f)
}
