package perfscript

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/MuchToMyDelight/hotspot/pkg/profile/sample"
	"github.com/MuchToMyDelight/hotspot/pkg/symbolcosts"
)

// Command is the perf invocation whose output Decode understands.
func Command(perf, input string) string {
	return fmt.Sprintf("%s script -i %s -F event,period,comm,ip,sym", perf, input)
}

// stackcollapse-perf.pl drops the event period, so a 4 GHz sample and
// a throttled one weigh the same. We parse the script output ourselves
// and keep the period as the sample's cost.
var headerRe = regexp.MustCompile(`^(?P<comm>\S.+?)\s+(?P<period>\d+)\s+(?P<event>\S+):\s*$`)

const (
	kernelStartAddress = 0xffffffff00000000
	kernelEndAddress   = 0xffffffffffe00000
	kernelSuffix       = " [kernel]"
)

// Sniff reports whether data starts like 'perf script' output, a
// sample header of the form "comm period event:".
func Sniff(data []byte) bool {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		return headerRe.MatchString(line)
	}
	return false
}

type frame struct {
	addr   uint64
	symbol string
}

type record struct {
	event  string
	period int64
	stack  []frame
}

// scan splits 'perf script' output into samples: a header line, one
// frame per line innermost first, a blank line after each sample. A
// line that cannot be a header fails the whole parse, the stream is
// not perf script output. A bad frame line only drops its sample,
// skipped counts them.
func scan(r io.Reader, emit func(rec *record)) (skipped int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1<<20), 1<<30)

	var rec *record
	skipping := false
	flush := func() {
		if rec != nil {
			emit(rec)
			rec = nil
		}
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			flush()
			skipping = false
			continue
		}
		if skipping {
			continue
		}

		if rec == nil {
			match := headerRe.FindStringSubmatch(line)
			if match == nil {
				return skipped, fmt.Errorf("perfscript: malformed header line %#v", line)
			}
			period, err := strconv.ParseInt(match[2], 10, 64)
			if err != nil {
				return skipped, fmt.Errorf("perfscript: bad period in %#v: %w", line, err)
			}
			rec = &record{event: match[3], period: period}
			continue
		}

		idx := strings.IndexByte(line, ' ')
		if idx == -1 {
			rec = nil
			skipping = true
			skipped++
			continue
		}
		addr, err := strconv.ParseUint(line[:idx], 16, 64)
		if err != nil {
			rec = nil
			skipping = true
			skipped++
			continue
		}
		rec.stack = append(rec.stack, frame{addr: addr, symbol: strings.TrimSpace(line[idx+1:])})
	}
	if err := scanner.Err(); err != nil {
		return skipped, err
	}

	flush()
	return skipped, nil
}

// Decode reads 'perf script' output into a profile with a single cost
// channel, the accumulated event period. The first sample's event
// names the channel unless event asks for a specific one, samples of
// other events are dropped and counted. Frames come innermost first,
// matching the script output order. Addresses in the kernel range are
// tagged so kernel time stays recognizable after the addresses are
// gone.
func Decode(r io.Reader, event string) (*sample.Profile, error) {
	channel := event
	if channel == "" {
		channel = "cycles"
	}
	prof := sample.New(channel)

	skipped, err := scan(r, func(rec *record) {
		if event == "" && len(prof.Samples) == 0 && prof.Stats.Discarded == 0 {
			// Lock the channel to the first event seen.
			event = rec.event
			prof.TypeNames[0] = rec.event
		}
		if rec.event != event || len(rec.stack) == 0 {
			prof.Discard()
			return
		}
		stack := make([]string, 0, len(rec.stack))
		for _, f := range rec.stack {
			symbol := f.symbol
			if f.addr >= kernelStartAddress && f.addr < kernelEndAddress {
				symbol += kernelSuffix
			}
			stack = append(stack, symbol)
		}
		prof.Add(stack, []int64{rec.period})
	})
	if err != nil {
		return nil, err
	}
	prof.Stats.Discarded += skipped
	return prof, nil
}

// Results aggregates the same stream per symbol and instruction
// address for the annotate pipeline. Self lands on the sampled
// address, inclusive once per symbol per sample on its innermost
// frame. Symbols keep their raw names here, they must match the
// disassembly's headers.
func Results(r io.Reader, event string) (*symbolcosts.Results, error) {
	channel := event
	if channel == "" {
		channel = "cycles"
	}
	res := symbolcosts.NewResults(channel)

	first := true
	_, err := scan(r, func(rec *record) {
		if event == "" && first {
			event = rec.event
		}
		first = false
		if rec.event != event || len(rec.stack) == 0 {
			return
		}

		values := []int64{rec.period}
		leaf := rec.stack[0]
		if leaf.symbol != "" {
			res.AddSelf(leaf.symbol, leaf.addr, values)
		}
		seen := make(map[string]struct{}, len(rec.stack))
		for _, f := range rec.stack {
			if f.symbol == "" {
				continue
			}
			if _, ok := seen[f.symbol]; ok {
				continue
			}
			seen[f.symbol] = struct{}{}
			res.AddInclusive(f.symbol, f.addr, values)
		}
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Unmarshal decodes an in-memory 'perf script' dump.
func Unmarshal(data []byte, event string) (*sample.Profile, error) {
	return Decode(bytes.NewReader(data), event)
}
