package collapsed

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/MuchToMyDelight/hotspot/pkg/profile/sample"
)

// Collapsed stacks carry one sample per line, semicolon separated
// frames from the entry point down to the sampled instruction, then a
// space and the count:
//
//	main;work;compress 42
//
// Stacks are stored leaf first in sample.Profile, the codec reverses
// on both paths.

// Decode reads collapsed stacks into a single channel profile named
// "samples". Garbled lines are dropped and counted, not fatal: these
// files are often hand-edited or produced by lossy pipelines.
func Decode(r io.Reader) (*sample.Profile, error) {
	prof := sample.New("samples")

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		idx := strings.LastIndexByte(line, ' ')
		if idx == -1 {
			prof.Discard()
			continue
		}
		count, err := strconv.ParseInt(line[idx+1:], 0, 64)
		if err != nil || count < 0 {
			prof.Discard()
			continue
		}
		stack := strings.Split(line[:idx], ";")
		slices.Reverse(stack)
		prof.Add(stack, []int64{count})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("collapsed: %w", err)
	}

	return prof, nil
}

// Encode writes the given cost channel of a profile as collapsed
// stacks. The profile itself is not modified.
func Encode(prof *sample.Profile, w io.Writer, typ int) error {
	if typ < 0 || typ >= len(prof.TypeNames) {
		return fmt.Errorf("collapsed: no cost type %d in profile", typ)
	}
	for i := range prof.Samples {
		s := &prof.Samples[i]
		if len(s.Stack) == 0 {
			continue
		}
		stack := slices.Clone(s.Stack)
		slices.Reverse(stack)
		_, err := fmt.Fprintf(w, "%s %d\n", strings.Join(stack, ";"), s.Values[typ])
		if err != nil {
			return err
		}
	}
	return nil
}

func Unmarshal(buf []byte) (*sample.Profile, error) {
	return Decode(bytes.NewBuffer(buf))
}

func Marshal(prof *sample.Profile, typ int) ([]byte, error) {
	buf := new(bytes.Buffer)
	err := Encode(prof, buf, typ)
	return buf.Bytes(), err
}
