package disasm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var ErrSymbolNotFound = errors.New("disasm: symbol not found")

// Line is one disassembled instruction. SourceFile and SourceLine come
// from the debug info markers objdump interleaves with the listing and
// are zero valued for instructions without line info.
type Line struct {
	Address    uint64
	Text       string
	SourceFile string
	SourceLine int
}

// Output is the disassembly of one symbol.
type Output struct {
	Symbol string
	// MainSourceFileName is the file most instructions map to. Inlined
	// code drags in headers and other files, the majority wins.
	MainSourceFileName string
	Lines              []Line
}

var (
	symbolRe = regexp.MustCompile(`^[0-9a-f]+ <(.*)>:$`)
	instrRe  = regexp.MustCompile(`^\s+([0-9a-f]+):\s*(.*)$`)
)

// Parse extracts the given symbol's instructions from objdump -d -l
// output. Lines outside the symbol are ignored, so the reader may
// carry a whole binary's listing.
func Parse(r io.Reader, symbol string) (*Output, error) {
	if symbol == "" {
		return nil, errors.New("disasm: empty symbol name")
	}

	out := &Output{Symbol: symbol}
	var (
		inSymbol bool
		curFile  string
		curLine  int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		if m := symbolRe.FindStringSubmatch(line); m != nil {
			if inSymbol {
				break
			}
			if m[1] == symbol {
				inSymbol = true
				curFile, curLine = "", 0
			}
			continue
		}
		if !inSymbol {
			continue
		}

		if m := instrRe.FindStringSubmatch(line); m != nil {
			addr, err := strconv.ParseUint(m[1], 16, 64)
			if err != nil {
				return nil, fmt.Errorf("disasm: bad instruction address in %q: %w", line, err)
			}
			out.Lines = append(out.Lines, Line{
				Address:    addr,
				Text:       m[2],
				SourceFile: curFile,
				SourceLine: curLine,
			})
			continue
		}

		if file, num, ok := parseFileLine(line); ok {
			curFile, curLine = file, num
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("disasm: scan objdump output: %w", err)
	}

	if !inSymbol {
		return nil, fmt.Errorf("%w: %q", ErrSymbolNotFound, symbol)
	}

	out.MainSourceFileName = mainSourceFile(out.Lines)
	return out, nil
}

// parseFileLine recognizes debug markers of the form
// "/path/to/file.c:42" or "file.c:42 (discriminator 3)".
func parseFileLine(line string) (string, int, bool) {
	if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
		return "", 0, false
	}
	if idx := strings.Index(line, " (discriminator "); idx != -1 {
		line = line[:idx]
	}
	idx := strings.LastIndexByte(line, ':')
	if idx <= 0 {
		return "", 0, false
	}
	num, err := strconv.Atoi(line[idx+1:])
	if err != nil || num < 0 {
		return "", 0, false
	}
	return line[:idx], num, true
}

// mainSourceFile picks the file the most instructions were compiled
// from, preferring the first seen on a tie.
func mainSourceFile(lines []Line) string {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, line := range lines {
		if line.SourceFile == "" {
			continue
		}
		if _, ok := counts[line.SourceFile]; !ok {
			order = append(order, line.SourceFile)
		}
		counts[line.SourceFile]++
	}
	best := ""
	bestCount := 0
	for _, file := range order {
		if counts[file] > bestCount {
			best = file
			bestCount = counts[file]
		}
	}
	return best
}
