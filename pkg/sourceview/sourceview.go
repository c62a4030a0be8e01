package sourceview

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/MuchToMyDelight/hotspot/pkg/costs"
	"github.com/MuchToMyDelight/hotspot/pkg/disasm"
	"github.com/MuchToMyDelight/hotspot/pkg/symbolcosts"
)

var (
	// ErrNoSourceFile means the disassembly carried no file names at
	// all, usually a binary built without -g.
	ErrNoSourceFile = errors.New("sourceview: disassembly has no main source file")
	// ErrNoSourceLines means no instruction mapped to the main source
	// file, so there is no line window to show.
	ErrNoSourceLines = errors.New("sourceview: no instruction maps to the main source file")
)

const (
	ColumnSourceCode = 0
	ColumnLineNumber = 1

	// FixedColumns is where the cost columns start, self channels
	// first, inclusive channels after them.
	FixedColumns = 2
)

// View is a per-line cost breakdown of one symbol: a dense window of
// the symbol's source lines annotated with the costs of the
// instructions compiled from each line. Row zero is a banner showing
// the symbol name in place of the line preceding the window.
type View struct {
	symbol     string
	mainFile   string
	doc        []string
	numRows    int
	startLine  int
	lineOffset int
	self       *costs.Table[int]
	inclusive  *costs.Table[int]
	valid      map[int]struct{}
	highlight  int

	// OnHighlightChange fires after SetHighlightedLine with the column
	// whose rendering is affected.
	OnHighlightChange func(column int)
}

// Build joins a symbol's disassembly against its per-address costs and
// loads the referenced source file. Lines without mapping or from
// other files (inlined code) are skipped; the remaining lines span a
// dense window from one line above the first mapped line to the last.
func Build(out *disasm.Output, results *symbolcosts.Results, sourcePath string) (*View, error) {
	if out.MainSourceFileName == "" {
		return nil, ErrNoSourceFile
	}
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("sourceview: read source: %w", err)
	}

	v := &View{
		symbol:    out.Symbol,
		mainFile:  out.MainSourceFileName,
		doc:       splitLines(data),
		self:      costs.InitializeFrom[int](results.Self),
		inclusive: costs.InitializeFrom[int](results.Inclusive),
		valid:     make(map[int]struct{}),
		highlight: -1,
	}

	entry := results.Entry(out.Symbol)
	minLine, maxLine := math.MaxInt, 0
	for _, line := range out.Lines {
		if line.SourceLine == 0 || line.SourceFile != out.MainSourceFileName {
			continue
		}
		if line.SourceLine > maxLine {
			maxLine = line.SourceLine
		}
		if line.SourceLine < minLine {
			minLine = line.SourceLine
		}
		if entry != nil {
			if lc, ok := entry.OffsetCost(line.Address); ok {
				v.self.Add(line.SourceLine, lc.Self)
				v.inclusive.Add(line.SourceLine, lc.Inclusive)
			}
		}
		v.valid[line.SourceLine] = struct{}{}
	}

	if maxLine == 0 {
		return nil, ErrNoSourceLines
	}
	if minLine <= 0 || minLine > maxLine {
		panic(fmt.Sprintf("sourceview: impossible line window %d..%d for %q", minLine, maxLine, out.Symbol))
	}

	v.startLine = minLine - 2
	v.lineOffset = minLine - 1
	v.numRows = maxLine - v.startLine
	return v, nil
}

func splitLines(data []byte) []string {
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

func (v *View) Symbol() string {
	return v.symbol
}

func (v *View) SourceFileName() string {
	return v.mainFile
}

func (v *View) RowCount() int {
	return v.numRows
}

func (v *View) ColumnCount() int {
	return FixedColumns + v.self.NumTypes() + v.inclusive.NumTypes()
}

func (v *View) ColumnName(col int) string {
	switch col {
	case ColumnSourceCode:
		return "Source Code"
	case ColumnLineNumber:
		return "Line"
	}
	col -= FixedColumns
	if col < v.self.NumTypes() {
		return fmt.Sprintf("%s (self)", v.self.TypeName(col))
	}
	return fmt.Sprintf("%s (incl.)", v.inclusive.TypeName(col-v.self.NumTypes()))
}

// LineNumber is the source line a row stands for. The banner row
// reports the line it replaced, one above the first mapped line.
func (v *View) LineNumber(row int) int {
	return row + v.lineOffset
}

// Text returns the source text of a row, the symbol name for the
// banner row. Rows beyond the loaded file come back empty, the file
// on disk may be older than the binary.
func (v *View) Text(row int) string {
	if row < 0 || row >= v.numRows {
		return ""
	}
	if row == 0 {
		return v.symbol
	}
	idx := row + v.startLine
	if idx < 0 || idx >= len(v.doc) {
		return ""
	}
	return v.doc[idx]
}

// IsValidLine reports whether any instruction of the symbol was
// compiled from this row's line. Costless lines referenced by the
// disassembly are still valid.
func (v *View) IsValidLine(row int) bool {
	_, ok := v.valid[v.LineNumber(row)]
	return ok
}

func (v *View) IsHighlighted(row int) bool {
	return v.LineNumber(row) == v.highlight
}

// SetHighlightedLine marks a source line, usually the one selected in
// the disassembly view. Lines outside the window simply highlight no
// row. Costs are untouched.
func (v *View) SetHighlightedLine(line int) {
	v.highlight = line
	if v.OnHighlightChange != nil {
		v.OnHighlightChange(ColumnSourceCode)
	}
}

// CostAt resolves a cost cell to its raw value and the channel total.
// Fixed columns and out-of-range cells report ok=false.
func (v *View) CostAt(row, col int) (cost, total int64, ok bool) {
	if row < 0 || row >= v.numRows {
		return 0, 0, false
	}
	col -= FixedColumns
	if col < 0 {
		return 0, 0, false
	}
	line := v.LineNumber(row)
	if col < v.self.NumTypes() {
		return v.self.Cost(col, line), v.self.TotalCost(col), true
	}
	col -= v.self.NumTypes()
	if col < v.inclusive.NumTypes() {
		return v.inclusive.Cost(col, line), v.inclusive.TotalCost(col), true
	}
	return 0, 0, false
}

// DisplayText renders a cell the way the annotate report shows it,
// costs as a percentage of their channel total.
func (v *View) DisplayText(row, col int) string {
	switch col {
	case ColumnSourceCode:
		return v.Text(row)
	case ColumnLineNumber:
		return strconv.Itoa(v.LineNumber(row))
	}
	cost, total, ok := v.CostAt(row, col)
	if !ok {
		return ""
	}
	return formatCostRelative(cost, total)
}

func formatCostRelative(cost, total int64) string {
	if total == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", 100*float64(cost)/float64(total))
}
