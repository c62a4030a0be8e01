package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/MuchToMyDelight/hotspot/pkg/disasm"
	"github.com/MuchToMyDelight/hotspot/pkg/sourceview"
	"github.com/MuchToMyDelight/hotspot/pkg/xelf"
	"github.com/MuchToMyDelight/hotspot/pkg/xlog"
)

var (
	annotateInput     string
	annotateBinary    string
	annotateSymbol    string
	annotateObjdump   string
	annotateSysroot   string
	annotateDisasmOut string
	annotateEvent     string
	annotateHighlight int

	annotateCmd = &cobra.Command{
		Use:   "annotate",
		Short: "Attribute profile costs to a function's source lines",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runAnnotate()
		},
	}
)

func init() {
	annotateCmd.Flags().StringVarP(
		&annotateInput,
		"input",
		"i",
		"",
		"Profile with instruction addresses (pprof or perf script output)",
	)
	_ = annotateCmd.MarkFlagRequired("input")
	_ = annotateCmd.MarkFlagFilename("input")

	annotateCmd.Flags().StringVarP(
		&annotateSymbol,
		"symbol",
		"s",
		"",
		"Function to annotate, named exactly as the profile names it",
	)
	_ = annotateCmd.MarkFlagRequired("symbol")

	annotateCmd.Flags().StringVarP(
		&annotateBinary,
		"binary",
		"b",
		"",
		"Binary to disassemble (unstripped, built with -g)",
	)
	_ = annotateCmd.MarkFlagFilename("binary")

	annotateCmd.Flags().StringVar(
		&annotateObjdump,
		"objdump",
		"",
		"objdump to run (defaults to objdump from the config)",
	)
	annotateCmd.Flags().StringVar(
		&annotateSysroot,
		"sysroot",
		"",
		"Prepend this directory to source paths from the debug info",
	)
	annotateCmd.Flags().StringVar(
		&annotateDisasmOut,
		"disasm-file",
		"",
		"Read pre-captured 'objdump -d -l' output instead of running objdump",
	)
	_ = annotateCmd.MarkFlagFilename("disasm-file")

	annotateCmd.Flags().StringVar(
		&annotateEvent,
		"event",
		"",
		"perf event to attribute when the input is perf script output",
	)
	annotateCmd.Flags().IntVar(
		&annotateHighlight,
		"highlight",
		0,
		"Source line to mark in the output",
	)

	rootCmd.AddCommand(annotateCmd)
}

func runAnnotate() error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if annotateObjdump == "" {
		annotateObjdump = cfg.Objdump
	}
	if annotateSysroot == "" {
		annotateSysroot = cfg.Sysroot
	}

	ctx := context.Background()

	view, err := buildSourceView(ctx, logger, sourceViewRequest{
		Input:      annotateInput,
		Binary:     annotateBinary,
		Symbol:     annotateSymbol,
		Objdump:    annotateObjdump,
		Sysroot:    annotateSysroot,
		DisasmFile: annotateDisasmOut,
		Event:      annotateEvent,
	})
	if err != nil {
		return err
	}
	if annotateHighlight > 0 {
		view.SetHighlightedLine(annotateHighlight)
	}

	printView(os.Stdout, view)
	return nil
}

// sourceViewRequest carries everything needed to annotate one symbol.
// The MCP server fills it from tool arguments, the annotate command
// from flags.
type sourceViewRequest struct {
	Input      string
	Binary     string
	Symbol     string
	Objdump    string
	Sysroot    string
	DisasmFile string
	Event      string
}

func buildSourceView(ctx context.Context, l xlog.Logger, req sourceViewRequest) (*sourceview.View, error) {
	results, buildIDs, err := loadResults(req.Input, req.Event)
	if err != nil {
		return nil, err
	}

	var out *disasm.Output
	if req.DisasmFile != "" {
		f, err := os.Open(req.DisasmFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		out, err = disasm.Parse(f, req.Symbol)
		if err != nil {
			return nil, err
		}
	} else {
		if req.Binary == "" {
			return nil, errors.New("either --binary or --disasm-file is required")
		}
		warnOnBuildIDMismatch(ctx, l, req.Binary, buildIDs)
		out, err = disasm.Disassemble(ctx, disasm.Options{
			Objdump: req.Objdump,
			Binary:  req.Binary,
			Symbol:  req.Symbol,
		})
		if err != nil {
			return nil, err
		}
	}
	l.Debug(ctx, "Disassembled symbol",
		zap.String("symbol", out.Symbol),
		zap.Int("instructions", len(out.Lines)),
		zap.String("source", out.MainSourceFileName),
	)

	sourcePath := out.MainSourceFileName
	if req.Sysroot != "" && sourcePath != "" {
		sourcePath = filepath.Join(req.Sysroot, sourcePath)
	}
	return sourceview.Build(out, results, sourcePath)
}

// warnOnBuildIDMismatch compares the binary about to be disassembled
// with the binaries the profile was recorded against. Costs attributed
// through a stale binary land on the wrong lines silently, a warning
// is the best we can do.
func warnOnBuildIDMismatch(ctx context.Context, l xlog.Logger, binary string, profileIDs []string) {
	if len(profileIDs) == 0 {
		return
	}
	id, err := xelf.GetBuildID(binary)
	if err != nil || id == "" {
		return
	}
	if !slices.Contains(profileIDs, id) {
		l.Warn(ctx, "Binary build id not found in the profile's mappings",
			zap.String("binary", binary),
			zap.String("buildid", id),
		)
	}
}

func printView(w io.Writer, v *sourceview.View) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "%s in %s\n\n", v.Symbol(), v.SourceFileName())
	writeViewTable(w, v)
}

// writeViewTable renders a source view as plain text. Lines some
// instruction was compiled from are marked with '*', the highlighted
// one with '>'.
func writeViewTable(w io.Writer, v *sourceview.View) {
	cols := v.ColumnCount()

	fmt.Fprintf(w, "  %5s", v.ColumnName(sourceview.ColumnLineNumber))
	for col := sourceview.FixedColumns; col < cols; col++ {
		fmt.Fprintf(w, "  %16s", v.ColumnName(col))
	}
	fmt.Fprintf(w, "  %s\n", v.ColumnName(sourceview.ColumnSourceCode))

	for row := 0; row < v.RowCount(); row++ {
		mark := " "
		if v.IsValidLine(row) {
			mark = "*"
		}
		if v.IsHighlighted(row) {
			mark = ">"
		}
		fmt.Fprintf(w, "%s %5d", mark, v.LineNumber(row))
		for col := sourceview.FixedColumns; col < cols; col++ {
			cell := ""
			if cost, _, ok := v.CostAt(row, col); ok && cost != 0 {
				cell = v.DisplayText(row, col)
			}
			fmt.Fprintf(w, "  %16s", cell)
		}
		fmt.Fprintf(w, "  %s\n", v.Text(row))
	}
}
