package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MuchToMyDelight/hotspot/pkg/calltree"
	"github.com/MuchToMyDelight/hotspot/pkg/profile/sample"
)

var (
	topInput   string
	topCount   int
	topChannel string
	topEvent   string

	topCmd = &cobra.Command{
		Use:   "top",
		Short: "Show the hottest functions by self cost",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runTop()
		},
	}
)

func init() {
	topCmd.Flags().StringVarP(
		&topInput,
		"input",
		"i",
		"",
		"Profile to analyze (pprof, collapsed stacks or JFR)",
	)
	_ = topCmd.MarkFlagRequired("input")
	_ = topCmd.MarkFlagFilename("input")

	topCmd.Flags().IntVarP(
		&topCount,
		"count",
		"n",
		0,
		"Number of functions to show (defaults to top_count from the config)",
	)
	topCmd.Flags().StringVar(
		&topChannel,
		"channel",
		"",
		"Cost channel to rank by (defaults to the profile's default sample type)",
	)
	topCmd.Flags().StringVar(
		&topEvent,
		"event",
		"",
		"JFR event kind to extract (cpu, wall, alloc, lock)",
	)

	rootCmd.AddCommand(topCmd)
}

func runTop() error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if topCount == 0 {
		topCount = cfg.TopCount
	}
	if topChannel == "" {
		topChannel = cfg.Channel
	}
	topEvent = jfrEvent(topInput, topEvent, cfg)

	ctx := context.Background()

	prof, err := openProfile(ctx, logger, topInput, topEvent)
	if err != nil {
		return err
	}
	typ, err := resolveChannel(prof, topChannel)
	if err != nil {
		return err
	}

	res, err := calltree.Build(ctx, prof)
	if err != nil {
		return err
	}
	logger.Info(ctx, "Built call trees",
		zap.Int("samples", res.Stats.Samples),
		zap.Int("discarded", prof.Stats.Discarded+res.Stats.Discarded),
		zap.Int("nodes", res.BottomUp.NumNodes()),
	)

	frames := calltree.TopN(res.BottomUp, typ, topCount)
	printTopFrames(os.Stdout, res.BottomUp, typ, frames)
	return nil
}

func printTopFrames(w io.Writer, t *calltree.Tree, typ int, frames []calltree.HotFrame) {
	channel := t.TypeNames()[typ]
	total := t.TotalCost(typ)

	bold := color.New(color.Bold)
	bold.Fprintf(w, "Top %d functions by self %s\n", len(frames), channel)
	fmt.Fprintf(w, "Total: %s %s\n\n", humanize.Comma(total), channel)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Self", "Self%", "Incl%", "Symbol"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT,
	})
	for i, frame := range frames {
		table.Append([]string{
			strconv.Itoa(i + 1),
			humanize.Comma(frame.Self),
			percent(frame.Self, total),
			percent(frame.Inclusive, total),
			frame.Symbol,
		})
	}
	table.Render()
}

func percent(v, total int64) string {
	if total == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", 100*float64(v)/float64(total))
}

func resolveChannel(prof *sample.Profile, name string) (int, error) {
	if name == "" {
		return prof.DefaultType, nil
	}
	for i, t := range prof.TypeNames {
		if t == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no cost channel %q in profile, have: %s", name, strings.Join(prof.TypeNames, ", "))
}
