package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MuchToMyDelight/hotspot/pkg/calltree"
	"github.com/MuchToMyDelight/hotspot/pkg/xpflag"
)

var (
	treeInput      string
	treeDirection  = xpflag.New(string(calltree.TopDown), string(calltree.TopDown), string(calltree.BottomUp))
	treeChannel    string
	treeEvent      string
	treeMaxDepth   int
	treeMinPercent float64

	treeCmd = &cobra.Command{
		Use:   "tree",
		Short: "Print a call tree with inclusive costs",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runTree()
		},
	}
)

func init() {
	treeCmd.Flags().StringVarP(
		&treeInput,
		"input",
		"i",
		"",
		"Profile to analyze (pprof, collapsed stacks or JFR)",
	)
	_ = treeCmd.MarkFlagRequired("input")
	_ = treeCmd.MarkFlagFilename("input")

	treeCmd.Flags().VarP(
		treeDirection,
		"direction",
		"d",
		"Tree direction, one of "+treeDirection.Variants(),
	)
	_ = treeCmd.RegisterFlagCompletionFunc("direction", treeDirection.Complete)
	treeCmd.Flags().StringVar(
		&treeChannel,
		"channel",
		"",
		"Cost channel to weigh nodes by (defaults to the profile's default sample type)",
	)
	treeCmd.Flags().StringVar(
		&treeEvent,
		"event",
		"",
		"JFR event kind to extract (cpu, wall, alloc, lock)",
	)
	treeCmd.Flags().IntVar(
		&treeMaxDepth,
		"max-depth",
		0,
		"Deepest level to print (defaults to max_depth from the config)",
	)
	treeCmd.Flags().Float64Var(
		&treeMinPercent,
		"min-percent",
		-1,
		"Hide subtrees below this share of the total (defaults to min_percent from the config)",
	)

	rootCmd.AddCommand(treeCmd)
}

func runTree() error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if treeChannel == "" {
		treeChannel = cfg.Channel
	}
	treeEvent = jfrEvent(treeInput, treeEvent, cfg)
	if treeMaxDepth == 0 {
		treeMaxDepth = cfg.MaxDepth
	}
	if treeMinPercent < 0 {
		treeMinPercent = cfg.MinPercent
	}

	ctx := context.Background()

	prof, err := openProfile(ctx, logger, treeInput, treeEvent)
	if err != nil {
		return err
	}
	typ, err := resolveChannel(prof, treeChannel)
	if err != nil {
		return err
	}

	res, err := calltree.Build(ctx, prof)
	if err != nil {
		return err
	}

	t := res.TopDown
	if calltree.Direction(treeDirection.String()) == calltree.BottomUp {
		t = res.BottomUp
	}
	logger.Info(ctx, "Built call trees",
		zap.Int("samples", res.Stats.Samples),
		zap.Int("discarded", prof.Stats.Discarded+res.Stats.Discarded),
		zap.Int("nodes", t.NumNodes()),
	)

	printTree(os.Stdout, t, typ, treeMaxDepth, treeMinPercent)
	return nil
}

func printTree(w io.Writer, t *calltree.Tree, typ, maxDepth int, minPercent float64) {
	total := t.TotalCost(typ)

	bold := color.New(color.Bold)
	bold.Fprintf(w, "%s call tree by %s\n", t.Direction(), t.TypeNames()[typ])
	if total == 0 {
		fmt.Fprintln(w, "profile carries no cost on this channel")
		return
	}

	var walk func(id calltree.NodeID, depth int)
	walk = func(id calltree.NodeID, depth int) {
		if depth >= maxDepth {
			return
		}
		for _, child := range t.SortedChildren(id, typ) {
			incl := t.InclusiveCost(typ, child)
			pct := 100 * float64(incl) / float64(total)
			if pct < minPercent {
				// Children are sorted by inclusive cost, nothing
				// after this one passes either.
				break
			}
			fmt.Fprintf(w, "%6.2f%% %s%s", pct, strings.Repeat("  ", depth), t.Symbol(child))
			if self := t.SelfCost(typ, child); self > 0 {
				fmt.Fprintf(w, "  [self %s]", percent(self, total))
			}
			fmt.Fprintln(w)
			walk(child, depth+1)
		}
	}
	walk(calltree.Root, 0)
}
